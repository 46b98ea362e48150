package mailer

import (
	"context"
	"strings"
	"testing"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestVerificationMessage_IncludesLink(t *testing.T) {
	link := "http://localhost:8080/api/email/verify/abc/def?expires=1&signature=xyz"

	msg, err := VerificationMessage("jane@example.com", "Jane <Doe>", link)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Verify Email Address", msg.Subject)
	assert.Contains(t, msg.Text, link)
	assert.Contains(t, msg.Text, "Hello Jane <Doe>")
	// names are escaped in the HTML part
	assert.Contains(t, msg.HTML, "Jane &lt;Doe&gt;")
	assert.Contains(t, msg.HTML, "signature=xyz")
}

func TestSMTPMailer_Build(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 587, FromAddress: "noreply@example.com"})

	out, err := m.Build(Message{To: "jane@example.com", Subject: "Hi", Text: "plain", HTML: "<p>html</p>"})
	require.NoError(t, err)
	require.Len(t, out.GetFromString(), 1)
	assert.Contains(t, out.GetFromString()[0], "noreply@example.com")
	require.Len(t, out.GetToString(), 1)
	assert.Contains(t, out.GetToString()[0], "jane@example.com")

	_, err = m.Build(Message{To: "not an address"})
	assert.Error(t, err)
}

func TestNew_SelectsImplementation(t *testing.T) {
	assert.IsType(t, &SMTPMailer{}, New(config.MailConfig{Host: "smtp.example.com", Enabled: true}, zap.NewNop()))
	assert.IsType(t, &LogMailer{}, New(config.MailConfig{}, zap.NewNop()))
}

func TestLogMailer_Send(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.co", Subject: "Subject", Text: "body"}))
	require.Equal(t, 1, logs.Len())
	assert.True(t, strings.HasPrefix(logs.All()[0].Message, "Mail not sent"))
}
