package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var verificationHTML = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Verify Email Address</h2>
		<p>Hello {{.Name}},</p>
		<p>Please click the button below to verify your email address.</p>
		<p><a href="{{.Link}}" style="background-color: #2d3748; color: white; padding: 10px 18px; border-radius: 4px; text-decoration: none;">Verify Email Address</a></p>
		<p>If you did not create an account, no further action is required.</p>
	</div>
</body>
</html>`))

// VerificationMessage builds the email asking a new user to confirm their address
func VerificationMessage(to, name, link string) (Message, error) {
	var html bytes.Buffer
	if err := verificationHTML.Execute(&html, struct{ Name, Link string }{name, link}); err != nil {
		return Message{}, fmt.Errorf("failed to render verification email: %w", err)
	}

	text := fmt.Sprintf("Hello %s,\n\nPlease open the link below to verify your email address.\n\n%s\n\n"+
		"If you did not create an account, no further action is required.\n", name, link)

	return Message{
		To:      to,
		Subject: "Verify Email Address",
		Text:    text,
		HTML:    html.String(),
	}, nil
}
