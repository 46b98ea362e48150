package service

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"storefront/internal/domain"
)

// DefaultVerificationTTL is how long an emailed verification link stays valid
const DefaultVerificationTTL = 60 * time.Minute

// VerificationSigner builds and checks signed email verification links of the
// form {baseURL}/api/email/verify/{id}/{sha1(email)}?expires=…&signature=…
type VerificationSigner struct {
	baseURL string
	key     []byte
	ttl     time.Duration
}

func NewVerificationSigner(baseURL, key string, ttl time.Duration) *VerificationSigner {
	if ttl <= 0 {
		ttl = DefaultVerificationTTL
	}
	return &VerificationSigner{baseURL: baseURL, key: []byte(key), ttl: ttl}
}

// EmailHash is the hex sha1 of the address, the {hash} segment of the link
func EmailHash(email string) string {
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])
}

func (v *VerificationSigner) sign(id, hash, expires string) string {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id + "|" + hash + "|" + expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// URL returns a verification link for user that expires ttl after now
func (v *VerificationSigner) URL(user *domain.User, now time.Time) string {
	id := user.ID.String()
	hash := EmailHash(user.Email)
	expires := strconv.FormatInt(now.Add(v.ttl).Unix(), 10)

	query := url.Values{}
	query.Set("expires", expires)
	query.Set("signature", v.sign(id, hash, expires))

	return fmt.Sprintf("%s/api/email/verify/%s/%s?%s", v.baseURL, id, hash, query.Encode())
}

// Check validates the signature and expiry of a link. It does not compare
// hash with the user's address.
func (v *VerificationSigner) Check(id, hash, expires, signature string, now time.Time) error {
	expiresAt, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrInvalidVerificationLink
	}

	expected := v.sign(id, hash, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidVerificationLink
	}

	if now.Unix() > expiresAt {
		return ErrInvalidVerificationLink
	}

	return nil
}

func hashMatches(email, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(EmailHash(email)), []byte(hash)) == 1
}
