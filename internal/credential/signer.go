package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Signer computes and verifies HMAC-SHA256 signatures over the canonical form
// of credential fields. The key is fixed at construction; rotating the secret
// invalidates every outstanding credential.
type Signer struct {
	key []byte
}

// NewSigner builds a Signer from the process-wide secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signer: secret is required")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{key: key}, nil
}

// Sign returns the lowercase hex signature for the fields.
func (s *Signer) Sign(f Fields) string {
	return hex.EncodeToString(s.mac(f))
}

// Verify reports whether signature is exactly the lowercase hex signature of
// the fields. The comparison runs in constant time over the encoded form, so
// case changes or surrounding whitespace never verify.
func (s *Signer) Verify(f Fields, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(s.Sign(f)))
}

func (s *Signer) mac(f Fields) []byte {
	m := hmac.New(sha256.New, s.key)
	_, _ = m.Write([]byte(f.Canonical()))
	return m.Sum(nil)
}
