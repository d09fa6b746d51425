// Package signing produces keyed-hash signatures for agents, results, security
// decisions and audit entries. It is tamper detection within one trusted process,
// not asymmetric PKI.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/Strob0t/quorumgate/internal/domain"
)

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

var placeholders = []string{
	"default-key",
	"changeme",
	"change-me",
	"secret",
	"your-secret-key",
	"development-secret",
}

const hkdfInfo = "quorumgate agent signing v1"

// Signer signs canonical JSON with HMAC-SHA256 under a key derived from the
// shared secret. Safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner validates the secret and derives the signing key. A missing, short or
// placeholder secret yields an error wrapping domain.ErrConfiguration.
func NewSigner(secret string) (*Signer, error) {
	if err := ValidateSecret(secret); err != nil {
		return nil, err
	}
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return &Signer{key: key}, nil
}

// ValidateSecret checks the secret without deriving a key.
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: signing secret is not set", domain.ErrConfiguration)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: signing secret must be at least %d characters", domain.ErrConfiguration, MinSecretLength)
	}
	lower := strings.ToLower(secret)
	for _, p := range placeholders {
		if lower == p || strings.HasPrefix(lower, p+"-") || strings.HasPrefix(lower, p+"_") {
			return fmt.Errorf("%w: signing secret is a placeholder value", domain.ErrConfiguration)
		}
	}
	return nil
}

// Sign returns the hex HMAC of v's JSON encoding. Values that cannot be encoded
// are signed over their error text so the result never silently matches.
func (s *Signer) Sign(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("unencodable:" + err.Error())
	}
	return s.SignBytes(data)
}

// SignBytes returns the hex HMAC of data.
func (s *Signer) SignBytes(data []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the signature of v, in constant time.
func (s *Signer) Verify(v any, sig string) bool {
	want := s.Sign(v)
	return hmac.Equal([]byte(want), []byte(sig))
}

// VerifyBytes reports whether sig is the signature of data, in constant time.
func (s *Signer) VerifyBytes(data []byte, sig string) bool {
	return hmac.Equal([]byte(s.SignBytes(data)), []byte(sig))
}
