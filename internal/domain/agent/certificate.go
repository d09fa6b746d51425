package agent

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"
)

const (
	minCertificateLen   = 16
	fallbackCertificate = 32 // opaque certificates at least this long are accepted without a PEM marker
	pemMarker           = "BEGIN CERTIFICATE"
)

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)

// Certificate validation failures. Callers wrap these with domain.ErrCertificate.
var (
	ErrCertificateMissing = errors.New("certificate is required for HIGH and CRITICAL trust")
	ErrCertificateFormat  = errors.New("invalid certificate format")
	ErrCertificateExpired = errors.New("certificate has expired or is not yet valid")
)

// ValidateCertificate enforces the certificate invariant for a descriptor.
// A certificate is optional below HIGH trust, but when present it must still be well-formed.
func ValidateCertificate(d *Descriptor) error {
	if d.Certificate == "" {
		if d.TrustLevel.RequiresCertificate() {
			return ErrCertificateMissing
		}
		return nil
	}
	return checkCertificate(d.Certificate)
}

func checkCertificate(cert string) error {
	if strings.Contains(strings.ToLower(cert), "expired") {
		return ErrCertificateExpired
	}
	if len(cert) < minCertificateLen || !base64Pattern.MatchString(cert) {
		return ErrCertificateFormat
	}

	decoded, err := base64.StdEncoding.DecodeString(cert)
	if err != nil {
		if len(cert) >= fallbackCertificate {
			return nil
		}
		return ErrCertificateFormat
	}
	text := string(decoded)
	if strings.Contains(strings.ToUpper(text), "EXPIRED") {
		return ErrCertificateExpired
	}
	if strings.Contains(text, pemMarker) || len(cert) >= fallbackCertificate {
		return nil
	}
	return ErrCertificateFormat
}
