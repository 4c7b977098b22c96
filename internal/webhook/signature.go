package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the scheme GitHub prepends to the hex digest in the
// X-Hub-Signature-256 header.
const signaturePrefix = "sha256="

// ValidateSignature checks a GitHub webhook body against its
// X-Hub-Signature-256 header using HMAC-SHA256 and a constant-time
// comparison. A missing or malformed header fails validation.
func ValidateSignature(body []byte, signatureHeader, secret string) bool {
	if signatureHeader == "" || !strings.HasPrefix(signatureHeader, signaturePrefix) {
		return false
	}
	received, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(received, mac.Sum(nil))
}

// Sign computes the X-Hub-Signature-256 header value for a body. Tests and
// local tooling use it to produce valid requests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
