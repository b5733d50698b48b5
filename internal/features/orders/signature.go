package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC of the raw body.
// An empty secret rejects everything.
func VerifySignature(secret string, body []byte, header string) error {
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if secret == "" || header == "" {
		return common.ErrInvalidSignature
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return common.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return common.ErrInvalidSignature
	}
	return nil
}
