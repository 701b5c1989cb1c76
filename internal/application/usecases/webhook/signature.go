// Package webhook processes funding notifications from the payment provider.
// The webhook is the only path by which external money enters a wallet.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// ComputeSignature returns the lowercase hex HMAC-SHA-512 of the raw body.
// The hash is computed over the exact bytes received; re-serializing the
// JSON would break verification.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(header))))
}
