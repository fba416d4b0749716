package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix marks the signature scheme in the header value.
const Prefix = "sha256="

// Sign computes the HMAC-SHA256 of the exact body bytes and returns
// "sha256=<hex>". Receivers recompute over the bytes they received and
// compare.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares in constant time. The
// provided value may carry the "sha256=" prefix or be the bare hex digest.
func Verify(payload []byte, sig, secret string) bool {
	sig = strings.TrimPrefix(sig, Prefix)
	want := strings.TrimPrefix(Sign(payload, secret), Prefix)
	return hmac.Equal([]byte(sig), []byte(want))
}
