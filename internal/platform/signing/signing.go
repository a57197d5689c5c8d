// Package signing holds the credential primitives shared by both the
// webhook path and the backend client: GitHub webhook HMAC verification
// and derived-key HMAC signing for backend calls
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const sigPrefix = "sha256="

// WebhookSignature computes the X-Hub-Signature-256 value for body under secret
func WebhookSignature(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks a GitHub webhook signature header against
// the raw, unparsed body bytes. The header must be "sha256=<hex>".
// Comparison is constant time; any malformation returns false
func VerifyWebhookSignature(secret, body []byte, header string) bool {
	if len(secret) == 0 || !strings.HasPrefix(header, sigPrefix) {
		return false
	}
	got, err := hex.DecodeString(header[len(sigPrefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// InternalSigner signs bot -> backend requests with a key derived from the
// shared secret. Keying HMAC with hex(SHA-256(secret)) rather than the raw
// secret keeps this signing use isolated from other holders of the same
// credential
type InternalSigner struct {
	KeyID   string
	derived []byte
}

// NewInternalSigner derives the request key from the shared secret
func NewInternalSigner(keyID, secret string) InternalSigner {
	sum := sha256.Sum256([]byte(secret))
	return InternalSigner{
		KeyID:   keyID,
		derived: []byte(hex.EncodeToString(sum[:])),
	}
}

// Sign produces "sha256=<hex>" over "<timestamp>.<message>"
// message must be canonical and unique to the call so a signature cannot
// be replayed against a different endpoint
func (s InternalSigner) Sign(unixTimestamp int64, message string) string {
	mac := hmac.New(sha256.New, s.derived)
	fmt.Fprintf(mac, "%d.%s", unixTimestamp, message)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}
