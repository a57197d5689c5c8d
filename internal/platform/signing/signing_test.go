package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestWebhookSignatureRoundTrip(t *testing.T) {
	secret := []byte("hush")
	body := []byte(`{"action":"opened"}`)

	sig := WebhookSignature(secret, body)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("signature prefix missing: %q", sig)
	}
	if !VerifyWebhookSignature(secret, body, sig) {
		t.Fatalf("round trip should verify")
	}
}

func TestVerifyWebhookSignatureRejects(t *testing.T) {
	secret := []byte("hush")
	body := []byte(`{"action":"opened"}`)
	sig := WebhookSignature(secret, body)

	// flipped body byte
	mut := append([]byte(nil), body...)
	mut[0] ^= 0x01
	if VerifyWebhookSignature(secret, mut, sig) {
		t.Fatalf("flipped body should not verify")
	}

	// flipped signature hex digit
	repl := byte('0')
	if sig[len(sig)-1] == '0' {
		repl = '1'
	}
	bad := sig[:len(sig)-1] + string(repl)
	if VerifyWebhookSignature(secret, body, bad) {
		t.Fatalf("flipped signature should not verify")
	}

	cases := []string{
		"",
		"sha1=deadbeef",
		"sha256=nothex!",
		"sha256=deadbeef", // wrong length
		strings.TrimPrefix(sig, "sha256="),
	}
	for _, h := range cases {
		if VerifyWebhookSignature(secret, body, h) {
			t.Fatalf("header %q should not verify", h)
		}
	}

	if VerifyWebhookSignature(nil, body, sig) {
		t.Fatalf("empty secret should not verify")
	}
	if VerifyWebhookSignature([]byte("other"), body, sig) {
		t.Fatalf("wrong secret should not verify")
	}
}

func TestInternalSignerDerivedKey(t *testing.T) {
	s := NewInternalSigner("key-1", "topsecret")
	ts := int64(1_700_000_000)
	sig := s.Sign(ts, "bot-actions-claim:worker-1")

	// recompute with the documented derivation: HMAC key is hex(SHA-256(secret))
	sum := sha256.Sum256([]byte("topsecret"))
	mac := hmac.New(sha256.New, []byte(hex.EncodeToString(sum[:])))
	mac.Write([]byte("1700000000.bot-actions-claim:worker-1"))
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if sig != want {
		t.Fatalf("signature mismatch:\n got %s\nwant %s", sig, want)
	}

	// binding: a different message yields a different signature
	if s.Sign(ts, "bot-actions-claim:worker-2") == sig {
		t.Fatalf("signature must be bound to the message")
	}
	if s.Sign(ts+1, "bot-actions-claim:worker-1") == sig {
		t.Fatalf("signature must be bound to the timestamp")
	}
}

func TestAppJWTClaims(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)

	tok, err := AppJWT("12345", key, now)
	if err != nil {
		t.Fatalf("AppJWT: %v", err)
	}

	parsed, err := jwt.Parse(tok, func(tk *jwt.Token) (any, error) {
		if tk.Method.Alg() != "RS256" {
			t.Fatalf("alg = %s, want RS256", tk.Method.Alg())
		}
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if iss, _ := claims.GetIssuer(); iss != "12345" {
		t.Fatalf("iss = %q", iss)
	}
	iat, _ := claims.GetIssuedAt()
	if got := iat.Unix(); got != now.Add(-time.Minute).Unix() {
		t.Fatalf("iat = %d, want backdated 60s", got)
	}
	exp, _ := claims.GetExpirationTime()
	if got := exp.Unix(); got != now.Add(9*time.Minute).Unix() {
		t.Fatalf("exp = %d, want +9m", got)
	}
}

func TestLoadPrivateKeyRejectsGarbage(t *testing.T) {
	if _, err := LoadPrivateKey([]byte("not pem")); err == nil {
		t.Fatalf("expected error on garbage PEM")
	}
}
