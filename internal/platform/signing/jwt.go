package signing

import (
	"crypto/rsa"
	"time"

	perr "stakegate/internal/platform/errors"

	"github.com/golang-jwt/jwt/v5"
)

// LoadPrivateKey parses a PEM-encoded RSA private key (the GitHub App key)
func LoadPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "parse app private key")
	}
	return key, nil
}

// AppJWT mints a short-lived RS256 JWT for GitHub App authentication.
// iat is backdated 60s to absorb clock skew with GitHub; the 9 minute
// expiry stays under GitHub's 10 minute ceiling
func AppJWT(appID string, key *rsa.PrivateKey, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(9 * time.Minute).Unix(),
		"iss": appID,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "sign app jwt")
	}
	return tok, nil
}
