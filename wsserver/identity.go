package wsserver

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// identityVerifier decorates connections with a caller identity read from a
// bearer token, purely for audit logging: the SDK's sub-protocol has no
// notion of authentication, and a missing or invalid token never blocks a
// connection. It's off by default; set ServerConfig.JWTPublicKeyPath to
// enable it.
type identityVerifier struct {
	publicKey *rsa.PublicKey
}

func newIdentityVerifier(publicKeyPath string) (*identityVerifier, error) {
	if publicKeyPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("wsserver: read jwt public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("wsserver: parse jwt public key: %w", err)
	}
	return &identityVerifier{publicKey: key}, nil
}

// identify extracts the "sub" claim from a bearer token on the request, if
// present and valid. It never returns an error that should block the
// connection; callers log the empty string on failure and proceed.
func (v *identityVerifier) identify(r *http.Request) string {
	if v == nil {
		return ""
	}
	authz := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return ""
	}
	raw := strings.TrimPrefix(authz, prefix)

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.publicKey, nil
	})
	if err != nil {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
