// Package identity verifies the signed role token that selects which
// security-policy rules apply to the current caller, and caches the
// resolved role for the lifetime of a session.
package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleClaims is the payload of a role token: a detached assertion of
// `{role, exp?, iat?, jti?}` signed over `header.payload` with RS256.
type RoleClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// VerifyResult is the outcome of verifying a single role token file.
type VerifyResult struct {
	Valid bool
	Role  string
	Error error
}

var (
	// ErrNoPublicKey means authentication is disabled for this project;
	// every caller falls back to the default role.
	ErrNoPublicKey = errors.New("identity: no public key configured")
	// ErrMissingRole means the token verified but carried no role claim.
	ErrMissingRole = errors.New("identity: token missing role claim")
	// ErrRevoked means the token's jti is in the revocation set.
	ErrRevoked = errors.New("identity: token revoked")
)

// ParseRSAPublicKeyPEM parses a PEM-encoded RSA public key (PKIX or PKCS1).
func ParseRSAPublicKeyPEM(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("identity: invalid PEM block")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey, nil
		}
		return nil, errors.New("identity: public key is not RSA")
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

// Verify reads the token file at tokenPath, verifies its RS256 signature
// against publicKey, and checks expiry and revocation. It never reads
// outside tokenPath and never panics on malformed input.
func Verify(tokenPath string, publicKey *rsa.PublicKey, revokedTokens map[string]bool) VerifyResult {
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return VerifyResult{Error: fmt.Errorf("identity: read token: %w", err)}
	}
	if len(raw) == 0 {
		return VerifyResult{Error: errors.New("identity: empty token file")}
	}

	tokenString := string(raw)

	claims := &RoleClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	_, err = parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return VerifyResult{Error: fmt.Errorf("identity: verify: %w", err)}
	}

	if claims.Role == "" {
		return VerifyResult{Error: ErrMissingRole}
	}

	if claims.ID != "" && revokedTokens[claims.ID] {
		return VerifyResult{Error: ErrRevoked}
	}

	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
		return VerifyResult{Error: jwt.ErrTokenExpired}
	}

	return VerifyResult{Valid: true, Role: claims.Role}
}
