package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv, &priv.PublicKey
}

func signTestToken(t *testing.T, priv *rsa.PrivateKey, claims RoleClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func writeTokenFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}
	return path
}

func TestVerify_ValidToken(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "tok-1",
		},
		Role: "admin",
	}
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", signTestToken(t, priv, claims))

	result := Verify(path, pub, nil)
	if !result.Valid {
		t.Fatalf("expected valid token, got error %v", result.Error)
	}
	if result.Role != "admin" {
		t.Fatalf("expected role admin, got %q", result.Role)
	}
}

func TestVerify_MissingFile(t *testing.T) {
	_, pub := generateTestKeyPair(t)
	result := Verify(filepath.Join(t.TempDir(), "nope.token"), pub, nil)
	if result.Valid {
		t.Fatalf("expected invalid result for missing file")
	}
}

func TestVerify_EmptyFile(t *testing.T) {
	_, pub := generateTestKeyPair(t)
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", "")
	result := Verify(path, pub, nil)
	if result.Valid {
		t.Fatalf("expected invalid result for empty file")
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: "admin",
	}
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", signTestToken(t, priv, claims))

	result := Verify(path, pub, nil)
	if result.Valid {
		t.Fatalf("expected expired token to fail")
	}
}

func TestVerify_WrongKeyFailsSignature(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	_, otherPub := generateTestKeyPair(t)
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "admin",
	}
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", signTestToken(t, priv, claims))

	result := Verify(path, otherPub, nil)
	if result.Valid {
		t.Fatalf("expected signature mismatch to fail")
	}
}

func TestVerify_MissingRoleClaim(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", signTestToken(t, priv, claims))

	result := Verify(path, pub, nil)
	if result.Valid {
		t.Fatalf("expected missing role claim to fail")
	}
}

func TestVerify_RevokedJTI(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			ID:        "revoked-1",
		},
		Role: "admin",
	}
	dir := t.TempDir()
	path := writeTokenFile(t, dir, "role.token", signTestToken(t, priv, claims))

	result := Verify(path, pub, map[string]bool{"revoked-1": true})
	if result.Valid {
		t.Fatalf("expected revoked jti to fail")
	}
}

func TestParseRSAPublicKeyPEM_PKIX(t *testing.T) {
	_, pub := generateTestKeyPair(t)
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal pkix: %v", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	pemStr := string(pem.EncodeToMemory(block))

	parsed, err := ParseRSAPublicKeyPEM(pemStr)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.E != pub.E || parsed.N.Cmp(pub.N) != 0 {
		t.Fatalf("parsed key does not match original")
	}
}

func TestParseRSAPublicKeyPEM_InvalidPEM(t *testing.T) {
	if _, err := ParseRSAPublicKeyPEM("not a pem"); err == nil {
		t.Fatalf("expected error for invalid PEM")
	}
}
