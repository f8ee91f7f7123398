package identity

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opencode-ai/opencode-core/pkg/policy"
)

func TestRoleResolver_NoAuthenticationFallsBackToDefault(t *testing.T) {
	cfg := policy.Config{Roles: []policy.Role{{Name: "viewer", Level: 0}, {Name: "admin", Level: 10}}}
	r := NewRoleResolver(nil)
	role := r.CurrentRole(t.TempDir(), cfg)
	if role != "viewer" {
		t.Fatalf("expected viewer default, got %q", role)
	}
}

func TestRoleResolver_NoRolesConfiguredFallsBackToViewer(t *testing.T) {
	r := NewRoleResolver(nil)
	role := r.CurrentRole(t.TempDir(), policy.Config{})
	if role != "viewer" {
		t.Fatalf("expected viewer, got %q", role)
	}
}

func TestRoleResolver_ValidProjectTokenWins(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pemStr := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "admin",
	}
	dir := t.TempDir()
	writeTokenFile(t, dir, projectTokenFileName, signTestToken(t, priv, claims))

	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "viewer", Level: 0}, {Name: "admin", Level: 10}},
		Authentication: &policy.Authentication{PublicKey: pemStr},
	}

	r := NewRoleResolver(nil)
	role := r.CurrentRole(dir, cfg)
	if role != "admin" {
		t.Fatalf("expected admin from project token, got %q", role)
	}
}

func TestRoleResolver_UnknownRoleClaimFallsBack(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	der, _ := x509.MarshalPKIXPublicKey(pub)
	pemStr := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	claims := RoleClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Role:             "superuser",
	}
	dir := t.TempDir()
	writeTokenFile(t, dir, projectTokenFileName, signTestToken(t, priv, claims))

	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "viewer", Level: 0}},
		Authentication: &policy.Authentication{PublicKey: pemStr},
	}

	r := NewRoleResolver(nil)
	role := r.CurrentRole(dir, cfg)
	if role != "viewer" {
		t.Fatalf("expected fallback to viewer for unknown role claim, got %q", role)
	}
}

func TestRoleResolver_InvalidPublicKeyFallsBack(t *testing.T) {
	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "viewer", Level: 0}},
		Authentication: &policy.Authentication{PublicKey: "not a pem"},
	}
	r := NewRoleResolver(nil)
	role := r.CurrentRole(t.TempDir(), cfg)
	if role != "viewer" {
		t.Fatalf("expected fallback to viewer for invalid public key, got %q", role)
	}
}

func TestRoleResolver_CachesAcrossCalls(t *testing.T) {
	cfg := policy.Config{Roles: []policy.Role{{Name: "viewer", Level: 0}}}
	r := NewRoleResolver(nil)
	dir := t.TempDir()

	first := r.CurrentRole(dir, cfg)
	// Mutating cfg after the first call must not change the cached result.
	cfg.Roles = append(cfg.Roles, policy.Role{Name: "admin", Level: 10})
	second := r.CurrentRole(dir, cfg)
	if first != second {
		t.Fatalf("expected cached role to remain %q, got %q", first, second)
	}
}

func TestRoleResolver_ResetClearsCache(t *testing.T) {
	cfg := policy.Config{Roles: []policy.Role{{Name: "viewer", Level: 0}}}
	r := NewRoleResolver(nil)
	dir := t.TempDir()

	r.CurrentRole(dir, cfg)
	r.Reset()
	if r.resolved {
		t.Fatalf("expected resolved flag cleared after Reset")
	}
}

func TestRoleResolver_MissingTokenFilesFallBack(t *testing.T) {
	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "viewer", Level: 0}},
		Authentication: &policy.Authentication{PublicKey: validTestPEM(t)},
	}
	r := NewRoleResolver(nil)
	role := r.CurrentRole(t.TempDir(), cfg)
	if role != "viewer" {
		t.Fatalf("expected viewer fallback, got %q", role)
	}
}

func validTestPEM(t *testing.T) string {
	t.Helper()
	_, pub := generateTestKeyPair(t)
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}
