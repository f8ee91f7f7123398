package identity

import (
	"testing"

	"github.com/opencode-ai/opencode-core/pkg/policy"
)

func TestVerifyAdminOverride_CorrectPassphrasePasses(t *testing.T) {
	hash, err := HashAdminOverride("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyAdminOverride(hash, "correct-horse-battery-staple"); err != nil {
		t.Fatalf("expected verification to pass, got %v", err)
	}
}

func TestVerifyAdminOverride_WrongPassphraseFails(t *testing.T) {
	hash, err := HashAdminOverride("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyAdminOverride(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestVerifyAdminOverride_NoHashConfiguredErrors(t *testing.T) {
	if err := VerifyAdminOverride("", "anything"); err != ErrNoOverrideConfigured {
		t.Fatalf("expected ErrNoOverrideConfigured, got %v", err)
	}
}

func TestRoleResolver_AdminOverrideAssumesAdminRole(t *testing.T) {
	hash, err := HashAdminOverride("recovery-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "viewer", Level: 0}, {Name: "admin", Level: 10}},
		Authentication: &policy.Authentication{AdminOverrideHash: hash},
	}

	r := NewRoleResolver(nil)
	if err := r.AdminOverride(cfg, "recovery-pass"); err != nil {
		t.Fatalf("AdminOverride: %v", err)
	}
	if role := r.CurrentRole(t.TempDir(), cfg); role != "admin" {
		t.Fatalf("expected admin role after override, got %q", role)
	}
}

func TestRoleResolver_AdminOverrideRejectsWrongPassphrase(t *testing.T) {
	hash, err := HashAdminOverride("recovery-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := policy.Config{
		Roles:          []policy.Role{{Name: "admin", Level: 10}},
		Authentication: &policy.Authentication{AdminOverrideHash: hash},
	}

	r := NewRoleResolver(nil)
	if err := r.AdminOverride(cfg, "wrong"); err == nil {
		t.Fatalf("expected rejection for wrong passphrase")
	}
}
