package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrNoOverrideConfigured means the security config carries no
// adminOverrideHash, so override verification can never succeed.
var ErrNoOverrideConfigured = errors.New("identity: no admin override configured")

// VerifyAdminOverride checks passphrase against hash (a bcrypt hash from
// policy.Authentication.AdminOverrideHash). It exists for recovery tooling:
// an operator who lost the signing key for role tokens can still assume the
// admin role locally, bypassing the JWT verification path entirely.
func VerifyAdminOverride(hash, passphrase string) error {
	if hash == "" {
		return ErrNoOverrideConfigured
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase)); err != nil {
		return errors.New("identity: admin override passphrase mismatch")
	}
	return nil
}

// HashAdminOverride produces the bcrypt hash to store as
// policy.Authentication.AdminOverrideHash, for the tooling that provisions it.
func HashAdminOverride(passphrase string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
