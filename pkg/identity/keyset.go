package identity

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet is the verification-side seam between the role resolver and however
// many public keys a project trusts. The only implementation today wraps a
// single configured RSA key; the interface exists so a future multi-key or
// rotating deployment can swap it in without touching the resolver.
type KeySet interface {
	// KeyFunc returns the key to verify a token's signature against. It never
	// inspects claims, only the token header.
	KeyFunc() jwt.Keyfunc
}

// SingleKeySet is the only KeySet a project's `.opencode-security.json`
// `authentication.publicKey` field can produce: one RSA public key, used to
// verify every role token regardless of `kid`.
type SingleKeySet struct {
	key *rsa.PublicKey
}

// NewSingleKeySet wraps an already-parsed RSA public key.
func NewSingleKeySet(key *rsa.PublicKey) *SingleKeySet {
	return &SingleKeySet{key: key}
}

// LoadSingleKeySet parses a PEM-encoded RSA public key as found in
// `authentication.publicKey`.
func LoadSingleKeySet(pemData string) (*SingleKeySet, error) {
	key, err := ParseRSAPublicKeyPEM(pemData)
	if err != nil {
		return nil, fmt.Errorf("identity: load key set: %w", err)
	}
	return NewSingleKeySet(key), nil
}

func (ks *SingleKeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("identity: unexpected signing method %v", token.Header["alg"])
		}
		return ks.key, nil
	}
}

// PublicKey returns the wrapped key, for callers (like Verify) that want the
// concrete type rather than a jwt.Keyfunc.
func (ks *SingleKeySet) PublicKey() *rsa.PublicKey {
	return ks.key
}
