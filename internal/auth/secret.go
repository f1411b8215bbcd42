// Package auth verifies the shared secrets that guard the service's HTTP
// surface. Only bcrypt hashes of the secrets are ever configured.
package auth

import (
	"golang.org/x/crypto/bcrypt"

	"clinicremind/internal/types"
)

// bcryptCost is the cost factor used when generating secret hashes.
const bcryptCost = 12

// Hasher abstracts bcrypt operations for testability.
type Hasher interface {
	CompareHashAndPassword(hashed, plain string) error
	GenerateFromPassword(plain string) (string, error)
}

type bcryptHasher struct {
	cost int
}

func (b bcryptHasher) CompareHashAndPassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

func (b bcryptHasher) GenerateFromPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// SecretVerifier checks a presented bearer secret against a configured hash.
// A verifier without a hash is disabled and accepts every request; the
// config loader refuses to start outside local without the trigger hash.
type SecretVerifier struct {
	name   string
	hash   types.SecretString
	hasher Hasher
}

func NewSecretVerifier(name string, hash types.SecretString) *SecretVerifier {
	return &SecretVerifier{name: name, hash: hash, hasher: bcryptHasher{cost: bcryptCost}}
}

func newSecretVerifierWithHasher(name string, hash types.SecretString, h Hasher) *SecretVerifier {
	return &SecretVerifier{name: name, hash: hash, hasher: h}
}

// Name identifies the guarded surface in logs.
func (v *SecretVerifier) Name() string { return v.name }

// Enabled reports whether a hash is configured.
func (v *SecretVerifier) Enabled() bool {
	return v != nil && !v.hash.IsEmpty()
}

// Verify returns nil when presented matches the hash, or when the verifier is
// disabled. Failures are ErrCodeAuthTokenMissing or ErrCodeAuthTokenInvalid.
func (v *SecretVerifier) Verify(presented string) error {
	if !v.Enabled() {
		return nil
	}
	if presented == "" {
		return types.NewAppError(types.ErrCodeAuthTokenMissing, "bearer secret is required", nil)
	}
	if err := v.hasher.CompareHashAndPassword(v.hash.Unmask(), presented); err != nil {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid bearer secret", err)
	}
	return nil
}

// HashSecret produces the bcrypt hash to configure for secret.
func HashSecret(secret string) (string, error) {
	return bcryptHasher{cost: bcryptCost}.GenerateFromPassword(secret)
}
