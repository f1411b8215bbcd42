package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"clinicremind/internal/auth"
)

// tokenByteLength gives 256 bits of entropy, 64 hex characters.
const tokenByteLength = 32

// GenerateSecureToken returns a random hex token.
func GenerateSecureToken() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secure token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// GenerateHashedSecret returns a new bearer secret and the bcrypt hash the
// services are configured with. Only the hash is stored.
func GenerateHashedSecret() (secret, hash string, err error) {
	secret, err = GenerateSecureToken()
	if err != nil {
		return "", "", err
	}
	hash, err = auth.HashSecret(secret)
	if err != nil {
		return "", "", fmt.Errorf("hashing generated secret: %w", err)
	}
	return secret, hash, nil
}
