// Package main prints the bcrypt hash to configure as TRIGGER_SECRET_HASH or
// ADMIN_API_KEY_HASH. The secret is read from stdin so it stays out of shell
// history.
//
// Usage:
//
//	printf '%s' "$SECRET" | go run ./cmd/tools/hash-secret
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"clinicremind/internal/auth"
)

// minSecretLength rejects secrets too short to be worth hashing.
const minSecretLength = 16

func main() {
	hash, err := hashFrom(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func hashFrom(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if len(secret) < minSecretLength {
		return "", fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}
	return auth.HashSecret(secret)
}
