package config

import "context"

// SecretProvider resolves secret references (SSM parameter paths, or variable
// names locally) into plaintext values.
type SecretProvider interface {
	// GetParametersBatch returns a value for every key it could resolve.
	// Keys it could not find are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
