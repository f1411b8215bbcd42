package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves "SSM paths" as plain environment variable names.
// Used in local development where no Parameter Store is reachable.
type EnvVarProvider struct{}

func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch returns the keys that are set; unknown keys are omitted
// and reported by the loader as missing.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			out[k] = v
		}
	}
	return out, nil
}
