package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError wraps a loading failure with its category.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: DATABASE_URL_SSM_PARAM=/prod/x
// resolves into DATABASE_URL.
const ssmParamSuffix = "_SSM_PARAM"

const localEnv = "local"

const ssmResolveTimeout = 30 * time.Second

// envSource abstracts the process environment so the loader can be tested
// without mutating global state.
type envSource struct {
	lookup  func(key string) (string, bool)
	set     func(key, value string) error
	environ func() []string
}

func osEnv() envSource {
	return envSource{lookup: os.LookupEnv, set: os.Setenv, environ: os.Environ}
}

// LoadConfig loads, resolves and validates the process configuration.
// provider may be nil when APP_ENV is local.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return load(provider, osEnv())
}

func load(provider SecretProvider, env envSource) (*Config, error) {
	// All scheduling math converts explicitly to tenant zones; the process
	// itself runs in UTC.
	time.Local = time.UTC

	// Missing .env is fine; existing variables win over the file.
	_ = godotenv.Load()

	appEnv, _ := env.lookup("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, env); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{Type: ErrParsing, Message: "failed to process environment configuration", Err: err}
	}
	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{Type: ErrValidation, Message: "configuration validation failed", Err: err}
	}

	if !cfg.IsLocal() && cfg.Security.TriggerSecretHash.IsEmpty() {
		return nil, &ConfigError{
			Type:    ErrSecurity,
			Message: fmt.Sprintf("TRIGGER_SECRET_HASH is required when APP_ENV=%s", cfg.Environment),
		}
	}
	if cfg.Scheduler.LocalCronSpec != "" && !cfg.IsLocal() {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "LOCAL_CRON_SPEC is only honoured when APP_ENV=local",
		}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the SSM resolution step. Lambda entrypoints call
// it before reading individual variables.
func ResolveSecrets(provider SecretProvider) error {
	if v, _ := os.LookupEnv("APP_ENV"); v == localEnv {
		return nil
	}
	return resolveSSMParams(provider, osEnv())
}

// ssmBindings maps SSM paths to the variables they populate. Targets that are
// already set are skipped (Env > Dotenv > SSM).
func ssmBindings(env envSource) map[string]string {
	bindings := make(map[string]string)
	for _, entry := range env.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := env.lookup(target); set {
			continue
		}
		bindings[path] = target
	}
	return bindings
}

func resolveSSMParams(provider SecretProvider, env envSource) error {
	bindings := ssmBindings(env)
	if len(bindings) == 0 {
		return nil
	}

	paths := make([]string, 0, len(bindings))
	for path := range bindings {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, p := range paths {
			targets = append(targets, bindings[p])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SecretProvider is required for non-local environments (need to resolve: " + strings.Join(targets, ", ") + ")",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, bindings[path])
			continue
		}
		if err := env.set(bindings[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: "failed to set resolved value for " + bindings[path],
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: "SSM parameters not found for: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
