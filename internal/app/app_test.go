package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicremind/internal/config"
	"clinicremind/internal/scheduler"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		l := NewLogger(in)
		assert.True(t, l.Enabled(context.Background(), want), in)
		if want > slog.LevelDebug {
			assert.False(t, l.Enabled(context.Background(), want-1), in)
		}
	}
}

func TestNewMetrics_NoopOutsideAWS(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"local", config.Config{Environment: "local", Observability: config.ObservabilityConfig{EnableMetrics: true}}},
		{"disabled", config.Config{Environment: "prod"}},
		{"test mode", config.Config{Environment: "dev", IsTestMode: true, Observability: config.ObservabilityConfig{EnableMetrics: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := newMetrics(context.Background(), &tt.cfg, slog.Default())
			require.NoError(t, err)
			assert.IsType(t, scheduler.NoopMetrics{}, m)
		})
	}
}
