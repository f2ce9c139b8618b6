package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
	require.Equal(t, 5*time.Second, cfg.WorkerPollInterval)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("OPERATION_TIMEOUT", "2s")
	t.Setenv("WORKER_POLL_INTERVAL", "500ms")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/ledger")

	cfg := LoadConfig()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 2*time.Second, cfg.OperationTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.WorkerPollInterval)
	require.Equal(t, "postgres://localhost:5432/ledger", cfg.DatabaseURL)
}

func TestLoadConfigBadDurationFallsBack(t *testing.T) {
	t.Setenv("OPERATION_TIMEOUT", "soon")

	cfg := LoadConfig()

	require.Equal(t, 5*time.Second, cfg.OperationTimeout)
}
