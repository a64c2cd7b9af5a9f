package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.False(t, cfg.DispatcherEnabled)
	assert.Equal(t, 5*time.Second, cfg.DispatcherInterval)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_DispatcherNeedsAgentURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("DISPATCHER_ENABLED", "true")
	t.Setenv("BUILD_AGENT_URL", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("BUILD_AGENT_URL", "http://agent.local/jobs")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DispatcherEnabled)
}

func TestLoad_ParsesOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("PORT", "9999")
	t.Setenv("DISPATCHER_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.DispatcherInterval)
}
