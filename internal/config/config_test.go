package config_test

import (
	"os"
	"testing"

	"github.com/BenArtzi4/Sound-Clash-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SOUNDCLASH_PORT", "SOUNDCLASH_CATALOG_ADDR", "SOUNDCLASH_DEFAULT_MAX_ROUNDS"} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoadFailsWithoutRequiredVars(t *testing.T) {
	clearEnv(t)

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SOUNDCLASH_PORT")
	assert.Contains(t, err.Error(), "SOUNDCLASH_CATALOG_ADDR")
}

func TestLoadAppliesSoftDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("SOUNDCLASH_PORT", "8080")
	os.Setenv("SOUNDCLASH_CATALOG_ADDR", "http://catalog.internal:9000")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.DefaultMaxRounds)
	assert.Equal(t, []string{"rock", "pop", "soundtrack"}, cfg.DefaultGenres)
	assert.Equal(t, "production", cfg.GoEnv)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	clearEnv(t)
	os.Setenv("SOUNDCLASH_PORT", "not-a-port")
	os.Setenv("SOUNDCLASH_CATALOG_ADDR", "http://catalog.internal:9000")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid port")
}
