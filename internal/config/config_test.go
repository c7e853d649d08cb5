package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "Dummy Data.xlsx", cfg.DataFile)
	assert.Equal(t, "Sh1", cfg.Sheet)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
}

func TestLoad_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salesdash.yaml")
	yml := "data_file: from-file.xlsx\nsheet: FileSheet\nsession_ttl: 5m\nworkers: 2\ncors_origins: [\"https://a.example\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	t.Setenv("SALESDASH_SHEET", "EnvSheet")
	t.Setenv("SALESDASH_WORKERS", "3")
	t.Setenv("SALESDASH_CORS_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load([]string{"--config", path, "--workers", "4"})
	require.NoError(t, err)

	assert.Equal(t, "from-file.xlsx", cfg.DataFile, "file over default")
	assert.Equal(t, "EnvSheet", cfg.Sheet, "env over file")
	assert.Equal(t, 4, cfg.Workers, "flag over env")
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.CORSOrigins)
}

func TestLoad_UnsetFlagsDoNotOverride(t *testing.T) {
	t.Setenv("SALESDASH_DATA", "env.csv")

	cfg, err := Load([]string{"--verbose"})
	require.NoError(t, err)
	assert.Equal(t, "env.csv", cfg.DataFile)
	assert.True(t, cfg.Verbose)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)

	_, err = Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	t.Setenv("SALESDASH_SESSION_TTL", "soon")
	_, err = Load(nil)
	assert.ErrorContains(t, err, "SALESDASH_SESSION_TTL")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Workers = 0
	cfg.Sheet = " "
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "workers")
	assert.ErrorContains(t, err, "sheet")
}
