package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookup(nil))
	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookup(map[string]string{
		"INTAKE_ADDR":            "9090",
		"INTAKE_LOG_LEVEL":       "DEBUG",
		"INTAKE_LOG_JSON":        "true",
		"INTAKE_CATALOG":         "/etc/intake/catalog.yaml",
		"INTAKE_STORE_DRIVER":    "sqlite3",
		"INTAKE_STORE_DSN":       "file:intake.db",
		"INTAKE_PREVIEW_CACHE":   "64",
		"INTAKE_SESSION_TTL":     "5m",
		"INTAKE_ALLOWED_ORIGINS": "https://a.test, ,https://b.test",
		"INTAKE_CODEC":           "msgpack",
		"INTAKE_DEV_MODE":        "1",
	}))
	require.NoError(t, err)

	want := Default()
	want.Addr = ":9090"
	want.LogLevel = "debug"
	want.LogJSON = true
	want.CatalogPath = "/etc/intake/catalog.yaml"
	want.StoreDriver = DriverSQLite
	want.StoreDSN = "file:intake.db"
	want.PreviewCacheSize = 64
	want.SessionTTL = 5 * time.Minute
	want.AllowedOrigins = []string{"https://a.test", "https://b.test"}
	want.Codec = "msgpack"
	want.DevMode = true
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvRejects(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad bool", map[string]string{"INTAKE_LOG_JSON": "maybe"}},
		{"bad int", map[string]string{"INTAKE_PREVIEW_CACHE": "lots"}},
		{"zero cache", map[string]string{"INTAKE_PREVIEW_CACHE": "0"}},
		{"bad duration", map[string]string{"INTAKE_SESSION_TTL": "soon"}},
		{"unknown driver", map[string]string{"INTAKE_STORE_DRIVER": "mongo"}},
		{"dsn required", map[string]string{"INTAKE_STORE_DRIVER": "postgres"}},
		{"unknown codec", map[string]string{"INTAKE_CODEC": "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookup(tt.vars))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INTAKE_TEST_ONLY_ADDR=ignored\nINTAKE_PREVIEW_CACHE=7\n"), 0o600))
	t.Setenv("INTAKE_PREVIEW_CACHE", "")
	os.Unsetenv("INTAKE_PREVIEW_CACHE")
	t.Cleanup(func() { os.Unsetenv("INTAKE_TEST_ONLY_ADDR") })

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.PreviewCacheSize)
}

func TestLoadKeepsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("INTAKE_PREVIEW_CACHE=7\n"), 0o600))
	t.Setenv("INTAKE_PREVIEW_CACHE", "9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.PreviewCacheSize)
}
