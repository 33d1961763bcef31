package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/tutorhub-web/internal/config"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, name := range []string{"PORT", "PROJECT_ID", "STORAGE_BACKEND", "QUERY_STALE_TIME", "QUERY_RETRY", "TOKEN_EXPIRY_DAYS", "API_BASE_URL"} {
		t.Setenv(name, "")
	}
	c := config.New()

	require.Equal(t, ":8080", c.GetPort())
	require.Equal(t, "tutorhub", c.GetProjectID())
	require.Equal(t, config.StorageFile, c.GetStorageBackend())
	require.Equal(t, 5*time.Minute, c.GetQueryStaleTime())
	require.Equal(t, 1, c.GetQueryRetry())
	require.Equal(t, 7, c.GetTokenExpiryDays())
	require.Equal(t, "http://localhost:8000/api", c.GetAPIBaseURL())
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", ":9090")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("QUERY_STALE_TIME", "30s")
	t.Setenv("QUERY_RETRY", "3")
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")
	c := config.New()

	require.Equal(t, ":9090", c.GetPort())
	require.Equal(t, config.StorageRedis, c.GetStorageBackend())
	require.Equal(t, 30*time.Second, c.GetQueryStaleTime())
	require.Equal(t, 3, c.GetQueryRetry())
	require.Equal(t, "https://api.example.com/api", c.GetAPIBaseURL())

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		t.Setenv("QUERY_STALE_TIME", "soon")
		t.Setenv("QUERY_RETRY", "-2")
		t.Setenv("STORAGE_BACKEND", "floppy")
		require.Equal(t, 5*time.Minute, c.GetQueryStaleTime())
		require.Equal(t, 1, c.GetQueryRetry())
		require.Equal(t, config.StorageFile, c.GetStorageBackend())
	})
}

func TestLoad(t *testing.T) {
	require.NoError(t, config.Load(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUTORHUB_CONFIG_TEST=from-file\n"), 0o600))
	t.Setenv("TUTORHUB_CONFIG_TEST", "")
	require.NoError(t, os.Unsetenv("TUTORHUB_CONFIG_TEST"))

	require.NoError(t, config.Load(path))
	require.Equal(t, "from-file", os.Getenv("TUTORHUB_CONFIG_TEST"))
}
