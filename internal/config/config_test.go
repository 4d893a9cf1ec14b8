package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avstrong/hotel/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"HTTP_HOST", "HTTP_PORT", "HTTP_READ_HEADER_TIMEOUT", "STORAGE_DRIVER", "DATABASE_URL",
		"DB_MAX_CONNS", "TAX_RATE", "REVENUE_ACCOUNT_CODE", "OTEL_ENDPOINT", "OTEL_INSECURE", "SEED_DEMO_DATA", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func Test_FromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	conf, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "localhost", conf.HTTPHost)
	assert.Equal(t, "8092", conf.HTTPPort)
	assert.Equal(t, 20*time.Second, conf.HTTPReadHeaderTimeout)
	assert.Equal(t, config.DriverMemory, conf.StorageDriver)
	assert.Equal(t, "0.15", conf.TaxRate.String())
	assert.Equal(t, "4.1.01", conf.RevenueAccountCode)
	assert.False(t, conf.SeedDemoData)
	assert.Equal(t, "info", conf.LogLevel)
}

func Test_FromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("HTTP_READ_HEADER_TIMEOUT", "5s")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://hotel@localhost/hotel")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("TAX_RATE", "0.12")
	t.Setenv("SEED_DEMO_DATA", "true")

	conf, err := config.FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "9000", conf.HTTPPort)
	assert.Equal(t, 5*time.Second, conf.HTTPReadHeaderTimeout)
	assert.Equal(t, config.DriverPostgres, conf.StorageDriver)
	assert.Equal(t, int32(4), conf.DBMaxConns)
	assert.Equal(t, "0.12", conf.TaxRate.String())
	assert.True(t, conf.SeedDemoData)
}

func Test_FromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		err  error
	}{
		{"unknown driver", map[string]string{"STORAGE_DRIVER": "mongo"}, config.ErrUnknownDriver},
		{"postgres without url", map[string]string{"STORAGE_DRIVER": "postgres"}, config.ErrDatabaseURLMissing},
		{"tax above one", map[string]string{"TAX_RATE": "1.5"}, config.ErrInvalidTaxRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.FromEnv()

			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func Test_FromEnv_MalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEED_DEMO_DATA", "sometimes")

	_, err := config.FromEnv()

	assert.ErrorContains(t, err, "SEED_DEMO_DATA")
}

func Test_Load_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("HTTP_HOST") //nolint:errcheck

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_HOST=0.0.0.0\n"), 0o600))

	conf, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", conf.HTTPHost)
}

func Test_Load_MissingFileIsFine(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))

	assert.NoError(t, err)
}
