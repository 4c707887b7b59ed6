package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, PriceBackendGorm, cfg.PriceBackend)
	assert.Equal(t, 5*time.Second, cfg.UpdateInterval)
	assert.Equal(t, 10*time.Second, cfg.QuoteTimeout)
	assert.Equal(t, "https://stooq.com/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", cfg.QuoteURLTemplate)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.RedisEnabled)
	assert.True(t, cfg.HistoryEnabled)
	assert.Equal(t, 30*24*time.Hour, cfg.HistoryRetention)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STOCKS_UPDATE_MS", "750")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("REDIS_ENABLED", "yes")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("LOOKUP_RATE_PER_SEC", "2.5")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.UpdateInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 2.5, cfg.LookupRatePerSec)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "DB_DRIVER", "oracle"},
		{"unknown backend", "PRICE_BACKEND", "cassandra"},
		{"zero interval", "STOCKS_UPDATE_MS", "0"},
		{"template without placeholder", "QUOTE_URL_TEMPLATE", "https://example.com/quote"},
		{"mongo without uri", "PRICE_BACKEND", "mongo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			require.Error(t, err)
		})
	}
}

func TestMaskHost(t *testing.T) {
	assert.Equal(t, "***", maskHost("db"))
	assert.Equal(t, "loc***", maskHost("localhost"))
	assert.Equal(t, "db.inter***xample.com", maskHost("db.internal.example.com"))
}
