package config

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sundarv/curryleaf/internal/models"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t,
		"DB_HOST", "DB_PORT", "DB_USER", "DB_NAME", "SERVER_PORT", "LOG_LEVEL",
		"RESTAURANT_LAT", "RESTAURANT_LNG", "DELIVERY_RADIUS_KM",
		"TAX_RATE", "DELIVERY_FEE", "CACHE_TTL",
	)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DB_HOST)
	assert.Equal(t, "5432", cfg.DB_PORT)
	assert.Equal(t, "curryleaf", cfg.DB_NAME)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 13.0878, cfg.RestaurantLat)
	assert.Equal(t, 80.2085, cfg.RestaurantLng)
	assert.Equal(t, 10.0, cfg.DeliveryRadius)
	assert.Equal(t, 0.05, cfg.TaxRate)
	assert.Equal(t, 30.0, cfg.DeliveryFee)
	assert.Equal(t, 300, cfg.CacheTTLSeconds)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TAX_RATE", "0.12")
	t.Setenv("DELIVERY_RADIUS_KM", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 0.12, cfg.TaxRate)
	assert.Equal(t, 25.0, cfg.DeliveryRadius)
}

func TestLoadConfig_MalformedNumberFallsBack(t *testing.T) {
	t.Setenv("TAX_RATE", "not-a-number")
	t.Setenv("CACHE_TTL", "sometimes")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.TaxRate)
	assert.Equal(t, 300, cfg.CacheTTLSeconds)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DB_HOST:     "db",
		DB_PORT:     "5433",
		DB_USER:     "app",
		DB_PASSWORD: "secret",
		DB_NAME:     "orders",
	}
	assert.Equal(t, "postgres://app:secret@db:5433/orders?sslmode=disable", cfg.DatabaseDSN())
}

func TestMigrate_CreatesSchema(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// On a non-postgres dialect the notify trigger is skipped entirely.
	require.NoError(t, Migrate(db))

	m := db.Migrator()
	assert.True(t, m.HasTable(&models.MenuItem{}))
	assert.True(t, m.HasTable(&models.Order{}))
	assert.True(t, m.HasTable(&models.OrderStatusLog{}))
	assert.True(t, m.HasTable(&models.PushSubscription{}))
}
