package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DB_DSN", "JWT_SECRET", "REDIS_ADDR", "RESOURCE_LOCATIONS", "STORE_DRIVER", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsProduction)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTokenTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, clock.New(10, 0), cfg.Booking.OpensAt)
	assert.Equal(t, clock.New(23, 0), cfg.Booking.ClosesAt)
	assert.False(t, cfg.Booking.Serializable)
	assert.False(t, cfg.Redis.Enabled())
	assert.Empty(t, cfg.Locations)
	assert.Error(t, cfg.ValidateServe())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BOOKING_SERIALIZABLE", "true")
	t.Setenv("BOOKING_OPENS_AT", "09:30")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RESOURCE_LOCATIONS", "main hall, terrace ,,vip")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.True(t, cfg.Booking.Serializable)
	assert.Equal(t, clock.New(9, 30), cfg.Booking.OpensAt)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, []string{"main hall", "terrace", "vip"}, cfg.Locations)
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"BCRYPT_COST":           "high",
		"DB_PORT":               "x",
		"JWT_ACCESS_TOKEN_TTL":  "forever",
		"BOOKING_CLOSES_AT":     "09:00",
		"BOOKING_STRICT_STATUS": "maybe",
		"STORE_DRIVER":          "sqlite",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("STORE_DRIVER", "postgres")
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConnString(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5433, Name: "booking", User: "app", Password: "p@ss", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5433/booking?sslmode=disable", c.ConnString())

	c.DSN = "postgres://override"
	assert.Equal(t, "postgres://override", c.ConnString())
}
