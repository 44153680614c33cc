package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

const PROD_STRING = "prod"

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction bool
	ProdOrigins  []string
	HTTPAddr     string
	StoreDriver  string
	DB           DBConfig

	JWTSecret         string
	JWTAccessTokenTTL time.Duration
	BcryptCost        int

	LogLevel  string
	LogFormat string

	Redis            RedisConfig
	ScheduleCacheTTL time.Duration

	Booking   BookingConfig
	Locations []string
}

// DBConfig describes the PostgreSQL connection. DSN wins when set.
type DBConfig struct {
	DSN      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	// MaxConns caps the pool; 0 keeps the pgxpool default.
	MaxConns int
}

// ConnString returns DSN, or a postgres:// URL built from the parts.
func (c DBConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	if c.Password == "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

// RedisConfig is empty-addressed when the schedule cache is disabled.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// BookingConfig tunes the reservation service.
type BookingConfig struct {
	OpensAt           clock.Time
	ClosesAt          clock.Time
	Serializable      bool
	StrictTransitions bool
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// Production origin (default: empty)
	cfg.ProdOrigins = splitList(getEnv("PROD_ORIGINS", ""))

	// Application environment (default: dev)
	cfg.IsProduction = getEnv("APP_ENV", "dev") == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	cfg.StoreDriver = getEnv("STORE_DRIVER", "")
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = DriverPostgres
	}
	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q, expected %s or %s", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}

	cfg.DB = DBConfig{
		DSN:      getEnv("DB_DSN", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Name:     getEnv("DB_NAME", "postgres"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	if cfg.DB.Port, err = getEnvAsInt("DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	if cfg.DB.MaxConns, err = getEnvAsInt("DB_MAX_CONNS", 0); err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// JWT access token TTL, parse as time.Duration (e.g. "15m", "1h").
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_TTL: %w", err)
	}

	// Bcrypt cost for password hashing (default: 12)
	if cfg.BcryptCost, err = getEnvAsInt("BCRYPT_COST", 12); err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
	}
	if cfg.Redis.DB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.ScheduleCacheTTL, err = getEnvAsDuration("SCHEDULE_CACHE_TTL", 30*time.Second); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_CACHE_TTL: %w", err)
	}

	if cfg.Booking.OpensAt, err = clock.Parse(getEnv("BOOKING_OPENS_AT", "10:00")); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_OPENS_AT: %w", err)
	}
	if cfg.Booking.ClosesAt, err = clock.Parse(getEnv("BOOKING_CLOSES_AT", "23:00")); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_CLOSES_AT: %w", err)
	}
	if cfg.Booking.ClosesAt <= cfg.Booking.OpensAt {
		return nil, errors.New("BOOKING_CLOSES_AT must be after BOOKING_OPENS_AT")
	}
	if cfg.Booking.Serializable, err = getEnvAsBool("BOOKING_SERIALIZABLE", false); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_SERIALIZABLE: %w", err)
	}
	if cfg.Booking.StrictTransitions, err = getEnvAsBool("BOOKING_STRICT_STATUS", false); err != nil {
		return nil, fmt.Errorf("invalid BOOKING_STRICT_STATUS: %w", err)
	}

	cfg.Locations = splitList(getEnv("RESOURCE_LOCATIONS", ""))

	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c *Config) ValidateServe() error {
	// JWT secret is required for signing tokens
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return false, fmt.Errorf("env %s value %q is not a valid boolean: %w", key, valStr, err)
	}
	return val, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid duration: %w", key, valStr, err)
	}
	return val, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
