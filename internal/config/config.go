package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	SessionMemory = "memory"
	SessionRedis  = "redis"

	defaultEnvFile = ".env"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Redis     RedisConfig
	Realtime  RealtimeConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StoreConfig selects the board/ticket store.
type StoreConfig struct {
	Backend string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string //nolint:gosec // G117: DB connection config
	DBName     string
	SSLMode    string
	MaxConns   int
	InitSchema bool
}

// SessionConfig selects the session store and session lifetime.
type SessionConfig struct {
	Backend string
	TTL     time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// RealtimeConfig tunes connection queues, fan-out and heartbeats.
type RealtimeConfig struct {
	HeartbeatInterval  time.Duration
	HeartbeatMaxMissed int
	QueueSize          int
	WriteTimeout       time.Duration
	BroadcastBuffer    int
}

// RateLimitConfig applies per session (or per IP without a session).
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables. A dotenv file named by
// SYNCBOARD_ENV_FILE (default ".env") is read first when it exists; variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		n, err := getEnvInt(key, fallback)
		errs = append(errs, err)
		return n
	}
	boolVar := func(key string, fallback bool) bool {
		b, err := getEnvBool(key, fallback)
		errs = append(errs, err)
		return b
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		d, err := getEnvDuration(key, fallback)
		errs = append(errs, err)
		return d
	}
	floatVar := func(key string, fallback float64) float64 {
		f, err := getEnvFloat(key, fallback)
		errs = append(errs, err)
		return f
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("SYNCBOARD_SERVER_ADDR", ":8080"),
			ReadTimeout:     durVar("SYNCBOARD_SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    durVar("SYNCBOARD_SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: durVar("SYNCBOARD_SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			CORSOrigins:     getEnvList("SYNCBOARD_SERVER_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("SYNCBOARD_STORE", StoreMemory)),
		},
		Database: DatabaseConfig{
			Host:       getEnv("SYNCBOARD_DB_HOST", "localhost"),
			Port:       intVar("SYNCBOARD_DB_PORT", 5432),
			User:       getEnv("SYNCBOARD_DB_USER", "syncboard"),
			Password:   getEnv("SYNCBOARD_DB_PASSWORD", ""),
			DBName:     getEnv("SYNCBOARD_DB_NAME", "syncboard_dev"),
			SSLMode:    getEnv("SYNCBOARD_DB_SSLMODE", "disable"),
			MaxConns:   intVar("SYNCBOARD_DB_MAX_CONNS", 25),
			InitSchema: boolVar("SYNCBOARD_DB_INIT_SCHEMA", true),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getEnv("SYNCBOARD_SESSION_BACKEND", SessionMemory)),
			TTL:     durVar("SYNCBOARD_SESSION_TTL", 24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("SYNCBOARD_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("SYNCBOARD_REDIS_PASSWORD", ""),
			DB:       intVar("SYNCBOARD_REDIS_DB", 0),
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval:  durVar("SYNCBOARD_HEARTBEAT_INTERVAL", 30*time.Second),
			HeartbeatMaxMissed: intVar("SYNCBOARD_HEARTBEAT_MAX_MISSED", 3),
			QueueSize:          intVar("SYNCBOARD_WS_QUEUE_SIZE", 256),
			WriteTimeout:       durVar("SYNCBOARD_WS_WRITE_TIMEOUT", 10*time.Second),
			BroadcastBuffer:    intVar("SYNCBOARD_BROADCAST_BUFFER", 1024),
		},
		RateLimit: RateLimitConfig{
			RPS:   floatVar("SYNCBOARD_RATE_LIMIT_RPS", 100),
			Burst: intVar("SYNCBOARD_RATE_LIMIT_BURST", 200),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("SYNCBOARD_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("SYNCBOARD_LOG_FORMAT", "json")),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// loadEnvFile reads the dotenv file. A missing default file is not an error;
// a missing file that was named explicitly is.
func loadEnvFile() error {
	path := os.Getenv("SYNCBOARD_ENV_FILE")
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("SYNCBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("SYNCBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("SYNCBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	default:
		return fmt.Errorf("SYNCBOARD_STORE must be %q or %q, got %q", StoreMemory, StorePostgres, c.Store.Backend)
	}

	switch c.Session.Backend {
	case SessionMemory, SessionRedis:
	default:
		return fmt.Errorf("SYNCBOARD_SESSION_BACKEND must be %q or %q, got %q", SessionMemory, SessionRedis, c.Session.Backend)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SYNCBOARD_SESSION_TTL must be positive, got %s", c.Session.TTL)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SYNCBOARD_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SYNCBOARD_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SYNCBOARD_SERVER_SHUTDOWN_TIMEOUT must be positive, got %s", c.Server.ShutdownTimeout)
	}

	if c.Realtime.HeartbeatInterval <= 0 {
		return fmt.Errorf("SYNCBOARD_HEARTBEAT_INTERVAL must be positive, got %s", c.Realtime.HeartbeatInterval)
	}
	if c.Realtime.HeartbeatMaxMissed < 1 {
		return fmt.Errorf("SYNCBOARD_HEARTBEAT_MAX_MISSED must be >= 1, got %d", c.Realtime.HeartbeatMaxMissed)
	}
	if c.Realtime.QueueSize < 1 {
		return fmt.Errorf("SYNCBOARD_WS_QUEUE_SIZE must be >= 1, got %d", c.Realtime.QueueSize)
	}
	if c.Realtime.WriteTimeout <= 0 {
		return fmt.Errorf("SYNCBOARD_WS_WRITE_TIMEOUT must be positive, got %s", c.Realtime.WriteTimeout)
	}
	if c.Realtime.BroadcastBuffer < 1 {
		return fmt.Errorf("SYNCBOARD_BROADCAST_BUFFER must be >= 1, got %d", c.Realtime.BroadcastBuffer)
	}

	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("SYNCBOARD_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("SYNCBOARD_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("SYNCBOARD_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
