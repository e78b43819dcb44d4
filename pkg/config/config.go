package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultMaxLifetime is 1 728 000 000 ms: a transaction older than this is expired.
	DefaultMaxLifetime = 480 * time.Hour
	DefaultLockExpiry  = 30 * time.Second
)

type Config struct {
	DB       DBConfig
	Redis    RedisConfig
	Executor ExecutorConfig
	Server   ServerConfig
	Log      LogConfig
}

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ExecutorConfig struct {
	MaxLifetime     time.Duration
	LockExpiry      time.Duration
	BreakerTimeout  time.Duration
	BreakerFailures uint32
}

type ServerConfig struct {
	Addr        string
	TLSCertFile string
	TLSKeyFile  string
}

// TLSEnabled reports whether both the certificate and the key are configured.
func (c ServerConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type LogConfig struct {
	Dir   string
	Level string
}

// Load reads config.env when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load("config.env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load config.env: %w", err)
	}

	db, err := loadDB()
	if err != nil {
		return nil, err
	}

	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	executor, err := loadExecutor()
	if err != nil {
		return nil, err
	}

	server, err := loadServer()
	if err != nil {
		return nil, err
	}

	return &Config{
		DB: *db,
		Redis: RedisConfig{
			Addr:     stringEnv("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Executor: *executor,
		Server:   *server,
		Log: LogConfig{
			Dir:   os.Getenv("LOG_DIR"),
			Level: stringEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func loadDB() (*DBConfig, error) {
	port, err := intEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	maxOpen, err := intEnv("DB_MAX_OPEN_CONNS", 20)
	if err != nil {
		return nil, err
	}

	maxIdle, err := intEnv("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, err
	}

	return &DBConfig{
		Host:         stringEnv("DB_HOST", "localhost"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func loadExecutor() (*ExecutorConfig, error) {
	maxLifetime, err := durationEnv("TX_MAX_LIFETIME", DefaultMaxLifetime)
	if err != nil {
		return nil, err
	}
	if maxLifetime <= 0 {
		return nil, fmt.Errorf("invalid TX_MAX_LIFETIME: must be positive, got %s", maxLifetime)
	}

	lockExpiry, err := durationEnv("LOCK_EXPIRY", DefaultLockExpiry)
	if err != nil {
		return nil, err
	}

	breakerTimeout, err := durationEnv("MOVER_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	failures, err := intEnv("MOVER_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, fmt.Errorf("invalid MOVER_BREAKER_FAILURES: must be at least 1, got %d", failures)
	}

	return &ExecutorConfig{
		MaxLifetime:     maxLifetime,
		LockExpiry:      lockExpiry,
		BreakerTimeout:  breakerTimeout,
		BreakerFailures: uint32(failures),
	}, nil
}

func loadServer() (*ServerConfig, error) {
	server := &ServerConfig{
		Addr:        stringEnv("HTTP_ADDR", ":8080"),
		TLSCertFile: os.Getenv("HTTP_TLS_CERT"),
		TLSKeyFile:  os.Getenv("HTTP_TLS_KEY"),
	}
	if (server.TLSCertFile == "") != (server.TLSKeyFile == "") {
		return nil, fmt.Errorf("invalid HTTP_TLS_CERT/HTTP_TLS_KEY: set both or neither")
	}
	return server, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
