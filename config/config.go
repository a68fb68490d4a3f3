package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the service settings read from the environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Path string
}

type LogConfig struct {
	Level       string
	Development bool
}

// Load reads the configuration from environment variables. Call
// godotenv.Load beforehand to pick up a .env file.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Database: DatabaseConfig{Path: getEnvOrDefault("DATABASE_PATH", "linkdeal.db")},
		Log:      logCfg,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := getEnvOrDefault("PORT", "8080")

	var addr string
	switch {
	case strings.Contains(port, ":"):
		// Accept ":8080" or "127.0.0.1:8080" as given.
		addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		if _, err := strconv.Atoi(port); err != nil {
			return ServerConfig{}, fmt.Errorf("invalid PORT value %q: %w", port, err)
		}
		addr = ":" + port
	}

	timeout, err := parseOptionalIntEnv("SHUTDOWN_TIMEOUT")
	if err != nil {
		return ServerConfig{}, err
	}
	shutdown := 10 * time.Second
	if timeout != nil {
		if *timeout < 0 {
			return ServerConfig{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT value %d: must not be negative", *timeout)
		}
		shutdown = time.Duration(*timeout) * time.Second
	}

	return ServerConfig{Addr: addr, ShutdownTimeout: shutdown}, nil
}

func loadLogConfig() (LogConfig, error) {
	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return LogConfig{}, fmt.Errorf("invalid LOG_LEVEL value: %q", level)
	}

	env := strings.ToLower(getEnvOrDefault("APP_ENV", "production"))

	return LogConfig{Level: level, Development: env == "development"}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
