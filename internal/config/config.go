package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAddr           = ":8080"
	DefaultStaticDir      = "web"
	DefaultWSWriteTimeout = 10 * time.Second
)

// Config holds process settings read from the environment.
type Config struct {
	Addr      string
	StaticDir string
	LogLevel  slog.Level
	LogFormat string
	// WSWriteTimeout bounds each websocket write before the client is dropped.
	WSWriteTimeout time.Duration
}

// Load reads an optional .env file and then the environment. Variables that
// are already set take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return fromEnv(os.Getenv)
}

func fromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Addr:      getenv("PINGPONG_ADDR"),
		StaticDir: getenv("PINGPONG_STATIC_DIR"),
		LogFormat: strings.ToLower(getenv("PINGPONG_LOG_FORMAT")),
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = DefaultStaticDir
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid PINGPONG_LOG_FORMAT %q", cfg.LogFormat)
	}

	cfg.WSWriteTimeout = DefaultWSWriteTimeout
	if v := getenv("PINGPONG_WS_WRITE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid PINGPONG_WS_WRITE_TIMEOUT %q", v)
		}
		cfg.WSWriteTimeout = d
	}

	if level := getenv("PINGPONG_LOG_LEVEL"); level != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid PINGPONG_LOG_LEVEL: %w", err)
		}
	}
	return cfg, nil
}

// NewLogger builds the process logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
