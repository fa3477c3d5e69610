// Package config loads service and CLI settings from an optional YAML file,
// ISWADDON_ environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "ISWADDON"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	// URL is the remote service used by the CLI's remote commands.
	URL string `mapstructure:"url"`
}

type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

// StoreConfig points at the build history database. An empty path disables
// the store.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RateLimitConfig holds limiter formatted rates such as "10-M".
type RateLimitConfig struct {
	Concept string `mapstructure:"concept"`
	Addon   string `mapstructure:"addon"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      60 * time.Second,
			URL:               "http://localhost:8080",
		},
		Gemini: GeminiConfig{
			Model:      "gemini-2.0-flash",
			BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
			Timeout:    60 * time.Second,
			MaxRetries: 3,
			Backoff:    time.Second,
		},
		Store:     StoreConfig{Path: "iswaddon.db"},
		Log:       LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{Concept: "10-M", Addon: "60-M"},
	}
}

// Load reads configuration. path may be empty, in which case only defaults,
// the environment and .env apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	d := Default()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_header_timeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("gemini.base_url", d.Gemini.BaseURL)
	v.SetDefault("gemini.timeout", d.Gemini.Timeout)
	v.SetDefault("gemini.max_retries", d.Gemini.MaxRetries)
	v.SetDefault("gemini.backoff", d.Gemini.Backoff)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("ratelimit.concept", d.RateLimit.Concept)
	v.SetDefault("ratelimit.addon", d.RateLimit.Addon)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("server.url", EnvPrefix+"_SERVER_URL", "SERVER_URL"); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// NewLogger returns a stderr logger at the configured level. Unknown levels
// fall back to info.
func NewLogger(level, prefix string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		Level:           lvl,
		ReportTimestamp: true,
	})
}
