package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/isruplay/internal/view"
)

const (
	DefaultServerURL   = "http://localhost:5000"
	DefaultSpeed       = 1.0
	DefaultDuration    = 0.1
	DefaultInterval    = 500 * time.Millisecond
	DefaultHTTPTimeout = 60 * time.Second
	DefaultDataDir     = "runs"
	DefaultListen      = ":5000"
	DefaultChartWidth  = 70
	DefaultChartHeight = 15

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "ISRUPLAY_"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	ServerURL   string        `yaml:"server_url" env:"SERVER_URL"`
	Speed       float64       `yaml:"speed" env:"SPEED"`
	Duration    float64       `yaml:"duration" env:"DURATION"`
	Interval    time.Duration `yaml:"interval" env:"INTERVAL"`
	View        string        `yaml:"view" env:"VIEW"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HTTP_TIMEOUT"`
	DataDir     string        `yaml:"data_dir" env:"DATA_DIR"`
	Run         string        `yaml:"run" env:"RUN"`
	Listen      string        `yaml:"listen" env:"LISTEN"`
	LogLevel    string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string        `yaml:"log_format" env:"LOG_FORMAT"`
	Theme       string        `yaml:"theme" env:"THEME"`
	Chart       ChartConfig   `yaml:"chart" envPrefix:"CHART_"`
}

type ChartConfig struct {
	Width  int `yaml:"width" env:"WIDTH"`
	Height int `yaml:"height" env:"HEIGHT"`
}

func DefaultConfig() *Config {
	return &Config{
		ServerURL:   DefaultServerURL,
		Speed:       DefaultSpeed,
		Duration:    DefaultDuration,
		Interval:    DefaultInterval,
		View:        view.TankLevels.String(),
		HTTPTimeout: DefaultHTTPTimeout,
		DataDir:     DefaultDataDir,
		Listen:      DefaultListen,
		LogLevel:    "info",
		LogFormat:   "text",
		Theme:       "mars",
		Chart: ChartConfig{
			Width:  DefaultChartWidth,
			Height: DefaultChartHeight,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadDotEnv reads KEY=value pairs from files into the process environment.
// Missing files are skipped; variables already set are kept.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with ISRUPLAY_* variables. Unset variables leave
// the current values alone.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve builds the effective configuration: defaults, then the yaml file
// at path if non-empty, then .env and the environment.
func Resolve(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ServerURL) == "":
		return fmt.Errorf("%w: server_url is empty", ErrInvalid)
	case c.Speed <= 0:
		return fmt.Errorf("%w: speed must be positive, got %g", ErrInvalid, c.Speed)
	case c.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalid, c.Duration)
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive, got %s", ErrInvalid, c.Interval)
	case c.Chart.Width <= 0 || c.Chart.Height <= 0:
		return fmt.Errorf("%w: chart size %dx%d", ErrInvalid, c.Chart.Width, c.Chart.Height)
	}
	if _, err := view.Parse(c.View); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	return lvl, nil
}

// Logger builds the process logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, err := c.Level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
