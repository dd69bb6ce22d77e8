package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string   `json:"addr" yaml:"addr" env:"TEAMBOARD_ADDR"`
	DataDir         string   `json:"data_dir" yaml:"data_dir" env:"TEAMBOARD_DATA_DIR"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"TEAMBOARD_SHUTDOWN_TIMEOUT"`

	Auth  AuthConfig  `json:"auth" yaml:"auth"`
	Log   LogConfig   `json:"log" yaml:"log"`
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`
	OTel  OTelConfig  `json:"otel" yaml:"otel"`
}

type AuthConfig struct {
	JWTSecret  string   `json:"jwt_secret" yaml:"jwt_secret" env:"TEAMBOARD_JWT_SECRET"`
	Issuer     string   `json:"issuer" yaml:"issuer" env:"TEAMBOARD_JWT_ISSUER"`
	AccessTTL  Duration `json:"access_ttl" yaml:"access_ttl" env:"TEAMBOARD_ACCESS_TTL"`
	RefreshTTL Duration `json:"refresh_ttl" yaml:"refresh_ttl" env:"TEAMBOARD_REFRESH_TTL"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"TEAMBOARD_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"TEAMBOARD_LOG_FORMAT"`
}

type SweepConfig struct {
	Enabled       bool     `json:"enabled" yaml:"enabled" env:"TEAMBOARD_SWEEP_ENABLED"`
	InactiveAfter Duration `json:"inactive_after" yaml:"inactive_after" env:"TEAMBOARD_SWEEP_INACTIVE_AFTER"`
	// RunAt is the local wall-clock time of the daily sweep, "HH:MM".
	RunAt string `json:"run_at" yaml:"run_at" env:"TEAMBOARD_SWEEP_RUN_AT"`
}

type OTelConfig struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint" env:"TEAMBOARD_OTEL_ENDPOINT"`
	ServiceName string `json:"service_name" yaml:"service_name" env:"TEAMBOARD_OTEL_SERVICE_NAME"`
}

// Duration is a time.Duration that decodes from "90s"-style strings in
// env, JSON and YAML alike.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() Config {
	return Config{
		Addr:            ":8080",
		DataDir:         "data",
		ShutdownTimeout: Duration{10 * time.Second},
		Auth: AuthConfig{
			Issuer:     "teamboard",
			AccessTTL:  Duration{5 * time.Minute},
			RefreshTTL: Duration{24 * time.Hour},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sweep: SweepConfig{
			Enabled:       true,
			InactiveAfter: Duration{30 * 24 * time.Hour},
			RunAt:         "00:00",
		},
		OTel: OTelConfig{
			ServiceName: "teamboard",
		},
	}
}

// Load layers defaults, the optional config file at path, and TEAMBOARD_*
// environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return fmt.Errorf("decode json config %s: %w", path, err)
		}
	}
	return nil
}

// DBPath is the SQLite file inside DataDir.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "teamboard.db")
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("data dir is required"))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("TEAMBOARD_JWT_SECRET is required"))
	}
	if c.Auth.AccessTTL.Duration <= 0 {
		errs = append(errs, errors.New("access ttl must be positive"))
	}
	if c.Auth.RefreshTTL.Duration <= 0 {
		errs = append(errs, errors.New("refresh ttl must be positive"))
	}
	if c.Sweep.InactiveAfter.Duration <= 0 {
		errs = append(errs, errors.New("sweep inactive_after must be positive"))
	}
	if _, err := time.Parse("15:04", c.Sweep.RunAt); err != nil {
		errs = append(errs, fmt.Errorf("sweep run_at %q: want HH:MM", c.Sweep.RunAt))
	}
	return errors.Join(errs...)
}
