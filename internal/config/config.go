package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #region types

// Config is the coach server and CLI configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Modules ModulesConfig `yaml:"modules"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Reports ReportsConfig `yaml:"reports"`
}

// ServerConfig configures the HTTP transport and session lifetime.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	ReapInterval   time.Duration `yaml:"reap_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// ModulesConfig says where module configs live.
type ModulesConfig struct {
	Dir        string   `yaml:"dir"`
	Categories []string `yaml:"categories"`
	Watch      bool     `yaml:"watch"`
}

// OracleConfig selects and tunes the language oracle.
type OracleConfig struct {
	Backend       string        `yaml:"backend"` // "openai" | "grpc"
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"-"` // env only
	GRPCAddr      string        `yaml:"grpc_addr"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	CacheSize     int           `yaml:"cache_size"`
}

// ReportsConfig says where finished reports go. An empty DBPath disables the
// SQLite archive.
type ReportsConfig struct {
	Dir    string `yaml:"dir"`
	DBPath string `yaml:"db_path"`
}

const (
	BackendOpenAI = "openai"
	BackendGRPC   = "grpc"
)

// #endregion

// #region defaults

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":5000",
			SessionTTL:   30 * time.Minute,
			ReapInterval: time.Minute,
		},
		Modules: ModulesConfig{
			Dir:        "modules",
			Categories: []string{"energizer", "refresher", "achiver"},
			Watch:      true,
		},
		Oracle: OracleConfig{
			Backend:       BackendOpenAI,
			Model:         "gpt-4o-mini",
			Timeout:       10 * time.Second,
			RatePerSecond: 5,
			Burst:         5,
			CacheSize:     512,
		},
		Reports: ReportsConfig{
			Dir:    "reports",
			DBPath: "coach.db",
		},
	}
}

// #endregion

// #region load

// Load reads a YAML config over the defaults, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to the defaults (plus environment) when
// path is empty or missing.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}
	cfg := Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from COACH_* and OPENAI_* variables.
func (c *Config) ApplyEnv() {
	c.Server.Addr = envOr("COACH_ADDR", c.Server.Addr)
	c.Modules.Dir = envOr("COACH_MODULES_DIR", c.Modules.Dir)
	c.Reports.Dir = envOr("COACH_REPORTS_DIR", c.Reports.Dir)
	c.Reports.DBPath = envOr("COACH_DB", c.Reports.DBPath)
	c.Oracle.Backend = envOr("COACH_ORACLE_BACKEND", c.Oracle.Backend)
	c.Oracle.GRPCAddr = envOr("COACH_ORACLE_ADDR", c.Oracle.GRPCAddr)
	c.Oracle.APIKey = envOr("OPENAI_API_KEY", c.Oracle.APIKey)
	c.Oracle.Model = envOr("OPENAI_MODEL", c.Oracle.Model)
	c.Oracle.BaseURL = envOr("OPENAI_BASE_URL", c.Oracle.BaseURL)
	if v := os.Getenv("COACH_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Server.SessionTTL = d
		}
	}
	if v := os.Getenv("COACH_ORACLE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Oracle.RatePerSecond = f
		}
	}
}

// #endregion

// #region validate

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl must be positive"))
	}
	if c.Modules.Dir == "" {
		errs = append(errs, errors.New("modules.dir is required"))
	}
	switch c.Oracle.Backend {
	case BackendOpenAI:
	case BackendGRPC:
		if c.Oracle.GRPCAddr == "" {
			errs = append(errs, errors.New("oracle.grpc_addr is required for the grpc backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("oracle.backend %q is not one of openai, grpc", c.Oracle.Backend))
	}
	if c.Oracle.Timeout <= 0 {
		errs = append(errs, errors.New("oracle.timeout must be positive"))
	}
	if c.Oracle.RatePerSecond < 0 || c.Oracle.Burst < 0 || c.Oracle.CacheSize < 0 {
		errs = append(errs, errors.New("oracle limits must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// #endregion

// #region save

// Save writes c as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// #endregion

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion
