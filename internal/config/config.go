package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/claude/repmax/internal/models"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig             `yaml:"server"`
	Database    DatabaseConfig           `yaml:"database"`
	Auth        AuthConfig               `yaml:"auth"`
	Tailscale   TailscaleConfig          `yaml:"tailscale"`
	Progression models.ProgressionConfig `yaml:"progression"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable
// overrides. Env vars use the prefix REPMAX_ and underscore-separated paths:
//
//	REPMAX_SERVER_HOST, REPMAX_SERVER_PORT,
//	REPMAX_DB_HOST, REPMAX_DB_PORT, REPMAX_DB_NAME,
//	REPMAX_DB_USER, REPMAX_DB_PASSWORD, REPMAX_DB_SSLMODE,
//	REPMAX_AUTH_API_KEY
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyProgressionDefaults(&cfg.Progression)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPMAX_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPMAX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPMAX_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPMAX_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPMAX_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPMAX_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPMAX_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPMAX_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPMAX_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}

// applyProgressionDefaults fills the progression rules a programme can
// override: 2.5kg jumps, deload to 90% after 3 straight failed sessions,
// 20kg bar minimum.
func applyProgressionDefaults(p *models.ProgressionConfig) {
	if p.DefaultIncrement == 0 {
		p.DefaultIncrement = 2.5
	}
	if p.DeloadTriggerFailures == 0 {
		p.DeloadTriggerFailures = 3
	}
	if p.DeloadPercentage == 0 {
		p.DeloadPercentage = 0.9
	}
	if p.MinimumWeight == 0 {
		p.MinimumWeight = 20
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required when tailscale is disabled")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Progression.DeloadPercentage <= 0 || c.Progression.DeloadPercentage >= 1 {
		return fmt.Errorf("progression.deload_percentage must be in (0, 1)")
	}
	return nil
}
