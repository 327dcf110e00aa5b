package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL                    string `yaml:"url"`
		MaxOpenConns           int    `yaml:"max_open_conns"`
		MaxIdleConns           int    `yaml:"max_idle_conns"`
		ConnMaxLifetimeSeconds int64  `yaml:"conn_max_lifetime_seconds"`
		MigrationsPath         string `yaml:"migrations_path"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		FromName string `yaml:"from_name"`
		FromAddr string `yaml:"from_addr"`
	} `yaml:"smtp"`
	JWT struct {
		Secret            string `yaml:"secret"`
		AccessTTLSeconds  int64  `yaml:"access_ttl_seconds"`
		RefreshTTLSeconds int64  `yaml:"refresh_ttl_seconds"`
	} `yaml:"jwt"`
	Uploads struct {
		Dir string `yaml:"dir"`
	} `yaml:"uploads"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// ConnMaxLifetime returns the database connection lifetime as a duration.
func (c *Config) ConnMaxLifetime() time.Duration {
	return time.Duration(c.Database.ConnMaxLifetimeSeconds) * time.Second
}

// AccessTTL returns the access-token lifetime as a duration.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh-token lifetime as a duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTTLSeconds) * time.Second
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt.secret must be set")
	}
	if config.Database.MaxOpenConns == 0 {
		config.Database.MaxOpenConns = 25
	}
	if config.Database.MaxIdleConns == 0 {
		config.Database.MaxIdleConns = 5
	}
	if config.Database.ConnMaxLifetimeSeconds == 0 {
		config.Database.ConnMaxLifetimeSeconds = 300
	}
	if config.Database.MigrationsPath == "" {
		config.Database.MigrationsPath = "migrations"
	}
	if config.JWT.AccessTTLSeconds == 0 {
		config.JWT.AccessTTLSeconds = 1800
	}
	if config.JWT.RefreshTTLSeconds == 0 {
		config.JWT.RefreshTTLSeconds = 7 * 24 * 3600
	}
	if config.Uploads.Dir == "" {
		config.Uploads.Dir = "uploads"
	}

	return config, nil
}
