package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Version is the release version reported by the CLI and the capability
// descriptor.
const Version = "0.1.0"

// Config holds application-wide configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	ListenAddr string           `mapstructure:"listenAddr"`
	Token      string           `mapstructure:"token"`
	PrimaryKey string           `mapstructure:"primaryKey"`
	Databases  []DatabaseConfig `mapstructure:"databases"`
}

// DatabaseConfig is one named backend binding, validated at startup.
type DatabaseConfig struct {
	Name       string `mapstructure:"name"`
	ConnString string `mapstructure:"connString"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
		PrimaryKey: "id",
	}
}

// Load reads config from file or environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("sqlgate")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("SQLGATE")

	v.SetDefault("server.listenAddr", ":8080")
	v.SetDefault("server.primaryKey", "id")
	v.SetDefault("metrics.addr", ":9100")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the parts of the config that must be right before any
// request is served.
func (c *Config) Validate() error {
	if c.Server.Token == "" {
		return fmt.Errorf("server.token (or SQLGATE_TOKEN) is required")
	}
	if len(c.Server.Databases) == 0 {
		return fmt.Errorf("at least one database must be configured")
	}
	seen := make(map[string]bool)
	for _, db := range c.Server.Databases {
		if db.Name == "" {
			return fmt.Errorf("database name must not be empty")
		}
		if db.ConnString == "" {
			return fmt.Errorf("database %q: connString is required", db.Name)
		}
		if seen[db.Name] {
			return fmt.Errorf("duplicate database name %q", db.Name)
		}
		seen[db.Name] = true
	}
	return nil
}
