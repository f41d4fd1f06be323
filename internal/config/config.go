package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration, loaded from a yaml file. Secrets
// (Alpaca credentials, postgres passwords) are not part of the file:
// they come from the environment, optionally seeded from a .env file.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		// Driver is sqlite, postgres or memory.
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"` // sqlite database file
		DSN    string `yaml:"dsn"`  // postgres connection string
	} `yaml:"storage"`

	Prices struct {
		// Provider is stream, alpaca, both or none.
		Provider     string `yaml:"provider"`
		StreamURL    string `yaml:"stream_url"`
		SymbolSuffix string `yaml:"symbol_suffix"`
	} `yaml:"prices"`

	Refresh struct {
		IntervalHours int `yaml:"interval_hours"`
	} `yaml:"refresh"`

	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
}

// Load reads the yaml file at path and applies defaults. A .env file in
// the working directory, when present, is merged into the environment
// first so the SDK clients can pick their credentials up.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "wallet.db"
	}
	if dsn := os.Getenv("WALLET_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.DSN = dsn
	}
	if cfg.Refresh.IntervalHours == 0 {
		cfg.Refresh.IntervalHours = 24
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	return &cfg, nil
}
