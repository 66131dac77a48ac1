package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenFlow = "openflow"
	ProviderMariaDB  = "mariadb"
	ProviderSQLite   = "sqlite"

	// ProviderClassBench reads 5-tuple filter set files laid out by a rule format.
	ProviderClassBench = "classbench"
)

// SourceConfig selects where rule lines come from.
type SourceConfig struct {
	Provider string `yaml:"provider"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	Table    string `yaml:"table"`
	Ruleset  string `yaml:"ruleset"`

	// Filter set layout for the classbench provider. FormatFile wins over Format.
	Format     string `yaml:"format"`
	FormatFile string `yaml:"format_file"`
}

// SeedConfig tunes seed generation.
type SeedConfig struct {
	PrefixCorrelation bool `yaml:"prefix_correlation"`
	Workers           int  `yaml:"workers"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the top-level configuration struct for the analyzer.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Seed    SeedConfig    `yaml:"seed"`
	Logging LoggingConfig `yaml:"logging"`
}

func Default() *Config {
	return &Config{
		Source:  SourceConfig{Provider: ProviderOpenFlow, Table: "of_rules"},
		Seed:    SeedConfig{Workers: 1},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Source.Provider = strings.ToLower(c.Source.Provider)
	switch c.Source.Provider {
	case ProviderOpenFlow, ProviderMariaDB, ProviderSQLite, ProviderClassBench:
	default:
		return fmt.Errorf("unknown rule provider: %s", c.Source.Provider)
	}
	if c.Seed.Workers < 1 {
		return fmt.Errorf("seed.workers must be at least 1, got %d", c.Seed.Workers)
	}
	return nil
}
