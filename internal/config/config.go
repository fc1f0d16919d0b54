package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pgx-cds-server/internal/domain"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pgx-cds/")

	viper.SetEnvPrefix("PGX_CDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and environment variables apply
	// when it is absent.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	// Pipeline defaults
	viper.SetDefault("pipeline.temp_dir", "/tmp/pgx-cds")
	viper.SetDefault("pipeline.max_file_size_mb", 100)
	viper.SetDefault("pipeline.reference_fasta", "")
	viper.SetDefault("pipeline.liftover_chain", "")
	viper.SetDefault("pipeline.retain_normalized", false)
	viper.SetDefault("pipeline.tables_dir", "")

	// External tool defaults
	viper.SetDefault("tools.timeout", "5m")
	viper.SetDefault("tools.pharmcat_container", "pgkb/pharmcat:latest")
	viper.SetDefault("tools.pharmcat_executable", "")
	viper.SetDefault("tools.caller_timeout", "10m")

	// Analysis defaults
	viper.SetDefault("analysis.max_concurrent", 3)

	// Rule store defaults
	viper.SetDefault("rule_store.backend", "sqlite")
	viper.SetDefault("rule_store.sqlite_path", "./data/cpic_rules.db")
	viper.SetDefault("rule_store.postgres_url", "")
	viper.SetDefault("rule_store.migrations_path", "./migrations")

	// Cache defaults
	viper.SetDefault("cache.size", 1000)
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.redis_url", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Pipeline.MaxFileSizeMB <= 0 {
		return fmt.Errorf("invalid max file size: %d", config.Pipeline.MaxFileSizeMB)
	}
	if config.Pipeline.TempDir == "" {
		return fmt.Errorf("pipeline temp dir is required")
	}

	switch config.RuleStore.Backend {
	case "sqlite":
		if config.RuleStore.SQLitePath == "" {
			return fmt.Errorf("sqlite rule store path is required")
		}
	case "postgres":
		if config.RuleStore.PostgresURL == "" {
			return fmt.Errorf("postgres rule store URL is required")
		}
	default:
		return fmt.Errorf("invalid rule store backend: %s", config.RuleStore.Backend)
	}

	if config.Analysis.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid max concurrent genes: %d", config.Analysis.MaxConcurrent)
	}

	if config.Tools.PharmCATContainer == "" && config.Tools.PharmCATExecutable == "" {
		return fmt.Errorf("a star-allele caller container or executable is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
