package domain

import "time"

// Config is the main application configuration, populated by the config
// Manager from file, environment, and defaults.
type Config struct {
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	RuleStore RuleStoreConfig `mapstructure:"rule_store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// PipelineConfig controls file intake and the per-request artifact space.
type PipelineConfig struct {
	TempDir          string `mapstructure:"temp_dir"`
	MaxFileSizeMB    int    `mapstructure:"max_file_size_mb"`
	ReferenceFasta   string `mapstructure:"reference_fasta"`
	LiftoverChain    string `mapstructure:"liftover_chain"`
	RetainNormalized bool   `mapstructure:"retain_normalized"`
	// TablesDir, when set, overrides individual embedded reference
	// data files.
	TablesDir string `mapstructure:"tables_dir"`
}

// ToolsConfig controls external process invocation.
type ToolsConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	PharmCATContainer string        `mapstructure:"pharmcat_container"`
	// PharmCATExecutable, when set, is invoked directly instead of
	// through docker.
	PharmCATExecutable string        `mapstructure:"pharmcat_executable"`
	CallerTimeout      time.Duration `mapstructure:"caller_timeout"`
}

// AnalysisConfig bounds per-request fan-out.
type AnalysisConfig struct {
	MaxConcurrent int64 `mapstructure:"max_concurrent"`
}

// RuleStoreConfig selects and configures the guideline rule backend.
type RuleStoreConfig struct {
	// Backend is "sqlite" or "postgres".
	Backend        string `mapstructure:"backend"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	PostgresURL    string `mapstructure:"postgres_url"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

// CacheConfig configures the rule-resolution cache.
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
	// RedisURL enables the optional distributed tier when non-empty.
	RedisURL string `mapstructure:"redis_url"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
