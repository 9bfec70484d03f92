package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment    string               `mapstructure:"environment"`
	Analysis       AnalysisConfig       `mapstructure:"analysis"`
	Batch          BatchConfig          `mapstructure:"batch"`
	Storage        StorageConfig        `mapstructure:"storage"`
	Cache          CacheConfig          `mapstructure:"cache"`
	KnowledgeBases KnowledgeBasesConfig `mapstructure:"knowledge_bases"`
	Server         ServerConfig         `mapstructure:"server"`
	MCP            MCPConfig            `mapstructure:"mcp"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

// AnalysisConfig holds the defaults applied to cases that do not set them.
type AnalysisConfig struct {
	DefaultAnalysisType string   `mapstructure:"default_analysis_type"`
	DefaultTumorType    string   `mapstructure:"default_tumor_type"`
	Frameworks          []string `mapstructure:"frameworks"`
	KBVersionSnapshot   string   `mapstructure:"kb_version_snapshot"`
}

// BatchConfig controls ClassifyBatch fan-out.
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

// StorageConfig selects the result store.
type StorageConfig struct {
	Driver          string        `mapstructure:"driver"` // "sqlite", "postgres", "none"
	SQLitePath      string        `mapstructure:"sqlite_path"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	MigrationsPath  string        `mapstructure:"migrations_path"` // golang-migrate source URL; empty uses the embedded schema
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents knowledge-base payload cache configuration
type CacheConfig struct {
	MaxItems   int           `mapstructure:"max_items"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	RedisURL   string        `mapstructure:"redis_url"` // empty disables the shared cache
}

// KnowledgeBasesConfig points the collector at knowledge-base payloads. Either a
// local snapshot file or per-source HTTP endpoints may be configured.
type KnowledgeBasesConfig struct {
	SnapshotPath string                      `mapstructure:"snapshot_path"`
	Sources      map[string]KnowledgeBaseAPI `mapstructure:"sources"`
	Breaker      BreakerConfig               `mapstructure:"breaker"`
}

// KnowledgeBaseAPI represents one knowledge base HTTP endpoint. URLTemplate may use
// {gene}, {hgvs} and {variant_id} placeholders.
type KnowledgeBaseAPI struct {
	URLTemplate string        `mapstructure:"url_template"`
	APIKey      string        `mapstructure:"api_key"`
	RateLimit   int           `mapstructure:"rate_limit"`
	Timeout     time.Duration `mapstructure:"timeout"`
	KBVersion   string        `mapstructure:"kb_version"`
}

// BreakerConfig configures the per-source circuit breakers.
type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	Mode         string        `mapstructure:"mode"` // gin mode: debug, release, test
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string `mapstructure:"server_name"`
	ServerVersion string `mapstructure:"server_version"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
	Output string `mapstructure:"output"` // "stdout", "stderr" or a file path
}
