package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/somatic-tier-classifier/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

// NewManager creates a configuration manager that searches the default paths
func NewManager() (*Manager, error) {
	return NewManagerFromFile("")
}

// NewManagerFromFile creates a configuration manager reading an explicit file.
// An empty path falls back to the default search paths.
func NewManagerFromFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath(DefaultDataDir())
		v.AddConfigPath("/etc/tier-classifier/")
	}

	// TIER_STORAGE_DRIVER overrides storage.driver, and so on
	v.SetEnvPrefix("TIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// DefaultDataDir is where local results and snapshots live unless configured.
func DefaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".tier-classifier"
	}
	return filepath.Join(homeDir, ".tier-classifier")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Analysis defaults
	v.SetDefault("analysis.default_analysis_type", string(domain.TUMOR_NORMAL))
	v.SetDefault("analysis.default_tumor_type", "")
	v.SetDefault("analysis.frameworks", []string{
		string(domain.AMP_ACMG), string(domain.CGC_VICC), string(domain.ONCOKB_STYLE),
	})
	v.SetDefault("analysis.kb_version_snapshot", "")

	v.SetDefault("batch.workers", 4)

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", filepath.Join(DefaultDataDir(), "results.db"))
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.migrations_path", "") // empty uses the embedded schema
	v.SetDefault("storage.max_open_conns", 25)
	v.SetDefault("storage.max_idle_conns", 5)
	v.SetDefault("storage.conn_max_lifetime", "5m")

	// Cache defaults
	v.SetDefault("cache.max_items", 1000)
	v.SetDefault("cache.default_ttl", "24h")
	v.SetDefault("cache.redis_url", "")

	// Knowledge base defaults
	v.SetDefault("knowledge_bases.snapshot_path", "")
	v.SetDefault("knowledge_bases.breaker.max_requests", 1)
	v.SetDefault("knowledge_bases.breaker.interval", "60s")
	v.SetDefault("knowledge_bases.breaker.timeout", "30s")
	v.SetDefault("knowledge_bases.breaker.failure_threshold", 5)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.mode", "release")

	v.SetDefault("mcp.server_name", "tier-classifier")
	v.SetDefault("mcp.server_version", "1.0.0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// ConfigFileUsed returns the file the configuration was read from, if any.
func (m *Manager) ConfigFileUsed() string {
	return m.v.ConfigFileUsed()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if _, err := domain.ParseAnalysisType(config.Analysis.DefaultAnalysisType); err != nil {
		return fmt.Errorf("invalid default analysis type: %w", err)
	}
	if len(config.Analysis.Frameworks) == 0 {
		return fmt.Errorf("at least one guideline framework is required")
	}
	if _, err := domain.ParseFrameworks(config.Analysis.Frameworks); err != nil {
		return fmt.Errorf("invalid analysis frameworks: %w", err)
	}

	if config.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch worker count: %d", config.Batch.Workers)
	}

	// Validate storage configuration
	switch config.Storage.Driver {
	case "sqlite":
		if config.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for the sqlite driver")
		}
	case "postgres":
		if config.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the postgres driver")
		}
	case "none":
	default:
		return fmt.Errorf("invalid storage driver: %s", config.Storage.Driver)
	}

	if config.Cache.MaxItems <= 0 {
		return fmt.Errorf("invalid cache size: %d", config.Cache.MaxItems)
	}

	// Validate knowledge base endpoints
	for name, api := range config.KnowledgeBases.Sources {
		source := domain.EvidenceSource(strings.ToUpper(name))
		if !source.IsValid() {
			return fmt.Errorf("unknown knowledge base source: %s", name)
		}
		if api.URLTemplate == "" {
			return fmt.Errorf("%s URL template is required", source)
		}
		if api.RateLimit < 0 {
			return fmt.Errorf("invalid %s rate limit: %d", source, api.RateLimit)
		}
	}

	// Validate server configuration
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	switch config.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode: %s", config.Server.Mode)
	}

	// Validate logging configuration
	if _, err := logrus.ParseLevel(config.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}
	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// EnsureDataDir creates the directory holding the sqlite results file.
func (m *Manager) EnsureDataDir() error {
	if m.config.Storage.Driver != "sqlite" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(m.config.Storage.SQLitePath), 0755)
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.config.Environment)
	return env == "development" || env == "dev" || env == ""
}
