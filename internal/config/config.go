// Package config provides configuration management for the water-body service.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Catalog types.
const (
	CatalogEarthEngine = "earthengine"
	CatalogSTAC        = "stac"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig      `envPrefix:"SERVER_"`
	EE       EarthEngineConfig `envPrefix:"EE_"`
	Catalog  CatalogConfig     `envPrefix:"CATALOG_"`
	Output   OutputConfig      `envPrefix:"OUTPUT_"`
	Pipeline PipelineConfig    `envPrefix:"PIPELINE_"`
	Metrics  MetricsConfig     `envPrefix:"METRICS_"`
	Logging  LoggingConfig     `envPrefix:"LOG_"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"5m"` // covers a full pipeline run
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// EarthEngineConfig contains compute service session configuration.
type EarthEngineConfig struct {
	Project         string        `env:"PROJECT,required"`
	BaseURL         string        `env:"BASE_URL" envDefault:"https://earthengine.googleapis.com"`
	PublicProject   string        `env:"PUBLIC_PROJECT" envDefault:"earthengine-public"`
	CredentialsFile string        `env:"CREDENTIALS_FILE"` // empty: application default credentials
	Timeout         time.Duration `env:"TIMEOUT" envDefault:"2m"`
}

// CatalogConfig selects and configures the scene catalog.
type CatalogConfig struct {
	// Type specifies which catalog to search: "earthengine" or "stac"
	Type           string        `env:"TYPE" envDefault:"earthengine"`
	STACURL        string        `env:"STAC_URL" envDefault:"https://earth-search.aws.element84.com/v1"`
	STACCollection string        `env:"STAC_COLLECTION" envDefault:"sentinel-2-l2a"`
	AssetPrefix    string        `env:"ASSET_PREFIX"` // derived from STAC_COLLECTION when empty
	PageSize       int           `env:"PAGE_SIZE" envDefault:"100"`
	Timeout        time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// OutputConfig controls where per-request artifacts are written.
type OutputConfig struct {
	Dir             string        `env:"DIR" envDefault:"output"`
	TTL             time.Duration `env:"TTL" envDefault:"1h"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
}

// PipelineConfig locates pipeline variant overrides.
type PipelineConfig struct {
	VariantsDir string `env:"VARIANTS_DIR"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables, after loading a .env
// file from the working directory when one exists. Variables already set in
// the environment take precedence over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}

	// Validate compute service config
	if c.EE.Project == "" {
		return fmt.Errorf("earth engine project is required")
	}

	if err := validateURL("earth engine base URL", c.EE.BaseURL); err != nil {
		return err
	}

	if c.EE.Timeout <= 0 {
		return fmt.Errorf("earth engine timeout must be positive, got %s", c.EE.Timeout)
	}

	// Validate catalog config
	switch c.Catalog.Type {
	case CatalogEarthEngine:
	case CatalogSTAC:
		if err := validateURL("STAC catalog URL", c.Catalog.STACURL); err != nil {
			return err
		}
		if c.Catalog.STACCollection == "" {
			return fmt.Errorf("STAC catalog collection is required")
		}
	default:
		return fmt.Errorf("catalog type must be %q or %q, got %q", CatalogEarthEngine, CatalogSTAC, c.Catalog.Type)
	}

	if c.Catalog.PageSize < 1 {
		return fmt.Errorf("catalog page size must be at least 1, got %d", c.Catalog.PageSize)
	}

	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog timeout must be positive, got %s", c.Catalog.Timeout)
	}

	// Validate output config
	if c.Output.Dir == "" {
		return fmt.Errorf("output directory is required")
	}

	if c.Output.TTL <= 0 {
		return fmt.Errorf("output TTL must be positive, got %s", c.Output.TTL)
	}

	if c.Output.CleanupInterval <= 0 {
		return fmt.Errorf("output cleanup interval must be positive, got %s", c.Output.CleanupInterval)
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}
