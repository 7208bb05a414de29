// Package server provides a public API for embedding the water-body
// detection service.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/waterwatch/internal/api"
	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/pipeline"
)

// CatalogType specifies where scenes are searched.
type CatalogType string

const (
	// CatalogEarthEngine lists images of the compute service's own collection.
	CatalogEarthEngine CatalogType = config.CatalogEarthEngine
	// CatalogSTAC searches a STAC API and maps items to compute assets.
	CatalogSTAC CatalogType = config.CatalogSTAC
)

// Options configures the water-body server.
type Options struct {
	// Project is the cloud project compute requests are billed to (required).
	Project string

	// HTTPClient carries the compute service credentials (required).
	// See earthengine.Authenticate.
	HTTPClient *http.Client

	// EarthEngineURL is the compute service base URL.
	// Default: "https://earthengine.googleapis.com"
	EarthEngineURL string

	// PublicProject hosts the public image collections.
	// Default: "earthengine-public"
	PublicProject string

	// Catalog specifies where scenes are searched.
	// Default: CatalogEarthEngine
	Catalog CatalogType

	// STACURL is the STAC API searched when Catalog is CatalogSTAC.
	// Default: "https://earth-search.aws.element84.com/v1"
	STACURL string

	// STACCollection is the STAC collection searched.
	// Default: "sentinel-2-l2a"
	STACCollection string

	// OutputDir is where per-request maps and feature files are written.
	// Default: "output"
	OutputDir string

	// OutputTTL is how long request artifacts are kept.
	// Default: 1h
	OutputTTL time.Duration

	// VariantsDir holds JSON pipeline variant overrides.
	// Default: "" (built-in variants only)
	VariantsDir string

	// CORSOrigins are the origins allowed to call the JSON API.
	// Default: ["*"]
	CORSOrigins []string

	// EnableMetrics serves /metrics and records request metrics.
	// Default: false
	EnableMetrics bool

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is a water-body detection server that can be embedded in another
// application.
type Server struct {
	router chi.Router
	store  *artifact.FileStore
}

// New creates a new server with the given options.
func New(opts Options) (*Server, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("project is required")
	}
	if opts.HTTPClient == nil {
		return nil, fmt.Errorf("an authenticated HTTP client is required")
	}

	// Apply defaults
	if opts.EarthEngineURL == "" {
		opts.EarthEngineURL = earthengine.DefaultBaseURL
	}
	if opts.PublicProject == "" {
		opts.PublicProject = earthengine.PublicProject
	}
	if opts.Catalog == "" {
		opts.Catalog = CatalogEarthEngine
	}
	if opts.STACURL == "" {
		opts.STACURL = "https://earth-search.aws.element84.com/v1"
	}
	if opts.STACCollection == "" {
		opts.STACCollection = "sentinel-2-l2a"
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.OutputTTL == 0 {
		opts.OutputTTL = time.Hour
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Build internal config
	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins: opts.CORSOrigins,
		},
		EE: config.EarthEngineConfig{
			Project:       opts.Project,
			BaseURL:       opts.EarthEngineURL,
			PublicProject: opts.PublicProject,
		},
		Catalog: config.CatalogConfig{
			Type:           string(opts.Catalog),
			STACURL:        opts.STACURL,
			STACCollection: opts.STACCollection,
			PageSize:       100,
			Timeout:        30 * time.Second,
		},
		Output: config.OutputConfig{
			Dir:             opts.OutputDir,
			TTL:             opts.OutputTTL,
			CleanupInterval: opts.OutputTTL / 12,
		},
		Pipeline: config.PipelineConfig{
			VariantsDir: opts.VariantsDir,
		},
		Metrics: config.MetricsConfig{
			Enabled: opts.EnableMetrics,
		},
	}

	// Load variants
	variants, err := config.LoadVariants(opts.VariantsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}

	// Create compute client and scene catalog
	ee := earthengine.NewClient(cfg.EE.BaseURL, cfg.EE.Project, opts.HTTPClient).
		WithPublicProject(cfg.EE.PublicProject).
		WithLogger(opts.Logger)

	scenes, err := catalog.New(&cfg.Catalog, ee, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scene catalog: %w", err)
	}

	// Create artifact store
	store, err := artifact.NewFileStore(cfg.Output.Dir, cfg.Output.TTL, cfg.Output.CleanupInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}
	store.WithLogger(opts.Logger)

	runner := pipeline.NewRunner(ee, scenes, store, variants).WithLogger(opts.Logger)

	// Create handlers and router
	handlers := api.NewHandlers(cfg, runner, store, variants, opts.Logger)
	router := api.NewRouter(handlers, opts.Logger)

	return &Server{
		router: router,
		store:  store,
	}, nil
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Close stops background goroutines (artifact cleanup).
func (s *Server) Close() {
	if s.store != nil {
		s.store.Stop()
	}
}
