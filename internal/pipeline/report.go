package pipeline

import (
	"context"
	"log/slog"

	orbjson "github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/mapdoc"
)

// Result is the record of one run.
type Result struct {
	Token     string   `json:"token"`
	Variant   string   `json:"variant"`
	Count     int      `json:"count"`
	AreaKm2   *float64 `json:"area_km2,omitempty"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Scenes    []string `json:"scenes"`
	Relaxed   bool     `json:"cloud_filter_relaxed"`

	Map         *mapdoc.Document           `json:"-"`
	WaterBodies *orbjson.FeatureCollection `json:"-"`
	MapPath     string                     `json:"-"`
	GeoJSONPath string                     `json:"-"`
}

// HasGeoJSON reports whether the run produced a downloadable feature file.
func (r *Result) HasGeoJSON() bool {
	return r.GeoJSONPath != ""
}

// Reporter writes run artifacts.
type Reporter struct {
	store  artifact.Store
	logger *slog.Logger
}

// NewReporter creates a reporter writing into store.
func NewReporter(store artifact.Store) *Reporter {
	return &Reporter{store: store, logger: slog.Default()}
}

// WithLogger sets a custom logger for the reporter.
func (r *Reporter) WithLogger(logger *slog.Logger) *Reporter {
	r.logger = logger
	return r
}

// Report writes the map document and, when present, the water-body
// features under the result token.
func (r *Reporter) Report(ctx context.Context, result *Result) error {
	html, err := result.Map.HTML()
	if err != nil {
		return &FileWriteError{Artifact: string(artifact.KindMap), Err: err}
	}

	path, err := r.store.Write(result.Token, artifact.KindMap, html)
	if err != nil {
		return &FileWriteError{Artifact: string(artifact.KindMap), Err: err}
	}
	result.MapPath = path

	if result.WaterBodies != nil {
		data, err := result.WaterBodies.MarshalJSON()
		if err != nil {
			return &FileWriteError{Artifact: string(artifact.KindGeoJSON), Err: err}
		}

		path, err := r.store.Write(result.Token, artifact.KindGeoJSON, data)
		if err != nil {
			return &FileWriteError{Artifact: string(artifact.KindGeoJSON), Err: err}
		}
		result.GeoJSONPath = path
	}

	r.logger.DebugContext(ctx, "artifacts written",
		slog.String("token", result.Token),
		slog.String("map", result.MapPath),
		slog.String("geojson", result.GeoJSONPath),
	)

	return nil
}
