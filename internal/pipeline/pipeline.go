// Package pipeline runs water-body detection: date windowing, scene
// location, index computation, thresholding, shape extraction, map
// composition and result reporting. All raster work is expressed as remote
// expressions evaluated by a Backend.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/metrics"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// Backend evaluates remote expressions. *earthengine.Client implements it.
type Backend interface {
	// Compute evaluates v and returns its JSON result.
	Compute(ctx context.Context, v earthengine.Value) (json.RawMessage, error)

	// ComputeInto evaluates v and decodes its result into out.
	ComputeInto(ctx context.Context, v earthengine.Value, out any) error

	// MapTiles registers img for tile serving and returns its XYZ template.
	MapTiles(ctx context.Context, img earthengine.Image) (string, error)
}

// Request is one detection request. An empty Variant selects the variant
// serving the location mode.
type Request struct {
	Variant  string
	Location Location
	Date     string
}

// Runner executes requests. A Runner is safe for concurrent use; each call
// to Run is independent.
type Runner struct {
	variants  *config.VariantRegistry
	locator   *Locator
	extractor *Extractor
	composer  *Composer
	reporter  *Reporter
	store     artifact.Store
	logger    *slog.Logger
}

// NewRunner wires the pipeline stages.
func NewRunner(backend Backend, cat catalog.SceneCatalog, store artifact.Store, variants *config.VariantRegistry) *Runner {
	return &Runner{
		variants:  variants,
		locator:   NewLocator(cat),
		extractor: NewExtractor(backend),
		composer:  NewComposer(backend),
		reporter:  NewReporter(store),
		store:     store,
		logger:    slog.Default(),
	}
}

// WithLogger sets a custom logger for the runner and its stages.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	r.locator.WithLogger(logger)
	r.extractor.WithLogger(logger)
	r.composer.WithLogger(logger)
	r.reporter.WithLogger(logger)
	return r
}

// Variants returns the variant registry.
func (r *Runner) Variants() *config.VariantRegistry {
	return r.variants
}

// Run executes the pipeline for req.
func (r *Runner) Run(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	v, err := r.variant(req)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues(req.Variant, outcome(err)).Inc()
		return nil, err
	}

	result, err := r.run(ctx, v, req)

	metrics.PipelineRuns.WithLabelValues(v.Name, outcome(err)).Inc()
	metrics.PipelineDuration.WithLabelValues(v.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		r.logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("variant", v.Name),
			slog.String("location", req.Location.String()),
			slog.String("date", req.Date),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	r.logger.InfoContext(ctx, "pipeline run completed",
		slog.String("variant", v.Name),
		slog.String("token", result.Token),
		slog.Int("count", result.Count),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (r *Runner) run(ctx context.Context, v *config.VariantConfig, req *Request) (*Result, error) {
	window, err := translate.ResolveWindow(req.Date, v.WindowDays)
	if err != nil {
		return nil, &InputError{Field: "date", Err: err}
	}

	scene, err := r.locator.Locate(ctx, v, req.Location, window)
	if err != nil {
		return nil, err
	}

	mask := WaterMask(WaterIndex(scene.Image, v.Index), v.Threshold)
	roi := req.Location.Region(v.BufferMeters)

	bodies, err := r.extractor.Extract(ctx, v, mask, roi)
	if err != nil {
		return nil, err
	}

	doc, err := r.composer.Compose(ctx, v, req.Location, scene, mask, bodies)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Token:       r.store.NewToken(),
		Variant:     v.Name,
		Count:       bodies.Count,
		AreaKm2:     bodies.AreaKm2,
		StartDate:   window.StartDate(),
		EndDate:     window.EndDate(),
		Scenes:      scene.IDs(),
		Relaxed:     scene.Relaxed,
		Map:         doc,
		WaterBodies: bodies.Features,
	}

	if err := r.reporter.Report(ctx, result); err != nil {
		return nil, err
	}

	return result, nil
}

// variant resolves the variant of a request and checks it fits the location.
func (r *Runner) variant(req *Request) (*config.VariantConfig, error) {
	var v *config.VariantConfig
	if req.Variant == "" {
		v = r.variants.ForMode(req.Location.Mode)
	} else {
		v = r.variants.Get(req.Variant)
	}
	if v == nil {
		return nil, &InputError{Field: "variant", Err: fmt.Errorf("unknown variant %q", req.Variant)}
	}
	if v.Mode != req.Location.Mode {
		return nil, &InputError{Field: "variant", Err: fmt.Errorf("variant %q expects a %s location, got %s", v.Name, v.Mode, req.Location.Mode)}
	}
	return v, nil
}

func outcome(err error) string {
	var (
		inputErr  *InputError
		noImagery *NoImageryError
		remoteErr *RemoteError
		writeErr  *FileWriteError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &inputErr):
		return "input_error"
	case errors.As(err, &noImagery):
		return "no_imagery"
	case errors.As(err, &remoteErr):
		return "remote_error"
	case errors.As(err, &writeErr):
		return "write_error"
	default:
		return "error"
	}
}
