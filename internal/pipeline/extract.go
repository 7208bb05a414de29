package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	orbjson "github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

const (
	labelsBand   = "labels"
	areaProperty = "area"
)

// WaterBodies is the outcome of shape extraction. AreaKm2 and Features are
// only set in polygon mode.
type WaterBodies struct {
	Count    int
	AreaKm2  *float64
	Features *orbjson.FeatureCollection
}

// ComponentLabels labels connected water regions and drops regions smaller
// than the variant minimum pixel count.
func ComponentLabels(mask earthengine.Image, v *config.VariantConfig) earthengine.Image {
	connected := mask.ConnectedComponents(earthengine.KernelPlus(v.KernelRadius), v.MaxComponentSize)
	sizes := connected.Select(labelsBand).ConnectedPixelCount(v.MaxComponentSize, true)
	return connected.UpdateMask(sizes.Gte(float64(v.MinPixels))).Select(labelsBand)
}

// ComponentCount counts the distinct surviving labels inside roi.
func ComponentCount(mask earthengine.Image, roi earthengine.Geometry, v *config.VariantConfig) earthengine.Dictionary {
	return ComponentLabels(mask, v).ReduceRegion(earthengine.CountDistinctNonNull(), roi, v.Scale, v.MaxPixels)
}

// WaterBodyVectors vectorizes the mask inside roi, keeps polygons larger than
// the variant minimum area and dissolves them into one feature.
func WaterBodyVectors(mask earthengine.Image, roi earthengine.Geometry, v *config.VariantConfig) earthengine.FeatureCollection {
	return mask.ReduceToVectors(roi, v.Scale, v.MaxPixels, true).
		Map(func(f earthengine.Feature) earthengine.Feature {
			return f.Set(areaProperty, f.Geometry().Area(v.MaxError))
		}).
		Filter(earthengine.GreaterThan(areaProperty, v.MinAreaM2)).
		Union(v.MaxError)
}

// WaterArea sums the area of every water pixel inside roi, in square metres.
func WaterArea(mask earthengine.Image, roi earthengine.Geometry, v *config.VariantConfig) earthengine.Dictionary {
	return mask.Multiply(earthengine.PixelArea()).ReduceRegion(earthengine.Sum(), roi, v.Scale, v.MaxPixels)
}

// SplitFeatures breaks merged multi-part features into one feature per
// polygon, each carrying a sequential id and its geodesic area.
func SplitFeatures(merged *orbjson.FeatureCollection) *orbjson.FeatureCollection {
	out := orbjson.NewFeatureCollection()
	if merged == nil {
		return out
	}

	for _, f := range merged.Features {
		if f.Geometry == nil {
			continue
		}
		for _, p := range translate.Polygons(f.Geometry) {
			if len(p) == 0 || len(p[0]) < 4 {
				continue
			}
			nf := orbjson.NewFeature(p)
			nf.Properties["id"] = len(out.Features) + 1
			nf.Properties["area_km2"] = translate.RoundTo(translate.GeodesicAreaKm2(p), 2)
			out.Append(nf)
		}
	}

	return out
}

// Extractor evaluates water-body counts and shapes remotely.
type Extractor struct {
	backend Backend
	logger  *slog.Logger
}

// NewExtractor creates an extractor evaluating on backend.
func NewExtractor(backend Backend) *Extractor {
	return &Extractor{backend: backend, logger: slog.Default()}
}

// WithLogger sets a custom logger for the extractor.
func (e *Extractor) WithLogger(logger *slog.Logger) *Extractor {
	e.logger = logger
	return e
}

// Extract derives the water bodies of mask inside roi.
func (e *Extractor) Extract(ctx context.Context, v *config.VariantConfig, mask earthengine.Image, roi earthengine.Geometry) (*WaterBodies, error) {
	switch v.Mode {
	case config.ModePoint:
		count, err := e.count(ctx, v, mask, roi)
		if err != nil {
			return nil, err
		}
		return &WaterBodies{Count: count}, nil

	case config.ModePolygon:
		features, err := e.vectorize(ctx, v, mask, roi)
		if err != nil {
			return nil, err
		}
		area, err := e.area(ctx, v, mask, roi)
		if err != nil {
			return nil, err
		}
		// An empty union means no water, reported as a zero count.
		return &WaterBodies{Count: len(features.Features), AreaKm2: &area, Features: features}, nil

	default:
		return nil, &InputError{Field: "variant", Err: fmt.Errorf("unknown mode %q", v.Mode)}
	}
}

func (e *Extractor) count(ctx context.Context, v *config.VariantConfig, mask earthengine.Image, roi earthengine.Geometry) (int, error) {
	var result map[string]*float64
	if err := e.backend.ComputeInto(ctx, ComponentCount(mask, roi, v), &result); err != nil {
		return 0, &RemoteError{Stage: "water body count", Err: err}
	}

	// A null count means no labelled pixel survived.
	count := 0
	if n := result[labelsBand]; n != nil {
		count = int(*n)
	}

	e.logger.DebugContext(ctx, "water bodies counted", slog.Int("count", count))
	return count, nil
}

func (e *Extractor) vectorize(ctx context.Context, v *config.VariantConfig, mask earthengine.Image, roi earthengine.Geometry) (*orbjson.FeatureCollection, error) {
	raw, err := e.backend.Compute(ctx, WaterBodyVectors(mask, roi, v))
	if err != nil {
		return nil, &RemoteError{Stage: "water body vectorization", Err: err}
	}

	merged, err := orbjson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, &RemoteError{Stage: "water body vectorization", Err: fmt.Errorf("failed to decode features: %w", err)}
	}

	features := SplitFeatures(merged)
	e.logger.DebugContext(ctx, "water bodies vectorized",
		slog.Int("merged_features", len(merged.Features)),
		slog.Int("polygons", len(features.Features)),
	)
	return features, nil
}

func (e *Extractor) area(ctx context.Context, v *config.VariantConfig, mask earthengine.Image, roi earthengine.Geometry) (float64, error) {
	var result map[string]*float64
	if err := e.backend.ComputeInto(ctx, WaterArea(mask, roi, v), &result); err != nil {
		return 0, &RemoteError{Stage: "water area", Err: err}
	}

	var m2 float64
	if a := result[waterBand]; a != nil {
		m2 = *a
	}
	return translate.RoundTo(m2/1e6, 2), nil
}
