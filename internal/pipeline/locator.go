package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/metrics"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// Scene is the imagery selected for a request: the catalog items used and
// the remote image built from them.
type Scene struct {
	Items     []*stac.Item
	Image     earthengine.Image
	Composite string
	Relaxed   bool
}

// IDs returns the ids of the selected items.
func (s *Scene) IDs() []string {
	ids := make([]string, len(s.Items))
	for i, item := range s.Items {
		ids[i] = item.Id
	}
	return ids
}

// Locator finds imagery for a location and date window.
type Locator struct {
	catalog catalog.SceneCatalog
	logger  *slog.Logger
}

// NewLocator creates a locator searching cat.
func NewLocator(cat catalog.SceneCatalog) *Locator {
	return &Locator{catalog: cat, logger: slog.Default()}
}

// WithLogger sets a custom logger for the locator.
func (l *Locator) WithLogger(logger *slog.Logger) *Locator {
	l.logger = logger
	return l
}

// Locate searches with the variant cloud-cover limit, then without it, and
// fails with NoImageryError when both searches are empty. The first-scene
// composite loads the least cloudy scene; the median composite reduces every
// match per pixel.
func (l *Locator) Locate(ctx context.Context, v *config.VariantConfig, loc Location, window translate.DateWindow) (*Scene, error) {
	maxCloud := v.MaxCloudCover
	q := &catalog.Query{
		Collection:    v.Collection,
		Region:        loc.SearchRegion(),
		Window:        window,
		MaxCloudCover: &maxCloud,
		CloudProperty: v.CloudProperty,
	}

	items, err := l.catalog.Search(ctx, q)
	if err != nil {
		return nil, &RemoteError{Stage: "scene search", Err: err}
	}

	relaxed := false
	if len(items) == 0 {
		l.logger.InfoContext(ctx, "no scenes under cloud limit, retrying without cloud filter",
			slog.String("variant", v.Name),
			slog.Float64("max_cloud_cover", v.MaxCloudCover),
			slog.String("window", window.String()),
		)
		metrics.SceneSearchRelaxed.WithLabelValues(v.Name).Inc()
		relaxed = true

		items, err = l.catalog.Search(ctx, q.WithoutCloudFilter())
		if err != nil {
			return nil, &RemoteError{Stage: "scene search", Err: err}
		}
	}

	if len(items) == 0 {
		return nil, &NoImageryError{Location: loc.String(), Window: window}
	}

	scene := &Scene{Composite: v.Composite, Relaxed: relaxed}

	switch v.Composite {
	case config.CompositeMedian:
		ids := catalog.AssetIDs(items)
		if len(ids) == 0 {
			return nil, &NoImageryError{Location: loc.String(), Window: window}
		}
		images := make([]earthengine.Image, len(ids))
		for i, id := range ids {
			images[i] = earthengine.LoadImage(id)
		}
		scene.Items = items
		scene.Image = earthengine.ImagesToCollection(images...).Median()

	case config.CompositeFirst:
		id := translate.AssetID(items[0])
		if id == "" {
			return nil, &RemoteError{Stage: "scene search", Err: fmt.Errorf("scene %s has no asset id", items[0].Id)}
		}
		scene.Items = items[:1]
		scene.Image = earthengine.LoadImage(id)

	default:
		return nil, &InputError{Field: "variant", Err: fmt.Errorf("unknown composite %q", v.Composite)}
	}

	l.logger.DebugContext(ctx, "scenes located",
		slog.String("variant", v.Name),
		slog.String("catalog", l.catalog.Name()),
		slog.Int("matches", len(items)),
		slog.Int("selected", len(scene.Items)),
		slog.Bool("relaxed", relaxed),
	)

	return scene, nil
}
