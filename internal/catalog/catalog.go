// Package catalog provides scene search backends. Each backend answers the
// same spatial, temporal and cloud-cover query and returns STAC Items whose
// compute asset id is recorded under translate.AssetIDProperty.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// SceneCatalog defines the interface for scene search backends.
type SceneCatalog interface {
	// Search returns the scenes matching q ordered by ascending cloud cover.
	Search(ctx context.Context, q *Query) ([]*stac.Item, error)

	// Name returns the catalog name (e.g., "earthengine", "stac").
	Name() string
}

// Query contains the parameters of a scene search.
type Query struct {
	// Collection is the compute service image collection, e.g.
	// "COPERNICUS/S2_SR_HARMONIZED".
	Collection string

	// Region the scenes must intersect.
	Region orb.Geometry

	// Window bounds acquisition dates, both ends inclusive.
	Window translate.DateWindow

	// MaxCloudCover keeps scenes with cloud cover strictly below it. Nil
	// disables the cloud filter.
	MaxCloudCover *float64

	// CloudProperty is the image property the compute service filters on.
	CloudProperty string
}

// WithoutCloudFilter returns a copy of q with the cloud-cover filter removed.
func (q *Query) WithoutCloudFilter() *Query {
	c := *q
	c.MaxCloudCover = nil
	return &c
}

// New builds the catalog selected by cfg.
func New(cfg *config.CatalogConfig, ee *earthengine.Client, logger *slog.Logger) (SceneCatalog, error) {
	switch cfg.Type {
	case config.CatalogEarthEngine:
		if ee == nil {
			return nil, fmt.Errorf("earthengine catalog requires a compute client")
		}
		return NewEarthEngineCatalog(ee, cfg.PageSize, logger), nil

	case config.CatalogSTAC:
		prefix := cfg.AssetPrefix
		if prefix == "" {
			p, ok := translate.GetAssetPrefix(cfg.STACCollection)
			if !ok {
				return nil, fmt.Errorf("no compute asset prefix known for STAC collection %q; set CATALOG_ASSET_PREFIX", cfg.STACCollection)
			}
			prefix = p
		}
		client := NewSTACClient(cfg.STACURL, cfg.STACCollection, prefix, &http.Client{Timeout: cfg.Timeout}).
			WithPageSize(cfg.PageSize).
			WithLogger(logger)
		return client, nil

	default:
		return nil, fmt.Errorf("unknown catalog type %q", cfg.Type)
	}
}
