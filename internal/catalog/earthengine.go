package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// EarthEngineCatalog implements SceneCatalog with the compute service's own
// image listing.
type EarthEngineCatalog struct {
	client   *earthengine.Client
	pageSize int
	logger   *slog.Logger
}

// NewEarthEngineCatalog creates a new compute service catalog.
func NewEarthEngineCatalog(client *earthengine.Client, pageSize int, logger *slog.Logger) *EarthEngineCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &EarthEngineCatalog{
		client:   client,
		pageSize: pageSize,
		logger:   logger,
	}
}

// Name returns the catalog name.
func (c *EarthEngineCatalog) Name() string {
	return "earthengine"
}

// Search lists the images of q.Collection intersecting the region.
func (c *EarthEngineCatalog) Search(ctx context.Context, q *Query) ([]*stac.Item, error) {
	region, err := translate.RegionJSON(q.Region)
	if err != nil {
		return nil, err
	}

	start := q.Window.Start
	end := q.Window.ExclusiveEnd()
	params := earthengine.ListImagesParams{
		StartTime: &start,
		EndTime:   &end,
		Region:    region,
		PageSize:  c.pageSize,
	}
	if q.MaxCloudCover != nil {
		params.Filter = translate.CloudFilterString(q.CloudProperty, *q.MaxCloudCover)
	}

	images, err := c.client.ListImages(ctx, q.Collection, params)
	if err != nil {
		return nil, fmt.Errorf("earthengine scene search failed: %w", err)
	}

	items := make([]*stac.Item, 0, len(images))
	for i := range images {
		item, err := translate.ImageToItem(&images[i])
		if err != nil {
			c.logger.WarnContext(ctx, "failed to translate image metadata",
				slog.String("image_id", images[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		// Collections that do not carry the Sentinel cloud property expose it
		// under the configured name instead.
		if _, ok := translate.CloudCover(item); !ok && q.CloudProperty != "" {
			if cc, ok := images[i].Properties[q.CloudProperty].(float64); ok {
				item.Properties[translate.CloudCoverProperty] = cc
			}
		}

		items = append(items, item)
	}

	SortByCloudCover(items)

	c.logger.DebugContext(ctx, "earthengine scene search completed",
		slog.String("collection", q.Collection),
		slog.String("window", q.Window.String()),
		slog.Bool("cloud_filtered", q.MaxCloudCover != nil),
		slog.Int("scenes", len(items)),
	)

	return items, nil
}
