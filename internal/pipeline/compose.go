package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/mapdoc"
)

// Map layer names.
const (
	LayerTrueColor   = "RGB"
	LayerWaterMask   = "Water Mask"
	LayerRegion      = "Region of Interest"
	LayerWaterBodies = "Water Bodies"
)

// Composer assembles the map document of a run.
type Composer struct {
	backend Backend
	logger  *slog.Logger
}

// NewComposer creates a composer requesting tiles from backend.
func NewComposer(backend Backend) *Composer {
	return &Composer{backend: backend, logger: slog.Default()}
}

// WithLogger sets a custom logger for the composer.
func (c *Composer) WithLogger(logger *slog.Logger) *Composer {
	c.logger = logger
	return c
}

// Compose builds the map: true color and water mask tile layers, the index
// legend when the variant has one, the region outline and, in polygon mode,
// the water-body polygons.
func (c *Composer) Compose(ctx context.Context, v *config.VariantConfig, loc Location, scene *Scene, mask earthengine.Image, bodies *WaterBodies) (*mapdoc.Document, error) {
	d := v.Display
	doc := mapdoc.New(v.Title, loc.Center(), d.Zoom)

	minVal, maxVal := d.TrueColorMin, d.TrueColorMax
	rgb, err := c.tiles(ctx, LayerTrueColor, scene.Image.Visualize(earthengine.VisParams{
		Bands: d.TrueColorBands,
		Min:   &minVal,
		Max:   &maxVal,
	}))
	if err != nil {
		return nil, err
	}
	doc.AddTiles(LayerTrueColor, rgb, 1)

	opacity := d.MaskOpacity
	water, err := c.tiles(ctx, LayerWaterMask, mask.Visualize(earthengine.VisParams{
		Palette: eePalette(d.MaskPalette),
		Opacity: &opacity,
	}))
	if err != nil {
		return nil, err
	}
	doc.AddTiles(LayerWaterMask, water, 1)

	// The legend stands alone; the index itself is not a tile layer.
	if legend := d.Legend; legend != nil {
		doc.SetLegend(legend.Caption, legend.Palette, legend.Min, legend.Max)
	}

	outline := mapdoc.Style{Color: d.OutlineColor, FillColor: d.OutlineColor, Weight: 2, FillOpacity: 0.1}
	if err := doc.AddGeometry(LayerRegion, loc.Outline(v.BufferMeters), outline); err != nil {
		return nil, &FileWriteError{Artifact: "map", Err: err}
	}

	if bodies != nil && bodies.Features != nil {
		style := mapdoc.Style{Color: "#00FFFF", FillColor: "#0000FF", Weight: 1, FillOpacity: 0.3}
		if err := doc.AddFeatures(LayerWaterBodies, bodies.Features, style); err != nil {
			return nil, &FileWriteError{Artifact: "map", Err: err}
		}
	}

	return doc, nil
}

func (c *Composer) tiles(ctx context.Context, layer string, img earthengine.Image) (string, error) {
	url, err := c.backend.MapTiles(ctx, img)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to create map tiles",
			slog.String("layer", layer),
			slog.String("error", err.Error()),
		)
		return "", &RemoteError{Stage: "map tiles (" + layer + ")", Err: err}
	}
	return url, nil
}

// eePalette strips CSS "#" prefixes from a palette.
func eePalette(colors []string) []string {
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = strings.TrimPrefix(c, "#")
	}
	return out
}
