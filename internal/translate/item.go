package translate

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/pkg/geojson"
)

const (
	// STACVersion is the version stamped on translated items.
	STACVersion = "1.0.0"

	// AssetIDProperty holds the compute service image id of an item.
	AssetIDProperty = "earthengine:asset_id"
)

// ImageToItem converts compute service image metadata to a STAC Item.
func ImageToItem(img *earthengine.ImageMetadata) (*stac.Item, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if img.ID == "" {
		return nil, fmt.Errorf("image has no id")
	}

	item := &stac.Item{
		Version:    STACVersion,
		Id:         path.Base(img.ID),
		Collection: GetCollectionID(path.Dir(img.ID)),
		Properties: make(map[string]any),
		Assets:     make(map[string]*stac.Asset),
		Links:      make([]*stac.Link, 0),
	}

	// Footprints are informative; collections without coordinates are kept
	// without geometry rather than rejected.
	if len(img.Geometry) > 0 {
		if geom, err := geojson.Parse(img.Geometry); err == nil {
			item.Geometry = geom
			if bbox, err := geojson.ComputeBBox(geom); err == nil {
				item.Bbox = bbox
			}
		}
	}

	if img.StartTime != "" {
		t, err := ParseSceneTime(img.StartTime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time: %w", err)
		}
		item.Properties["datetime"] = FormatSTACTime(t)
	} else {
		item.Properties["datetime"] = nil
	}

	item.Properties[AssetIDProperty] = img.ID

	props := img.Properties
	if cc, ok := toFloat(props[SentinelCloudProperty]); ok {
		item.Properties[CloudCoverProperty] = cc
	}
	if platform, ok := props["SPACECRAFT_NAME"].(string); ok && platform != "" {
		item.Properties["platform"] = strings.ToLower(platform)
		if strings.HasPrefix(strings.ToLower(platform), "sentinel-2") {
			item.Properties["constellation"] = "sentinel-2"
			item.Properties["instruments"] = []string{"msi"}
		}
	}
	if tile, ok := props["MGRS_TILE"].(string); ok && tile != "" {
		item.Properties["s2:mgrs_tile"] = tile
	}
	if uri, ok := props["PRODUCT_ID"].(string); ok && uri != "" {
		item.Properties["s2:product_uri"] = uri
	}

	return item, nil
}

// SentinelAssetID derives a compute service image id from a Sentinel-2
// product URI such as
// "S2B_MSIL2A_20240110T053211_N0510_R105_T43RGM_20240110T075540.SAFE".
// Image ids are "{prefix}/{sensing time}_{product discriminator}_{tile}".
func SentinelAssetID(prefix, productURI string) (string, error) {
	name := strings.TrimSuffix(productURI, ".SAFE")
	parts := strings.Split(name, "_")
	if len(parts) != 7 || !strings.HasPrefix(parts[0], "S2") || !strings.HasPrefix(parts[5], "T") {
		return "", fmt.Errorf("%w: %q", ErrUnknownProduct, productURI)
	}

	index := parts[2] + "_" + parts[6] + "_" + parts[5]
	if prefix == "" {
		return index, nil
	}
	return strings.TrimSuffix(prefix, "/") + "/" + index, nil
}

// CloudCover returns the eo:cloud_cover of an item.
func CloudCover(item *stac.Item) (float64, bool) {
	if item == nil {
		return 0, false
	}
	return toFloat(item.Properties[CloudCoverProperty])
}

// AssetID returns the compute service image id of an item.
func AssetID(item *stac.Item) string {
	if item == nil {
		return ""
	}
	id, _ := item.Properties[AssetIDProperty].(string)
	return id
}

// AcquiredAt returns the item datetime, or the zero time when unset.
func AcquiredAt(item *stac.Item) time.Time {
	if item == nil {
		return time.Time{}
	}
	switch v := item.Properties["datetime"].(type) {
	case string:
		t, err := ParseSceneTime(v)
		if err == nil {
			return t
		}
	case time.Time:
		return v.UTC()
	}
	return time.Time{}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
