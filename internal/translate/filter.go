package translate

import (
	"strconv"

	"github.com/planetlabs/go-ogc/filter"
)

const (
	// CloudCoverProperty is the STAC eo extension cloud cover property.
	CloudCoverProperty = "eo:cloud_cover"

	// SentinelCloudProperty is the Sentinel-2 image property holding the
	// scene cloud percentage on the compute service.
	SentinelCloudProperty = "CLOUDY_PIXEL_PERCENTAGE"
)

// CloudFilterString builds a compute service listImages filter keeping
// scenes with cloud cover strictly below maxCover.
func CloudFilterString(property string, maxCover float64) string {
	if property == "" {
		property = SentinelCloudProperty
	}
	return property + " < " + strconv.FormatFloat(maxCover, 'f', -1, 64)
}

// CloudFilterCQL2 builds the CQL2 equivalent of CloudFilterString for STAC
// API searches.
func CloudFilterCQL2(maxCover float64) *filter.Filter {
	return &filter.Filter{
		Expression: &filter.Comparison{
			Name:  "<",
			Left:  &filter.Property{Name: CloudCoverProperty},
			Right: &filter.Number{Value: maxCover},
		},
	}
}
