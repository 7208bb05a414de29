package earthengine

import (
	"net/url"
	"strconv"
	"time"
)

// ListImagesParams represents the query parameters of listImages.
type ListImagesParams struct {
	// Temporal filters; StartTime is inclusive, EndTime exclusive.
	StartTime *time.Time
	EndTime   *time.Time

	// Region is a GeoJSON geometry the images must intersect.
	Region []byte

	// Filter is a property filter such as "CLOUDY_PIXEL_PERCENTAGE < 40".
	Filter string

	PageSize  int
	PageToken string
}

// ToURLValues converts ListImagesParams to url.Values.
func (p *ListImagesParams) ToURLValues() url.Values {
	values := url.Values{}

	if p.StartTime != nil {
		values.Set("startTime", formatTime(p.StartTime))
	}
	if p.EndTime != nil {
		values.Set("endTime", formatTime(p.EndTime))
	}

	if len(p.Region) > 0 {
		values.Set("region", string(p.Region))
	}

	if p.Filter != "" {
		values.Set("filter", p.Filter)
	}

	if p.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if p.PageToken != "" {
		values.Set("pageToken", p.PageToken)
	}

	return values
}

// formatTime formats a time for the REST API (RFC 3339, UTC).
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
