package earthengine

import "encoding/json"

// ImageMetadata describes a stored image as returned by listImages.
type ImageMetadata struct {
	Type       string          `json:"type"` // "IMAGE"
	Name       string          `json:"name"` // "projects/earthengine-public/assets/COPERNICUS/..."
	ID         string          `json:"id"`   // "COPERNICUS/S2_SR_HARMONIZED/20240110T..."
	StartTime  string          `json:"startTime"`
	EndTime    string          `json:"endTime"`
	UpdateTime string          `json:"updateTime,omitempty"`
	Geometry   json.RawMessage `json:"geometry,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Bands      []BandMetadata  `json:"bands,omitempty"`
	SizeBytes  string          `json:"sizeBytes,omitempty"`
}

// BandMetadata describes one band of an image.
type BandMetadata struct {
	ID string `json:"id"`
}

// ListImagesResponse is one page of listImages results.
type ListImagesResponse struct {
	Images        []ImageMetadata `json:"images"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// MapID identifies a tile map created from an image expression.
type MapID struct {
	Name string `json:"name"` // "projects/{project}/maps/{id}"
}

type computeRequest struct {
	Expression *Expression `json:"expression"`
}

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

type mapRequest struct {
	Expression *Expression `json:"expression"`
	FileFormat string      `json:"fileFormat,omitempty"`
}

// errorResponse is the Google API error envelope.
type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
