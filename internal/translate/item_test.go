package translate

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/earthengine"
)

func TestImageToItem_NilImage(t *testing.T) {
	if _, err := ImageToItem(nil); err == nil {
		t.Fatal("Expected error for nil image, got nil")
	}
}

func TestImageToItem_MissingID(t *testing.T) {
	if _, err := ImageToItem(&earthengine.ImageMetadata{}); err == nil {
		t.Fatal("Expected error for missing id, got nil")
	}
}

func TestImageToItem_Sentinel2(t *testing.T) {
	img := &earthengine.ImageMetadata{
		Type:      "IMAGE",
		ID:        "COPERNICUS/S2_SR_HARMONIZED/20240110T053211_20240110T075540_T43RGM",
		StartTime: "2024-01-10T05:32:11.024Z",
		Geometry:  json.RawMessage(`{"type":"Polygon","coordinates":[[[77,28],[78,28],[78,29],[77,29],[77,28]]]}`),
		Properties: map[string]any{
			"CLOUDY_PIXEL_PERCENTAGE": 12.5,
			"SPACECRAFT_NAME":         "Sentinel-2B",
			"MGRS_TILE":               "43RGM",
		},
	}

	item, err := ImageToItem(img)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if item.Id != "20240110T053211_20240110T075540_T43RGM" {
		t.Errorf("Expected id from image index, got %s", item.Id)
	}
	if item.Collection != "sentinel-2-l2a" {
		t.Errorf("Expected collection sentinel-2-l2a, got %s", item.Collection)
	}
	if AssetID(item) != img.ID {
		t.Errorf("Expected asset id %s, got %s", img.ID, AssetID(item))
	}

	cc, ok := CloudCover(item)
	if !ok || cc != 12.5 {
		t.Errorf("Expected cloud cover 12.5, got %v (ok=%v)", cc, ok)
	}

	if item.Properties["platform"] != "sentinel-2b" {
		t.Errorf("Expected platform sentinel-2b, got %v", item.Properties["platform"])
	}
	if item.Properties["constellation"] != "sentinel-2" {
		t.Errorf("Expected constellation sentinel-2, got %v", item.Properties["constellation"])
	}

	want := time.Date(2024, 1, 10, 5, 32, 11, 0, time.UTC)
	if !AcquiredAt(item).Equal(want) {
		t.Errorf("Expected acquisition time %v, got %v", want, AcquiredAt(item))
	}

	if item.Geometry == nil {
		t.Error("Expected geometry to be set")
	}
	if len(item.Bbox) != 4 || item.Bbox[0] != 77 || item.Bbox[3] != 29 {
		t.Errorf("Unexpected bbox %v", item.Bbox)
	}
}

func TestImageToItem_NoCloudProperty(t *testing.T) {
	item, err := ImageToItem(&earthengine.ImageMetadata{ID: "USER/collection/img1"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, ok := CloudCover(item); ok {
		t.Error("Expected no cloud cover")
	}
	if item.Collection != "USER/collection" {
		t.Errorf("Expected fallback collection USER/collection, got %s", item.Collection)
	}
	if item.Properties["datetime"] != nil {
		t.Errorf("Expected null datetime, got %v", item.Properties["datetime"])
	}
}

func TestImageToItem_MarshalsAsSTAC(t *testing.T) {
	item, err := ImageToItem(&earthengine.ImageMetadata{
		ID:        "COPERNICUS/S2_SR_HARMONIZED/20240110T053211_20240110T075540_T43RGM",
		StartTime: "2024-01-10T05:32:11Z",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded["type"] != "Feature" {
		t.Errorf("Expected type Feature, got %v", decoded["type"])
	}
	if decoded["stac_version"] != STACVersion {
		t.Errorf("Expected stac_version %s, got %v", STACVersion, decoded["stac_version"])
	}
}

func TestSentinelAssetID(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		uri     string
		want    string
		wantErr bool
	}{
		{
			name:   "L2A product",
			prefix: "COPERNICUS/S2_SR_HARMONIZED",
			uri:    "S2B_MSIL2A_20240110T053211_N0510_R105_T43RGM_20240110T075540.SAFE",
			want:   "COPERNICUS/S2_SR_HARMONIZED/20240110T053211_20240110T075540_T43RGM",
		},
		{
			name:   "without SAFE suffix and trailing slash on prefix",
			prefix: "COPERNICUS/S2_HARMONIZED/",
			uri:    "S2A_MSIL1C_20230615T100031_N0509_R122_T32TQM_20230615T120405",
			want:   "COPERNICUS/S2_HARMONIZED/20230615T100031_20230615T120405_T32TQM",
		},
		{
			name: "no prefix",
			uri:  "S2A_MSIL1C_20230615T100031_N0509_R122_T32TQM_20230615T120405.SAFE",
			want: "20230615T100031_20230615T120405_T32TQM",
		},
		{
			name:    "landsat id",
			prefix:  "COPERNICUS/S2_SR_HARMONIZED",
			uri:     "LC08_L2SP_146040_20240110_20240120_02_T1",
			wantErr: true,
		},
		{
			name:    "empty",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SentinelAssetID(tt.prefix, tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownProduct) {
					t.Fatalf("Expected ErrUnknownProduct, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAcquiredAt_Unset(t *testing.T) {
	item := &stac.Item{Properties: map[string]any{"datetime": nil}}

	if !AcquiredAt(item).IsZero() {
		t.Error("Expected zero time for null datetime")
	}
	if !AcquiredAt(nil).IsZero() {
		t.Error("Expected zero time for nil item")
	}
}
