package mapdoc

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

func testDocument(t *testing.T) *Document {
	t.Helper()

	doc := New("Water bodies", orb.Point{77.2, 28.6}, 12).
		AddTiles("RGB", "https://ee.example.com/v1/projects/p/maps/rgb/tiles/{z}/{x}/{y}", 1).
		AddTiles("Water Mask", "https://ee.example.com/v1/projects/p/maps/water/tiles/{z}/{x}/{y}", 1).
		SetLegend("NDWI Water Confidence", []string{"#ffffd9", "#081d58"}, -1, 1)

	ring := orb.Ring{{77, 28}, {78, 28}, {78, 29}, {77, 29}, {77, 28}}
	if err := doc.AddGeometry("Region of Interest", orb.Polygon{ring}, Style{Color: "#FF0000", FillColor: "#FF0000", Weight: 2, FillOpacity: 0.1}); err != nil {
		t.Fatalf("AddGeometry failed: %v", err)
	}
	return doc
}

func TestNew(t *testing.T) {
	doc := New("t", orb.Point{77.2, 28.6}, 9)

	if doc.Center != [2]float64{28.6, 77.2} {
		t.Errorf("Center = %v, want lat/lon order", doc.Center)
	}
	if doc.Zoom != 9 {
		t.Errorf("Zoom = %d, want 9", doc.Zoom)
	}
	if doc.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %s", doc.BaseURL)
	}
	if !doc.ShowLayer {
		t.Error("layer control should be enabled by default")
	}
}

func TestDocument_HTML(t *testing.T) {
	html, err := testDocument(t).HTML()
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	out := string(html)

	for _, want := range []string{
		"<title>Water bodies</title>",
		"leaflet.js",
		"L.control.layers",
		"maps/rgb/tiles",
		"Water Mask",
		"Region of Interest",
		"NDWI Water Confidence",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered map missing %q", want)
		}
	}
}

func TestDocument_HTMLEscapesTitle(t *testing.T) {
	doc := New(`</title><script>alert(1)</script>`, orb.Point{0, 0}, 3)

	html, err := doc.HTML()
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	if strings.Contains(string(html), "<script>alert(1)</script>") {
		t.Error("title was not escaped")
	}
}

func TestDocument_AddFeatures(t *testing.T) {
	fc := orbjson.NewFeatureCollection()
	f := orbjson.NewFeature(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})
	f.Properties["area_km2"] = 12.5
	fc.Append(f)

	doc := New("t", orb.Point{0, 0}, 3)
	if err := doc.AddFeatures("Water Bodies", fc, Style{Color: "#0000FF"}); err != nil {
		t.Fatalf("AddFeatures failed: %v", err)
	}

	if len(doc.Overlays) != 1 {
		t.Fatalf("expected 1 overlay, got %d", len(doc.Overlays))
	}
	var decoded map[string]any
	if err := json.Unmarshal(doc.Overlays[0].Data, &decoded); err != nil {
		t.Fatalf("overlay is not JSON: %v", err)
	}
	if decoded["type"] != "FeatureCollection" {
		t.Errorf("overlay type = %v", decoded["type"])
	}
}

func TestDocument_StructuralEquality(t *testing.T) {
	a := testDocument(t)
	b := testDocument(t)

	if !reflect.DeepEqual(a, b) {
		t.Error("documents built from the same inputs should be equal")
	}

	b.Tiles[0].URL = "https://ee.example.com/other"
	if reflect.DeepEqual(a, b) {
		t.Error("documents with different tiles should differ")
	}
}

func TestDocument_SetLegendCopiesColors(t *testing.T) {
	colors := []string{"#000", "#fff"}
	doc := New("t", orb.Point{0, 0}, 3).SetLegend("c", colors, 0, 1)
	colors[0] = "#f00"

	if doc.Legend.Colors[0] != "#000" {
		t.Error("legend should not alias the caller's palette")
	}
}
