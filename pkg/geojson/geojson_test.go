package geojson

import (
	"encoding/json"
	"testing"
)

const drawnRectangle = `{"type":"Polygon","coordinates":[[[77.1,28.5],[77.1,28.7],[77.3,28.7],[77.3,28.5],[77.1,28.5]]]}`

func TestParse_BareGeometry(t *testing.T) {
	g, err := Parse([]byte(drawnRectangle))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if g.Type != "Polygon" {
		t.Errorf("Type = %s, want Polygon", g.Type)
	}

	coords, err := g.Polygon()
	if err != nil {
		t.Fatalf("Polygon() error: %v", err)
	}
	if len(coords) != 1 || len(coords[0]) != 5 {
		t.Errorf("Polygon() structure incorrect: %v", coords)
	}
}

func TestParse_Feature(t *testing.T) {
	doc := `{"type":"Feature","properties":{},"geometry":` + drawnRectangle + `}`

	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if g.Type != "Polygon" {
		t.Errorf("Type = %s, want Polygon", g.Type)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not json", "POLYGON((0 0,1 0,1 1,0 0))"},
		{"no type", `{"coordinates":[0,0]}`},
		{"no coordinates", `{"type":"Point"}`},
		{"feature without geometry", `{"type":"Feature","geometry":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input)); err == nil {
				t.Errorf("Parse(%q) should return error", tt.input)
			}
		})
	}
}

func TestPoint(t *testing.T) {
	coords := []float64{77.2, 28.6}
	coordsJSON, _ := json.Marshal(coords)
	g := &Geometry{
		Type:        "Point",
		Coordinates: coordsJSON,
	}

	result, err := g.Point()
	if err != nil {
		t.Fatalf("Point() error: %v", err)
	}

	if len(result) != 2 || result[0] != 77.2 || result[1] != 28.6 {
		t.Errorf("Point() = %v, want [77.2, 28.6]", result)
	}
}

func TestPoint_WrongType(t *testing.T) {
	g, _ := Parse([]byte(drawnRectangle))

	if _, err := g.Point(); err == nil {
		t.Error("Point() should return error for non-Point geometry")
	}
}

func TestMultiPolygon(t *testing.T) {
	coords := [][][][]float64{
		{
			{{-122.4, 37.8}, {-122.5, 37.8}, {-122.5, 37.9}, {-122.4, 37.9}, {-122.4, 37.8}},
		},
		{
			{{-123.4, 38.8}, {-123.5, 38.8}, {-123.5, 38.9}, {-123.4, 38.9}, {-123.4, 38.8}},
		},
	}
	coordsJSON, _ := json.Marshal(coords)
	g := &Geometry{
		Type:        "MultiPolygon",
		Coordinates: coordsJSON,
	}

	result, err := g.MultiPolygon()
	if err != nil {
		t.Fatalf("MultiPolygon() error: %v", err)
	}

	if len(result) != 2 {
		t.Errorf("MultiPolygon() length = %d, want 2", len(result))
	}
}

func TestComputeBBox_Polygon(t *testing.T) {
	g, _ := Parse([]byte(drawnRectangle))

	bbox, err := ComputeBBox(g)
	if err != nil {
		t.Fatalf("ComputeBBox() error: %v", err)
	}

	expected := []float64{77.1, 28.5, 77.3, 28.7}
	if !floatSlicesEqual(bbox, expected) {
		t.Errorf("ComputeBBox() = %v, want %v", bbox, expected)
	}
}

func TestComputeBBox_NilGeometry(t *testing.T) {
	if _, err := ComputeBBox(nil); err == nil {
		t.Error("ComputeBBox(nil) should return error")
	}
}

func TestComputeBBox_UnsupportedType(t *testing.T) {
	g := &Geometry{
		Type:        "LineString",
		Coordinates: json.RawMessage(`[[0,0],[1,1]]`),
	}

	if _, err := ComputeBBox(g); err == nil {
		t.Error("ComputeBBox() should return error for LineString")
	}
}

func TestJSONMarshaling(t *testing.T) {
	g, err := Parse([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	parsed, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	bbox, err := parsed.BBox()
	if err != nil {
		t.Fatalf("BBox error: %v", err)
	}
	if !floatSlicesEqual(bbox, []float64{0, 0, 1, 1}) {
		t.Errorf("round-tripped bbox = %v", bbox)
	}
}

func floatSlicesEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
