// Package mapdoc renders self-contained interactive map documents: remote XYZ
// tile layers, GeoJSON overlays, an optional color-scale legend and a layer
// toggle control, drawn with Leaflet.
package mapdoc

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"

	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

//go:embed map.html.tmpl
var mapTemplate string

var tmpl = template.Must(template.New("map").Parse(mapTemplate))

// DefaultBaseURL is the OpenStreetMap tile template shown under all layers.
const DefaultBaseURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

// Document is an interactive map. Two documents built from the same inputs
// are structurally equal.
type Document struct {
	Title     string      `json:"title"`
	Center    [2]float64  `json:"center"` // lat, lon
	Zoom      int         `json:"zoom"`
	BaseURL   string      `json:"base_url"`
	Tiles     []TileLayer `json:"tiles"`
	Overlays  []Overlay   `json:"overlays"`
	Legend    *Legend     `json:"legend,omitempty"`
	ShowLayer bool        `json:"layer_control"`
}

// TileLayer is a remote XYZ tile source.
type TileLayer struct {
	Name    string  `json:"name"`
	URL     string  `json:"url"`
	Opacity float64 `json:"opacity"`
}

// Overlay is a vector layer drawn from GeoJSON.
type Overlay struct {
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data"`
	Style Style           `json:"style"`
}

// Style is a Leaflet path style.
type Style struct {
	Color       string  `json:"color"`
	FillColor   string  `json:"fillColor"`
	Weight      float64 `json:"weight"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Legend is a continuous color scale.
type Legend struct {
	Caption string   `json:"caption"`
	Colors  []string `json:"colors"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
}

// New creates an empty document centred on p.
func New(title string, p orb.Point, zoom int) *Document {
	return &Document{
		Title:     title,
		Center:    [2]float64{p.Lat(), p.Lon()},
		Zoom:      zoom,
		BaseURL:   DefaultBaseURL,
		Tiles:     []TileLayer{},
		Overlays:  []Overlay{},
		ShowLayer: true,
	}
}

// AddTiles appends a tile layer.
func (d *Document) AddTiles(name, url string, opacity float64) *Document {
	d.Tiles = append(d.Tiles, TileLayer{Name: name, URL: url, Opacity: opacity})
	return d
}

// AddGeometry appends a single geometry overlay.
func (d *Document) AddGeometry(name string, g orb.Geometry, style Style) error {
	data, err := orbjson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode overlay %q: %w", name, err)
	}
	d.Overlays = append(d.Overlays, Overlay{Name: name, Data: data, Style: style})
	return nil
}

// AddFeatures appends a feature collection overlay.
func (d *Document) AddFeatures(name string, fc *orbjson.FeatureCollection, style Style) error {
	data, err := fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode overlay %q: %w", name, err)
	}
	d.Overlays = append(d.Overlays, Overlay{Name: name, Data: data, Style: style})
	return nil
}

// SetLegend sets the color-scale legend.
func (d *Document) SetLegend(caption string, colors []string, min, max float64) *Document {
	d.Legend = &Legend{
		Caption: caption,
		Colors:  append([]string(nil), colors...),
		Min:     min,
		Max:     max,
	}
	return d
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	if err := tmpl.Execute(w, d); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}
	return nil
}

// HTML returns the rendered document.
func (d *Document) HTML() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
