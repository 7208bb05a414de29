package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Pipeline modes.
const (
	ModePoint   = "point"
	ModePolygon = "polygon"
)

// Scene composites.
const (
	CompositeFirst  = "first"
	CompositeMedian = "median"
)

// VariantConfig is one configurable water-detection pipeline. The built-in
// "point" and "polygon" variants can be overridden field by field from JSON
// files in the variants directory.
type VariantConfig struct {
	Name  string `json:"name"`
	Mode  string `json:"mode"`
	Title string `json:"title"`

	// Scene search
	Collection    string  `json:"collection"`
	CloudProperty string  `json:"cloud_property"`
	MaxCloudCover float64 `json:"max_cloud_cover"`
	Composite     string  `json:"composite"`
	WindowDays    int     `json:"window_days"`

	// Index and mask
	Index     IndexConfig `json:"index"`
	Threshold float64     `json:"threshold"`

	// Point mode shape extraction
	BufferMeters     float64 `json:"buffer_meters,omitempty"`
	MinPixels        int     `json:"min_pixels,omitempty"`
	MaxComponentSize int     `json:"max_component_size,omitempty"`
	KernelRadius     int     `json:"kernel_radius,omitempty"`

	// Polygon mode shape extraction
	MinAreaM2 float64 `json:"min_area_m2,omitempty"`
	MaxError  float64 `json:"max_error,omitempty"`

	// Remote computation budget
	Scale     float64 `json:"scale"`
	MaxPixels float64 `json:"max_pixels"`

	Display DisplayConfig `json:"display"`
}

// IndexConfig names a normalized difference of two bands.
type IndexConfig struct {
	Name  string `json:"name"`
	BandA string `json:"band_a"`
	BandB string `json:"band_b"`
}

// DisplayConfig controls the map document.
type DisplayConfig struct {
	TrueColorBands []string      `json:"true_color_bands"`
	TrueColorMin   float64       `json:"true_color_min"`
	TrueColorMax   float64       `json:"true_color_max"`
	MaskPalette    []string      `json:"mask_palette"`
	MaskOpacity    float64       `json:"mask_opacity"`
	OutlineColor   string        `json:"outline_color"`
	Zoom           int           `json:"zoom"`
	Legend         *LegendConfig `json:"legend,omitempty"`
}

// LegendConfig is a continuous color scale shown on the map.
type LegendConfig struct {
	Palette []string `json:"palette"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Caption string   `json:"caption"`
}

// YlGnBu9 is the 9-class yellow-green-blue sequential palette.
var YlGnBu9 = []string{
	"#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4",
	"#1d91c0", "#225ea8", "#253494", "#081d58",
}

func defaultDisplay() DisplayConfig {
	return DisplayConfig{
		TrueColorBands: []string{"B4", "B3", "B2"},
		TrueColorMin:   0,
		TrueColorMax:   3000,
		MaskPalette:    []string{"0000FF"},
		MaskOpacity:    0.6,
		OutlineColor:   "#FF0000",
		Zoom:           12,
	}
}

// DefaultPointVariant counts water bodies within a buffer around a point.
func DefaultPointVariant() *VariantConfig {
	display := defaultDisplay()
	display.Legend = &LegendConfig{
		Palette: append([]string(nil), YlGnBu9...),
		Min:     -1,
		Max:     1,
		Caption: "NDWI Water Confidence",
	}

	return &VariantConfig{
		Name:             ModePoint,
		Mode:             ModePoint,
		Title:            "Water bodies near a point",
		Collection:       "COPERNICUS/S2_SR_HARMONIZED",
		CloudProperty:    "CLOUDY_PIXEL_PERCENTAGE",
		MaxCloudCover:    40,
		Composite:        CompositeFirst,
		WindowDays:       15,
		Index:            IndexConfig{Name: "NDWI", BandA: "B3", BandB: "B8"},
		Threshold:        0.3,
		BufferMeters:     15000,
		MinPixels:        100,
		MaxComponentSize: 128,
		KernelRadius:     1,
		Scale:            10,
		MaxPixels:        1e9,
		Display:          display,
	}
}

// DefaultPolygonVariant outlines and measures water bodies inside a polygon.
func DefaultPolygonVariant() *VariantConfig {
	return &VariantConfig{
		Name:          ModePolygon,
		Mode:          ModePolygon,
		Title:         "Water bodies inside a region",
		Collection:    "COPERNICUS/S2_SR_HARMONIZED",
		CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
		MaxCloudCover: 30,
		Composite:     CompositeMedian,
		WindowDays:    15,
		Index:         IndexConfig{Name: "MNDWI", BandA: "B3", BandB: "B11"},
		Threshold:     0,
		MinAreaM2:     100000,
		MaxError:      1,
		Scale:         10,
		MaxPixels:     1e9,
		Display:       defaultDisplay(),
	}
}

// Clone returns a deep copy of the variant.
func (v *VariantConfig) Clone() *VariantConfig {
	c := *v
	c.Display.TrueColorBands = append([]string(nil), v.Display.TrueColorBands...)
	c.Display.MaskPalette = append([]string(nil), v.Display.MaskPalette...)
	if v.Display.Legend != nil {
		legend := *v.Display.Legend
		legend.Palette = append([]string(nil), v.Display.Legend.Palette...)
		c.Display.Legend = &legend
	}
	return &c
}

// Validate checks that a variant configuration is usable.
func (v *VariantConfig) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant name is required")
	}

	if v.Mode != ModePoint && v.Mode != ModePolygon {
		return fmt.Errorf("variant mode must be %q or %q, got %q", ModePoint, ModePolygon, v.Mode)
	}

	if v.Collection == "" {
		return fmt.Errorf("variant collection is required")
	}

	if v.MaxCloudCover <= 0 || v.MaxCloudCover > 100 {
		return fmt.Errorf("max cloud cover must be in (0, 100], got %v", v.MaxCloudCover)
	}

	if v.Composite != CompositeFirst && v.Composite != CompositeMedian {
		return fmt.Errorf("composite must be %q or %q, got %q", CompositeFirst, CompositeMedian, v.Composite)
	}

	if v.WindowDays < 1 {
		return fmt.Errorf("window days must be at least 1, got %d", v.WindowDays)
	}

	if v.Index.Name == "" || v.Index.BandA == "" || v.Index.BandB == "" {
		return fmt.Errorf("index name and both bands are required")
	}

	if v.Threshold < -1 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be in [-1, 1], got %v", v.Threshold)
	}

	if v.Scale <= 0 {
		return fmt.Errorf("scale must be positive, got %v", v.Scale)
	}

	if v.MaxPixels <= 0 {
		return fmt.Errorf("max pixels must be positive, got %v", v.MaxPixels)
	}

	switch v.Mode {
	case ModePoint:
		if v.BufferMeters <= 0 {
			return fmt.Errorf("buffer must be positive, got %v", v.BufferMeters)
		}
		if v.MinPixels < 1 {
			return fmt.Errorf("min pixels must be at least 1, got %d", v.MinPixels)
		}
		if v.MaxComponentSize < v.MinPixels {
			return fmt.Errorf("max component size (%d) must be >= min pixels (%d)", v.MaxComponentSize, v.MinPixels)
		}
		if v.KernelRadius < 1 {
			return fmt.Errorf("kernel radius must be at least 1, got %d", v.KernelRadius)
		}
	case ModePolygon:
		if v.MinAreaM2 < 0 {
			return fmt.Errorf("min area must not be negative, got %v", v.MinAreaM2)
		}
		if v.MaxError <= 0 {
			return fmt.Errorf("max error must be positive, got %v", v.MaxError)
		}
	}

	if len(v.Display.TrueColorBands) != 3 {
		return fmt.Errorf("true color display needs 3 bands, got %d", len(v.Display.TrueColorBands))
	}

	if v.Display.MaskOpacity < 0 || v.Display.MaskOpacity > 1 {
		return fmt.Errorf("mask opacity must be in [0, 1], got %v", v.Display.MaskOpacity)
	}

	return nil
}

// VariantRegistry holds pipeline variants indexed by name.
type VariantRegistry struct {
	variants map[string]*VariantConfig
}

// NewVariantRegistry creates a registry holding the built-in variants.
func NewVariantRegistry() *VariantRegistry {
	return &VariantRegistry{
		variants: map[string]*VariantConfig{
			ModePoint:   DefaultPointVariant(),
			ModePolygon: DefaultPolygonVariant(),
		},
	}
}

// LoadVariants loads variant overrides from JSON files in dir on top of the
// built-in variants. A file naming an existing variant only replaces the
// fields it sets. An empty dir yields the built-in variants.
func LoadVariants(dir string) (*VariantRegistry, error) {
	registry := NewVariantRegistry()
	if dir == "" {
		return registry, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access variants directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("variants path %q is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read variants directory %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		if !strings.HasSuffix(strings.ToLower(filename), ".json") {
			continue
		}

		filePath := filepath.Join(dir, filename)
		variant, err := registry.loadVariantFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load variant from %q: %w", filePath, err)
		}

		registry.variants[variant.Name] = variant
	}

	return registry, nil
}

// loadVariantFile decodes a variant file over the existing variant of the
// same name, if any. The name defaults to the file name without extension.
func (r *VariantRegistry) loadVariantFile(filePath string) (*VariantConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if header.Name == "" {
		header.Name = strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	}

	variant := &VariantConfig{}
	if base := r.Get(header.Name); base != nil {
		variant = base
	}
	if err := json.Unmarshal(data, variant); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	variant.Name = header.Name

	if err := variant.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant configuration: %w", err)
	}

	return variant, nil
}

// Add registers a variant in the registry.
// Returns an error if a variant with the same name already exists.
func (r *VariantRegistry) Add(variant *VariantConfig) error {
	if variant == nil {
		return fmt.Errorf("cannot add nil variant")
	}

	if _, exists := r.variants[variant.Name]; exists {
		return fmt.Errorf("variant with name %q already exists", variant.Name)
	}

	if err := variant.Validate(); err != nil {
		return fmt.Errorf("invalid variant %q: %w", variant.Name, err)
	}

	r.variants[variant.Name] = variant
	return nil
}

// Get returns a copy of the named variant, or nil if it does not exist.
func (r *VariantRegistry) Get(name string) *VariantConfig {
	v, ok := r.variants[name]
	if !ok {
		return nil
	}
	return v.Clone()
}

// Has checks if a variant with the given name exists in the registry.
func (r *VariantRegistry) Has(name string) bool {
	_, exists := r.variants[name]
	return exists
}

// Names returns all variant names, sorted.
func (r *VariantRegistry) Names() []string {
	names := make([]string, 0, len(r.variants))
	for name := range r.variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForMode returns the variant serving a mode: the variant named after the
// mode when present, otherwise the first variant with that mode by name.
func (r *VariantRegistry) ForMode(mode string) *VariantConfig {
	if v, ok := r.variants[mode]; ok && v.Mode == mode {
		return v.Clone()
	}
	for _, name := range r.Names() {
		if v := r.variants[name]; v.Mode == mode {
			return v.Clone()
		}
	}
	return nil
}

// Count returns the number of variants in the registry.
func (r *VariantRegistry) Count() int {
	return len(r.variants)
}
