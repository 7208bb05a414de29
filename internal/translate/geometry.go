package translate

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	orbjson "github.com/paulmach/orb/geojson"
)

// DefaultCircleSegments is the number of vertices used to approximate a
// buffer circle for display.
const DefaultCircleSegments = 64

// NewPoint validates a latitude/longitude pair and returns it as an orb point.
func NewPoint(lat, lon float64) (orb.Point, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return orb.Point{}, fmt.Errorf("%w: coordinates must be finite", ErrInvalidGeometry)
	}
	if lat < -90 || lat > 90 {
		return orb.Point{}, fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidGeometry, lat)
	}
	if lon < -180 || lon > 180 {
		return orb.Point{}, fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidGeometry, lon)
	}
	return orb.Point{lon, lat}, nil
}

// ParsePolygon parses a GeoJSON Polygon (bare or wrapped in a Feature) into a
// closed orb polygon. Open rings are closed; each ring needs at least three
// distinct positions with valid lon/lat values.
func ParsePolygon(data []byte) (orb.Polygon, error) {
	g, err := decodeGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	poly, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: expected Polygon, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	if len(poly) == 0 {
		return nil, fmt.Errorf("%w: polygon has no rings", ErrInvalidGeometry)
	}

	out := make(orb.Polygon, 0, len(poly))
	for i, ring := range poly {
		r, err := closedRing(ring)
		if err != nil {
			return nil, fmt.Errorf("%w: ring %d: %v", ErrInvalidGeometry, i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeGeometry decodes a bare GeoJSON geometry or the geometry of a Feature,
// which is what browser drawing tools hand back.
func decodeGeometry(data []byte) (orb.Geometry, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON: %w", err)
	}

	if probe.Type == "Feature" {
		f, err := orbjson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode GeoJSON feature: %w", err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature has no geometry")
		}
		return f.Geometry, nil
	}

	g, err := orbjson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode GeoJSON geometry: %w", err)
	}
	if g.Geometry() == nil {
		return nil, fmt.Errorf("geometry has no coordinates")
	}
	return g.Geometry(), nil
}

func closedRing(ring orb.Ring) (orb.Ring, error) {
	for _, p := range ring {
		lon, lat := p.Lon(), p.Lat()
		if math.IsNaN(lon) || math.IsNaN(lat) {
			return nil, fmt.Errorf("NaN coordinate")
		}
		if lon < -180 || lon > 180 {
			return nil, fmt.Errorf("longitude %v out of range [-180, 180]", lon)
		}
		if lat < -90 || lat > 90 {
			return nil, fmt.Errorf("latitude %v out of range [-90, 90]", lat)
		}
	}

	r := make(orb.Ring, len(ring), len(ring)+1)
	copy(r, ring)
	if len(r) > 0 && !r.Closed() {
		r = append(r, r[0])
	}

	// A closed ring repeats its first position, so 3 distinct corners need 4.
	if len(r) < 4 {
		return nil, fmt.Errorf("ring needs at least 3 distinct positions, got %d", max(len(r)-1, 0))
	}
	return r, nil
}

// RegionJSON encodes a geometry as a bare GeoJSON geometry object.
func RegionJSON(g orb.Geometry) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: geometry is nil", ErrInvalidGeometry)
	}

	data, err := orbjson.NewGeometry(g).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	return data, nil
}

// CircleRing approximates a geodesic circle of radius metres around center
// with the given number of vertices. The ring is closed.
func CircleRing(center orb.Point, radius float64, segments int) orb.Ring {
	if segments < 3 {
		segments = DefaultCircleSegments
	}

	ring := make(orb.Ring, 0, segments+1)
	for i := 0; i < segments; i++ {
		bearing := 360 * float64(i) / float64(segments)
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radius))
	}
	ring = append(ring, ring[0])

	return ring
}

// Center returns the centre of the geometry's bounding box.
func Center(g orb.Geometry) orb.Point {
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}

// Polygons flattens a Polygon or MultiPolygon into its polygons.
func Polygons(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return []orb.Polygon(v)
	case orb.Collection:
		var out []orb.Polygon
		for _, child := range v {
			out = append(out, Polygons(child)...)
		}
		return out
	default:
		return nil
	}
}

// GeodesicAreaKm2 is the area of a polygon on the sphere in square
// kilometres, holes subtracted.
func GeodesicAreaKm2(p orb.Polygon) float64 {
	return math.Abs(geo.Area(p)) / 1e6
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
