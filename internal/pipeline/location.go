package pipeline

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// Location is the area a request asks about: a point, analysed within a
// circular buffer, or a polygon.
type Location struct {
	Mode    string
	Point   orb.Point
	Polygon orb.Polygon
}

// PointLocation validates a latitude/longitude pair.
func PointLocation(lat, lon float64) (Location, error) {
	p, err := translate.NewPoint(lat, lon)
	if err != nil {
		return Location{}, &InputError{Field: "coordinates", Err: err}
	}
	return Location{Mode: config.ModePoint, Point: p}, nil
}

// PolygonLocation parses a GeoJSON Polygon.
func PolygonLocation(data []byte) (Location, error) {
	poly, err := translate.ParsePolygon(data)
	if err != nil {
		return Location{}, &InputError{Field: "bounds", Err: err}
	}
	return Location{Mode: config.ModePolygon, Polygon: poly}, nil
}

// SearchRegion is the geometry scenes must intersect.
func (l Location) SearchRegion() orb.Geometry {
	if l.Mode == config.ModePoint {
		return l.Point
	}
	return l.Polygon
}

// Region is the server-side region of interest used for every reduction.
// Points are buffered by bufferMeters.
func (l Location) Region(bufferMeters float64) earthengine.Geometry {
	if l.Mode == config.ModePoint {
		return earthengine.PointGeometry(l.Point).Buffer(bufferMeters)
	}
	return earthengine.PolygonGeometry(l.Polygon)
}

// Outline is the region of interest as drawn on the map. Point buffers are
// approximated by a geodesic ring.
func (l Location) Outline(bufferMeters float64) orb.Polygon {
	if l.Mode == config.ModePoint {
		return orb.Polygon{translate.CircleRing(l.Point, bufferMeters, translate.DefaultCircleSegments)}
	}
	return l.Polygon
}

// Center is where the map is centred.
func (l Location) Center() orb.Point {
	return translate.Center(l.SearchRegion())
}

func (l Location) String() string {
	if l.Mode == config.ModePoint {
		return fmt.Sprintf("point (%.5f, %.5f)", l.Point.Lat(), l.Point.Lon())
	}
	b := l.Polygon.Bound()
	return fmt.Sprintf("polygon [%.5f, %.5f, %.5f, %.5f]", b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}
