package earthengine

import "github.com/paulmach/orb"

// Value is anything that can be evaluated remotely.
type Value interface {
	Node() *Node
}

// Image is a lazily evaluated raster.
type Image struct{ node *Node }

// ImageCollection is a lazily evaluated stack of rasters.
type ImageCollection struct{ node *Node }

// Geometry is a server-side geometry.
type Geometry struct{ node *Node }

// Feature is a server-side geometry with properties.
type Feature struct{ node *Node }

// FeatureCollection is a lazily evaluated set of features.
type FeatureCollection struct{ node *Node }

// Filter selects collection elements by property.
type Filter struct{ node *Node }

// Reducer aggregates pixel values.
type Reducer struct{ node *Node }

// Kernel is a neighbourhood used by morphological and labelling operations.
type Kernel struct{ node *Node }

// Dictionary is a server-side key/value result.
type Dictionary struct{ node *Node }

// Number is a server-side scalar.
type Number struct{ node *Node }

func (i Image) Node() *Node             { return i.node }
func (c ImageCollection) Node() *Node   { return c.node }
func (g Geometry) Node() *Node          { return g.node }
func (f Feature) Node() *Node           { return f.node }
func (c FeatureCollection) Node() *Node { return c.node }
func (f Filter) Node() *Node            { return f.node }
func (r Reducer) Node() *Node           { return r.node }
func (k Kernel) Node() *Node            { return k.node }
func (d Dictionary) Node() *Node        { return d.node }
func (n Number) Node() *Node            { return n.node }

// LoadImage references a stored image asset by id.
func LoadImage(id string) Image {
	return Image{Invoke("Image.load", map[string]*Node{"id": Constant(id)})}
}

// ConstantImage is an image with the same value at every pixel.
func ConstantImage(value float64) Image {
	return Image{Invoke("Image.constant", map[string]*Node{"value": Constant(value)})}
}

// PixelArea is an image whose pixels hold their own area in square metres.
func PixelArea() Image {
	return Image{Invoke("Image.pixelArea", nil)}
}

// Select keeps the named bands.
func (i Image) Select(bands ...string) Image {
	return Image{Invoke("Image.select", map[string]*Node{
		"input":         i.node,
		"bandSelectors": Constant(bands),
	})}
}

// Rename renames the bands of the image.
func (i Image) Rename(names ...string) Image {
	return Image{Invoke("Image.rename", map[string]*Node{
		"input": i.node,
		"names": Constant(names),
	})}
}

// NormalizedDifference computes (a - b) / (a + b) per pixel.
func (i Image) NormalizedDifference(a, b string) Image {
	return Image{Invoke("Image.normalizedDifference", map[string]*Node{
		"input":     i.node,
		"bandNames": Constant([]string{a, b}),
	})}
}

// Gt is 1 where the image is strictly greater than value, 0 elsewhere.
func (i Image) Gt(value float64) Image {
	return Image{Invoke("Image.gt", map[string]*Node{
		"image1": i.node,
		"image2": ConstantImage(value).node,
	})}
}

// Gte is 1 where the image is greater than or equal to value, 0 elsewhere.
func (i Image) Gte(value float64) Image {
	return Image{Invoke("Image.gte", map[string]*Node{
		"image1": i.node,
		"image2": ConstantImage(value).node,
	})}
}

// Multiply multiplies two images pixel by pixel.
func (i Image) Multiply(other Image) Image {
	return Image{Invoke("Image.multiply", map[string]*Node{
		"image1": i.node,
		"image2": other.node,
	})}
}

// SelfMask masks out every zero pixel.
func (i Image) SelfMask() Image {
	return Image{Invoke("Image.selfMask", map[string]*Node{"image": i.node})}
}

// UpdateMask masks out pixels where mask is zero.
func (i Image) UpdateMask(mask Image) Image {
	return Image{Invoke("Image.updateMask", map[string]*Node{
		"image": i.node,
		"mask":  mask.node,
	})}
}

// ConnectedComponents labels connected regions of unmasked pixels. The
// result adds a "labels" band.
func (i Image) ConnectedComponents(connectedness Kernel, maxSize int) Image {
	return Image{Invoke("Image.connectedComponents", map[string]*Node{
		"image":         i.node,
		"connectedness": connectedness.node,
		"maxSize":       Constant(maxSize),
	})}
}

// ConnectedPixelCount counts, for each pixel, the pixels in its connected
// region, up to maxSize.
func (i Image) ConnectedPixelCount(maxSize int, eightConnected bool) Image {
	return Image{Invoke("Image.connectedPixelCount", map[string]*Node{
		"input":          i.node,
		"maxSize":        Constant(maxSize),
		"eightConnected": Constant(eightConnected),
	})}
}

// ReduceRegion aggregates the image over a geometry.
func (i Image) ReduceRegion(reducer Reducer, g Geometry, scale, maxPixels float64) Dictionary {
	return Dictionary{Invoke("Image.reduceRegion", map[string]*Node{
		"image":     i.node,
		"reducer":   reducer.node,
		"geometry":  g.node,
		"scale":     Constant(scale),
		"maxPixels": Constant(maxPixels),
	})}
}

// ReduceToVectors turns homogeneous regions of the image into polygons.
func (i Image) ReduceToVectors(g Geometry, scale, maxPixels float64, eightConnected bool) FeatureCollection {
	return FeatureCollection{Invoke("Image.reduceToVectors", map[string]*Node{
		"image":          i.node,
		"geometry":       g.node,
		"scale":          Constant(scale),
		"geometryType":   Constant("polygon"),
		"eightConnected": Constant(eightConnected),
		"maxPixels":      Constant(maxPixels),
	})}
}

// VisParams controls how an image is rendered to RGB tiles.
type VisParams struct {
	Bands   []string
	Min     *float64
	Max     *float64
	Palette []string
	Opacity *float64
}

// Visualize renders the image to an 8-bit RGB image.
func (i Image) Visualize(p VisParams) Image {
	args := map[string]*Node{"image": i.node}
	if len(p.Bands) > 0 {
		args["bands"] = Constant(p.Bands)
	}
	if p.Min != nil {
		args["min"] = Constant(*p.Min)
	}
	if p.Max != nil {
		args["max"] = Constant(*p.Max)
	}
	if len(p.Palette) > 0 {
		args["palette"] = Constant(p.Palette)
	}
	if p.Opacity != nil {
		args["opacity"] = Constant(*p.Opacity)
	}
	return Image{Invoke("Image.visualize", args)}
}

// ImagesToCollection builds a collection from individual images.
func ImagesToCollection(images ...Image) ImageCollection {
	nodes := make([]*Node, len(images))
	for i, img := range images {
		nodes[i] = img.node
	}
	return ImageCollection{Invoke("ImageCollection.fromImages", map[string]*Node{
		"images": ArrayOf(nodes...),
	})}
}

// Median reduces the collection to the per-pixel, per-band median.
func (c ImageCollection) Median() Image {
	return Image{Invoke("reduce.median", map[string]*Node{"collection": c.node})}
}

// KernelPlus is a plus-shaped kernel of the given radius in pixels.
func KernelPlus(radius int) Kernel {
	return Kernel{Invoke("Kernel.plus", map[string]*Node{
		"radius": Constant(radius),
		"units":  Constant("pixels"),
	})}
}

// CountDistinctNonNull counts distinct non-null values.
func CountDistinctNonNull() Reducer {
	return Reducer{Invoke("Reducer.countDistinctNonNull", nil)}
}

// Sum adds values.
func Sum() Reducer {
	return Reducer{Invoke("Reducer.sum", nil)}
}

// PointGeometry is a server-side point.
func PointGeometry(p orb.Point) Geometry {
	return Geometry{Invoke("GeometryConstructors.Point", map[string]*Node{
		"coordinates": Constant([]float64{p.Lon(), p.Lat()}),
	})}
}

// PolygonGeometry is a server-side polygon built from orb rings.
func PolygonGeometry(p orb.Polygon) Geometry {
	rings := make([][][]float64, len(p))
	for i, ring := range p {
		rings[i] = make([][]float64, len(ring))
		for j, pt := range ring {
			rings[i][j] = []float64{pt.Lon(), pt.Lat()}
		}
	}
	return Geometry{Invoke("GeometryConstructors.Polygon", map[string]*Node{
		"coordinates": Constant(rings),
		"evenOdd":     Constant(true),
	})}
}

// Buffer grows the geometry by distance metres.
func (g Geometry) Buffer(distance float64) Geometry {
	return Geometry{Invoke("Geometry.buffer", map[string]*Node{
		"geometry": g.node,
		"distance": Constant(distance),
	})}
}

// Area is the geometry area in square metres.
func (g Geometry) Area(maxError float64) Number {
	return Number{Invoke("Geometry.area", map[string]*Node{
		"geometry": g.node,
		"maxError": Constant(maxError),
	})}
}

// Geometry returns the feature geometry.
func (f Feature) Geometry() Geometry {
	return Geometry{Invoke("Feature.geometry", map[string]*Node{"feature": f.node})}
}

// Set returns a copy of the feature with a property set.
func (f Feature) Set(key string, value Value) Feature {
	return Feature{Invoke("Element.set", map[string]*Node{
		"object": f.node,
		"key":    Constant(key),
		"value":  value.Node(),
	})}
}

// mapVar is the argument name used for collection mapping functions.
const mapVar = "_MAPPING_VAR_0_0"

// Map applies fn to every feature.
func (c FeatureCollection) Map(fn func(Feature) Feature) FeatureCollection {
	body := fn(Feature{ArgumentRef(mapVar)})
	return FeatureCollection{Invoke("Collection.map", map[string]*Node{
		"collection":    c.node,
		"baseAlgorithm": FunctionDef([]string{mapVar}, body.node),
	})}
}

// Filter keeps features matching f.
func (c FeatureCollection) Filter(f Filter) FeatureCollection {
	return FeatureCollection{Invoke("Collection.filter", map[string]*Node{
		"collection": c.node,
		"filter":     f.node,
	})}
}

// Union dissolves all features into a single feature.
func (c FeatureCollection) Union(maxError float64) FeatureCollection {
	return FeatureCollection{Invoke("Collection.union", map[string]*Node{
		"collection": c.node,
		"maxError":   Constant(maxError),
	})}
}

// GreaterThan keeps elements whose property is strictly greater than value.
func GreaterThan(property string, value float64) Filter {
	return Filter{Invoke("Filter.greaterThan", map[string]*Node{
		"leftField":  Constant(property),
		"rightValue": Constant(value),
	})}
}
