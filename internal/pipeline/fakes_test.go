package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"testing"
	"time"

	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/catalog"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/internal/translate"
)

// fakeBackend answers compute requests by the root algorithm of the
// expression and records everything it was asked.
type fakeBackend struct {
	mu sync.Mutex

	labels  *float64
	areaM2  *float64
	vectors string

	computeErr error
	tilesErr   error

	computed []*earthengine.Expression
	tiles    []*earthengine.Expression
}

func (b *fakeBackend) Compute(ctx context.Context, v earthengine.Value) (json.RawMessage, error) {
	expr := earthengine.Serialize(v.Node())

	b.mu.Lock()
	b.computed = append(b.computed, expr)
	b.mu.Unlock()

	if b.computeErr != nil {
		return nil, b.computeErr
	}

	switch name := v.Node().FunctionName(); name {
	case "Image.reduceRegion":
		if len(expr.Invocations("Reducer.countDistinctNonNull")) > 0 {
			return json.Marshal(map[string]*float64{"labels": b.labels})
		}
		return json.Marshal(map[string]*float64{"water": b.areaM2})
	case "Collection.union":
		return json.RawMessage(b.vectors), nil
	default:
		return nil, fmt.Errorf("unexpected compute root %s", name)
	}
}

func (b *fakeBackend) ComputeInto(ctx context.Context, v earthengine.Value, out any) error {
	raw, err := b.Compute(ctx, v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (b *fakeBackend) MapTiles(ctx context.Context, img earthengine.Image) (string, error) {
	expr := earthengine.Serialize(img.Node())

	b.mu.Lock()
	b.tiles = append(b.tiles, expr)
	b.mu.Unlock()

	if b.tilesErr != nil {
		return "", b.tilesErr
	}

	data, err := json.Marshal(expr)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("https://tiles.example.com/%x/{z}/{x}/{y}", h.Sum64()), nil
}

// invocations returns every invocation of function across computed
// expressions.
func (b *fakeBackend) invocations(function string) []*earthengine.FunctionInvocation {
	var out []*earthengine.FunctionInvocation
	for _, expr := range b.computed {
		out = append(out, expr.Invocations(function)...)
	}
	return out
}

// fakeCatalog returns filtered items to cloud-filtered searches and relaxed
// items otherwise.
type fakeCatalog struct {
	filtered []*stac.Item
	relaxed  []*stac.Item
	err      error
	queries  []catalog.Query
}

func (c *fakeCatalog) Search(ctx context.Context, q *catalog.Query) ([]*stac.Item, error) {
	c.queries = append(c.queries, *q)
	if c.err != nil {
		return nil, c.err
	}
	if q.MaxCloudCover != nil {
		return c.filtered, nil
	}
	return c.relaxed, nil
}

func (c *fakeCatalog) Name() string {
	return "fake"
}

func scene(id string, cloud float64, acquired string) *stac.Item {
	return &stac.Item{
		Id: id,
		Properties: map[string]any{
			"datetime":                   acquired,
			translate.CloudCoverProperty: cloud,
			translate.AssetIDProperty:    "COPERNICUS/S2_SR_HARMONIZED/" + id,
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func newTestStore(t *testing.T) *artifact.FileStore {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir(), time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(store.Stop)
	return store
}

func newTestRunner(t *testing.T, backend *fakeBackend, cat *fakeCatalog) (*Runner, *artifact.FileStore) {
	t.Helper()
	store := newTestStore(t)
	return NewRunner(backend, cat, store, config.NewVariantRegistry()), store
}

// constantArg resolves a constant argument of an invocation.
func constantArg(t *testing.T, inv *earthengine.FunctionInvocation, name string) any {
	t.Helper()
	v := inv.Arguments[name]
	if v == nil || v.ConstantValue == nil {
		t.Fatalf("%s argument %q is not an inline constant: %+v", inv.FunctionName, name, v)
	}
	return v.ConstantValue.Value
}

// thresholds returns the constants compared against by Image.gt.
func thresholds(t *testing.T, exprs []*earthengine.Expression) []any {
	t.Helper()
	var out []any
	for _, expr := range exprs {
		for _, gt := range expr.Invocations("Image.gt") {
			c := expr.Lookup(gt.Arguments["image2"])
			if c == nil || c.FunctionInvocationValue == nil || c.FunctionInvocationValue.FunctionName != "Image.constant" {
				t.Fatalf("Image.gt image2 is not a constant image: %+v", c)
			}
			out = append(out, constantArg(t, c.FunctionInvocationValue, "value"))
		}
	}
	return out
}

// mergedVectors is a unioned collection holding one MultiPolygon of two
// roughly 1 km squares.
const mergedVectors = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "0",
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[77.00, 28.00], [77.01, 28.00], [77.01, 28.01], [77.00, 28.01], [77.00, 28.00]]],
          [[[77.05, 28.05], [77.06, 28.05], [77.06, 28.06], [77.05, 28.06], [77.05, 28.05]]]
        ]
      },
      "properties": {"area": 2180000}
    }
  ]
}`

const testBounds = `{"type":"Polygon","coordinates":[[[76.9,27.9],[77.1,27.9],[77.1,28.1],[76.9,28.1],[76.9,27.9]]]}`
