// Package integration runs the full service stack against a simulated
// compute service.
package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	orbjson "github.com/paulmach/orb/geojson"

	"github.com/robert-malhotra/waterwatch/internal/earthengine"
	"github.com/robert-malhotra/waterwatch/pkg/server"
)

// computeService simulates the compute REST API: scene listing, expression
// evaluation and map registration.
type computeService struct {
	t *testing.T

	mu sync.Mutex

	// filtered answers cloud-filtered listings; relaxed answers the rest.
	filtered []earthengine.ImageMetadata
	relaxed  []earthengine.ImageMetadata

	labels  any
	areaM2  any
	vectors string

	// failCompute makes every evaluation fail with this status.
	failCompute int

	listings []url.Values
	computed []*earthengine.Expression
	maps     int
}

func (s *computeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, ":listImages"):
		q := r.URL.Query()
		s.listings = append(s.listings, q)
		images := s.relaxed
		if q.Get("filter") != "" {
			images = s.filtered
		}
		writeJSON(w, earthengine.ListImagesResponse{Images: images})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/value:compute"):
		var body struct {
			Expression *earthengine.Expression `json:"expression"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.t.Errorf("undecodable compute request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.computed = append(s.computed, body.Expression)

		if s.failCompute != 0 {
			w.WriteHeader(s.failCompute)
			writeJSON(w, map[string]any{"error": map[string]any{
				"code":    s.failCompute,
				"message": "User memory limit exceeded.",
				"status":  "RESOURCE_EXHAUSTED",
			}})
			return
		}

		switch root := body.Expression.Root().FunctionInvocationValue.FunctionName; root {
		case "Image.reduceRegion":
			if len(body.Expression.Invocations("Reducer.countDistinctNonNull")) > 0 {
				writeJSON(w, map[string]any{"result": map[string]any{"labels": s.labels}})
				return
			}
			writeJSON(w, map[string]any{"result": map[string]any{"water": s.areaM2}})
		case "Collection.union":
			fmt.Fprintf(w, `{"result": %s}`, s.vectors)
		default:
			s.t.Errorf("unexpected compute root %s", root)
			http.Error(w, "unexpected", http.StatusBadRequest)
		}

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/maps"):
		s.maps++
		writeJSON(w, earthengine.MapID{Name: fmt.Sprintf("projects/test-project/maps/map-%d", s.maps)})

	default:
		s.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func image(id string, cloud float64, start string) earthengine.ImageMetadata {
	return earthengine.ImageMetadata{
		Type:       "IMAGE",
		ID:         "COPERNICUS/S2_SR_HARMONIZED/" + id,
		StartTime:  start,
		Properties: map[string]any{"CLOUDY_PIXEL_PERCENTAGE": cloud},
	}
}

// setup starts the compute simulation and the service in front of it.
func setup(t *testing.T, compute *computeService) *httptest.Server {
	t.Helper()
	compute.t = t

	ee := httptest.NewServer(compute)
	t.Cleanup(ee.Close)

	srv, err := server.New(server.Options{
		Project:        "test-project",
		HTTPClient:     ee.Client(),
		EarthEngineURL: ee.URL,
		OutputDir:      t.TempDir(),
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	t.Cleanup(srv.Close)

	app := httptest.NewServer(srv.Router())
	t.Cleanup(app.Close)
	return app
}

func get(t *testing.T, u string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(u)
	if err != nil {
		t.Fatalf("GET %s failed: %v", u, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func postAPI(t *testing.T, app *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(app.URL+"/api/v1/water-bodies", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp, out
}

// gtThreshold returns the constant compared against by the mask.
func gtThreshold(t *testing.T, expr *earthengine.Expression) any {
	t.Helper()
	gts := expr.Invocations("Image.gt")
	if len(gts) != 1 {
		t.Fatalf("expected one threshold comparison, got %d", len(gts))
	}
	c := expr.Lookup(gts[0].Arguments["image2"])
	if c == nil || c.FunctionInvocationValue == nil {
		t.Fatalf("threshold is not a constant image: %+v", c)
	}
	v := c.FunctionInvocationValue.Arguments["value"]
	if v == nil || v.ConstantValue == nil {
		t.Fatalf("threshold value is not inline: %+v", v)
	}
	return v.ConstantValue.Value
}

// Point scenario: the cloud filter finds nothing, the relaxed search finds
// one scene, and three labelled components survive the size filter.
func TestPointScenario(t *testing.T) {
	compute := &computeService{
		relaxed: []earthengine.ImageMetadata{
			image("20240225T053211_20240225T075540_T43RGM", 72, "2024-02-25T05:32:11Z"),
		},
		labels: 3,
	}
	app := setup(t, compute)

	form := url.Values{
		"latitude":    {"28.6"},
		"longitude":   {"77.2"},
		"single_date": {"2024-02-20"},
	}
	resp, err := http.PostForm(app.URL+"/", form)
	if err != nil {
		t.Fatalf("POST / failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	page := string(body)
	for _, want := range []string{"Water bodies found: 3", "2024-02-05 to 2024-03-06", "20240225T053211_20240225T075540_T43RGM"} {
		if !strings.Contains(page, want) {
			t.Errorf("result page missing %q", want)
		}
	}
	if strings.Contains(page, "/download/") {
		t.Error("point result should not offer a download")
	}

	compute.mu.Lock()
	if len(compute.listings) != 2 {
		t.Errorf("expected filtered then relaxed listing, got %d listings", len(compute.listings))
	} else {
		if got := compute.listings[0].Get("filter"); got != "CLOUDY_PIXEL_PERCENTAGE < 40" {
			t.Errorf("first listing filter = %q", got)
		}
		if got := compute.listings[1].Get("filter"); got != "" {
			t.Errorf("relaxed listing should have no filter, got %q", got)
		}
		if got := compute.listings[0].Get("startTime"); got != "2024-02-05T00:00:00Z" {
			t.Errorf("startTime = %s", got)
		}
	}
	if len(compute.computed) != 1 {
		t.Fatalf("expected one evaluation, got %d", len(compute.computed))
	}
	if got := gtThreshold(t, compute.computed[0]); got != 0.3 {
		t.Errorf("threshold = %v, want 0.3", got)
	}
	// True color and water mask only; the index is shown as a legend.
	if compute.maps != 2 {
		t.Errorf("expected 2 tile maps, got %d", compute.maps)
	}
	compute.mu.Unlock()

	// The latest map is the one just produced.
	resp, doc := get(t, app.URL+"/map")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /map = %d", resp.StatusCode)
	}
	for _, want := range []string{"RGB", "Water Mask", "Region of Interest", "NDWI Water Confidence", "/v1/projects/test-project/maps/map-1/tiles/"} {
		if !strings.Contains(doc, want) {
			t.Errorf("map document missing %q", want)
		}
	}
	if strings.Contains(doc, "maps/map-3/") {
		t.Error("point map should carry exactly two tile layers")
	}

	resp, _ = get(t, app.URL+"/download")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /download without a polygon run = %d, want 404", resp.StatusCode)
	}
}

// Polygon scenario: two water bodies survive the area filter.
func TestPolygonScenario(t *testing.T) {
	compute := &computeService{
		filtered: []earthengine.ImageMetadata{
			image("20240215T053211_20240215T075540_T43RGM", 4.2, "2024-02-15T05:32:11Z"),
			image("20240220T053211_20240220T075540_T43RGM", 12, "2024-02-20T05:32:11Z"),
		},
		areaM2: 2180000.0,
		vectors: `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"MultiPolygon","coordinates":[
			[[[77.00,28.00],[77.01,28.00],[77.01,28.01],[77.00,28.01],[77.00,28.00]]],
			[[[77.05,28.05],[77.06,28.05],[77.06,28.06],[77.05,28.06],[77.05,28.05]]]]},"properties":{}}]}`,
	}
	app := setup(t, compute)

	bounds := `{"type":"Polygon","coordinates":[[[76.9,27.9],[77.1,27.9],[77.1,28.1],[76.9,28.1],[76.9,27.9]]]}`
	resp, out := postAPI(t, app, `{"bounds": `+bounds+`, "date": "2024-02-20"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, out)
	}
	if out["variant"] != "polygon" {
		t.Errorf("variant = %v", out["variant"])
	}
	if out["count"] != 2.0 {
		t.Errorf("count = %v, want 2", out["count"])
	}
	if out["area_km2"] != 2.18 {
		t.Errorf("area_km2 = %v, want 2.18", out["area_km2"])
	}
	if scenes, _ := out["scenes"].([]any); len(scenes) != 2 {
		t.Errorf("median composite should use both scenes, got %v", out["scenes"])
	}

	compute.mu.Lock()
	for _, expr := range compute.computed {
		if got := gtThreshold(t, expr); got != 0.0 {
			t.Errorf("threshold = %v, want 0", got)
		}
	}
	compute.mu.Unlock()

	download, _ := out["download_url"].(string)
	if download == "" {
		t.Fatal("expected a download_url")
	}
	resp, data := get(t, app.URL+download)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s = %d", download, resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "water_bodies.geojson") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	fc, err := orbjson.UnmarshalFeatureCollection([]byte(data))
	if err != nil {
		t.Fatalf("downloaded file is not a feature collection: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc.Features))
	}
	for i, f := range fc.Features {
		if f.Properties["id"] != float64(i+1) {
			t.Errorf("feature %d id = %v", i, f.Properties["id"])
		}
		if _, ok := f.Properties["area_km2"].(float64); !ok {
			t.Errorf("feature %d has no area_km2", i)
		}
	}

	mapURL, _ := out["map_url"].(string)
	resp, doc := get(t, app.URL+mapURL)
	if resp.StatusCode != http.StatusOK || !strings.Contains(doc, "Water Bodies") {
		t.Errorf("map document should carry the water bodies overlay (status %d)", resp.StatusCode)
	}
}

func TestNoImagery(t *testing.T) {
	compute := &computeService{}
	app := setup(t, compute)

	resp, out := postAPI(t, app, `{"latitude": 28.6, "longitude": 77.2, "date": "2024-02-20"}`)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if out["code"] != "NoImagery" {
		t.Errorf("code = %v", out["code"])
	}

	compute.mu.Lock()
	defer compute.mu.Unlock()
	if len(compute.listings) != 2 {
		t.Errorf("expected the relaxed search before giving up, got %d listings", len(compute.listings))
	}
	if len(compute.computed) != 0 || compute.maps != 0 {
		t.Error("nothing should be computed without imagery")
	}
}

func TestComputeFailure(t *testing.T) {
	compute := &computeService{
		filtered:    []earthengine.ImageMetadata{image("20240215T053211_20240215T075540_T43RGM", 4.2, "2024-02-15T05:32:11Z")},
		failCompute: http.StatusBadRequest,
	}
	app := setup(t, compute)

	resp, out := postAPI(t, app, `{"latitude": 28.6, "longitude": 77.2, "date": "2024-02-20"}`)

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", resp.StatusCode)
	}
	if out["code"] != "UpstreamServiceError" {
		t.Errorf("code = %v", out["code"])
	}
	if desc, _ := out["description"].(string); !strings.Contains(desc, "water body count") {
		t.Errorf("description should name the failed stage, got %q", desc)
	}
}
