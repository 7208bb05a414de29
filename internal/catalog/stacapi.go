package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/planetlabs/go-ogc/filter"
	"github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/waterwatch/internal/metrics"
	"github.com/robert-malhotra/waterwatch/internal/translate"
	"github.com/robert-malhotra/waterwatch/pkg/geojson"
)

const (
	// DefaultSTACPageSize is the default number of items requested per page.
	DefaultSTACPageSize = 100

	// maxSTACPages bounds pagination for a single search.
	maxSTACPages = 10

	geoJSONMediaType = "application/geo+json"
)

// STACClient implements SceneCatalog against a STAC API item search endpoint.
// Items are mapped to compute asset ids through their Sentinel-2 product URI.
type STACClient struct {
	baseURL     string
	collection  string
	assetPrefix string
	pageSize    int
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewSTACClient creates a new STAC API catalog client.
func NewSTACClient(baseURL, collection, assetPrefix string, httpClient *http.Client) *STACClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &STACClient{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		collection:  collection,
		assetPrefix: assetPrefix,
		pageSize:    DefaultSTACPageSize,
		httpClient:  httpClient,
		logger:      slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *STACClient) WithLogger(logger *slog.Logger) *STACClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithPageSize sets the number of items requested per page.
func (c *STACClient) WithPageSize(n int) *STACClient {
	if n > 0 {
		c.pageSize = n
	}
	return c
}

// Name returns the catalog name.
func (c *STACClient) Name() string {
	return "stac"
}

// searchRequest is the POST /search body.
type searchRequest struct {
	Collections []string        `json:"collections"`
	Intersects  json.RawMessage `json:"intersects"`
	Datetime    string          `json:"datetime"`
	Limit       int             `json:"limit"`
	FilterLang  string          `json:"filter-lang,omitempty"`
	Filter      *filter.Filter  `json:"filter,omitempty"`
	SortBy      []sortBy        `json:"sortby,omitempty"`
}

type sortBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// featureCollection is one page of search results.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
	Links    []link    `json:"links"`
}

type feature struct {
	ID         string                `json:"id"`
	Collection string                `json:"collection"`
	Geometry   json.RawMessage       `json:"geometry"`
	BBox       []float64             `json:"bbox"`
	Properties map[string]any        `json:"properties"`
	Assets     map[string]assetEntry `json:"assets"`
}

type assetEntry struct {
	Href  string   `json:"href"`
	Title string   `json:"title,omitempty"`
	Type  string   `json:"type,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

type link struct {
	Rel    string          `json:"rel"`
	Href   string          `json:"href"`
	Method string          `json:"method,omitempty"`
	Body   json.RawMessage `json:"body,omitempty"`
	Merge  bool            `json:"merge,omitempty"`
}

// Search executes an item search, following next links.
func (c *STACClient) Search(ctx context.Context, q *Query) ([]*stac.Item, error) {
	region, err := translate.RegionJSON(q.Region)
	if err != nil {
		return nil, err
	}

	req := searchRequest{
		Collections: []string{c.collection},
		Intersects:  region,
		Datetime:    q.Window.Interval(),
		Limit:       c.pageSize,
		SortBy:      []sortBy{{Field: "properties." + translate.CloudCoverProperty, Direction: "asc"}},
	}
	if q.MaxCloudCover != nil {
		req.FilterLang = "cql2-json"
		req.Filter = translate.CloudFilterCQL2(*q.MaxCloudCover)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	method, endpoint := http.MethodPost, c.baseURL+"/search"

	var items []*stac.Item
	for page := 0; page < maxSTACPages; page++ {
		fc, err := c.fetch(ctx, method, endpoint, body)
		if err != nil {
			return nil, err
		}

		for i := range fc.Features {
			item, err := c.toItem(&fc.Features[i])
			if err != nil {
				c.logger.WarnContext(ctx, "skipping STAC item",
					slog.String("item_id", fc.Features[i].ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			items = append(items, item)
		}

		next := nextLink(fc.Links)
		if next == nil || len(fc.Features) == 0 {
			break
		}

		endpoint = next.Href
		method = http.MethodGet
		if strings.EqualFold(next.Method, http.MethodPost) {
			method = http.MethodPost
			body, err = mergeBody(body, next)
			if err != nil {
				return nil, err
			}
		}
	}

	SortByCloudCover(items)

	c.logger.DebugContext(ctx, "STAC scene search completed",
		slog.String("collection", c.collection),
		slog.String("window", q.Window.String()),
		slog.Bool("cloud_filtered", q.MaxCloudCover != nil),
		slog.Int("scenes", len(items)),
	)

	return items, nil
}

func (c *STACClient) fetch(ctx context.Context, method, endpoint string, body []byte) (*featureCollection, error) {
	c.logger.DebugContext(ctx, "executing STAC search",
		slog.String("method", method),
		slog.String("url", endpoint),
	)

	var reader io.Reader
	if method == http.MethodPost {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", geoJSONMediaType)
	req.Header.Set("User-Agent", "waterwatch/1.0")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRemote("stac", "search", 0, time.Since(start))
		c.logger.ErrorContext(ctx, "STAC API request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("STAC API request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveRemote("stac", "search", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		c.logger.ErrorContext(ctx, "STAC API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(data)),
		)
		return nil, fmt.Errorf("STAC API returned status %d: %s", resp.StatusCode, string(data))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode STAC response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode STAC response: %w", err)
	}

	return &fc, nil
}

// toItem converts a search result feature into a STAC Item carrying its
// compute asset id.
func (c *STACClient) toItem(f *feature) (*stac.Item, error) {
	uri, _ := f.Properties["s2:product_uri"].(string)
	assetID, err := translate.SentinelAssetID(c.assetPrefix, uri)
	if err != nil {
		return nil, err
	}

	item := &stac.Item{
		Version:    translate.STACVersion,
		Id:         f.ID,
		Collection: f.Collection,
		Bbox:       f.BBox,
		Properties: make(map[string]any, len(f.Properties)+1),
		Assets:     make(map[string]*stac.Asset, len(f.Assets)),
		Links:      make([]*stac.Link, 0),
	}
	for k, v := range f.Properties {
		item.Properties[k] = v
	}
	item.Properties[translate.AssetIDProperty] = assetID

	if len(f.Geometry) > 0 && string(f.Geometry) != "null" {
		if geom, err := geojson.Parse(f.Geometry); err == nil {
			item.Geometry = geom
		}
	}

	for key, a := range f.Assets {
		item.Assets[key] = &stac.Asset{
			Href:  a.Href,
			Title: a.Title,
			Type:  a.Type,
			Roles: a.Roles,
		}
	}

	return item, nil
}

func nextLink(links []link) *link {
	for i := range links {
		if links[i].Rel == "next" && links[i].Href != "" {
			return &links[i]
		}
	}
	return nil
}

// mergeBody builds the body of a POST next link. Without merge the link body
// replaces the request; with merge its fields are applied on top.
func mergeBody(prev []byte, next *link) ([]byte, error) {
	if len(next.Body) == 0 {
		return prev, nil
	}
	if !next.Merge {
		return next.Body, nil
	}

	var base, patch map[string]json.RawMessage
	if err := json.Unmarshal(prev, &base); err != nil {
		return nil, fmt.Errorf("failed to merge next link body: %w", err)
	}
	if err := json.Unmarshal(next.Body, &patch); err != nil {
		return nil, fmt.Errorf("failed to merge next link body: %w", err)
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}
