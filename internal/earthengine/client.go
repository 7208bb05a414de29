// Package earthengine provides a client for the Google Earth Engine REST API
// and a builder for the lazily evaluated expressions it executes.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/robert-malhotra/waterwatch/internal/metrics"
)

const (
	// DefaultBaseURL is the production REST endpoint.
	DefaultBaseURL = "https://earthengine.googleapis.com"

	// PublicProject hosts the public data catalog.
	PublicProject = "earthengine-public"

	// DefaultPageSize is the listImages page size.
	DefaultPageSize = 100

	// maxListPages bounds listImages pagination for a single search.
	maxListPages = 10

	userAgent = "waterwatch/1.0"
)

// Client handles communication with the Earth Engine REST API. A Client is
// the process-wide session: it is created once at startup and shared by all
// requests.
type Client struct {
	baseURL       string
	project       string
	publicProject string
	httpClient    *http.Client
	breaker       *gobreaker.CircuitBreaker
	logger        *slog.Logger
}

// NewClient creates a new Earth Engine client. httpClient must attach
// credentials; see Authenticate.
func NewClient(baseURL, project string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}

	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		project:       project,
		publicProject: PublicProject,
		httpClient:    httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "earthengine",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithPublicProject overrides the project that hosts public catalog assets.
func (c *Client) WithPublicProject(project string) *Client {
	c.publicProject = project
	return c
}

// Project returns the cloud project requests are billed to.
func (c *Client) Project() string {
	return c.project
}

// Compute evaluates a value and returns its JSON result.
func (c *Client) Compute(ctx context.Context, v Value) (json.RawMessage, error) {
	expr := Serialize(v.Node())
	endpoint := fmt.Sprintf("%s/v1/projects/%s/value:compute", c.baseURL, url.PathEscape(c.project))

	c.logger.DebugContext(ctx, "computing value",
		slog.String("root", v.Node().FunctionName()),
		slog.Int("nodes", len(expr.Values)),
	)

	var resp computeResponse
	if err := c.do(ctx, "compute", http.MethodPost, endpoint, computeRequest{Expression: expr}, &resp); err != nil {
		return nil, err
	}

	return resp.Result, nil
}

// ComputeInto evaluates a value and decodes its result into out.
func (c *Client) ComputeInto(ctx context.Context, v Value, out any) error {
	raw, err := c.Compute(ctx, v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode compute result: %w", err)
	}
	return nil
}

// CreateMap registers an image for tile serving.
func (c *Client) CreateMap(ctx context.Context, img Image) (*MapID, error) {
	expr := Serialize(img.Node())
	endpoint := fmt.Sprintf("%s/v1/projects/%s/maps", c.baseURL, url.PathEscape(c.project))

	var m MapID
	if err := c.do(ctx, "maps", http.MethodPost, endpoint, mapRequest{Expression: expr, FileFormat: "AUTO_JPEG_PNG"}, &m); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("earthengine maps: response has no map name")
	}

	return &m, nil
}

// TileURL returns the XYZ tile template for a map.
func (c *Client) TileURL(m *MapID) string {
	return fmt.Sprintf("%s/v1/%s/tiles/{z}/{x}/{y}", c.baseURL, m.Name)
}

// MapTiles creates a map for img and returns its tile template.
func (c *Client) MapTiles(ctx context.Context, img Image) (string, error) {
	m, err := c.CreateMap(ctx, img)
	if err != nil {
		return "", err
	}
	return c.TileURL(m), nil
}

// ListImages lists the images of a public collection matching params,
// following page tokens.
func (c *Client) ListImages(ctx context.Context, collection string, params ListImagesParams) ([]ImageMetadata, error) {
	if params.PageSize == 0 {
		params.PageSize = DefaultPageSize
	}

	base := fmt.Sprintf("%s/v1/projects/%s/assets/%s:listImages",
		c.baseURL, url.PathEscape(c.publicProject), collection)

	var images []ImageMetadata
	for page := 0; page < maxListPages; page++ {
		endpoint := base + "?" + params.ToURLValues().Encode()

		c.logger.DebugContext(ctx, "listing images",
			slog.String("collection", collection),
			slog.String("filter", params.Filter),
			slog.Int("page", page),
		)

		var resp ListImagesResponse
		if err := c.do(ctx, "listImages", http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}

		images = append(images, resp.Images...)
		if resp.NextPageToken == "" {
			break
		}
		params.PageToken = resp.NextPageToken
	}

	c.logger.DebugContext(ctx, "listImages completed",
		slog.String("collection", collection),
		slog.Int("image_count", len(images)),
	)

	return images, nil
}

// do executes one request through the circuit breaker. Only transport
// failures and 5xx responses count against the breaker; 4xx responses are
// caller errors and are returned as *APIError.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.project != "" {
			req.Header.Set("X-Goog-User-Project", c.project)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		r := &rawResponse{status: resp.StatusCode, body: data}
		if resp.StatusCode >= 500 {
			return r, r.apiError(op)
		}
		return r, nil
	})

	if err != nil {
		status := 0
		if r, ok := result.(*rawResponse); ok && r != nil {
			status = r.status
		}
		metrics.ObserveRemote("earthengine", op, status, time.Since(start))

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("earthengine %s: %w", op, ErrUnavailable)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			c.logger.ErrorContext(ctx, "earthengine request failed",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("earthengine %s request failed: %w", op, err)
		}
		return apiErr
	}

	r := result.(*rawResponse)
	metrics.ObserveRemote("earthengine", op, r.status, time.Since(start))

	if r.status < 200 || r.status >= 300 {
		apiErr := r.apiError(op)
		c.logger.WarnContext(ctx, "earthengine returned error status",
			slog.String("op", op),
			slog.Int("status_code", r.status),
			slog.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(r.body, out); err != nil {
			c.logger.ErrorContext(ctx, "failed to decode earthengine response",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}

	return nil
}

type rawResponse struct {
	status int
	body   []byte
}

func (r *rawResponse) apiError(op string) *APIError {
	apiErr := &APIError{Op: op, StatusCode: r.status}

	var envelope errorResponse
	if err := json.Unmarshal(r.body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Status = envelope.Error.Status
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(r.body))
	}

	return apiErr
}
