package api

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/waterwatch/internal/artifact"
	"github.com/robert-malhotra/waterwatch/internal/config"
	"github.com/robert-malhotra/waterwatch/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// maxRequestBody bounds JSON API request bodies.
const maxRequestBody = 1 << 20

// Runner executes detection requests. *pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context, req *pipeline.Request) (*pipeline.Result, error)
}

// Handlers contains all HTTP handlers of the service.
type Handlers struct {
	cfg      *config.Config
	runner   Runner
	store    artifact.Store
	variants *config.VariantRegistry
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(
	cfg *config.Config,
	runner Runner,
	store artifact.Store,
	variants *config.VariantRegistry,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		runner:   runner,
		store:    store,
		variants: variants,
		logger:   logger,
	}
}

// formPage is the data of the input form.
type formPage struct {
	Error      string
	Latitude   string
	Longitude  string
	SingleDate string
	Date       string
}

// resultPage is the data of the result view.
type resultPage struct {
	Result      *pipeline.Result
	MapURL      string
	DownloadURL string
}

// Area returns the total water area, or an empty string when the variant
// does not measure one.
func (p resultPage) Area() string {
	if p.Result.AreaKm2 == nil {
		return ""
	}
	return strconv.FormatFloat(*p.Result.AreaKm2, 'f', 2, 64)
}

// Index renders the input form.
// GET /
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	WriteHTML(w, http.StatusOK, pages, "index.html", formPage{})
}

// Submit runs the pipeline for a form submission. A non-empty bounds field
// selects the polygon pipeline, otherwise the point fields are used. Any
// failure re-renders the form with the error message.
// POST /
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteHTML(w, http.StatusOK, pages, "index.html", formPage{Error: err.Error()})
		return
	}

	form := formPage{
		Latitude:   r.PostForm.Get("latitude"),
		Longitude:  r.PostForm.Get("longitude"),
		SingleDate: r.PostForm.Get("single_date"),
		Date:       r.PostForm.Get("date"),
	}

	req, err := formRequest(r.PostForm.Get("bounds"), form)
	if err == nil {
		var result *pipeline.Result
		result, err = h.runner.Run(r.Context(), req)
		if err == nil {
			WriteHTML(w, http.StatusOK, pages, "result.html", resultPage{
				Result:      result,
				MapURL:      "/map/" + result.Token,
				DownloadURL: downloadURL(result),
			})
			return
		}
	}

	h.logger.WarnContext(r.Context(), "form submission failed",
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("error", err.Error()),
	)
	form.Error = err.Error()
	WriteHTML(w, http.StatusOK, pages, "index.html", form)
}

func formRequest(bounds string, form formPage) (*pipeline.Request, error) {
	if strings.TrimSpace(bounds) != "" {
		loc, err := pipeline.PolygonLocation([]byte(bounds))
		if err != nil {
			return nil, err
		}
		return &pipeline.Request{Location: loc, Date: form.Date}, nil
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(form.Latitude), 64)
	if err != nil {
		return nil, &pipeline.InputError{Field: "coordinates", Err: fmt.Errorf("latitude %q is not a number", form.Latitude)}
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(form.Longitude), 64)
	if err != nil {
		return nil, &pipeline.InputError{Field: "coordinates", Err: fmt.Errorf("longitude %q is not a number", form.Longitude)}
	}

	loc, err := pipeline.PointLocation(lat, lon)
	if err != nil {
		return nil, err
	}
	return &pipeline.Request{Location: loc, Date: form.SingleDate}, nil
}

// LatestMap serves the most recently written map document.
// GET /map
func (h *Handlers) LatestMap(w http.ResponseWriter, r *http.Request) {
	_, path, err := h.store.Latest(artifact.KindMap)
	h.serveArtifact(w, r, path, err, artifact.KindMap)
}

// Map serves the map document of one request.
// GET /map/{token}
func (h *Handlers) Map(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Path(chi.URLParam(r, "token"), artifact.KindMap)
	h.serveArtifact(w, r, path, err, artifact.KindMap)
}

// LatestDownload serves the most recently written water-body file as an
// attachment.
// GET /download
func (h *Handlers) LatestDownload(w http.ResponseWriter, r *http.Request) {
	_, path, err := h.store.Latest(artifact.KindGeoJSON)
	h.serveArtifact(w, r, path, err, artifact.KindGeoJSON)
}

// Download serves the water-body file of one request as an attachment.
// GET /download/{token}
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	path, err := h.store.Path(chi.URLParam(r, "token"), artifact.KindGeoJSON)
	h.serveArtifact(w, r, path, err, artifact.KindGeoJSON)
}

func (h *Handlers) serveArtifact(w http.ResponseWriter, r *http.Request, path string, err error, kind artifact.Kind) {
	switch {
	case errors.Is(err, artifact.ErrInvalidToken):
		WriteBadRequest(w, err.Error())
		return
	case errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrExpired):
		WriteNotFound(w, fmt.Sprintf("%s not found", kind))
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "failed to resolve artifact",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "failed to resolve artifact")
		return
	}

	switch kind {
	case artifact.KindMap:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case artifact.KindGeoJSON:
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(kind)))
	}

	http.ServeFile(w, r, path)
}

// waterBodiesRequest is the JSON body of the detection API. Bounds may be a
// GeoJSON polygon object or a string holding one.
type waterBodiesRequest struct {
	Variant   string          `json:"variant"`
	Latitude  *float64        `json:"latitude"`
	Longitude *float64        `json:"longitude"`
	Bounds    json.RawMessage `json:"bounds"`
	Date      string          `json:"date"`
}

type waterBodiesResponse struct {
	*pipeline.Result
	MapURL      string `json:"map_url"`
	DownloadURL string `json:"download_url,omitempty"`
}

// WaterBodies runs the pipeline for a JSON request.
// POST /api/v1/water-bodies
func (h *Handlers) WaterBodies(w http.ResponseWriter, r *http.Request) {
	var body waterBodiesRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		WriteBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	req, err := body.toRequest()
	if err != nil {
		WritePipelineError(w, err)
		return
	}

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "detection request failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("variant", req.Variant),
			slog.String("error", err.Error()),
		)
		WritePipelineError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, waterBodiesResponse{
		Result:      result,
		MapURL:      "/map/" + result.Token,
		DownloadURL: downloadURL(result),
	})
}

func (b *waterBodiesRequest) toRequest() (*pipeline.Request, error) {
	bounds := bytes.TrimSpace(b.Bounds)
	if len(bounds) > 0 && !bytes.Equal(bounds, []byte("null")) {
		if bounds[0] == '"' {
			var s string
			if err := json.Unmarshal(bounds, &s); err != nil {
				return nil, &pipeline.InputError{Field: "bounds", Err: err}
			}
			bounds = []byte(s)
		}
		loc, err := pipeline.PolygonLocation(bounds)
		if err != nil {
			return nil, err
		}
		return &pipeline.Request{Variant: b.Variant, Location: loc, Date: b.Date}, nil
	}

	if b.Latitude == nil || b.Longitude == nil {
		return nil, &pipeline.InputError{Field: "location", Err: errors.New("either bounds or latitude and longitude are required")}
	}

	loc, err := pipeline.PointLocation(*b.Latitude, *b.Longitude)
	if err != nil {
		return nil, err
	}
	return &pipeline.Request{Variant: b.Variant, Location: loc, Date: b.Date}, nil
}

// Variants lists the configured pipeline variants.
// GET /api/v1/variants
func (h *Handlers) Variants(w http.ResponseWriter, r *http.Request) {
	names := h.variants.Names()
	variants := make([]*config.VariantConfig, 0, len(names))
	for _, name := range names {
		variants = append(variants, h.variants.Get(name))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"variants": variants,
	})
}

// Health returns the health status of the service.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
	}
	if files, ok := h.store.(*artifact.FileStore); ok {
		count, oldest := files.Stats()
		response["artifacts"] = map[string]any{
			"requests":   count,
			"oldest_age": oldest.Round(time.Second).String(),
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// Static returns the handler serving the embedded form assets under
// /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

func downloadURL(result *pipeline.Result) string {
	if !result.HasGeoJSON() {
		return ""
	}
	return "/download/" + result.Token
}
