// Package api exposes search, ingestion, and collection management over HTTP.
//
// Successful responses use the envelope {data, code, message}. Failures use
// RFC 7807 problem details with the request id as the instance.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dshills/hotelsearch/internal/indexer"
	"github.com/dshills/hotelsearch/pkg/types"
)

// Success messages
const (
	MsgVectorSearch = "Get Vector Search Results successfully."
	MsgHybridSearch = "Get Hybrid Search Results successfully."
	MsgIngest       = "Hotel collection initialized."
	MsgCollection   = "Collection is ready."
	MsgHealthy      = "ok"
)

const maxBodyBytes = 8 << 20

// DefaultTop is the page size used when a search request omits top
const DefaultTop = 10

// Searcher answers vector and hybrid queries
type Searcher interface {
	VectorSearch(ctx context.Context, query string, skip, top int) ([]types.SearchResult, error)
	HybridSearch(ctx context.Context, query, keywordsCSV string, skip, top int) ([]types.SearchResult, error)
}

// Admin ingests records and manages the collection
type Admin interface {
	Ingest(ctx context.Context, records []types.Record) (*types.IngestionReport, error)
	EnsureCollection(ctx context.Context) error
}

// Envelope wraps every successful response body
type Envelope struct {
	Data    any    `json:"data"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Problem is an RFC 7807 problem detail
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`

	// Report carries the work completed before an interrupted ingestion
	Report *types.IngestionReport `json:"report,omitempty"`
}

// Handler serves the HTTP API
type Handler struct {
	searcher Searcher
	admin    Admin
	logger   *slog.Logger
}

// NewHandler creates a Handler. logger may be nil.
func NewHandler(searcher Searcher, admin Admin, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		searcher: searcher,
		admin:    admin,
		logger:   logger.With("component", "api"),
	}
}

// NewRouter registers every route and applies the request-id middleware
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search/vector", h.handleVectorSearch)
	mux.HandleFunc("POST /search/hybrid", h.handleHybridSearch)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("POST /collections", h.handleEnsureCollection)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return RequestID(h.logger, mux)
}

func (h *Handler) handleVectorSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, skip, top, err := searchParams(q.Get("query"), q.Get("skip"), q.Get("top"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.searcher.VectorSearch(r.Context(), query, skip, top)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, results, MsgVectorSearch)
}

func (h *Handler) handleHybridSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query, skip, top, err := searchParams(q.Get("query"), q.Get("skip"), q.Get("top"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	results, err := h.searcher.HybridSearch(r.Context(), query, q.Get("keywords"), skip, top)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, results, MsgHybridSearch)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	records, err := decodeRecords(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	report, err := h.admin.Ingest(r.Context(), records)
	if err != nil {
		h.writeProblem(w, r, err, report)
		return
	}
	h.writeData(w, report, MsgIngest)
}

func (h *Handler) handleEnsureCollection(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.EnsureCollection(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeData(w, nil, MsgCollection)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeData(w, nil, MsgHealthy)
}

// searchParams validates the query string shared by both search routes.
// An absent top means DefaultTop; an explicit non-positive top is left for
// the searcher to reject.
func searchParams(query, skipStr, topStr string) (string, int, int, error) {
	if strings.TrimSpace(query) == "" {
		return "", 0, 0, fmt.Errorf("%w: query is required", types.ErrInvalidArgument)
	}
	skip, err := intParam("skip", skipStr, 0)
	if err != nil {
		return "", 0, 0, err
	}
	top, err := intParam("top", topStr, DefaultTop)
	if err != nil {
		return "", 0, 0, err
	}
	return query, skip, top, nil
}

func intParam(name, value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", types.ErrInvalidArgument, name)
	}
	return n, nil
}

// decodeRecords reads an optional JSON array of records. An empty body
// yields nil, which the admin treats as "ingest the built-in catalogue".
func decodeRecords(body io.Reader) ([]types.Record, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", types.ErrInvalidArgument, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode records: %v", types.ErrInvalidArgument, err)
	}
	if records == nil {
		records = make([]types.Record, 0)
	}
	for i := range records {
		records[i].Embedding = nil
	}
	return records, nil
}

func (h *Handler) writeData(w http.ResponseWriter, data any, message string) {
	writeJSON(w, "application/json", http.StatusOK, Envelope{
		Data:    data,
		Code:    http.StatusOK,
		Message: message,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeProblem(w, r, err, nil)
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, err error, report *types.IngestionReport) {
	status, title := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	writeJSON(w, "application/problem+json", status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: RequestIDFrom(r.Context()),
		Report:   report,
	})
}

// StatusFor maps an error to its HTTP status and problem title
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrInvalidArgument):
		return http.StatusBadRequest, "Invalid argument"
	case errors.Is(err, indexer.ErrIngestionInProgress):
		return http.StatusConflict, "Ingestion in progress"
	case errors.Is(err, types.ErrGenerationFailure):
		return http.StatusBadGateway, "Embedding generation failed"
	case errors.Is(err, types.ErrConnectionFailure):
		return http.StatusServiceUnavailable, "Vector store unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	case errors.Is(err, types.ErrConfigurationMissing):
		return http.StatusInternalServerError, "Configuration missing"
	case errors.Is(err, types.ErrStoreWriteFailure):
		return http.StatusInternalServerError, "Store write failed"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

func writeJSON(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
