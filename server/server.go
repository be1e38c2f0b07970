// Package server exposes an openvdb.DB over HTTP.
//
// Every route except /health and /metrics requires an x-api-key header. The
// key resolves to the tenant whose collections the request operates on.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	gojson "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/hupe1980/openvdb"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "x-api-key"

// RequestIDHeader carries the request ID assigned by the server.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 64 << 20

// DB is the set of database operations the server needs.
type DB interface {
	CreateCollection(ctx context.Context, tenant, name string, dimension int) (openvdb.CollectionInfo, error)
	DeleteCollection(ctx context.Context, tenant, name string) (bool, error)
	ListCollections(ctx context.Context, tenant string) []openvdb.CollectionInfo
	GetCollection(ctx context.Context, tenant, name string) (openvdb.CollectionInfo, error)
	CollectionStats(ctx context.Context, tenant, name string) (openvdb.CollectionStats, error)
	Upsert(ctx context.Context, tenant, name string, vectors []openvdb.VectorInput) (int, error)
	DeleteVector(ctx context.Context, tenant, name, id string) (bool, error)
	Query(ctx context.Context, tenant, name string, vector []float32, topK int) ([]openvdb.Match, error)
	SnapshotNow(ctx context.Context) error
}

// Compile-time check to ensure openvdb.DB can be served.
var _ DB = (*openvdb.DB)(nil)

// Options configures the server.
type Options struct {
	// APIKeys maps API keys to tenants.
	APIKeys map[string]string

	// RateLimit is the sustained per-tenant request rate. Zero disables
	// rate limiting.
	RateLimit rate.Limit

	// Burst is the per-tenant burst size.
	Burst int

	// Metrics, if set, records HTTP metrics and is served at /metrics.
	Metrics *Metrics

	Logger *slog.Logger
}

// Server is an http.Handler serving the openvdb API.
type Server struct {
	db      DB
	opts    Options
	handler http.Handler

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a server for db.
func New(db DB, optFns ...func(o *Options)) *Server {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		db:       db,
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
	s.handler = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.health)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}

	mux.Handle("POST /collections", s.tenant(s.createCollection))
	mux.Handle("GET /collections", s.tenant(s.listCollections))
	mux.Handle("GET /collections/{name}", s.tenant(s.getCollection))
	mux.Handle("DELETE /collections/{name}", s.tenant(s.deleteCollection))
	mux.Handle("GET /collections/{name}/stats", s.tenant(s.collectionStats))
	mux.Handle("POST /collections/{name}/vectors/upsert", s.tenant(s.upsertVectors))
	mux.Handle("DELETE /collections/{name}/vectors/{id}", s.tenant(s.deleteVector))
	mux.Handle("POST /collections/{name}/query", s.tenant(s.queryVectors))
	mux.Handle("POST /admin/snapshot", s.tenant(s.snapshot))

	return s.observe(mux)
}

type tenantHandler func(w http.ResponseWriter, r *http.Request, tenant string)

// ---------- health ----------

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------- collections ----------

type createCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

type createCollectionResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
}

type listCollectionsResponse struct {
	Collections []openvdb.CollectionInfo `json:"collections"`
}

type deletedResponse struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request, tenant string) {
	var req createCollectionRequest
	if !s.decode(w, r, &req) {
		return
	}

	info, err := s.db.CreateCollection(r.Context(), tenant, req.Name, req.Dimension)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createCollectionResponse{Name: info.Name, Dimension: info.Dimension})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request, tenant string) {
	writeJSON(w, http.StatusOK, listCollectionsResponse{Collections: s.db.ListCollections(r.Context(), tenant)})
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request, tenant string) {
	info, err := s.db.GetCollection(r.Context(), tenant, r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request, tenant string) {
	name := r.PathValue("name")

	deleted, err := s.db.DeleteCollection(r.Context(), tenant, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !deleted {
		s.writeError(w, r, fmt.Errorf("%w: collection %q", openvdb.ErrNotFound, name))
		return
	}

	writeJSON(w, http.StatusOK, deletedResponse{Deleted: true})
}

func (s *Server) collectionStats(w http.ResponseWriter, r *http.Request, tenant string) {
	stats, err := s.db.CollectionStats(r.Context(), tenant, r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------- vectors ----------

type upsertRequest struct {
	Vectors []openvdb.VectorInput `json:"vectors"`
}

type upsertResponse struct {
	Upserted int `json:"upserted"`
}

type queryRequest struct {
	Vector []float32 `json:"vector"`
	TopK   int       `json:"top_k"`
}

type queryResponse struct {
	Matches []openvdb.Match `json:"matches"`
}

func (s *Server) upsertVectors(w http.ResponseWriter, r *http.Request, tenant string) {
	var req upsertRequest
	if !s.decode(w, r, &req) {
		return
	}

	n, err := s.db.Upsert(r.Context(), tenant, r.PathValue("name"), req.Vectors)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("upserted %d of %d: %w", n, len(req.Vectors), err))
		return
	}

	writeJSON(w, http.StatusOK, upsertResponse{Upserted: n})
}

func (s *Server) deleteVector(w http.ResponseWriter, r *http.Request, tenant string) {
	deleted, err := s.db.DeleteVector(r.Context(), tenant, r.PathValue("name"), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{Deleted: deleted})
}

func (s *Server) queryVectors(w http.ResponseWriter, r *http.Request, tenant string) {
	var req queryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TopK < 0 {
		s.writeError(w, r, fmt.Errorf("%w: top_k must not be negative", openvdb.ErrInvalidInput))
		return
	}

	matches, err := s.db.Query(r.Context(), tenant, r.PathValue("name"), req.Vector, req.TopK)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{Matches: matches})
}

// ---------- admin ----------

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request, _ string) {
	if err := s.db.SnapshotNow(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------- encoding ----------

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// decode reads a JSON request body into v. It writes a 400 response and
// returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := gojson.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty request body")
		}
		s.writeError(w, r, fmt.Errorf("%w: malformed request body: %w", openvdb.ErrInvalidInput, err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = gojson.NewEncoder(w).Encode(v)
}

// statusCode maps an error onto an HTTP status.
func statusCode(err error) int {
	switch {
	case errors.Is(err, openvdb.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, openvdb.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, openvdb.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, openvdb.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		tenant, _ := TenantFromContext(r.Context())
		s.opts.Logger.ErrorContext(r.Context(), "request failed",
			"tenant", tenant,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r.Context()),
			"error", err,
		)
	}

	writeJSON(w, code, errorResponse{Error: err.Error(), RequestID: requestID(r.Context())})
}
