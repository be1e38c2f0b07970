package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	tenantKey
)

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// TenantFromContext returns the tenant resolved for an authenticated request.
func TenantFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantKey).(string)
	return t, ok
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// observe assigns a request ID, then logs and measures every request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		// The mux sets Pattern during routing.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}

		if s.opts.Metrics != nil {
			s.opts.Metrics.recordRequest(route, rec.code, start)
		}

		s.opts.Logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", rec.code,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

// tenant authenticates the request by API key and applies the tenant's
// rate limit before calling h.
func (s *Server) tenant(h tenantHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing x-api-key header", RequestID: requestID(r.Context())})
			return
		}

		tenant, ok := s.opts.APIKeys[key]
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid API key", RequestID: requestID(r.Context())})
			return
		}

		if l := s.limiter(tenant); l != nil && !l.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded", RequestID: requestID(r.Context())})
			return
		}

		h(w, r.WithContext(context.WithValue(r.Context(), tenantKey, tenant)), tenant)
	})
}

// limiter returns the tenant's limiter, or nil when rate limiting is off.
func (s *Server) limiter(tenant string) *rate.Limiter {
	if s.opts.RateLimit <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[tenant]
	if !ok {
		burst := s.opts.Burst
		if burst <= 0 {
			burst = 1
		}
		l = rate.NewLimiter(s.opts.RateLimit, burst)
		s.limiters[tenant] = l
	}
	return l
}
