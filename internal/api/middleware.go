package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/forgehq/sidecar/internal/auth"
	"github.com/forgehq/sidecar/internal/observability"
	"github.com/forgehq/sidecar/internal/ratelimit"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// userIDFromContext returns the end-user id authenticated for the request,
// or "" if the request carries no authenticated identity (auth disabled).
func userIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDContextKey).(string); ok {
		return v
	}
	return ""
}

// authMiddleware authenticates every `/agent-api/*` request per the
// configured mode (§4.1). A disabled Service (nil) is a no-op, matching
// auth.mode="trust" behavior with no signing key configured.
func authMiddleware(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil {
				next.ServeHTTP(w, r)
				return
			}
			result := service.AuthenticateRequest(r)
			if !result.Authenticated {
				writeError(w, http.StatusUnauthorized, result.Error)
				return
			}
			ctx := context.WithValue(r.Context(), userIDContextKey, result.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// adminMiddleware validates the separate admin bearer secret for every
// `/forge-admin/*` request (§9).
func adminMiddleware(service *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil {
				writeError(w, http.StatusServiceUnavailable, "admin access not configured")
				return
			}
			bearer := auth.TokenFromRequest(r)
			if err := service.ValidateAdmin(bearer); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware enforces the per-route limiter (§4.8), keyed on the
// authenticated user id when present, otherwise the remote address.
func rateLimitMiddleware(limiter *ratelimit.Limiter, route string, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			key := userIDFromContext(r.Context())
			if key == "" {
				key = r.RemoteAddr
			}
			decision, err := limiter.Allow(ratelimit.CompositeKey(route, key))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "rate limit check failed")
				return
			}
			if metrics != nil {
				outcome := "allow"
				if !decision.Allowed {
					outcome = "deny"
				}
				metrics.RecordRateLimitDecision(route, outcome)
			}
			if !decision.Allowed {
				w.Header().Set("Retry-After", decision.RetryAfter.Round(time.Second).String())
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware records one structured log line and one HTTP metric
// observation per request, mirroring the teacher's status-capturing wrapper.
func loggingMiddleware(logger *observability.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			if logger != nil {
				logger.Info(r.Context(), "http request", "method", r.Method, "path", r.URL.Path,
					"status", wrapped.status, "duration", duration.String())
			}
			if metrics != nil {
				metrics.RecordHTTPRequest(r.Method, routeLabel(r.URL.Path), wrapped.status, duration.Seconds())
			}
		})
	}
}

// routeLabel collapses path parameters so the HTTP metric's cardinality
// stays bounded (§4.10's low-cardinality label discipline).
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/forge-admin/config/"):
		return "/forge-admin/config/{section}"
	default:
		return path
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// chain applies middleware in the order given, outermost first.
func chain(h http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
