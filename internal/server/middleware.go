package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/Ritesh-sh/Blog-AI/internal/core"
)

const (
	userIDHeader  = "X-User-ID"
	anonymousUser = "anonymous"
	maxUserIDLen  = 128
)

// userID returns the caller identity from the X-User-ID header.
// Authentication happens upstream; an absent header maps to anonymous.
func userID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(userIDHeader))
	if id == "" {
		return anonymousUser
	}
	if len(id) > maxUserIDLen {
		id = id[:maxUserIDLen]
	}
	return id
}

// limitInflight caps concurrent pipeline runs and answers 429 when saturated.
func (s *Server) limitInflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.inflight.TryAcquire(1) {
			s.log.Warn("Rejecting request, too many pipeline runs in flight", "path", r.URL.Path)
			w.Header().Set("Retry-After", "5")
			s.respondError(w, http.StatusTooManyRequests, core.ErrorResponse{
				Kind:    core.KindInternal,
				Message: "too many blog generations in progress, retry shortly",
			}, 0)
			return
		}
		defer s.inflight.Release(1)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through the server's slog logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond).String(),
			"request_id", middleware.GetReqID(r.Context()),
			"user_id", userID(r),
		)
	})
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent MIME type sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		next.ServeHTTP(w, r)
	})
}
