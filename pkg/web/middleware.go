package web

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ChlorophyllA/skin2/internal/observability"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the per-request ID in both directions
const RequestIDHeader = "X-Request-Id"

// statusRecorder captures the response code for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// wrap applies shutdown gating, request IDs, optional rate limiting,
// access logging and metrics to h.
func (s *Server) wrap(route string, limited bool, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.shuttingDown() {
			writeError(w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID, _ = gonanoid.New()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ip := clientIP(r)
		logger := s.logger.With().
			Str("request_id", requestID).
			Str("ip", ip).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context()))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if limited {
			ok, reason := s.rateLimiter.Acquire(ip)
			if !ok {
				retryAfter := s.rateLimiter.RetryAfter(ip)
				logger.Warn().
					Str("path", r.URL.Path).
					Str("reason", reason).
					Int("retryAfter", retryAfter).
					Msg("Rate limit exceeded")
				observability.RecordRateLimited()

				rec.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeError(rec, http.StatusTooManyRequests, "Too many requests")
				observability.RecordHTTPRequest(route, strconv.Itoa(rec.status), time.Since(start))
				return
			}
			defer s.rateLimiter.Release(ip)
		}

		h(rec, r)

		duration := time.Since(start)
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status), duration)

		event := logger.Debug()
		if rec.status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("Request completed")
	})
}

// requestLogger returns the request-scoped logger set by wrap
func requestLogger(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
