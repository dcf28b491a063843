package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/heimgewebe/indexd/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/heimgewebe/indexd/internal/server")

type contextKey string

const requestIDKey contextKey = "request_id"

// requestIDMiddleware assigns a fresh request id to every request that
// doesn't already carry a valid one, and stores it in the context so
// downstream handlers and the logging middleware can read it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if !isValidRequestID(id) {
			id = newRequestID()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isValidRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r > 0x7e {
			return false
		}
	}
	return true
}

func newRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware logs one structured line per request, choosing the
// log level from the response status.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", requestIDFromContext(r.Context()),
		}
		switch {
		case sw.status >= 500:
			logger.Error("request", attrs...)
		case sw.status >= 400:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	})
}

// tracingMiddleware starts one span per request, so every core operation
// reachable over HTTP shows up in traces without each handler needing to
// start its own span. It wraps the mux directly (innermost, below request
// ID and logging) so r.Pattern, which net/http's ServeMux sets on the
// request it was handed as it resolves the route, is available by the
// time the span closes even though it isn't known yet when the span opens.
func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			trace.WithAttributes(attribute.String("http.method", r.Method)))
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		traced := r.WithContext(ctx)
		next.ServeHTTP(sw, traced)

		if traced.Pattern != "" {
			span.SetAttributes(attribute.String("http.route", traced.Pattern))
		}
		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		if sw.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
	})
}

// recoveryMiddleware converts a panic in any downstream handler into a 500
// response instead of killing the serving goroutine.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic recovered", "error", rec, "path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
