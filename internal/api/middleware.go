package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aqlhr/askaql/internal/log"
)

// Context key types (unexported to prevent collisions).
type requestIDKey struct{}

var ctxKeyRequestID = requestIDKey{}

// requestIDFromContext retrieves the request ID from the request context.
// Returns empty string and false if not found.
func requestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyRequestID).(string)
	return id, ok
}

// loggingWriter wraps http.ResponseWriter to capture metrics.
// Implements Flusher for SSE streaming and Unwrap for ResponseController.
type loggingWriter struct {
	w            http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lw *loggingWriter) Header() http.Header {
	return lw.w.Header()
}

func (lw *loggingWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.w.WriteHeader(code)
}

func (lw *loggingWriter) Write(b []byte) (int, error) {
	if lw.statusCode == 0 {
		lw.statusCode = http.StatusOK
	}
	n, err := lw.w.Write(b)
	lw.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher for SSE streaming support.
func (lw *loggingWriter) Flush() {
	if f, ok := lw.w.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (lw *loggingWriter) Unwrap() http.ResponseWriter {
	return lw.w
}

// recoveryMiddleware recovers from panics to prevent server crashes.
func recoveryMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapper := &loggingWriter{w: w}

			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"path", r.URL.Path,
						"headers_sent", wrapper.statusCode != 0,
					)

					if wrapper.statusCode == 0 {
						writeError(w, http.StatusInternalServerError, "Internal server error", "", logger)
					} else {
						logger.Warn("cannot send error response, headers already sent",
							"path", r.URL.Path,
							"status", wrapper.statusCode,
						)
					}
				}
			}()
			next.ServeHTTP(wrapper, r)
		})
	}
}

// requestIDMiddleware assigns each request a UUID, echoes it in the
// X-Request-ID response header, and stores it in the request context.
// A valid incoming X-Request-ID is reused so traces can span services.
func requestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.New().String()
			}

			w.Header().Set("X-Request-ID", id)
			ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loggingMiddleware logs request details including latency, status, and response size.
// Reuses an existing *loggingWriter from outer middleware (e.g., recoveryMiddleware)
// to avoid double-wrapping the ResponseWriter.
func loggingMiddleware(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper, ok := w.(*loggingWriter)
			if !ok {
				wrapper = &loggingWriter{w: w}
			}

			next.ServeHTTP(wrapper, r)

			status := wrapper.statusCode
			if status == 0 {
				status = http.StatusOK
			}

			requestID, _ := requestIDFromContext(r.Context())
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", wrapper.bytesWritten,
				"duration", time.Since(start),
				"ip", r.RemoteAddr,
				"request_id", requestID,
			)
		})
	}
}

// corsMiddleware handles CORS preflight and response headers.
// The API is called from browser clients across origins, so the policy
// is wildcard with the auth headers those clients send.
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
