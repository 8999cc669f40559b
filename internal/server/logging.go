package server

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/tartampluch/birthday-sync/internal/config"
)

// responseWriter captures the status code and size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// requestLogger logs one line per request, after the response is written.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info(config.MsgRequestDone,
				slog.String(config.LogKeyMethod, r.Method),
				slog.String(config.LogKeyPath, r.URL.Path),
				slog.Int(config.LogKeyStatus, wrapped.statusCode),
				slog.Int64(config.LogKeyDuration, time.Since(start).Milliseconds()),
				slog.Int64(config.LogKeyBytes, wrapped.written),
				slog.String(config.LogKeyRequestID, chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
