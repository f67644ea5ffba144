package httpx

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger writes one http_request line per request, levelled by
// status class.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			lvl := zapcore.InfoLevel
			switch {
			case status >= 500:
				lvl = zapcore.ErrorLevel
			case status >= 400:
				lvl = zapcore.WarnLevel
			}
			if ce := log.Check(lvl, "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote_ip", r.RemoteAddr),
				)
			}
		})
	}
}

const adminKeyHeader = "X-Admin-Key"

func isAdmin(r *http.Request, key string) bool {
	if key == "" {
		return true
	}
	got := r.Header.Get(adminKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
}

// AdminOnly rejects requests without the admin key. An empty key leaves
// the routes open.
func AdminOnly(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isAdmin(r, key) {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: "admin key required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
