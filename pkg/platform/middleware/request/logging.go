package request

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"screener/pkg/requestcontext"
)

// AccessLog logs one line per request after it completes. It must run after
// RequestID so the id is in the context.
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ctx := r.Context()
			logger.Info("http request",
				zap.String("request_id", requestcontext.RequestID(ctx)),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("client_ip", requestcontext.ClientIP(ctx)),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}
