package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs every request on completion with its client info.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		info := ClientInfoFrom(r.Context())
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", info.IP),
			zap.String("user_agent", info.UserAgent),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		}
		if status >= http.StatusInternalServerError {
			zap.L().Error("request completed", fields...)
			return
		}
		zap.L().Info("request completed", fields...)
	})
}
