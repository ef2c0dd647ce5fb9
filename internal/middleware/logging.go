package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type recorderKey struct{}

// statusRecorder captures the status code and the authenticated principal
type statusRecorder struct {
	http.ResponseWriter
	status    int
	principal string
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// notePrincipal tells an enclosing request logger who the caller was
func notePrincipal(ctx context.Context, id string) {
	if rec, ok := ctx.Value(recorderKey{}).(*statusRecorder); ok {
		rec.principal = id
	}
}

// Logging logs one line per request
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), recorderKey{}, rec)))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("client_ip", r.RemoteAddr),
			}
			if rec.principal != "" {
				fields = append(fields, zap.String("principal", rec.principal))
			}

			switch {
			case rec.status >= 500:
				log.Error("HTTP Request", fields...)
			case rec.status >= 400:
				log.Warn("HTTP Request", fields...)
			default:
				log.Info("HTTP Request", fields...)
			}
		})
	}
}
