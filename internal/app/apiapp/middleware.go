package apiapp

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/honnyfrontend/joao-fotografo/internal/config"
	"github.com/honnyfrontend/joao-fotografo/internal/infra/metrics"
)

const defaultRequestTimeout = 60 * time.Second

func ApplyMiddlewares(r chiRouter, log *zap.Logger, cfg config.Config, m *metrics.Metrics) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(chimiddleware.Timeout(requestTimeout(cfg.HTTP.WriteTimeout)))
	r.Use(requestLogger(log))
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// requestTimeout keeps the handler deadline inside the server write timeout.
func requestTimeout(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return defaultRequestTimeout
	}
	if writeTimeout > 5*time.Second {
		return writeTimeout - 5*time.Second
	}
	return writeTimeout
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

type chiRouter interface {
	Use(middlewares ...func(http.Handler) http.Handler)
}
