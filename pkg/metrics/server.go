package metrics

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server is the admin HTTP surface: /metrics (Prometheus exposition) and
// /health (liveness). The stream ingest supervisor and correlator do not
// depend on it; it runs alongside them for operability. Routing uses the
// same chi router and CORS middleware the rest of the fleet's HTTP
// surfaces use, so this admin endpoint is reachable from the same
// dashboards without a bespoke CORS exception.
type Server struct {
	server *http.Server
	log    *logrus.Entry
}

func NewServer(port string, logger *logrus.Logger) *Server {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{Addr: ":" + port, Handler: r},
		log:    logger.WithField("component", "metrics_server"),
	}
}

// StartAsync starts the server in a background goroutine. Bind errors
// other than a graceful shutdown are logged, not returned, matching the
// fire-and-forget admin-surface lifecycle used elsewhere in the
// pipeline's process supervision.
func (s *Server) StartAsync() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("metrics server stopped unexpectedly")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
