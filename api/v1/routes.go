package v1

import (
	"net/http"
	"path/filepath"

	"github.com/JPKribs/snapcontrol/config"
	"github.com/JPKribs/snapcontrol/internal"
	"github.com/JPKribs/snapcontrol/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MARK: NewAPIServer
// Create a new instance of the API Server.
func NewAPIServer(
	cfg *config.Config,
	reg *registry.Registry,
	health *internal.HealthChecker,
	gatherer prometheus.Gatherer,
	discoveryBackend string,
	logger *internal.Logger,
) *APIServer {
	return &APIServer{
		cfg:       cfg,
		registry:  reg,
		health:    health,
		gatherer:  gatherer,
		discovery: discoveryBackend,
		limiter:   newMutationLimiter(cfg.Server.MutationLimit(), cfg.Server.MutationBurst),
		logger:    logger,
	}
}

// MARK: Routes
// Builds the HTTP handler serving the frontend, API, health and metrics endpoints.
func (a *APIServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", a.health.LivenessHandler)
	r.Get("/readyz", a.health.ReadinessHandler)
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/snap_servers.json", a.handleSnapServers)
	r.Get("/mopidy_servers.json", a.handleMopidyServers)
	r.Get("/browse.json", a.handleBrowse)
	r.Group(func(r chi.Router) {
		r.Use(a.limitMutations)
		r.Get("/client", a.handleClient)
		r.Get("/play", a.handlePlay)
		r.Get("/stop", a.handleStop)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/servers", a.handleServers)
		r.Get("/servers/{name}", a.handleServerByName)
		r.With(a.limitMutations).Post("/mutate", a.handleMutate)
		r.Get("/media", a.handleMedia)
		r.Get("/status", a.handleStatus)
		r.Get("/logs", a.handleLogs)
	})

	staticPath := filepath.Join(a.cfg.Server.WebRoot, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticPath))))
	r.Get("/", a.handleWebUI)

	return r
}
