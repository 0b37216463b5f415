// Package api serves the read API over the geodata catalog and the user
// management endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"geoadmin-control/internal/domain"
	"geoadmin-control/internal/middleware"
)

// CatalogService reads catalog records.
type CatalogService interface {
	ListProviders(ctx context.Context, page domain.PageRequest) ([]domain.Provider, int64, error)
	GetProvider(ctx context.Context, providerID string) (*domain.Provider, error)
	ListAttributions(ctx context.Context, page domain.PageRequest) ([]domain.Attribution, int64, error)
	GetAttribution(ctx context.Context, attributionID string) (*domain.Attribution, error)
	ListDatasets(ctx context.Context, page domain.PageRequest) ([]domain.Dataset, int64, error)
	GetDataset(ctx context.Context, datasetID string) (*domain.Dataset, error)
	ListDistributions(ctx context.Context, page domain.PageRequest) ([]domain.PackageDistribution, int64, error)
}

// UserService manages users locally and in the identity provider.
type UserService interface {
	List(ctx context.Context, page domain.PageRequest) ([]domain.User, int64, error)
	Get(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Update(ctx context.Context, username string, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, username string) error
}

// Handler implements the HTTP endpoints.
type Handler struct {
	catalog CatalogService
	users   UserService
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil, in which case /metrics
// is not served.
func NewHandler(catalog CatalogService, users UserService, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{catalog: catalog, users: users, metrics: metrics, logger: logger.With("component", "api")}
}

// RouterOptions configure the router.
type RouterOptions struct {
	CORSAllowedOrigins []string
}

// NewRouter mounts the handler on a chi router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.healthz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Get("/providers", h.listProviders)
	r.Get("/providers/{providerID}", h.getProvider)
	r.Get("/attributions", h.listAttributions)
	r.Get("/attributions/{attributionID}", h.getAttribution)
	r.Get("/datasets", h.listDatasets)
	r.Get("/datasets/{datasetID}", h.getDataset)
	r.Get("/distributions", h.listDistributions)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{username}", h.getUser)
		r.Put("/{username}", h.updateUser)
		r.Delete("/{username}", h.deleteUser)
	})
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
