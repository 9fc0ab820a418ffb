package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/vadimbarashkov/shortlink/internal/models"
)

// ShortLinkService defines the interface for the core short link business logic.
type ShortLinkService interface {
	// CreateShortLink allocates a unique code and persists a new short link.
	CreateShortLink(ctx context.Context, longURL string, isExpiring bool, expiresAt *time.Time) (*models.ShortLink, error)

	// GetOriginalURL resolves a code to the original URL through the cache.
	// found is false for unknown or expired codes.
	GetOriginalURL(ctx context.Context, code string) (originalURL string, found bool, err error)

	// GetShortLinkStats returns the link record holding access statistics.
	// found is false for an unknown code.
	GetShortLinkStats(ctx context.Context, code string) (*models.ShortLink, bool, error)

	// TrackAccess records one access to a code synchronously.
	// It returns false for an unknown code without recording anything.
	TrackAccess(ctx context.Context, code, ipAddress, userAgent string, accessedAt time.Time) (bool, error)
}

// AccessEventPublisher publishes access events onto the asynchronous
// analytics pipeline.
type AccessEventPublisher interface {
	Publish(ctx context.Context, ev *models.ShortLinkAccessedEvent, headers map[string]string) error
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

// NewRouter initializes and returns a new HTTP router with all routes and middleware configured.
func NewRouter(logger *httplog.Logger, svc ShortLinkService, pub AccessEventPublisher) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))
	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleCreateShortLink(svc, validate))

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", handleResolveCode(svc))
				r.Get("/stats", handleGetStats(svc))
				r.Post("/track", handleTrackAccess(svc))
			})
		})
	})

	r.Get("/{code}", handleRedirect(svc, pub))

	return r
}
