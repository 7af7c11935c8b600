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
	"github.com/mkravets/shortener/internal/models"
	"github.com/mkravets/shortener/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// URLService defines the interface for the core URL shortening business logic.
type URLService interface {
	// Shorten creates a shortened version of the provided original URL.
	// A nil ttl means the URL never expires.
	Shorten(ctx context.Context, originalURL string, ttl *time.Duration) (*models.URL, error)

	// Resolve retrieves the URL for a given code. Absent and expired codes
	// are both reported as not found.
	Resolve(ctx context.Context, code string) (*models.URL, error)

	// ResolveWithHistory retrieves the URL along with its access events.
	ResolveWithHistory(ctx context.Context, code string) (*models.URL, error)

	// RecordAccess increments the access counter and appends an access
	// event, returning the resolved URL alongside the event.
	RecordAccess(ctx context.Context, code string, details service.AccessDetails) (*models.URL, *models.AccessEvent, error)

	// ListRecent returns up to count URLs ordered by creation time descending.
	ListRecent(ctx context.Context, count int) ([]models.URL, error)
}

// getValidate initializes a new validator instance for validating incoming request payloads.
// It customizes tag name extraction from struct fields to match JSON tags.
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
func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
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

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		validate := getValidate()

		r.Get("/ping", handlePing)

		r.Route("/shorten", func(r chi.Router) {
			r.Post("/", handleShortenURL(urlSvc, validate))

			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", handleResolveCode(urlSvc))
				r.Get("/stats", handleGetURLStats(urlSvc))
			})
		})

		r.Get("/urls/recent", handleListRecentURLs(urlSvc))
	})

	r.Get("/{code}", handleRedirect(urlSvc))

	return r
}
