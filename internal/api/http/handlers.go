package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/mkravets/shortener/internal/database"
	"github.com/mkravets/shortener/internal/models"
	"github.com/mkravets/shortener/internal/service"
	"github.com/mkravets/shortener/pkg/response"
)

const (
	defaultRecentCount = 10
	maxRecentCount     = 100
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// shortenRequest represents the request payload for shortening a URL.
type shortenRequest struct {
	URL            string `json:"url" validate:"required,url"`
	ExpirationDays *int   `json:"expiration_days,omitempty" validate:"omitempty,gt=0"`
}

// urlResponse represents the response payload for a shortened URL operation.
type urlResponse struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	URL         string     `json:"url"`
	AccessCount int64      `json:"access_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func toURLResponse(url *models.URL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		Code:        url.Code,
		URL:         url.OriginalURL,
		AccessCount: url.AccessCount,
		CreatedAt:   url.CreatedAt,
		ExpiresAt:   url.ExpiresAt,
	}
}

// urlStatsResponse is a urlResponse together with the recorded access events.
type urlStatsResponse struct {
	urlResponse
	Events []accessEventResponse `json:"events"`
}

type accessEventResponse struct {
	OccurredAt time.Time `json:"occurred_at"`
	OriginAddr string    `json:"origin_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Referrer   string    `json:"referrer,omitempty"`
}

func toURLStatsResponse(url *models.URL) urlStatsResponse {
	resp := urlStatsResponse{
		urlResponse: toURLResponse(url),
		Events:      make([]accessEventResponse, 0, len(url.AccessEvents)),
	}

	for _, event := range url.AccessEvents {
		resp.Events = append(resp.Events, accessEventResponse{
			OccurredAt: event.OccurredAt,
			OriginAddr: event.OriginAddr,
			UserAgent:  event.UserAgent,
			Referrer:   event.Referrer,
		})
	}

	return resp
}

// handleShortenURL handles POST requests to shorten a URL.
//
// The request must contain a valid absolute http(s) URL and may carry an
// expiration in days. The handler validates the input, calls the shortening
// service, and returns the created record.
func handleShortenURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleShortenURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req shortenRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		var ttl *time.Duration
		if req.ExpirationDays != nil {
			d := time.Duration(*req.ExpirationDays) * 24 * time.Hour
			ttl = &d
		}

		url, err := svc.Shorten(r.Context(), req.URL, ttl)
		if err != nil {
			if errors.Is(err, service.ErrInvalidURL) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.InvalidURLResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// handleResolveCode handles GET requests to resolve a code into the original URL.
//
// Absent and expired codes both yield a 404.
func handleResolveCode(svc URLService) http.HandlerFunc {
	const op = "api.http.handleResolveCode"
	const successMsg = "The code was successfully resolved."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		url, err := svc.Resolve(r.Context(), code)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLResponse(url)))
	}
}

// handleGetURLStats handles GET requests to retrieve usage statistics for a
// shortened URL, including the recorded access events.
func handleGetURLStats(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetURLStats"
	const successMsg = "The URL statistics retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		url, err := svc.ResolveWithHistory(r.Context(), code)
		if err != nil {
			if errors.Is(err, database.ErrURLNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, toURLStatsResponse(url)))
	}
}

// handleListRecentURLs handles GET requests for the most recently created URLs.
//
// The count query parameter defaults to 10 and is clamped to 100.
func handleListRecentURLs(svc URLService) http.HandlerFunc {
	const op = "api.http.handleListRecentURLs"
	const successMsg = "The recent URLs retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		count := defaultRecentCount
		if raw := r.URL.Query().Get("count"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}
			count = parsed
		}
		if count > maxRecentCount {
			count = maxRecentCount
		}

		urls, err := svc.ListRecent(r.Context(), count)
		if err != nil {
			if errors.Is(err, service.ErrInvalidArgument) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.BadRequestResponse)
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		data := make([]urlResponse, 0, len(urls))
		for i := range urls {
			data = append(data, toURLResponse(&urls[i]))
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, data))
	}
}

// handleRedirect handles short link hits: it records the access and redirects
// to the original URL resolved by that same lookup. An expired code yields
// 410 so the caller can tell it used to exist; an unknown one yields 404.
func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		url, _, err := svc.RecordAccess(r.Context(), code, service.AccessDetails{
			OriginAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			Referrer:   r.Referer(),
		})
		if err != nil {
			switch {
			case errors.Is(err, database.ErrURLNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		http.Redirect(w, r, url.OriginalURL, http.StatusMovedPermanently)
	}
}
