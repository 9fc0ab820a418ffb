package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/models"
	"github.com/vadimbarashkov/shortlink/internal/service"
	"github.com/vadimbarashkov/shortlink/pkg/response"
)

// handlePing handles health check requests to ensure the server is running.
func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

// shortenRequest represents the request payload for creating a short link.
type shortenRequest struct {
	URL        string     `json:"url" validate:"required,url,max=2048"`
	IsExpiring bool       `json:"is_expiring"`
	ExpiresAt  *time.Time `json:"expires_at" validate:"required_if=IsExpiring true,omitempty"`
}

// shortenResponse represents the response payload for a created short link.
type shortenResponse struct {
	ShortURL  string     `json:"short_url"`
	Code      string     `json:"code"`
	LongURL   string     `json:"long_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func toShortenResponse(link *models.ShortLink) shortenResponse {
	return shortenResponse{
		ShortURL:  link.ShortURL,
		Code:      link.Code,
		LongURL:   link.LongURL,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}
}

// resolveResponse represents the response payload for a resolved code.
type resolveResponse struct {
	OriginalURL string `json:"original_url"`
}

// handleCreateShortLink handles POST requests to shorten a URL.
//
// The request must contain a valid URL and, for expiring links, an expiry
// timestamp. The handler validates the input, allocates a unique code and
// returns the shortened URL.
func handleCreateShortLink(svc ShortLinkService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateShortLink"
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

		link, err := svc.CreateShortLink(r.Context(), req.URL, req.IsExpiring, req.ExpiresAt)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			status := http.StatusInternalServerError
			if errors.Is(err, service.ErrMaxAttemptsExceeded) {
				status = http.StatusServiceUnavailable
			}

			render.Status(r, status)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, toShortenResponse(link)))
	}
}

// handleResolveCode handles GET requests to resolve a code into the original URL
// without redirecting.
func handleResolveCode(svc ShortLinkService) http.HandlerFunc {
	const op = "api.http.handleResolveCode"
	const successMsg = "The short code was successfully resolved."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		originalURL, found, err := svc.GetOriginalURL(r.Context(), code)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !found {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, resolveResponse{OriginalURL: originalURL}))
	}
}

// statsResponse represents the response payload for a link's access statistics.
type statsResponse struct {
	Code         string     `json:"code"`
	LongURL      string     `json:"long_url"`
	AttemptCount int64      `json:"attempt_count"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// handleGetStats handles GET requests for a link's access statistics.
func handleGetStats(svc ShortLinkService) http.HandlerFunc {
	const op = "api.http.handleGetStats"
	const successMsg = "The short link stats were successfully retrieved."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		link, found, err := svc.GetShortLinkStats(r.Context(), code)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !found {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, statsResponse{
			Code:         link.Code,
			LongURL:      link.LongURL,
			AttemptCount: link.AttemptCount,
			CreatedAt:    link.CreatedAt,
			ExpiresAt:    link.ExpiresAt,
		}))
	}
}

// handleTrackAccess handles POST requests to record an access synchronously,
// bypassing the event pipeline.
func handleTrackAccess(svc ShortLinkService) http.HandlerFunc {
	const op = "api.http.handleTrackAccess"
	const successMsg = "The access was successfully recorded."

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		tracked, err := svc.TrackAccess(r.Context(), code, r.RemoteAddr, r.UserAgent(), time.Now().UTC())
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !tracked {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg))
	}
}

// handleRedirect handles GET requests on the hot path: it resolves the code
// and redirects to the original URL. On a successful resolution an access
// event is published for asynchronous analytics; a publish failure is logged
// but never fails the redirect, whose response was already decided.
func handleRedirect(svc ShortLinkService, pub AccessEventPublisher) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		originalURL, found, err := svc.GetOriginalURL(r.Context(), code)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		if !found {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.ResourceNotFoundResponse)
			return
		}

		ev := &models.ShortLinkAccessedEvent{
			Code:       code,
			IPAddress:  r.RemoteAddr,
			UserAgent:  r.UserAgent(),
			AccessedAt: time.Now().UTC(),
		}
		if err := pub.Publish(r.Context(), ev, map[string]string{
			"request_id": middleware.GetReqID(r.Context()),
		}); err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
		}

		http.Redirect(w, r, originalURL, http.StatusFound)
	}
}
