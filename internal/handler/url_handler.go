package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/darkodi/linkify/internal/allocator"
	apperrors "github.com/darkodi/linkify/internal/errors"
	"github.com/darkodi/linkify/internal/logger"
	"github.com/darkodi/linkify/internal/middleware"
	"github.com/darkodi/linkify/internal/model"
	"github.com/darkodi/linkify/internal/service"
)

const maxBodyBytes = 10 << 20

// URLHandler handles HTTP requests for URL operations
type URLHandler struct {
	service *service.URLService
	log     *logger.Logger
}

// Limits holds the optional per-route-group rate limiters
type Limits struct {
	Create   middleware.Middleware // /api/urls
	Redirect middleware.Middleware // /api/redirect and /api/stats
}

// successResponse is the envelope for every successful JSON reply
type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type healthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewURLHandler creates a new handler instance
func NewURLHandler(svc *service.URLService, log *logger.Logger) *URLHandler {
	return &URLHandler{
		service: svc,
		log:     log,
	}
}

// ============ HANDLERS ============

// HandleShorten creates a new short URL
// POST /api/urls
func (h *URLHandler) HandleShorten(w http.ResponseWriter, r *http.Request) {
	// Parse JSON body
	var req model.CreateURLRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.InvalidJSON(err.Error()).WriteJSON(w)
		return
	}

	resp, err := h.service.CreateShortURL(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, req.Custom())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList returns a page of short URLs, newest first
// GET /api/urls?page=&limit=
func (h *URLHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page")
	limit := queryInt(r, "limit")

	resp, err := h.service.ListURLs(r.Context(), page, limit)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleRedirect redirects to the original URL
// GET /api/redirect/{shortCode}
func (h *URLHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	shortCode := mux.Vars(r)["shortCode"]

	originalURL, err := h.service.Resolve(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, r, err, shortCode)
		return
	}

	// Redirect!
	http.Redirect(w, r, originalURL, http.StatusMovedPermanently)
}

// HandleStats returns statistics for a short URL
// GET /api/stats/{shortCode}
func (h *URLHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	shortCode := mux.Vars(r)["shortCode"]

	stats, err := h.service.GetURLStats(r.Context(), shortCode)
	if err != nil {
		h.writeError(w, r, err, shortCode)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// HandleHealth returns service health status
// GET /health
func (h *URLHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		apperrors.Unavailable().WriteJSON(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{
		Success:   true,
		Message:   "Linkify API is running!",
		Timestamp: time.Now().UTC(),
	})
}

// ============ ROUTER SETUP ============

// SetupRoutes configures all HTTP routes
func (h *URLHandler) SetupRoutes(limits Limits) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apperrors.NotFound("Route").WriteJSON(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apperrors.MethodNotAllowed().WriteJSON(w)
	})

	// Never rate limited
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	urls := api.PathPrefix("/urls").Subrouter()
	urls.HandleFunc("", h.HandleShorten).Methods(http.MethodPost)
	urls.HandleFunc("", h.HandleList).Methods(http.MethodGet)
	use(urls, limits.Create)

	redirects := api.PathPrefix("/redirect").Subrouter()
	redirects.HandleFunc("/{shortCode}", h.HandleRedirect).Methods(http.MethodGet)
	use(redirects, limits.Redirect)

	stats := api.PathPrefix("/stats").Subrouter()
	stats.HandleFunc("/{shortCode}", h.HandleStats).Methods(http.MethodGet)
	use(stats, limits.Redirect)

	return r
}

func use(r *mux.Router, mw middleware.Middleware) {
	if mw != nil {
		r.Use(mux.MiddlewareFunc(mw))
	}
}

// ============ HELPERS ============

// writeError maps service errors to AppErrors. Anything unexpected was
// already logged by the service and goes out as a generic 500.
func (h *URLHandler) writeError(w http.ResponseWriter, r *http.Request, err error, code string) {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		appErr.WriteJSON(w)
	case errors.Is(err, service.ErrURLNotFound):
		apperrors.URLNotFound(code).WriteJSON(w)
	case errors.Is(err, allocator.ErrCodeTaken):
		apperrors.CodeTaken(code).WriteJSON(w)
	case errors.Is(err, allocator.ErrInvalidCode):
		apperrors.Validation("Invalid custom code").WriteJSON(w)
	default:
		h.log.WithContext(r.Context()).Debug("request failed", "path", r.URL.Path, "error", err)
		apperrors.Internal().WriteJSON(w)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(successResponse{Success: true, Data: data})
}

// queryInt returns 0 for a missing or malformed value so the service defaults apply
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
