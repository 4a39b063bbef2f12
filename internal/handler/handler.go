package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"link-shortener/internal/model"
	"link-shortener/internal/service"

	"github.com/gorilla/mux"
)

type Handler struct {
	Service     *service.Service
	APIKeyHash  string
	RateLimiter Limiter
	Logger      *slog.Logger
}

func NewHandler(s *service.Service, apiKeyHash string, limiter Limiter, logger *slog.Logger) *Handler {
	return &Handler{
		Service:     s,
		APIKeyHash:  apiKeyHash,
		RateLimiter: limiter,
		Logger:      logger,
	}
}

func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods("GET")
	// Every route that writes or reads link data needs the API key, creation
	// included. Redirects stay public.
	r.HandleFunc("/links", h.APIKeyAuth(h.RateLimitMiddleware(h.CreateLink))).Methods("POST")
	r.HandleFunc("/{id}/statistics", h.APIKeyAuth(h.GetStatistics)).Methods("GET")
	r.HandleFunc("/{id}", h.APIKeyAuth(h.UpdateLink)).Methods("PATCH")
	r.HandleFunc("/{id}", h.Redirect).Methods("GET")

	r.Use(RequestID)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpecification(w, r)
	if !ok {
		return
	}
	link, err := h.Service.Create(r.Context(), spec.TargetURL, spec.Expiration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.decodeSpecification(w, r)
	if !ok {
		return
	}
	link, err := h.Service.Update(r.Context(), mux.Vars(r)["id"], spec.TargetURL, spec.Expiration)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetStatistics(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	target, err := h.Service.Redirect(r.Context(), id, optionalHeader(r, "Referer"), optionalHeader(r, "User-Agent"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", target.Location)
	w.Header().Set("Cache-Control", target.CacheControl)
	w.WriteHeader(http.StatusTemporaryRedirect)
}

func (h *Handler) decodeSpecification(w http.ResponseWriter, r *http.Request) (model.LinkSpecification, bool) {
	var spec model.LinkSpecification
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return spec, false
	}
	if spec.TargetURL == "" {
		http.Error(w, "Missing targetUrl", http.StatusBadRequest)
		return spec, false
	}
	if spec.Expiration.IsZero() {
		http.Error(w, "Missing expiration", http.StatusBadRequest)
		return spec, false
	}
	return spec, true
}

// writeError maps service failures to a status and a short message. Internal
// detail only goes to the log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		http.Error(w, "Malformed url", http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		h.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func optionalHeader(r *http.Request, name string) *string {
	values := r.Header.Values(name)
	if len(values) == 0 {
		return nil
	}
	return &values[0]
}
