package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/poscart/fulfillment/internal/errs"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses. Anything outside the
// taxonomy is a store/internal fault and stays opaque to the caller.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *errs.Validation
		notFound   *errs.NotFound
		stock      *errs.InsufficientStock
		upstream   *errs.UpstreamUnavailable
		forbidden  *errs.Authorization
		guard      *errs.ConsistencyGuard
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Msg})
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": stock.Error()})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": upstream.Error()})
	case errors.As(err, &forbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": forbidden.Error()})
	case errors.As(err, &guard):
		writeJSON(w, http.StatusConflict, map[string]string{"error": guard.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
