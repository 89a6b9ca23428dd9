package httpx

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/poscart/fulfillment/internal/auth"
)

type AuthHandler struct {
	Auth *auth.Service
	Log  *slog.Logger
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/api/auth/guest", h.guestLogin)
}

// guestLogin issues a throwaway identity so unregistered shoppers can use the
// cart and check out. Each call creates a new guest.
func (h *AuthHandler) guestLogin(w http.ResponseWriter, r *http.Request) {
	identity := fmt.Sprintf("guest_%s@temp.com", uuid.NewString())
	token, err := h.Auth.IssueToken(identity, auth.RoleShopClient)
	if err != nil {
		h.Log.Error("guest token issuance failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.Log.Info("guest login", "identity", identity)
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}
