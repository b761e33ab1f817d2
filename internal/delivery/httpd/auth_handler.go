package httpd

import (
	"encoding/json"
	"net/http"

	"github.com/RubachokBoss/evalmate/internal/models"
)

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeSuccess(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.Logout(sessionFromContext(r.Context()))

	writeSuccess(w, map[string]interface{}{
		"message": "Logged out",
	})
}
