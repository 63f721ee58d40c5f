package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	authmw "github.com/mind-engage/ielts-practice/internal/auth/middleware"
)

// PATCH /admin/users/{userID}/role  {"role": "tutor"}
func UpdateUserRoleHandler(users *authmw.Users) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		userID := chi.URLParam(r, "userID")
		if err := users.SetRole(r.Context(), userID, strings.TrimSpace(req.Role)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
