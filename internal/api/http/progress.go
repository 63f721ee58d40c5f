package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/ielts-practice/internal/progress"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// GET /progress[?user_id=...]
// Route with rbac.RequireOwnerOr("progress:view-any", IsSelfProgress).
func ProgressHandler(tracker *progress.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if userID == "" {
			userID = rbac.SubjectFromContext(r.Context())
		}
		p, err := tracker.For(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// IsSelfProgress reports whether the request asks for the caller's own
// progress.
func IsSelfProgress(r *http.Request) bool {
	u := strings.TrimSpace(r.URL.Query().Get("user_id"))
	return u == "" || u == rbac.SubjectFromContext(r.Context())
}
