package http

import (
	"net/http"
	"strings"

	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// GET /attempts?task_id=...&user_id=...&skill=...&status=...&limit=50&offset=0
// RBAC:
// - attempt:view-all may filter by any user_id
// - everyone else only sees their own attempts (user_id is forced to subject)
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("user_id"))
		if !rbac.Can(r.Context(), "attempt:view-all") {
			userID = rbac.SubjectFromContext(r.Context())
		}
		var skill formats.Skill
		if s := strings.TrimSpace(q.Get("skill")); s != "" {
			var err error
			if skill, err = formats.ParseSkill(s); err != nil {
				writeError(w, err)
				return
			}
		}
		list, err := store.ListAttempts(r.Context(), exam.AttemptListOpts{
			TaskID: strings.TrimSpace(q.Get("task_id")),
			UserID: userID,
			Skill:  skill,
			Status: strings.TrimSpace(q.Get("status")),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
