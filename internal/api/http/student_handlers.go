package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// POST /attempts  {"task_id": "..."}
func CreateAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TaskID string `json:"task_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.TaskID == "" {
			http.Error(w, "task_id required", http.StatusBadRequest)
			return
		}
		a, err := store.NewAttempt(r.Context(), req.TaskID, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// ownAttempt loads an attempt the caller may modify.
func ownAttempt(r *http.Request, store exam.Store) (exam.Attempt, error) {
	a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		return exam.Attempt{}, err
	}
	if a.UserID != rbac.SubjectFromContext(r.Context()) {
		return exam.Attempt{}, exam.ErrForbidden
	}
	return a, nil
}

// POST /attempts/{attemptID}/responses  {"q1": "B", "q2": ["A","C"]}
func SaveResponsesHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var resp map[string]any
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := ownAttempt(r, store)
		if err != nil {
			writeError(w, err)
			return
		}
		a, err = store.SaveResponses(r.Context(), a.ID, resp)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/submit  (listening, reading)
func SubmitAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.SubmitObjective(r.Context(), chi.URLParam(r, "attemptID"), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /attempts/{attemptID}/evaluate  {"text": "essay or transcript"}
func EvaluateAttemptHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := svc.SubmitSubjective(r.Context(), chi.URLParam(r, "attemptID"), rbac.SubjectFromContext(r.Context()), req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}
// Owners see their own attempts; attempt:view-all sees any.
func GetAttemptHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetAttempt(r.Context(), chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if a.UserID != rbac.SubjectFromContext(r.Context()) && !rbac.Can(r.Context(), "attempt:view-all") {
			// do not reveal that the attempt exists
			writeError(w, exam.ErrNotFound)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}
