package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

// POST /tasks/generate  {"skill": "reading", "format": "academic", "topic": "urban farming"}
func GenerateTaskHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Skill    string `json:"skill"`
			Format   string `json:"format"`
			TaskType string `json:"task_type"`
			Topic    string `json:"topic"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		skill, err := formats.ParseSkill(req.Skill)
		if err != nil {
			writeError(w, err)
			return
		}
		f, err := formats.ParseFormat(req.Format)
		if err != nil {
			writeError(w, err)
			return
		}
		t, err := svc.Generate(r.Context(), exam.GenerateRequest{
			Skill:    skill,
			Format:   f,
			TaskType: strings.TrimSpace(req.TaskType),
			Topic:    req.Topic,
		}, rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// POST /tasks  (tutor-authored task, answer keys included)
func UploadTaskHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var t exam.Task
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if t.ID == "" {
			http.Error(w, "id required", http.StatusBadRequest)
			return
		}
		ctx := r.Context()
		admin := rbac.RoleFromContext(ctx) == rbac.RoleAdmin
		if err := svc.SaveTask(ctx, t, rbac.SubjectFromContext(ctx), admin); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": t.ID})
	}
}

// GET /tasks?skill=reading&limit=50&offset=0
func ListTasksHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var skill formats.Skill
		if s := strings.TrimSpace(r.URL.Query().Get("skill")); s != "" {
			var err error
			if skill, err = formats.ParseSkill(s); err != nil {
				writeError(w, err)
				return
			}
		}
		list, err := store.ListTasks(r.Context(), exam.ListOpts{
			Skill:  skill,
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /tasks/{taskID}
// Answer keys are only shown to roles holding task:answers.
func GetTaskHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "taskID")
		get := store.GetTask
		if rbac.Can(r.Context(), "task:answers") {
			get = store.GetTaskAdmin
		}
		t, err := get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}
