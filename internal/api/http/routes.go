package http

import (
	"github.com/go-chi/chi/v5"
	authmw "github.com/mind-engage/ielts-practice/internal/auth/middleware"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/progress"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

type Deps struct {
	Service *exam.Service
	Tracker *progress.Tracker
	Users   *authmw.Users
}

// MountPublic mounts the unauthenticated reference endpoints.
func MountPublic(r chi.Router) {
	r.Post("/bands/convert", ConvertBandHandler())
	r.Post("/bands/overall", OverallBandHandler())
	r.Get("/bands/tables", BandTablesHandler())
	r.Get("/formats/{format}", FormatHandler())
}

// MountProtected mounts the practice API. The caller must already have
// put the subject and role into the request context.
func MountProtected(r chi.Router, d Deps) {
	store := d.Service.Store()

	r.With(rbac.Require("task:generate")).
		Post("/tasks/generate", GenerateTaskHandler(d.Service))
	r.With(rbac.Require("task:create")).
		Post("/tasks", UploadTaskHandler(d.Service))
	r.With(rbac.Require("task:view")).
		Get("/tasks", ListTasksHandler(store))
	r.With(rbac.Require("task:view")).
		Get("/tasks/{taskID}", GetTaskHandler(store))

	r.With(rbac.Require("attempt:create")).
		Post("/attempts", CreateAttemptHandler(store))
	r.With(rbac.Require("attempt:save")).
		Post("/attempts/{attemptID}/responses", SaveResponsesHandler(store))
	r.With(rbac.Require("attempt:submit")).
		Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(d.Service))
	r.With(rbac.Require("attempt:submit")).
		Post("/attempts/{attemptID}/evaluate", EvaluateAttemptHandler(d.Service))
	r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
		Get("/attempts/{attemptID}", GetAttemptHandler(store))
	r.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
		Get("/attempts", ListAttemptsHandler(store))

	r.With(rbac.RequireOwnerOr("progress:view-any", IsSelfProgress)).
		Get("/progress", ProgressHandler(d.Tracker))

	if d.Users != nil {
		r.With(rbac.Require("user:change_password")).
			Post("/users/change-password", ChangePasswordHandler(d.Users))
		r.With(rbac.Require("users:manage")).
			Patch("/admin/users/{userID}/role", UpdateUserRoleHandler(d.Users))
	}
}
