// Package http holds the JSON handlers of the practice API.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	authmw "github.com/mind-engage/ielts-practice/internal/auth/middleware"
	"github.com/mind-engage/ielts-practice/internal/band"
	"github.com/mind-engage/ielts-practice/internal/evaluator"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var evalErr *evaluator.EvalError
	switch {
	case errors.Is(err, band.ErrInvalidInput),
		errors.Is(err, band.ErrInvalidSkill),
		errors.Is(err, formats.ErrUnknownFormat),
		errors.Is(err, formats.ErrUnknownSkill),
		errors.Is(err, exam.ErrInvalidTask),
		errors.Is(err, exam.ErrWrongSkill),
		errors.Is(err, grading.ErrUnknownType),
		errors.Is(err, authmw.ErrWeakPassword),
		errors.Is(err, authmw.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, authmw.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrForbidden),
		errors.Is(err, exam.ErrTaskOwned),
		errors.Is(err, authmw.ErrInvalidCredentials):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrAlreadySubmitted), errors.Is(err, exam.ErrTaskInUse):
		return http.StatusConflict
	case errors.As(err, &evalErr), errors.Is(err, grading.ErrMissingCriterion):
		return http.StatusBadGateway
	case errors.Is(err, exam.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
