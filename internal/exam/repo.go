package exam

import (
	"context"
	"errors"

	"github.com/mind-engage/ielts-practice/internal/formats"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrForbidden        = errors.New("attempt belongs to another user")
	ErrWrongSkill       = errors.New("operation does not apply to this skill")
	ErrInvalidTask      = errors.New("invalid task")
	ErrNotConfigured    = errors.New("not configured")
	ErrTaskOwned        = errors.New("task belongs to another author")
	ErrTaskInUse        = errors.New("task has attempts in progress")
)

type ListOpts struct {
	Skill  formats.Skill
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	TaskID string
	UserID string
	Skill  formats.Skill
	Status string // in_progress|submitted
	Limit  int
	Offset int
}

// Store persists tasks and attempts. Scoring lives in Service; the store
// only records what it is given.
type Store interface {
	// PutTask inserts or fully replaces a task, keeping the original
	// author and creation time on replace.
	PutTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, id string) (Task, error)      // candidate-safe (no answer keys)
	GetTaskAdmin(ctx context.Context, id string) (Task, error) // full task, for scoring
	ListTasks(ctx context.Context, opts ListOpts) ([]TaskSummary, error)

	NewAttempt(ctx context.Context, taskID, userID string) (Attempt, error)
	SaveResponses(ctx context.Context, attemptID string, resp map[string]any) (Attempt, error)
	// Finalize stores a scored attempt and marks it submitted.
	Finalize(ctx context.Context, a Attempt) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}

func clampLimit(n int) int {
	if n <= 0 {
		return 50
	}
	if n > 200 {
		return 200
	}
	return n
}
