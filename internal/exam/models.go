package exam

import (
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
)

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
)

type Question struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"` // mcq_single, mcq_multi, tfng, gap_fill, matching
	Prompt    string   `json:"prompt"`
	Options   []string `json:"options,omitempty"`
	AnswerKey []string `json:"answer_key,omitempty"`
}

// Task is one generated practice task. Objective tasks (listening,
// reading) carry Content plus Questions; writing and speaking tasks carry
// a Prompt and are scored against the rubric named by TaskType.
type Task struct {
	ID        string         `json:"id"`
	Skill     formats.Skill  `json:"skill"`
	Format    formats.Format `json:"format"`
	TaskType  string         `json:"task_type,omitempty"` // writing_task1|writing_task2|speaking
	Title     string         `json:"title"`
	Content   string         `json:"content,omitempty"` // passage or listening script
	Prompt    string         `json:"prompt,omitempty"`
	Questions []Question     `json:"questions,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt int64          `json:"created_at,omitempty"`
}

type TaskSummary struct {
	ID        string         `json:"id"`
	Skill     formats.Skill  `json:"skill"`
	Format    formats.Format `json:"format"`
	TaskType  string         `json:"task_type,omitempty"`
	Title     string         `json:"title"`
	Questions int            `json:"questions"`
	CreatedAt int64          `json:"created_at"`
}

type Attempt struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	UserID    string         `json:"user_id"`
	Skill     formats.Skill  `json:"skill"`
	Status    string         `json:"status"`
	Responses map[string]any `json:"responses"` // questionID -> answer
	Text      string         `json:"text,omitempty"` // essay or speaking transcript

	Raw      int                      `json:"raw"`
	Total    int                      `json:"total"`
	Band     float64                  `json:"band"`
	Results  []grading.Result         `json:"results,omitempty"`
	Criteria []grading.CriterionScore `json:"criteria,omitempty"`
	Feedback []string                 `json:"feedback,omitempty"`

	StartedAt   int64 `json:"started_at"`
	SubmittedAt int64 `json:"submitted_at,omitempty"`
}

func (t Task) summary() TaskSummary {
	return TaskSummary{
		ID: t.ID, Skill: t.Skill, Format: t.Format, TaskType: t.TaskType,
		Title: t.Title, Questions: len(t.Questions), CreatedAt: t.CreatedAt,
	}
}

// withoutKeys returns a copy of t safe to show a candidate.
func (t Task) withoutKeys() Task {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.AnswerKey = nil
		qs[i] = q
	}
	t.Questions = qs
	return t
}

func (t Task) gradingQuestions() []grading.Q {
	out := make([]grading.Q, 0, len(t.Questions))
	for _, q := range t.Questions {
		out = append(out, grading.Q{ID: q.ID, Type: q.Type, AnswerKey: q.AnswerKey})
	}
	return out
}
