package exam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mind-engage/ielts-practice/internal/band"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
	"github.com/mind-engage/ielts-practice/internal/metrics"
	syncx "github.com/mind-engage/ielts-practice/internal/sync"
	"github.com/mind-engage/ielts-practice/pkg/logger"
)

// GenerateRequest asks the generator for one practice task.
type GenerateRequest struct {
	Skill    formats.Skill
	Format   formats.Format
	TaskType string // writing_task1|writing_task2|speaking; empty for objective skills
	Topic    string
}

// Generator drafts practice tasks, typically with an external model.
type Generator interface {
	GenerateTask(ctx context.Context, req GenerateRequest) (Task, error)
}

// CriteriaScorer awards per-criterion scores for a writing or speaking
// performance. The overall band is always computed locally.
type CriteriaScorer interface {
	ScoreCriteria(ctx context.Context, r grading.Rubric, prompt, text string) (map[string]float64, []string, error)
}

// EventSink receives activity events.
type EventSink interface {
	Append(ctx context.Context, e syncx.Event) error
}

type Service struct {
	store   Store
	checker *grading.Checker
	gen     Generator
	scorer  CriteriaScorer
	events  EventSink
	metrics *metrics.Metrics
	log     logger.Logger
}

type ServiceOption func(*Service)

func WithGenerator(g Generator) ServiceOption           { return func(s *Service) { s.gen = g } }
func WithCriteriaScorer(c CriteriaScorer) ServiceOption { return func(s *Service) { s.scorer = c } }
func WithEvents(e EventSink) ServiceOption              { return func(s *Service) { s.events = e } }
func WithMetrics(m *metrics.Metrics) ServiceOption      { return func(s *Service) { s.metrics = m } }
func WithLogger(l logger.Logger) ServiceOption          { return func(s *Service) { s.log = l } }

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, checker: grading.NewChecker(), log: logger.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Store() Store { return s.store }

// Generate drafts a task, validates it and stores it. The returned task has
// its answer keys stripped.
func (s *Service) Generate(ctx context.Context, req GenerateRequest, userID string) (Task, error) {
	if s.gen == nil {
		return Task{}, fmt.Errorf("%w: task generation", ErrNotConfigured)
	}
	if req.Format == "" {
		req.Format = formats.Academic
	}
	if !req.Skill.Objective() && req.TaskType == "" {
		req.TaskType = defaultTaskType(req.Skill)
	}
	t, err := s.gen.GenerateTask(ctx, req)
	if err != nil {
		return Task{}, err
	}
	t.ID = uuid.NewString()
	t.Skill, t.Format, t.TaskType = req.Skill, req.Format, req.TaskType
	t.CreatedBy = userID
	if err := ValidateTask(t); err != nil {
		return Task{}, err
	}
	if err := s.store.PutTask(ctx, t); err != nil {
		return Task{}, err
	}
	s.emit(ctx, syncx.TypeTaskGenerated, t.ID, userID, map[string]any{"skill": t.Skill})
	s.log.Info(ctx, "task generated", logger.String("task_id", t.ID), logger.String("skill", string(t.Skill)))
	return t.withoutKeys(), nil
}

// SaveTask validates and stores a hand-authored task. An existing task can
// only be replaced by its author, or by anyone when override is set, and
// never while an attempt on it is in progress.
func (s *Service) SaveTask(ctx context.Context, t Task, userID string, override bool) error {
	if t.Format == "" {
		t.Format = formats.Academic
	}
	if err := ValidateTask(t); err != nil {
		return err
	}
	cur, err := s.store.GetTaskAdmin(ctx, t.ID)
	switch {
	case err == nil:
		if cur.CreatedBy != userID && !override {
			return ErrTaskOwned
		}
		open, err := s.store.ListAttempts(ctx, AttemptListOpts{TaskID: t.ID, Status: StatusInProgress, Limit: 1})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return ErrTaskInUse
		}
	case errors.Is(err, ErrNotFound):
		t.CreatedBy = userID
	default:
		return err
	}
	if err := s.store.PutTask(ctx, t); err != nil {
		return err
	}
	s.log.Info(ctx, "task saved", logger.String("task_id", t.ID), logger.String("by", userID))
	return nil
}

func defaultTaskType(skill formats.Skill) string {
	if skill == formats.Speaking {
		return grading.Speaking.Name
	}
	return grading.WritingTask2.Name
}

// ValidateTask rejects tasks that could not be scored.
func ValidateTask(t Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if _, err := formats.SectionFor(t.Format, t.Skill); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTask, err)
	}
	if t.Skill.Objective() {
		if len(t.Questions) == 0 {
			return fmt.Errorf("%w: %s task has no questions", ErrInvalidTask, t.Skill)
		}
		seen := map[string]bool{}
		for _, q := range t.Questions {
			if q.ID == "" || seen[q.ID] {
				return fmt.Errorf("%w: missing or duplicate question id %q", ErrInvalidTask, q.ID)
			}
			seen[q.ID] = true
			if !grading.Known(q.Type) {
				return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidTask, q.ID, q.Type)
			}
			if len(q.AnswerKey) == 0 {
				return fmt.Errorf("%w: question %s has no answer key", ErrInvalidTask, q.ID)
			}
		}
		return nil
	}
	if _, ok := grading.RubricByName(t.TaskType); !ok {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, t.TaskType)
	}
	if strings.TrimSpace(t.Prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidTask)
	}
	return nil
}

// owned loads an in-progress attempt belonging to userID together with
// its full task.
func (s *Service) owned(ctx context.Context, attemptID, userID string) (Attempt, Task, error) {
	a, err := s.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, Task{}, err
	}
	if userID != "" && a.UserID != userID {
		return Attempt{}, Task{}, ErrForbidden
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, Task{}, ErrAlreadySubmitted
	}
	t, err := s.store.GetTaskAdmin(ctx, a.TaskID)
	if err != nil {
		return Attempt{}, Task{}, err
	}
	return a, t, nil
}

// SubmitObjective checks a listening or reading attempt against the task's
// answer key and converts the raw score to a band.
func (s *Service) SubmitObjective(ctx context.Context, attemptID, userID string) (Attempt, error) {
	a, t, err := s.owned(ctx, attemptID, userID)
	if err != nil {
		return Attempt{}, err
	}
	if !t.Skill.Objective() {
		return Attempt{}, fmt.Errorf("%w: %s is scored by criteria", ErrWrongSkill, t.Skill)
	}
	sec, err := formats.SectionFor(t.Format, t.Skill)
	if err != nil {
		return Attempt{}, err
	}

	sheet, err := s.checker.Check(ctx, t.gradingQuestions(), a.Responses)
	if err != nil {
		s.metrics.ScoringFailed(string(t.Skill))
		return Attempt{}, err
	}
	b, err := band.ConvertScaled(sheet.Raw, sheet.Total, sec.Table)
	if err != nil {
		s.metrics.ScoringFailed(string(t.Skill))
		return Attempt{}, err
	}
	a.Raw, a.Total, a.Band, a.Results = sheet.Raw, sheet.Total, b, sheet.Results
	return s.finalize(ctx, a)
}

// SubmitSubjective scores a writing essay or speaking transcript through
// the criteria scorer and averages the criteria into a band.
func (s *Service) SubmitSubjective(ctx context.Context, attemptID, userID, text string) (Attempt, error) {
	if strings.TrimSpace(text) == "" {
		return Attempt{}, fmt.Errorf("%w: text is required", band.ErrInvalidInput)
	}
	a, t, err := s.owned(ctx, attemptID, userID)
	if err != nil {
		return Attempt{}, err
	}
	if t.Skill.Objective() {
		return Attempt{}, fmt.Errorf("%w: %s is scored by answer key", ErrWrongSkill, t.Skill)
	}
	if s.scorer == nil {
		return Attempt{}, fmt.Errorf("%w: criteria scoring", ErrNotConfigured)
	}
	rubric, ok := grading.RubricByName(t.TaskType)
	if !ok {
		return Attempt{}, fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, t.TaskType)
	}

	awarded, feedback, err := s.scorer.ScoreCriteria(ctx, rubric, t.Prompt, text)
	if err != nil {
		s.metrics.ScoringFailed(string(t.Skill))
		return Attempt{}, err
	}
	crit, overall, err := grading.ScoreCriteria(rubric, awarded)
	if err != nil {
		s.metrics.ScoringFailed(string(t.Skill))
		return Attempt{}, err
	}
	a.Text, a.Criteria, a.Band, a.Feedback = text, crit, overall, feedback
	return s.finalize(ctx, a)
}

func (s *Service) finalize(ctx context.Context, a Attempt) (Attempt, error) {
	out, err := s.store.Finalize(ctx, a)
	if err != nil {
		return Attempt{}, err
	}
	s.metrics.ObserveBand(string(out.Skill), out.Band)
	s.emit(ctx, syncx.TypeAttemptScored, out.ID, out.UserID, ScoredEvent{
		TaskID: out.TaskID, Skill: out.Skill, Band: out.Band, Raw: out.Raw, Total: out.Total,
	})
	s.log.Info(ctx, "attempt scored",
		logger.String("attempt_id", out.ID),
		logger.String("skill", string(out.Skill)),
		logger.Float64("band", out.Band))
	return out, nil
}

// ScoredEvent is the payload of an AttemptScored event.
type ScoredEvent struct {
	TaskID string        `json:"task_id"`
	Skill  formats.Skill `json:"skill"`
	Band   float64       `json:"band"`
	Raw    int           `json:"raw,omitempty"`
	Total  int           `json:"total,omitempty"`
}

// emit never fails the caller; the score is already stored.
func (s *Service) emit(ctx context.Context, typ, key, userID string, data any) {
	if s.events == nil {
		return
	}
	e, err := syncx.NewEvent(typ, key, userID, data)
	if err == nil {
		e.CreatedAt = time.Now().Unix()
		err = s.events.Append(ctx, e)
	}
	if err != nil {
		s.log.Warn(ctx, "event append failed", logger.String("type", typ), logger.String("key", key), logger.Error(err))
	}
}
