package exam_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mind-engage/ielts-practice/internal/band"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
	syncx "github.com/mind-engage/ielts-practice/internal/sync"
)

/* ---------------- fakes ---------------- */

type fakeGenerator struct{ task exam.Task }

func (g fakeGenerator) GenerateTask(_ context.Context, req exam.GenerateRequest) (exam.Task, error) {
	t := g.task
	t.Skill = req.Skill
	return t, nil
}

type fakeScorer struct {
	awarded map[string]float64
	err     error
}

func (f fakeScorer) ScoreCriteria(_ context.Context, _ grading.Rubric, _, _ string) (map[string]float64, []string, error) {
	return f.awarded, []string{"use more linking words"}, f.err
}

type fakeSink struct {
	mu     sync.Mutex
	events []syncx.Event
}

func (s *fakeSink) Append(_ context.Context, e syncx.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func listeningTask(n int) exam.Task {
	qs := make([]exam.Question, n)
	for i := range qs {
		qs[i] = exam.Question{ID: fmt.Sprintf("q%d", i+1), Type: grading.TypeMCQSingle, Prompt: "?", AnswerKey: []string{"A"}}
	}
	return exam.Task{ID: "listen-1", Skill: formats.Listening, Format: formats.Academic, Title: "Part 1", Questions: qs}
}

/* ---------------- tests ---------------- */

func TestSubmitObjectiveConvertsRawScore(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	sink := &fakeSink{}
	svc := exam.NewService(store, exam.WithEvents(sink))

	task := listeningTask(40)
	if err := store.PutTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	a, err := store.NewAttempt(ctx, task.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	resp := map[string]any{}
	for i, q := range task.Questions {
		if i < 32 {
			resp[q.ID] = "a"
		} else {
			resp[q.ID] = "B"
		}
	}
	if _, err := store.SaveResponses(ctx, a.ID, resp); err != nil {
		t.Fatal(err)
	}

	got, err := svc.SubmitObjective(ctx, a.ID, "u1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Raw != 32 || got.Total != 40 || got.Band != 7.5 || got.Status != exam.StatusSubmitted {
		t.Fatalf("unexpected attempt: raw=%d total=%d band=%v status=%s", got.Raw, got.Total, got.Band, got.Status)
	}
	if len(sink.events) != 1 || sink.events[0].Type != syncx.TypeAttemptScored {
		t.Fatalf("expected one AttemptScored event, got %+v", sink.events)
	}

	if _, err := svc.SubmitObjective(ctx, a.ID, "u1"); !errors.Is(err, exam.ErrAlreadySubmitted) {
		t.Fatalf("second submit: expected ErrAlreadySubmitted, got %v", err)
	}
}

func TestSubmitObjectiveReadingUsesReadingTable(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	svc := exam.NewService(store)

	task := listeningTask(40)
	task.ID, task.Skill = "read-1", formats.Reading
	_ = store.PutTask(ctx, task)
	a, _ := store.NewAttempt(ctx, task.ID, "u1")
	resp := map[string]any{}
	for _, q := range task.Questions[:32] {
		resp[q.ID] = "A"
	}
	_, _ = store.SaveResponses(ctx, a.ID, resp)

	got, err := svc.SubmitObjective(ctx, a.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Band != 7.0 { // 32 correct: 7.5 in listening, 7.0 in reading
		t.Fatalf("reading band = %v, want 7.0", got.Band)
	}
}

func TestSubmitObjectiveRejectsOtherUser(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	svc := exam.NewService(store)
	_ = store.PutTask(ctx, listeningTask(4))
	a, _ := store.NewAttempt(ctx, "listen-1", "owner")

	if _, err := svc.SubmitObjective(ctx, a.ID, "intruder"); !errors.Is(err, exam.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.SubmitObjective(ctx, "missing", "owner"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitSubjective(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	gen := fakeGenerator{task: exam.Task{Title: "Cities", Prompt: "Some people think..."}}
	scorer := fakeScorer{awarded: map[string]float64{
		"task_response": 6, "coherence_cohesion": 6, "lexical_resource": 7, "grammatical_range": 8,
	}}
	svc := exam.NewService(store, exam.WithGenerator(gen), exam.WithCriteriaScorer(scorer))

	task, err := svc.Generate(ctx, exam.GenerateRequest{Skill: formats.Writing}, "u1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if task.TaskType != grading.WritingTask2.Name || task.Format != formats.Academic {
		t.Fatalf("defaults not applied: %+v", task)
	}
	a, _ := store.NewAttempt(ctx, task.ID, "u1")

	if _, err := svc.SubmitSubjective(ctx, a.ID, "u1", "   "); !errors.Is(err, band.ErrInvalidInput) {
		t.Fatalf("blank text: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.SubmitObjective(ctx, a.ID, "u1"); !errors.Is(err, exam.ErrWrongSkill) {
		t.Fatalf("objective submit on writing: expected ErrWrongSkill, got %v", err)
	}

	got, err := svc.SubmitSubjective(ctx, a.ID, "u1", "Cities are growing...")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.Band != 7.0 || len(got.Criteria) != 4 || len(got.Feedback) != 1 {
		t.Fatalf("unexpected attempt: %+v", got)
	}
}

func TestSubmitSubjectivePropagatesScorerError(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	boom := errors.New("model unavailable")
	svc := exam.NewService(store, exam.WithCriteriaScorer(fakeScorer{err: boom}))
	_ = store.PutTask(ctx, exam.Task{ID: "s1", Skill: formats.Speaking, TaskType: "speaking", Title: "Hometown", Prompt: "Describe..."})
	a, _ := store.NewAttempt(ctx, "s1", "u1")

	if _, err := svc.SubmitSubjective(ctx, a.ID, "u1", "I live in..."); !errors.Is(err, boom) {
		t.Fatalf("expected scorer error, got %v", err)
	}
	got, _ := store.GetAttempt(ctx, a.ID)
	if got.Status != exam.StatusInProgress {
		t.Fatalf("failed scoring must leave the attempt open, got %s", got.Status)
	}
}

func TestValidateTask(t *testing.T) {
	ac := formats.Academic
	cases := map[string]exam.Task{
		"no title":     {Skill: formats.Listening, Format: ac, Questions: listeningTask(1).Questions},
		"no questions": {Skill: formats.Reading, Format: ac, Title: "x"},
		"no key":       {Skill: formats.Reading, Format: ac, Title: "x", Questions: []exam.Question{{ID: "1", Type: grading.TypeGapFill}}},
		"dup ids": {Skill: formats.Reading, Format: ac, Title: "x", Questions: []exam.Question{
			{ID: "1", Type: grading.TypeGapFill, AnswerKey: []string{"a"}},
			{ID: "1", Type: grading.TypeGapFill, AnswerKey: []string{"b"}},
		}},
		"unknown question type": {Skill: formats.Reading, Format: ac, Title: "x", Questions: []exam.Question{
			{ID: "1", Type: "matching_headings", AnswerKey: []string{"iv"}},
		}},
		"bad task type":  {Skill: formats.Writing, Format: ac, Title: "x", TaskType: "essay", Prompt: "p"},
		"no prompt":      {Skill: formats.Speaking, Format: ac, Title: "x", TaskType: "speaking"},
		"unknown skill":  {Skill: "grammar", Format: ac, Title: "x", TaskType: "speaking", Prompt: "p"},
		"unknown format": {Skill: formats.Speaking, Format: "toefl", Title: "x", TaskType: "speaking", Prompt: "p"},
		"no format":      {Skill: formats.Listening, Title: "x", Questions: listeningTask(1).Questions},
	}
	for name, task := range cases {
		if err := exam.ValidateTask(task); !errors.Is(err, exam.ErrInvalidTask) {
			t.Errorf("%s: expected ErrInvalidTask, got %v", name, err)
		}
	}
	if err := exam.ValidateTask(listeningTask(2)); err != nil {
		t.Fatalf("valid task rejected: %v", err)
	}
}

func TestGenerateRejectsUnscorableQuestions(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	gen := fakeGenerator{task: exam.Task{Title: "Headings", Questions: []exam.Question{
		{ID: "q1", Type: "matching_headings", AnswerKey: []string{"iv"}},
	}}}
	svc := exam.NewService(store, exam.WithGenerator(gen))

	if _, err := svc.Generate(ctx, exam.GenerateRequest{Skill: formats.Reading}, "tutor-1"); !errors.Is(err, exam.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask, got %v", err)
	}
	if list, _ := store.ListTasks(ctx, exam.ListOpts{}); len(list) != 0 {
		t.Fatalf("unscorable task was stored: %+v", list)
	}
}

func TestGetTaskStripsAnswerKeys(t *testing.T) {
	ctx := context.Background()
	store := exam.NewInMemoryStore()
	_ = store.PutTask(ctx, listeningTask(3))

	pub, err := store.GetTask(ctx, "listen-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range pub.Questions {
		if q.AnswerKey != nil {
			t.Fatalf("answer key leaked on %s", q.ID)
		}
	}
	full, _ := store.GetTaskAdmin(ctx, "listen-1")
	if len(full.Questions[0].AnswerKey) == 0 {
		t.Fatal("stripping must not mutate the stored task")
	}
}
