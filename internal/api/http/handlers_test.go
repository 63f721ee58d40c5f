package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	authmw "github.com/mind-engage/ielts-practice/internal/auth/middleware"
	"github.com/mind-engage/ielts-practice/internal/evaluator"
	"github.com/mind-engage/ielts-practice/internal/exam"
	"github.com/mind-engage/ielts-practice/internal/formats"
	"github.com/mind-engage/ielts-practice/internal/grading"
	"github.com/mind-engage/ielts-practice/internal/progress"
	"github.com/mind-engage/ielts-practice/internal/rbac"
)

type stubGenerator struct{}

func (stubGenerator) GenerateTask(_ context.Context, req exam.GenerateRequest) (exam.Task, error) {
	if req.Skill == formats.Speaking {
		return exam.Task{}, &evaluator.EvalError{Op: "generate_task", Reason: "model offline"}
	}
	return exam.Task{
		Title:   "Generated",
		Content: "passage",
		Questions: []exam.Question{
			{ID: "q1", Type: grading.TypeTFNG, Prompt: "?", AnswerKey: []string{"TRUE"}},
			{ID: "q2", Type: grading.TypeGapFill, Prompt: "?", AnswerKey: []string{"rooftops"}},
		},
	}, nil
}

type stubScorer struct{}

func (stubScorer) ScoreCriteria(_ context.Context, r grading.Rubric, _, _ string) (map[string]float64, []string, error) {
	out := map[string]float64{}
	for _, c := range r.Criteria {
		out[c.Key] = 6.5
	}
	return out, []string{"good range"}, nil
}

// testServer mounts the API behind a header-driven identity so tests can
// act as any user.
func testServer(t *testing.T) (*httptest.Server, exam.Store) {
	t.Helper()
	store := exam.NewInMemoryStore()
	svc := exam.NewService(store, exam.WithGenerator(stubGenerator{}), exam.WithCriteriaScorer(stubScorer{}))
	r := chi.NewRouter()
	MountPublic(r)
	r.Group(func(pr chi.Router) {
		pr.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := authmw.WithIdentity(r.Context(), r.Header.Get("X-User"), r.Header.Get("X-Role"))
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
		MountProtected(pr, Deps{Service: svc, Tracker: progress.NewTracker(store)})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func call(t *testing.T, srv *httptest.Server, method, path, user, role, body string, out any) int {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-User", user)
	req.Header.Set("X-Role", role)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestBandEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	var conv convertResp
	if code := call(t, srv, http.MethodPost, "/bands/convert", "", "", `{"raw": 32, "skill": "listening"}`, &conv); code != http.StatusOK {
		t.Fatalf("convert: %d", code)
	}
	if conv.Band != 7.5 || conv.Total != 40 {
		t.Fatalf("convert: %+v", conv)
	}
	if code := call(t, srv, http.MethodPost, "/bands/convert", "", "", `{"raw": 32, "skill": "reading"}`, &conv); code != http.StatusOK || conv.Band != 7.0 {
		t.Fatalf("reading convert: %d %+v", code, conv)
	}
	if code := call(t, srv, http.MethodPost, "/bands/convert", "", "", `{"raw": 15, "total": 20, "skill": "reading"}`, &conv); code != http.StatusOK || conv.Band != 7.0 {
		t.Fatalf("scaled convert: %d %+v", code, conv)
	}

	bad := map[string]string{
		"unknown skill": `{"raw": 20, "skill": "writing"}`,
		"raw too high":  `{"raw": 41, "skill": "listening"}`,
		"negative raw":  `{"raw": -1, "skill": "reading"}`,
		"missing raw":   `{"skill": "reading"}`,
		"bad json":      `{`,
	}
	for name, body := range bad {
		if code := call(t, srv, http.MethodPost, "/bands/convert", "", "", body, nil); code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, code)
		}
	}

	var overall map[string]float64
	if code := call(t, srv, http.MethodPost, "/bands/overall", "", "", `{"scores": [6, 6.5, 7, 7]}`, &overall); code != http.StatusOK || overall["band"] != 7.0 {
		t.Fatalf("overall: %d %v", code, overall)
	}
	if code := call(t, srv, http.MethodPost, "/bands/overall", "", "", `{"scores": []}`, nil); code != http.StatusBadRequest {
		t.Fatalf("empty overall: %d", code)
	}

	var tables []map[string]any
	if code := call(t, srv, http.MethodGet, "/bands/tables", "", "", "", &tables); code != http.StatusOK || len(tables) < 2 {
		t.Fatalf("tables: %d %v", code, tables)
	}
	var format struct {
		Sections []formats.Section `json:"sections"`
	}
	if code := call(t, srv, http.MethodGet, "/formats/general", "", "", "", &format); code != http.StatusOK || len(format.Sections) != 4 {
		t.Fatalf("format: %d %+v", code, format)
	}
	if code := call(t, srv, http.MethodGet, "/formats/toefl", "", "", "", nil); code != http.StatusBadRequest {
		t.Fatalf("unknown format: %d", code)
	}
}

func TestObjectivePracticeFlow(t *testing.T) {
	srv, _ := testServer(t)
	const alice, bob = "alice", "bob"

	var task exam.Task
	if code := call(t, srv, http.MethodPost, "/tasks/generate", alice, rbac.RoleStudent, `{"skill": "reading", "topic": "bees"}`, &task); code != http.StatusCreated {
		t.Fatalf("generate: %d", code)
	}
	for _, q := range task.Questions {
		if len(q.AnswerKey) != 0 {
			t.Fatalf("answer key leaked in generate response")
		}
	}

	var fetched exam.Task
	call(t, srv, http.MethodGet, "/tasks/"+task.ID, alice, rbac.RoleStudent, "", &fetched)
	if len(fetched.Questions) != 2 || len(fetched.Questions[0].AnswerKey) != 0 {
		t.Fatalf("student task view: %+v", fetched)
	}
	call(t, srv, http.MethodGet, "/tasks/"+task.ID, "tutor-1", rbac.RoleTutor, "", &fetched)
	if len(fetched.Questions[0].AnswerKey) == 0 {
		t.Fatalf("tutor should see answer keys")
	}

	var a exam.Attempt
	if code := call(t, srv, http.MethodPost, "/attempts", alice, rbac.RoleStudent, fmt.Sprintf(`{"task_id": %q}`, task.ID), &a); code != http.StatusCreated {
		t.Fatalf("create attempt: %d", code)
	}
	base := "/attempts/" + a.ID
	if code := call(t, srv, http.MethodPost, base+"/responses", bob, rbac.RoleStudent, `{"q1": "TRUE"}`, nil); code != http.StatusForbidden {
		t.Fatalf("foreign save: %d", code)
	}
	if code := call(t, srv, http.MethodPost, base+"/responses", alice, rbac.RoleStudent, `{"q1": "true", "q2": "Rooftops"}`, nil); code != http.StatusOK {
		t.Fatalf("save: %d", code)
	}
	if code := call(t, srv, http.MethodPost, base+"/evaluate", alice, rbac.RoleStudent, `{"text": "essay"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("evaluate on reading: %d", code)
	}

	var scored exam.Attempt
	if code := call(t, srv, http.MethodPost, base+"/submit", alice, rbac.RoleStudent, "", &scored); code != http.StatusOK {
		t.Fatalf("submit: %d", code)
	}
	if scored.Raw != 2 || scored.Total != 2 || scored.Band != 9.0 {
		t.Fatalf("scored: %+v", scored)
	}
	if code := call(t, srv, http.MethodPost, base+"/submit", alice, rbac.RoleStudent, "", nil); code != http.StatusConflict {
		t.Fatalf("resubmit: %d", code)
	}

	if code := call(t, srv, http.MethodGet, base, bob, rbac.RoleStudent, "", nil); code != http.StatusNotFound {
		t.Fatalf("foreign view: %d", code)
	}
	if code := call(t, srv, http.MethodGet, base, "tutor-1", rbac.RoleTutor, "", nil); code != http.StatusOK {
		t.Fatalf("tutor view: %d", code)
	}

	var list []exam.Attempt
	call(t, srv, http.MethodGet, "/attempts?user_id="+alice, bob, rbac.RoleStudent, "", &list)
	if len(list) != 0 {
		t.Fatalf("student listing must be scoped to self, got %d", len(list))
	}
	call(t, srv, http.MethodGet, "/attempts?user_id="+alice, "tutor-1", rbac.RoleTutor, "", &list)
	if len(list) != 1 {
		t.Fatalf("tutor listing: %d", len(list))
	}

	var p progress.Progress
	if code := call(t, srv, http.MethodGet, "/progress", alice, rbac.RoleStudent, "", &p); code != http.StatusOK {
		t.Fatalf("progress: %d", code)
	}
	if p.Attempts != 1 || p.Skills[1].Best != 9.0 || p.XP != 10+40 {
		t.Fatalf("progress: %+v", p)
	}
	if code := call(t, srv, http.MethodGet, "/progress?user_id="+alice, bob, rbac.RoleStudent, "", nil); code != http.StatusForbidden {
		t.Fatalf("foreign progress: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/progress?user_id="+alice, "tutor-1", rbac.RoleTutor, "", nil); code != http.StatusOK {
		t.Fatalf("tutor progress: %d", code)
	}
}

func TestSubjectiveFlowAndErrors(t *testing.T) {
	srv, store := testServer(t)
	ctx := context.Background()
	_ = store.PutTask(ctx, exam.Task{ID: "w2", Skill: formats.Writing, Format: formats.Academic, TaskType: grading.WritingTask2.Name, Title: "Cities", Prompt: "Discuss."})

	var a exam.Attempt
	call(t, srv, http.MethodPost, "/attempts", "carol", rbac.RoleStudent, `{"task_id": "w2"}`, &a)
	if code := call(t, srv, http.MethodPost, "/attempts/"+a.ID+"/evaluate", "carol", rbac.RoleStudent, `{"text": ""}`, nil); code != http.StatusBadRequest {
		t.Fatalf("empty text: %d", code)
	}
	var scored exam.Attempt
	if code := call(t, srv, http.MethodPost, "/attempts/"+a.ID+"/evaluate", "carol", rbac.RoleStudent, `{"text": "Cities grow."}`, &scored); code != http.StatusOK {
		t.Fatalf("evaluate: %d", code)
	}
	if scored.Band != 6.5 || len(scored.Criteria) != 4 {
		t.Fatalf("scored: %+v", scored)
	}

	if code := call(t, srv, http.MethodPost, "/tasks/generate", "carol", rbac.RoleStudent, `{"skill": "speaking"}`, nil); code != http.StatusBadGateway {
		t.Fatalf("model failure: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/tasks/generate", "carol", rbac.RoleStudent, `{"skill": "maths"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("bad skill: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/tasks", "carol", rbac.RoleStudent, `{}`, nil); code != http.StatusForbidden {
		t.Fatalf("student upload: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/tasks", "tutor-1", rbac.RoleTutor, `{"id": "bad", "skill": "reading", "title": "x"}`, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid upload: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/tasks/missing", "carol", rbac.RoleStudent, "", nil); code != http.StatusNotFound {
		t.Fatalf("missing task: %d", code)
	}
	if code := call(t, srv, http.MethodGet, "/tasks", "", "", "", nil); code != http.StatusForbidden {
		t.Fatalf("anonymous list: %d", code)
	}
}

func TestUploadTaskOwnership(t *testing.T) {
	srv, store := testServer(t)
	body := `{"id": "r1", "skill": "reading", "title": "Bees", "questions": [{"id": "q1", "type": "tfng", "prompt": "?", "answer_key": ["TRUE"]}]}`
	edit := strings.Replace(body, `"Bees"`, `"Urban bees"`, 1)

	if code := call(t, srv, http.MethodPost, "/tasks", "tutor-1", rbac.RoleTutor, body, nil); code != http.StatusCreated {
		t.Fatalf("upload: %d", code)
	}
	if code := call(t, srv, http.MethodPost, "/tasks", "tutor-2", rbac.RoleTutor, edit, nil); code != http.StatusForbidden {
		t.Fatalf("other tutor overwrite: %d", code)
	}
	unknown := strings.Replace(body, `"tfng"`, `"matching_headings"`, 1)
	if code := call(t, srv, http.MethodPost, "/tasks", "tutor-1", rbac.RoleTutor, unknown, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown question type: %d", code)
	}

	var a exam.Attempt
	call(t, srv, http.MethodPost, "/attempts", "carol", rbac.RoleStudent, `{"task_id": "r1"}`, &a)
	if code := call(t, srv, http.MethodPost, "/tasks", "tutor-1", rbac.RoleTutor, edit, nil); code != http.StatusConflict {
		t.Fatalf("overwrite with attempt open: %d", code)
	}
	call(t, srv, http.MethodPost, "/attempts/"+a.ID+"/submit", "carol", rbac.RoleStudent, "", nil)

	if code := call(t, srv, http.MethodPost, "/tasks", "root", rbac.RoleAdmin, edit, nil); code != http.StatusCreated {
		t.Fatalf("admin overwrite: %d", code)
	}
	got, err := store.GetTaskAdmin(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Urban bees" || got.CreatedBy != "tutor-1" {
		t.Fatalf("replaced task: %+v", got)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", exam.ErrNotFound), http.StatusNotFound},
		{exam.ErrAlreadySubmitted, http.StatusConflict},
		{exam.ErrTaskInUse, http.StatusConflict},
		{exam.ErrTaskOwned, http.StatusForbidden},
		{fmt.Errorf("%w: x", exam.ErrNotConfigured), http.StatusServiceUnavailable},
		{&evaluator.EvalError{Op: "x", Reason: "y"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
