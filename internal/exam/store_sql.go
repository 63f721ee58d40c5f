package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mind-engage/ielts-practice/internal/formats"
)

// SQLStore keeps tasks and attempts in SQL tables, with nested values
// (questions, responses, criteria) as JSON text columns. Placeholders use
// $N, which both the sqlite and pgx drivers accept.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver, now: time.Now}
}

// PutTask inserts t or replaces every field of an existing task except its
// author and creation time.
func (s *SQLStore) PutTask(ctx context.Context, t Task) error {
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = s.now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tasks (id,skill,format,task_type,title,content,prompt,questions_json,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET skill=EXCLUDED.skill, format=EXCLUDED.format, task_type=EXCLUDED.task_type,
		    title=EXCLUDED.title, content=EXCLUDED.content, prompt=EXCLUDED.prompt, questions_json=EXCLUDED.questions_json`,
		t.ID, string(t.Skill), string(t.Format), t.TaskType, t.Title, t.Content, t.Prompt, string(qj), t.CreatedBy, t.CreatedAt)
	return err
}

func (s *SQLStore) GetTask(ctx context.Context, id string) (Task, error) {
	t, err := s.GetTaskAdmin(ctx, id)
	if err != nil {
		return Task{}, err
	}
	return t.withoutKeys(), nil
}

func (s *SQLStore) GetTaskAdmin(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,skill,format,task_type,title,content,prompt,questions_json,created_by,created_at
		FROM tasks WHERE id=$1`, id)
	var t Task
	var skill, format, qjson string
	if err := row.Scan(&t.ID, &skill, &format, &t.TaskType, &t.Title, &t.Content, &t.Prompt, &qjson, &t.CreatedBy, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	t.Skill, t.Format = formats.Skill(skill), formats.Format(format)
	if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
		return Task{}, fmt.Errorf("task %s questions: %w", id, err)
	}
	return t, nil
}

func (s *SQLStore) ListTasks(ctx context.Context, opts ListOpts) ([]TaskSummary, error) {
	q := `SELECT id,skill,format,task_type,title,questions_json,created_at FROM tasks`
	args := []any{}
	if opts.Skill != "" {
		args = append(args, string(opts.Skill))
		q += ` WHERE skill=$1`
	}
	args = append(args, clampLimit(opts.Limit), max(opts.Offset, 0))
	q += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TaskSummary{}
	for rows.Next() {
		var t Task
		var skill, format, qjson string
		if err := rows.Scan(&t.ID, &skill, &format, &t.TaskType, &t.Title, &qjson, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Skill, t.Format = formats.Skill(skill), formats.Format(format)
		if err := json.Unmarshal([]byte(qjson), &t.Questions); err != nil {
			return nil, fmt.Errorf("task %s questions: %w", t.ID, err)
		}
		out = append(out, t.summary())
	}
	return out, rows.Err()
}

func (s *SQLStore) NewAttempt(ctx context.Context, taskID, userID string) (Attempt, error) {
	var skill string
	if err := s.db.QueryRowContext(ctx, `SELECT skill FROM tasks WHERE id=$1`, taskID).Scan(&skill); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrNotFound
		}
		return Attempt{}, err
	}
	a := Attempt{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		UserID:    userID,
		Status:    StatusInProgress,
		Responses: map[string]any{},
		StartedAt: s.now().Unix(),
	}
	a.Skill = formats.Skill(skill)
	_, err := s.db.ExecContext(ctx, `INSERT INTO attempts (id,task_id,user_id,skill,status,responses_json,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, taskID, userID, skill, StatusInProgress, "{}", a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) SaveResponses(ctx context.Context, attemptID string, resp map[string]any) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	if a.Responses == nil {
		a.Responses = map[string]any{}
	}
	for k, v := range resp {
		a.Responses[k] = v
	}
	buf, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET responses_json=$1 WHERE id=$2 AND status=$3`,
		string(buf), attemptID, StatusInProgress)
	if err != nil {
		return Attempt{}, err
	}
	// Finalize may have won between the read and the write.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Attempt{}, ErrAlreadySubmitted
	}
	return a, nil
}

func (s *SQLStore) Finalize(ctx context.Context, a Attempt) (Attempt, error) {
	if a.SubmittedAt == 0 {
		a.SubmittedAt = s.now().Unix()
	}
	a.Status = StatusSubmitted
	resp, err := json.Marshal(a.Responses)
	if err != nil {
		return Attempt{}, err
	}
	results, _ := json.Marshal(a.Results)
	criteria, _ := json.Marshal(a.Criteria)
	feedback, _ := json.Marshal(a.Feedback)

	// The status guard makes a double submit lose the race instead of
	// overwriting the first score.
	res, err := s.db.ExecContext(ctx, `UPDATE attempts
		SET status=$1, responses_json=$2, text_body=$3, raw=$4, total=$5, band=$6,
		    results_json=$7, criteria_json=$8, feedback_json=$9, submitted_at=$10
		WHERE id=$11 AND status=$12`,
		StatusSubmitted, string(resp), a.Text, a.Raw, a.Total, a.Band,
		string(results), string(criteria), string(feedback), a.SubmittedAt,
		a.ID, StatusInProgress)
	if err != nil {
		return Attempt{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, gerr := s.GetAttempt(ctx, a.ID); gerr != nil {
			return Attempt{}, gerr
		}
		return Attempt{}, ErrAlreadySubmitted
	}
	return a, nil
}

const attemptCols = `id,task_id,user_id,skill,status,responses_json,text_body,raw,total,band,results_json,criteria_json,feedback_json,started_at,submitted_at`

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	var where []string
	var args []any
	add := func(col, v string) {
		if v == "" {
			return
		}
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("task_id", opts.TaskID)
	add("user_id", opts.UserID)
	add("skill", string(opts.Skill))
	add("status", opts.Status)

	q := `SELECT ` + attemptCols + ` FROM attempts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, clampLimit(opts.Limit), max(opts.Offset, 0))
	q += fmt.Sprintf(` ORDER BY started_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var (
		a                                  Attempt
		skill                              string
		rjson, results, criteria, feedback string
		submitted                          sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.TaskID, &a.UserID, &skill, &a.Status, &rjson, &a.Text,
		&a.Raw, &a.Total, &a.Band, &results, &criteria, &feedback, &a.StartedAt, &submitted); err != nil {
		return Attempt{}, err
	}
	a.Skill = formats.Skill(skill)
	a.SubmittedAt = submitted.Int64
	if err := json.Unmarshal([]byte(rjson), &a.Responses); err != nil || a.Responses == nil {
		a.Responses = map[string]any{}
	}
	_ = json.Unmarshal([]byte(results), &a.Results)
	_ = json.Unmarshal([]byte(criteria), &a.Criteria)
	_ = json.Unmarshal([]byte(feedback), &a.Feedback)
	return a, nil
}
