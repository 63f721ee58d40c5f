package exam

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.RWMutex
	tasks    map[string]Task
	attempts map[string]Attempt
	now      func() time.Time
}

// NewInMemoryStore returns a Store held in process memory.
func NewInMemoryStore() Store {
	return &memoryStore{
		tasks:    map[string]Task{},
		attempts: map[string]Attempt{},
		now:      time.Now,
	}
}

func (m *memoryStore) PutTask(_ context.Context, t Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.tasks[t.ID]; ok {
		t.CreatedBy, t.CreatedAt = cur.CreatedBy, cur.CreatedAt
	}
	if t.CreatedAt == 0 {
		t.CreatedAt = m.now().Unix()
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *memoryStore) GetTask(ctx context.Context, id string) (Task, error) {
	t, err := m.GetTaskAdmin(ctx, id)
	if err != nil {
		return Task{}, err
	}
	return t.withoutKeys(), nil
}

func (m *memoryStore) GetTaskAdmin(_ context.Context, id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (m *memoryStore) ListTasks(_ context.Context, opts ListOpts) ([]TaskSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TaskSummary, 0, len(m.tasks))
	for _, t := range m.tasks {
		if opts.Skill != "" && t.Skill != opts.Skill {
			continue
		}
		out = append(out, t.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Offset, clampLimit(opts.Limit)), nil
}

func (m *memoryStore) NewAttempt(_ context.Context, taskID, userID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[taskID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	a := Attempt{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		UserID:    userID,
		Skill:     t.Skill,
		Status:    StatusInProgress,
		Responses: map[string]any{},
		StartedAt: m.now().Unix(),
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) SaveResponses(_ context.Context, attemptID string, resp map[string]any) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if a.Status == StatusSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	merged := make(map[string]any, len(a.Responses)+len(resp))
	for k, v := range a.Responses {
		merged[k] = v
	}
	for k, v := range resp {
		merged[k] = v
	}
	a.Responses = merged
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Finalize(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	if cur.Status == StatusSubmitted {
		return Attempt{}, ErrAlreadySubmitted
	}
	a.Status = StatusSubmitted
	if a.SubmittedAt == 0 {
		a.SubmittedAt = m.now().Unix()
	}
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.TaskID != "" && a.TaskID != opts.TaskID ||
			opts.UserID != "" && a.UserID != opts.UserID ||
			opts.Skill != "" && a.Skill != opts.Skill ||
			opts.Status != "" && a.Status != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt != out[j].StartedAt {
			return out[i].StartedAt > out[j].StartedAt
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts.Offset, clampLimit(opts.Limit)), nil
}

func page[T any](in []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(in) {
		return []T{}
	}
	end := min(offset+limit, len(in))
	return in[offset:end]
}
