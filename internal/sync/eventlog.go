// Package syncx is the append-only activity log that progress tracking
// reads from.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Event types.
const (
	TypeAttemptScored = "AttemptScored"
	TypeTaskGenerated = "TaskGenerated"
)

type Event struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	UserID    string `json:"user_id"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// NewEvent marshals data into an Event.
func NewEvent(typ, key, userID string, data any) (Event, error) {
	buf, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Key: key, UserID: userID, DataJSON: string(buf)}, nil
}

type EventRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, now: time.Now} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	created := e.CreatedAt
	if created == 0 {
		created = r.now().Unix()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, user_id, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.Type, e.Key, e.UserID, e.DataJSON, created)
	return err
}

// ListByUser returns a user's events, oldest first, optionally filtered by
// type.
func (r *EventRepo) ListByUser(ctx context.Context, userID, typ string) ([]Event, error) {
	q := `SELECT seq, typ, key, user_id, data, created_at FROM event_log WHERE user_id=$1`
	args := []any{userID}
	if typ != "" {
		q += ` AND typ=$2`
		args = append(args, typ)
	}
	q += ` ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &e.UserID, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
