package notify

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-app/payflow/internal/platform/db"
)

// Repository persists notification rows.
type Repository interface {
	InsertBatch(ctx context.Context, notes []Notification) ([]Notification, error)
	ListForUser(ctx context.Context, userID int64, events []Event, limit, offset int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64, events []Event) (int, error)
	MarkRead(ctx context.Context, userID, id int64) error
	MarkAllRead(ctx context.Context, userID int64, events []Event) (int64, error)
	LastTimingAlertAt(ctx context.Context, requestID int64) (*time.Time, error)
	ExistsForRequestOn(ctx context.Context, requestID int64, event Event, day time.Time) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) InsertBatch(ctx context.Context, notes []Notification) ([]Notification, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	out := make([]Notification, 0, len(notes))
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, note := range notes {
			var userID pgtype.Int8
			if note.UserID != nil {
				userID = pgtype.Int8{Int64: *note.UserID, Valid: true}
			}
			var requestID pgtype.Int8
			if note.RequestID != nil {
				requestID = pgtype.Int8{Int64: *note.RequestID, Valid: true}
			}
			createdAt := note.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			row := tx.QueryRow(ctx, `INSERT INTO notifications (user_id, event, request_id, title, message, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, FALSE, $6)
RETURNING id, created_at`, userID, string(note.Event), requestID, note.Title, note.Message, createdAt)
			if err := row.Scan(&note.ID, &note.CreatedAt); err != nil {
				return err
			}
			out = append(out, note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListForUser(ctx context.Context, userID int64, events []Event, limit, offset int) ([]Notification, error) {
	if len(events) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, event, request_id, title, message, is_read, created_at
FROM notifications
WHERE user_id = $1 AND event = ANY($2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4`, userID, eventStrings(events), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *repository) UnreadCount(ctx context.Context, userID int64, events []Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
WHERE user_id = $1 AND event = ANY($2) AND NOT is_read`, userID, eventStrings(events)).Scan(&count)
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *repository) MarkAllRead(ctx context.Context, userID int64, events []Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE
WHERE user_id = $1 AND event = ANY($2) AND NOT is_read`, userID, eventStrings(events))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) LastTimingAlertAt(ctx context.Context, requestID int64) (*time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `SELECT created_at FROM notifications
WHERE request_id = $1 AND event = ANY($2)
ORDER BY created_at DESC LIMIT 1`, requestID, eventStrings([]Event{EventTimingAlert, EventTimingRecurring})).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &at, nil
}

func (r *repository) ExistsForRequestOn(ctx context.Context, requestID int64, event Event, day time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM notifications
WHERE request_id = $1 AND event = $2 AND created_at::date = $3::date)`,
		requestID, string(event), day).Scan(&exists)
	return exists, err
}

// ErrNotificationNotFound indicates the row does not exist or belongs to
// another user.
var ErrNotificationNotFound = errors.New("notification not found")

func eventStrings(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = string(ev)
	}
	return out
}

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	var notes []Notification
	for rows.Next() {
		var note Notification
		var userID, requestID pgtype.Int8
		var event string
		if err := rows.Scan(&note.ID, &userID, &event, &requestID, &note.Title, &note.Message, &note.Read, &note.CreatedAt); err != nil {
			return nil, err
		}
		note.Event = Event(event)
		if userID.Valid {
			note.UserID = &userID.Int64
		}
		if requestID.Valid {
			note.RequestID = &requestID.Int64
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}
