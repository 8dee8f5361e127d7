package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-app/payflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for payment requests.
type Repository interface {
	Get(ctx context.Context, id int64) (*PaymentRequest, error)
	GetByPublicID(ctx context.Context, publicID uuid.UUID) (*PaymentRequest, error)
	List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, int, error)
	Create(ctx context.Context, pr PaymentRequest) (int64, error)
	// Transition moves id from → to, applying the stamp columns in the same
	// statement. Zero rows affected means the request left the expected
	// status concurrently.
	Transition(ctx context.Context, id int64, from, to Status, set map[string]any) error
	SetProofUploaded(ctx context.Context, id int64, at time.Time) error
	// SetFinanceDuration stores the duration only when none is stored yet.
	SetFinanceDuration(ctx context.Context, id int64, secs int64) error
	ListInFinanceReview(ctx context.Context) ([]PaymentRequest, error)
	ListActiveRecurring(ctx context.Context) ([]PaymentRequest, error)
	// FinalizeRecurring completes a recurring request: status, completion
	// stamp and write-once duration in one guarded statement. Returns false
	// when the request was not in Recurring.
	FinalizeRecurring(ctx context.Context, id int64, now time.Time) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, public_id, request_type, description, requestor_id, department,
amount, currency, status, urgent, recurring, recurrence_spec, rejection_reason,
submitted_at, manager_approved_at, finance_review_started_at, finance_approved_at,
completed_at, proof_uploaded_at, finance_duration_secs, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*PaymentRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE id = $1`, id)
	return scanRequest(row)
}

func (r *repository) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*PaymentRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM payment_requests WHERE public_id = $1`, publicID)
	return scanRequest(row)
}

func (r *repository) List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, int, error) {
	where := "WHERE TRUE"
	var args []any
	argPos := 1
	if req.Status != nil {
		where += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, *req.Status)
		argPos++
	}
	if req.RequestorID != nil {
		where += fmt.Sprintf(" AND requestor_id = $%d", argPos)
		args = append(args, *req.RequestorID)
		argPos++
	}
	if req.Department != nil {
		where += fmt.Sprintf(" AND department = $%d", argPos)
		args = append(args, *req.Department)
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payment_requests "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT "+requestColumns+" FROM payment_requests %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d", where, argPos, argPos+1)
	args = append(args, limit, req.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	list, err := scanRequests(rows)
	return list, total, err
}

func (r *repository) Create(ctx context.Context, pr PaymentRequest) (int64, error) {
	var spec pgtype.Text
	if pr.RecurrenceSpec != nil {
		spec = pgtype.Text{String: *pr.RecurrenceSpec, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO payment_requests
(public_id, request_type, description, requestor_id, department, amount, currency,
 status, urgent, recurring, recurrence_spec, submitted_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
RETURNING id`,
		pr.PublicID, pr.RequestType, pr.Description, pr.RequestorID, pr.Department,
		pr.Amount, pr.Currency, string(pr.Status), pr.Urgent, pr.Recurring, spec,
		pr.SubmittedAt).Scan(&id)
	return id, err
}

var transitionColumns = map[string]bool{
	"submitted_at":              true,
	"manager_approved_at":       true,
	"finance_review_started_at": true,
	"finance_approved_at":       true,
	"completed_at":              true,
	"rejection_reason":          true,
	"finance_duration_secs":     true,
}

func (r *repository) Transition(ctx context.Context, id int64, from, to Status, set map[string]any) error {
	query := "UPDATE payment_requests SET status = $1, updated_at = NOW()"
	args := []any{string(to)}
	argPos := 2
	for col, v := range set {
		if !transitionColumns[col] {
			return fmt.Errorf("requests: column %q not allowed in transition", col)
		}
		query += fmt.Sprintf(", %s = $%d", col, argPos)
		args = append(args, v)
		argPos++
	}
	query += fmt.Sprintf(" WHERE id = $%d AND status = $%d", argPos, argPos+1)
	args = append(args, id, string(from))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *repository) SetProofUploaded(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_requests
SET proof_uploaded_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetFinanceDuration(ctx context.Context, id int64, secs int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE payment_requests
SET finance_duration_secs = $2, updated_at = NOW()
WHERE id = $1 AND finance_duration_secs IS NULL`, id, secs)
	return err
}

func (r *repository) ListInFinanceReview(ctx context.Context) ([]PaymentRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM payment_requests
WHERE status = $1 ORDER BY finance_review_started_at ASC`, string(StatusFinanceReview))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *repository) ListActiveRecurring(ctx context.Context) ([]PaymentRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM payment_requests
WHERE status = $1 AND recurring ORDER BY id ASC`, string(StatusRecurring))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *repository) FinalizeRecurring(ctx context.Context, id int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_requests
SET status = $2,
    completed_at = $3,
    finance_approved_at = COALESCE(finance_approved_at, $3),
    finance_duration_secs = COALESCE(finance_duration_secs,
        GREATEST(0, EXTRACT(EPOCH FROM ($3 - finance_review_started_at))::bigint)),
    updated_at = NOW()
WHERE id = $1 AND status = $4`,
		id, string(StatusCompleted), now, string(StatusRecurring))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanRequest(row pgx.Row) (*PaymentRequest, error) {
	pr, err := scanRequestFields(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return pr, nil
}

func scanRequests(rows pgx.Rows) ([]PaymentRequest, error) {
	var list []PaymentRequest
	for rows.Next() {
		pr, err := scanRequestFields(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *pr)
	}
	return list, rows.Err()
}

func scanRequestFields(row pgx.Row) (*PaymentRequest, error) {
	var pr PaymentRequest
	var status string
	var spec, reason pgtype.Text
	var managerAt, reviewAt, approvedAt, completedAt, proofAt pgtype.Timestamptz
	var durationSecs pgtype.Int8
	if err := row.Scan(
		&pr.ID, &pr.PublicID, &pr.RequestType, &pr.Description, &pr.RequestorID,
		&pr.Department, &pr.Amount, &pr.Currency, &status, &pr.Urgent, &pr.Recurring,
		&spec, &reason, &pr.SubmittedAt, &managerAt, &reviewAt, &approvedAt,
		&completedAt, &proofAt, &durationSecs, &pr.CreatedAt, &pr.UpdatedAt,
	); err != nil {
		return nil, err
	}
	pr.Status = Status(status)
	if spec.Valid {
		pr.RecurrenceSpec = &spec.String
	}
	if reason.Valid {
		pr.RejectionReason = &reason.String
	}
	if managerAt.Valid {
		pr.ManagerApprovedAt = &managerAt.Time
	}
	if reviewAt.Valid {
		pr.FinanceReviewStartedAt = &reviewAt.Time
	}
	if approvedAt.Valid {
		pr.FinanceApprovedAt = &approvedAt.Time
	}
	if completedAt.Valid {
		pr.CompletedAt = &completedAt.Time
	}
	if proofAt.Valid {
		pr.ProofUploadedAt = &proofAt.Time
	}
	if durationSecs.Valid {
		pr.FinanceDurationSecs = &durationSecs.Int64
	}
	return &pr, nil
}
