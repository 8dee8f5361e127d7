package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payflow-app/payflow/internal/platform/db"
	"github.com/payflow-app/payflow/internal/shared"
)

// Repository provides PostgreSQL backed persistence for installments.
type Repository interface {
	Get(ctx context.Context, id int64) (*Installment, error)
	ListByRequest(ctx context.Context, requestID int64) ([]Installment, error)
	// Replace deletes the existing schedule and inserts the new one in a
	// single transaction. A failure leaves the old schedule intact.
	Replace(ctx context.Context, requestID int64, entries []Entry) error
	MarkPaid(ctx context.Context, id int64, receiptRef string, at time.Time) error
	// UnpaidDueOn returns the request's unpaid installments due on the given
	// day, for custom schedules driven by explicit dates.
	UnpaidDueOn(ctx context.Context, requestID int64, day time.Time) ([]Installment, error)
	// UnpaidBefore returns unpaid installments whose due date has passed.
	UnpaidBefore(ctx context.Context, requestID int64, day time.Time) ([]Installment, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const installmentColumns = `id, request_id, payment_order, due_date, amount, paid, receipt_ref, paid_at, created_at`

func (r *repository) Get(ctx context.Context, id int64) (*Installment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+installmentColumns+` FROM payment_installments WHERE id = $1`, id)
	ins, err := scanInstallment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return ins, nil
}

func (r *repository) ListByRequest(ctx context.Context, requestID int64) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE request_id = $1 ORDER BY payment_order ASC`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallments(rows)
}

func (r *repository) Replace(ctx context.Context, requestID int64, entries []Entry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payment_installments WHERE request_id = $1`, requestID); err != nil {
			return err
		}
		for _, e := range entries {
			if _, err := tx.Exec(ctx, `INSERT INTO payment_installments
(request_id, payment_order, due_date, amount, paid, created_at)
VALUES ($1, $2, $3, $4, FALSE, NOW())`,
				requestID, e.PaymentOrder, e.DueDate, e.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) MarkPaid(ctx context.Context, id int64, receiptRef string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE payment_installments
SET paid = TRUE, receipt_ref = $2, paid_at = $3
WHERE id = $1 AND NOT paid`, id, receiptRef, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidStatus
	}
	return nil
}

func (r *repository) UnpaidDueOn(ctx context.Context, requestID int64, day time.Time) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE request_id = $1 AND NOT paid AND due_date::date = $2::date
ORDER BY payment_order ASC`, requestID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallments(rows)
}

func (r *repository) UnpaidBefore(ctx context.Context, requestID int64, day time.Time) ([]Installment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+installmentColumns+` FROM payment_installments
WHERE request_id = $1 AND NOT paid AND due_date::date < $2::date
ORDER BY payment_order ASC`, requestID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInstallments(rows)
}

func scanInstallment(row pgx.Row) (*Installment, error) {
	var ins Installment
	var receipt pgtype.Text
	var paidAt pgtype.Timestamptz
	if err := row.Scan(&ins.ID, &ins.RequestID, &ins.PaymentOrder, &ins.DueDate,
		&ins.Amount, &ins.Paid, &receipt, &paidAt, &ins.CreatedAt); err != nil {
		return nil, err
	}
	if receipt.Valid {
		ins.ReceiptRef = &receipt.String
	}
	if paidAt.Valid {
		ins.PaidAt = &paidAt.Time
	}
	return &ins, nil
}

func scanInstallments(rows pgx.Rows) ([]Installment, error) {
	var list []Installment
	for rows.Next() {
		ins, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *ins)
	}
	return list, rows.Err()
}
