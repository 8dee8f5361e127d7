package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/shared"
)

// Manager owns installment schedule mutations and the completion check.
type Manager struct {
	repo     Repository
	requests requests.Repository
	dir      notify.UserDirectory
	router   *notify.Router
	audit    *shared.AuditLogger
	validate *validator.Validate
	logger   *slog.Logger
	clock    func() time.Time
}

// NewManager constructs a Manager.
func NewManager(repo Repository, reqRepo requests.Repository, dir notify.UserDirectory, router *notify.Router, audit *shared.AuditLogger, logger *slog.Logger) *Manager {
	return &Manager{
		repo:     repo,
		requests: reqRepo,
		dir:      dir,
		router:   router,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// List returns the schedule of one request ordered by payment_order.
func (m *Manager) List(ctx context.Context, requestID int64) ([]Installment, error) {
	return m.repo.ListByRequest(ctx, requestID)
}

// Replace swaps the whole installment set of a recurring request. Orders must
// be 1-based and gap-free and the amounts must sum to the request total
// within the tolerance. The swap is transactional: a failed replace leaves
// the previous schedule untouched.
func (m *Manager) Replace(ctx context.Context, requestID int64, req ReplaceRequest, actorID int64) ([]Installment, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, err
	}
	pr, err := m.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !pr.Recurring {
		return nil, fmt.Errorf("request %d is not recurring: %w", requestID, shared.ErrInvalidStatus)
	}
	if err := validateEntries(req.Entries, pr.Amount); err != nil {
		return nil, err
	}

	entries := append([]Entry(nil), req.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].PaymentOrder < entries[j].PaymentOrder })

	if err := m.repo.Replace(ctx, requestID, entries); err != nil {
		return nil, fmt.Errorf("replace schedule: %w", err)
	}

	m.recordAudit(ctx, actorID, "schedule.replace", requestID, map[string]any{"installments": len(entries)})
	m.route(ctx, notify.EventScheduleReplaced, pr, "Installment schedule replaced",
		fmt.Sprintf("Schedule for request %s replaced with %d installments totalling %s",
			pr.PublicID, len(entries), notify.FormatAmount(pr.Currency, pr.Amount)))

	return m.repo.ListByRequest(ctx, requestID)
}

// MarkPaid records a payment with its receipt reference, then runs the
// completion check.
func (m *Manager) MarkPaid(ctx context.Context, installmentID int64, req MarkPaidRequest, actorID int64) (*Installment, error) {
	if err := m.validate.Struct(req); err != nil {
		return nil, err
	}
	ins, err := m.repo.Get(ctx, installmentID)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	if err := m.repo.MarkPaid(ctx, installmentID, req.ReceiptRef, now); err != nil {
		return nil, err
	}

	pr, err := m.requests.Get(ctx, ins.RequestID)
	if err != nil {
		return nil, err
	}
	m.recordAudit(ctx, actorID, "installment.mark_paid", ins.RequestID, map[string]any{
		"installment_id": installmentID, "payment_order": ins.PaymentOrder,
	})
	m.route(ctx, notify.EventInstallmentPaid, pr, "Installment paid",
		fmt.Sprintf("Installment %d of request %s paid (%s)",
			ins.PaymentOrder, pr.PublicID, notify.FormatAmount(pr.Currency, ins.Amount)))

	if _, err := m.CheckCompletion(ctx, ins.RequestID); err != nil {
		m.log().Warn("completion check after payment",
			slog.Int64("request_id", ins.RequestID),
			slog.Any("error", err),
		)
	}
	return m.repo.Get(ctx, installmentID)
}

// CheckCompletion closes a recurring request once every installment is paid
// and the amounts add up. The status transition is guarded, so concurrent
// checks complete the request exactly once; only the winner routes the
// completion notification.
func (m *Manager) CheckCompletion(ctx context.Context, requestID int64) (bool, error) {
	pr, err := m.requests.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	if pr.Status != requests.StatusRecurring {
		return false, nil
	}

	list, err := m.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return false, err
	}
	if len(list) == 0 {
		return false, nil
	}
	var sum float64
	for _, ins := range list {
		if !ins.Paid {
			return false, nil
		}
		sum += ins.Amount
	}
	if math.Abs(sum-pr.Amount) > AmountTolerance {
		return false, nil
	}

	done, err := m.requests.FinalizeRecurring(ctx, requestID, m.clock())
	if err != nil {
		return false, fmt.Errorf("finalize recurring request: %w", err)
	}
	if !done {
		return false, nil
	}

	m.recordAudit(ctx, 0, "request.recurring_complete", requestID, map[string]any{"installments": len(list)})
	m.route(ctx, notify.EventRecurringCompleted, pr, "Recurring payment completed",
		fmt.Sprintf("All %d installments of request %s are paid", len(list), pr.PublicID))
	return true, nil
}

func validateEntries(entries []Entry, total float64) error {
	orders := make([]int, len(entries))
	var sum float64
	for i, e := range entries {
		orders[i] = e.PaymentOrder
		sum += e.Amount
	}
	sort.Ints(orders)
	for i, order := range orders {
		if order != i+1 {
			return fmt.Errorf("payment orders must be 1-based and gap-free, got %v", orders)
		}
	}
	if math.Abs(sum-total) > AmountTolerance {
		return fmt.Errorf("installment sum %.3f does not match request amount %.3f", sum, total)
	}
	return nil
}

func (m *Manager) route(ctx context.Context, event notify.Event, pr *requests.PaymentRequest, title, msg string) {
	if m.router == nil {
		return
	}
	requestor, err := m.dir.Get(ctx, pr.RequestorID)
	if err != nil {
		m.log().Warn("resolve requestor for routing", slog.Any("error", err))
		return
	}
	if _, err := m.router.Route(ctx, event, requests.RequestContext(pr, requestor), title, msg); err != nil {
		m.log().Warn("route schedule event",
			slog.String("event", string(event)),
			slog.Int64("request_id", pr.ID),
			slog.Any("error", err),
		)
	}
}

func (m *Manager) recordAudit(ctx context.Context, actorID int64, action string, requestID int64, meta map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment_request",
		EntityID: fmt.Sprintf("%d", requestID),
		Meta:     meta,
	}); err != nil {
		m.log().Warn("record schedule audit", slog.Any("error", err))
	}
}

func (m *Manager) log() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}
