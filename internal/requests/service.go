package requests

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/recurrence"
	"github.com/payflow-app/payflow/internal/shared"
	"github.com/payflow-app/payflow/internal/timing"
)

// Service drives the approval state machine. Every mutation follows the same
// shape: validate, guarded status transition, audit, then notification
// routing. Routing failures degrade to logs; the transition has already
// committed.
type Service struct {
	repo     Repository
	dir      notify.UserDirectory
	router   *notify.Router
	audit    *shared.AuditLogger
	validate *validator.Validate
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, dir notify.UserDirectory, router *notify.Router, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		dir:      dir,
		router:   router,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one request by internal id.
func (s *Service) Get(ctx context.Context, id int64) (*PaymentRequest, error) {
	return s.repo.Get(ctx, id)
}

// GetByPublicID returns one request by its public uuid.
func (s *Service) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*PaymentRequest, error) {
	return s.repo.GetByPublicID(ctx, publicID)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, req ListRequestsRequest) ([]PaymentRequest, int, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, req)
}

// Submit creates a request in Pending and routes the submission event to the
// requestor's approval chain. Recurrence specs are parsed here, once, and
// stored in canonical form; malformed input never reaches the table.
func (s *Service) Submit(ctx context.Context, requestorID int64, req SubmitRequest) (*PaymentRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	requestor, err := s.dir.Get(ctx, requestorID)
	if err != nil {
		return nil, fmt.Errorf("resolve requestor: %w", err)
	}

	var specText *string
	if req.Recurring {
		spec, err := recurrence.Parse(req.RecurrenceSpec)
		if err != nil {
			return nil, fmt.Errorf("recurrence spec: %w", err)
		}
		canonical := spec.Encode()
		specText = &canonical
	} else if req.RecurrenceSpec != "" {
		return nil, fmt.Errorf("recurrence spec given for a non-recurring request")
	}

	now := s.clock()
	id, err := s.repo.Create(ctx, PaymentRequest{
		PublicID:       uuid.New(),
		RequestType:    req.RequestType,
		Description:    req.Description,
		RequestorID:    requestorID,
		Department:     requestor.Department,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Status:         StatusPending,
		Urgent:         req.Urgent,
		Recurring:      req.Recurring,
		RecurrenceSpec: specText,
		SubmittedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, requestorID, "request.submit", id, map[string]any{
		"amount": req.Amount, "currency": req.Currency, "urgent": req.Urgent, "recurring": req.Recurring,
	})

	event := notify.EventNewSubmission
	title := "New payment request"
	if req.Urgent {
		event = notify.EventUrgentSubmission
		title = "URGENT: new payment request"
	}
	s.route(ctx, event, pr, requestor, title,
		fmt.Sprintf("%s submitted a %s request for %s",
			requestor.Name, req.RequestType, notify.FormatAmount(req.Currency, req.Amount)))
	return pr, nil
}

// Approve advances Pending → ManagerApproved and immediately enters the
// finance stage, stamping both timestamps. The requestor hears about the
// manager decision; finance hears the request is ready for them.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (*PaymentRequest, error) {
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(pr.Status, StatusManagerApproved) {
		return nil, fmt.Errorf("approve %s request: %w", pr.Status, shared.ErrInvalidStatus)
	}

	now := s.clock()
	if err := s.repo.Transition(ctx, id, pr.Status, StatusManagerApproved,
		map[string]any{"manager_approved_at": now}); err != nil {
		return nil, err
	}
	if err := s.repo.Transition(ctx, id, StatusManagerApproved, StatusFinanceReview,
		map[string]any{"finance_review_started_at": now}); err != nil {
		return nil, err
	}

	pr, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "request.manager_approve", id, nil)

	requestor, rcErr := s.dir.Get(ctx, pr.RequestorID)
	if rcErr != nil {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
		return pr, nil
	}
	s.route(ctx, notify.EventManagerApproved, pr, requestor, "Request approved by manager",
		fmt.Sprintf("Your %s request was approved and sent to finance", pr.RequestType))
	s.route(ctx, notify.EventReadyForFinanceReview, pr, requestor, "Request ready for finance review",
		fmt.Sprintf("%s's request for %s awaits finance review",
			requestor.Name, notify.FormatAmount(pr.Currency, pr.Amount)))
	return pr, nil
}

// FinanceApprove exits the finance stage: recurring requests land in
// Recurring (awaiting their installment schedule), everything else in
// Approved. The stage duration is finalized exactly once.
func (s *Service) FinanceApprove(ctx context.Context, id, actorID int64) (*PaymentRequest, error) {
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	target := StatusApproved
	if pr.Recurring {
		target = StatusRecurring
	}
	if !CanTransition(pr.Status, target) {
		return nil, fmt.Errorf("finance approve %s request: %w", pr.Status, shared.ErrInvalidStatus)
	}

	now := s.clock()
	set := map[string]any{"finance_approved_at": now}
	end := now
	if secs := timing.DurationSecs(timing.Review{
		Urgent:       pr.Urgent,
		StartedAt:    pr.FinanceReviewStartedAt,
		EndedAt:      &end,
		DurationSecs: pr.FinanceDurationSecs,
	}); secs != nil {
		set["finance_duration_secs"] = *secs
	}
	if err := s.repo.Transition(ctx, id, pr.Status, target, set); err != nil {
		return nil, err
	}

	pr, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "request.finance_approve", id, map[string]any{"status": string(target)})

	if requestor, rcErr := s.dir.Get(ctx, pr.RequestorID); rcErr == nil {
		s.route(ctx, notify.EventRequestApproved, pr, requestor, "Request approved",
			fmt.Sprintf("Your %s request for %s is approved",
				pr.RequestType, notify.FormatAmount(pr.Currency, pr.Amount)))
	} else {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
	}
	return pr, nil
}

// Reject moves any pre-terminal request to Rejected with a reason.
func (s *Service) Reject(ctx context.Context, id, actorID int64, req RejectRequest) (*PaymentRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(pr.Status, StatusRejected) {
		return nil, fmt.Errorf("reject %s request: %w", pr.Status, shared.ErrInvalidStatus)
	}

	if err := s.repo.Transition(ctx, id, pr.Status, StatusRejected,
		map[string]any{"rejection_reason": req.Reason}); err != nil {
		return nil, err
	}

	pr, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "request.reject", id, map[string]any{"reason": req.Reason})

	if requestor, rcErr := s.dir.Get(ctx, pr.RequestorID); rcErr == nil {
		s.route(ctx, notify.EventRequestRejected, pr, requestor, "Request rejected",
			fmt.Sprintf("Your %s request was rejected: %s", pr.RequestType, req.Reason))
	} else {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
	}
	return pr, nil
}

// Resubmit returns a rejected request to Pending and re-runs the submission
// routing so the approval chain sees it again.
func (s *Service) Resubmit(ctx context.Context, id, actorID int64) (*PaymentRequest, error) {
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(pr.Status, StatusPending) {
		return nil, fmt.Errorf("resubmit %s request: %w", pr.Status, shared.ErrInvalidStatus)
	}

	now := s.clock()
	if err := s.repo.Transition(ctx, id, pr.Status, StatusPending,
		map[string]any{"submitted_at": now}); err != nil {
		return nil, err
	}

	pr, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "request.resubmit", id, nil)

	if requestor, rcErr := s.dir.Get(ctx, pr.RequestorID); rcErr == nil {
		s.route(ctx, notify.EventRequestResubmitted, pr, requestor, "Request resubmitted",
			fmt.Sprintf("%s resubmitted a %s request for %s",
				requestor.Name, pr.RequestType, notify.FormatAmount(pr.Currency, pr.Amount)))
	} else {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
	}
	return pr, nil
}

// RecordProofUpload stamps the payment proof and tells the requestor and
// finance that it arrived.
func (s *Service) RecordProofUpload(ctx context.Context, id, actorID int64) (*PaymentRequest, error) {
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.repo.SetProofUploaded(ctx, id, now); err != nil {
		return nil, err
	}
	pr.ProofUploadedAt = &now
	s.recordAudit(ctx, actorID, "request.proof_upload", id, nil)

	if requestor, rcErr := s.dir.Get(ctx, pr.RequestorID); rcErr == nil {
		s.route(ctx, notify.EventProofUploaded, pr, requestor, "Payment proof uploaded",
			fmt.Sprintf("Proof of payment uploaded for %s's %s request", requestor.Name, pr.RequestType))
	} else {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
	}
	return pr, nil
}

// Complete marks a non-recurring approved request as paid out. Recurring
// requests complete through the schedule manager instead.
func (s *Service) Complete(ctx context.Context, id, actorID int64) (*PaymentRequest, error) {
	pr, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(pr.Status, StatusCompleted) {
		return nil, fmt.Errorf("complete %s request: %w", pr.Status, shared.ErrInvalidStatus)
	}

	now := s.clock()
	if err := s.repo.Transition(ctx, id, pr.Status, StatusCompleted,
		map[string]any{"completed_at": now}); err != nil {
		return nil, err
	}

	pr, err = s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "request.complete", id, nil)

	if requestor, rcErr := s.dir.Get(ctx, pr.RequestorID); rcErr == nil {
		s.route(ctx, notify.EventPaymentExecuted, pr, requestor, "Payment executed",
			fmt.Sprintf("Payment of %s executed for your %s request",
				notify.FormatAmount(pr.Currency, pr.Amount), pr.RequestType))
	} else {
		s.log().Warn("resolve requestor for routing", slog.Any("error", rcErr))
	}
	return pr, nil
}

// RequestContext builds the routing context for a request.
func RequestContext(pr *PaymentRequest, requestor notify.Recipient) *notify.RequestContext {
	return &notify.RequestContext{
		RequestID:     pr.ID,
		RequestorID:   pr.RequestorID,
		RequestorName: requestor.Name,
		RequestorRole: requestor.Role,
		Department:    pr.Department,
		Amount:        pr.Amount,
		Currency:      pr.Currency,
		Urgent:        pr.Urgent,
	}
}

func (s *Service) route(ctx context.Context, event notify.Event, pr *PaymentRequest, requestor notify.Recipient, title, msg string) {
	if s.router == nil {
		return
	}
	if _, err := s.router.Route(ctx, event, RequestContext(pr, requestor), title, msg); err != nil {
		s.log().Warn("route request event",
			slog.String("event", string(event)),
			slog.Int64("request_id", pr.ID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment_request",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	}); err != nil {
		s.log().Warn("record request audit", slog.Any("error", err))
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
