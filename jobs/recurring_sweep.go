package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/payflow-app/payflow/internal/jobs"
	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/recurrence"
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/schedule"
)

// RecurringSweepJob walks the active recurring requests once per tick.
// Calculator-driven specs are evaluated against today; custom schedules are
// driven by their explicit installment dates. A duplicate-day guard keeps a
// request from being reminded twice on the same day.
type RecurringSweepJob struct {
	Requests  requests.Repository
	Schedules schedule.Repository
	Dir       notify.UserDirectory
	Router    *notify.Router
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewRecurringSweepJob initialises the recurring sweep handler.
func NewRecurringSweepJob(reqRepo requests.Repository, schedRepo schedule.Repository, dir notify.UserDirectory, router *notify.Router, logger *slog.Logger, metrics *jobmetrics.Metrics) *RecurringSweepJob {
	return &RecurringSweepJob{
		Requests:  reqRepo,
		Schedules: schedRepo,
		Dir:       dir,
		Router:    router,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep with per-request error isolation.
func (j *RecurringSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("recurring sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskRecurringSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger()
	logger.Info("starting recurring sweep")

	list, err := j.Requests.ListActiveRecurring(ctx)
	if err != nil {
		resultErr = fmt.Errorf("list active recurring requests: %w", err)
		logger.Error("recurring sweep failed", slog.Any("error", resultErr))
		return resultErr
	}

	notified := 0
	for i := range list {
		pr := &list[i]
		raised, err := j.sweepOne(ctx, pr, now)
		if err != nil {
			logger.Warn("recurring check failed",
				slog.Int64("request_id", pr.ID),
				slog.Any("error", err),
			)
			continue
		}
		if raised {
			notified++
		}
	}

	logger.Info("completed recurring sweep",
		slog.Int("active", len(list)),
		slog.Int("notified", notified),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

func (j *RecurringSweepJob) sweepOne(ctx context.Context, pr *requests.PaymentRequest, now time.Time) (bool, error) {
	if pr.RecurrenceSpec == nil {
		return false, nil
	}
	spec, err := recurrence.Parse(*pr.RecurrenceSpec)
	if err != nil {
		// Rows written before boundary validation existed fail closed.
		j.logger().Warn("stored recurrence spec does not parse, skipping",
			slog.Int64("request_id", pr.ID),
			slog.Any("error", err),
		)
		return false, nil
	}

	if spec.IsCustom() {
		return j.sweepCustom(ctx, pr, now)
	}

	anchor := pr.SubmittedAt
	if pr.FinanceApprovedAt != nil {
		anchor = *pr.FinanceApprovedAt
	}
	if !spec.IsDue(anchor, now) {
		return false, nil
	}
	return j.raise(ctx, pr, notify.EventRecurringDue, "Recurring payment due",
		fmt.Sprintf("Recurring payment of %s is due for request %s",
			notify.FormatAmount(pr.Currency, pr.Amount), pr.PublicID), now)
}

func (j *RecurringSweepJob) sweepCustom(ctx context.Context, pr *requests.PaymentRequest, now time.Time) (bool, error) {
	dueToday, err := j.Schedules.UnpaidDueOn(ctx, pr.ID, now)
	if err != nil {
		return false, err
	}
	if len(dueToday) > 0 {
		ins := dueToday[0]
		return j.raise(ctx, pr, notify.EventRecurringDue, "Installment due today",
			fmt.Sprintf("Installment %d of request %s (%s) is due today",
				ins.PaymentOrder, pr.PublicID, notify.FormatAmount(pr.Currency, ins.Amount)), now)
	}

	overdue, err := j.Schedules.UnpaidBefore(ctx, pr.ID, now)
	if err != nil {
		return false, err
	}
	if len(overdue) == 0 {
		return false, nil
	}
	ins := overdue[0]
	return j.raise(ctx, pr, notify.EventRecurringReminder, "Installment overdue",
		fmt.Sprintf("Installment %d of request %s (%s) was due on %s and is still unpaid",
			ins.PaymentOrder, pr.PublicID, notify.FormatAmount(pr.Currency, ins.Amount),
			ins.DueDate.Format("2006-01-02")), now)
}

func (j *RecurringSweepJob) raise(ctx context.Context, pr *requests.PaymentRequest, event notify.Event, title, msg string, now time.Time) (bool, error) {
	already, err := j.Router.AlreadyNotifiedOn(ctx, pr.ID, event, now)
	if err != nil {
		return false, err
	}
	if already {
		return false, nil
	}

	requestor, err := j.Dir.Get(ctx, pr.RequestorID)
	if err != nil {
		return false, fmt.Errorf("resolve requestor: %w", err)
	}
	if _, err := j.Router.Route(ctx, event, requests.RequestContext(pr, requestor), title, msg); err != nil {
		return false, err
	}
	j.Metrics.AddAlerts(string(event), 1)
	return true, nil
}

func (j *RecurringSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *RecurringSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
