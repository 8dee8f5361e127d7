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
	"github.com/payflow-app/payflow/internal/requests"
	"github.com/payflow-app/payflow/internal/timing"
)

// OverdueSweepJob walks every request sitting in finance review and raises
// timing alerts for the ones past their urgency threshold. The first
// detection emits timing_alert; later sweeps emit timing_recurring once a
// full threshold interval has passed since the last alert of either kind.
type OverdueSweepJob struct {
	Requests requests.Repository
	Dir      notify.UserDirectory
	Router   *notify.Router
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob initialises the overdue sweep handler.
func NewOverdueSweepJob(reqRepo requests.Repository, dir notify.UserDirectory, router *notify.Router, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Requests: reqRepo,
		Dir:      dir,
		Router:   router,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep. Per-request failures are logged and the sweep
// continues; only a failure to even list the candidates errors the task.
func (j *OverdueSweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskOverdueSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger()
	logger.Info("starting overdue sweep")

	list, err := j.Requests.ListInFinanceReview(ctx)
	if err != nil {
		resultErr = fmt.Errorf("list finance review requests: %w", err)
		logger.Error("overdue sweep failed", slog.Any("error", resultErr))
		return resultErr
	}

	alerted := 0
	for i := range list {
		pr := &list[i]
		raised, err := j.sweepOne(ctx, pr, now)
		if err != nil {
			logger.Warn("overdue check failed",
				slog.Int64("request_id", pr.ID),
				slog.Any("error", err),
			)
			continue
		}
		if raised {
			alerted++
		}
	}

	logger.Info("completed overdue sweep",
		slog.Int("in_review", len(list)),
		slog.Int("alerted", alerted),
		slog.Duration("duration", time.Since(now)),
	)
	return resultErr
}

func (j *OverdueSweepJob) sweepOne(ctx context.Context, pr *requests.PaymentRequest, now time.Time) (bool, error) {
	rev := timing.Review{
		Urgent:       pr.Urgent,
		StartedAt:    pr.FinanceReviewStartedAt,
		EndedAt:      pr.FinanceApprovedAt,
		DurationSecs: pr.FinanceDurationSecs,
	}
	over, elapsed := timing.Overdue(rev, now)
	if !over {
		return false, nil
	}

	lastAlert, err := j.Router.LastTimingAlertAt(ctx, pr.ID)
	if err != nil {
		return false, err
	}
	if !timing.ShouldRemind(rev, lastAlert, now) {
		return false, nil
	}
	event := notify.EventTimingAlert
	if lastAlert != nil {
		event = notify.EventTimingRecurring
	}

	requestor, err := j.Dir.Get(ctx, pr.RequestorID)
	if err != nil {
		return false, fmt.Errorf("resolve requestor: %w", err)
	}
	title := "Finance review overdue"
	if event == notify.EventTimingRecurring {
		title = "Finance review still overdue"
	}
	_, err = j.Router.Route(ctx, event, requests.RequestContext(pr, requestor), title,
		fmt.Sprintf("Request %s has sat in finance review for %s (threshold %s)",
			pr.PublicID, elapsed.Round(time.Minute), timing.Threshold(pr.Urgent)))
	if err != nil {
		return false, err
	}
	j.Metrics.AddAlerts(string(event), 1)
	return true, nil
}

func (j *OverdueSweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
