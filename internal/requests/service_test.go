package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/payflow-app/payflow/internal/notify"
	"github.com/payflow-app/payflow/internal/recurrence"
	"github.com/payflow-app/payflow/internal/shared"
)

type fakeRepo struct {
	seq   int64
	items map[int64]*PaymentRequest
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[int64]*PaymentRequest)}
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*PaymentRequest, error) {
	pr, ok := f.items[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (f *fakeRepo) GetByPublicID(ctx context.Context, publicID uuid.UUID) (*PaymentRequest, error) {
	for _, pr := range f.items {
		if pr.PublicID == publicID {
			return f.Get(ctx, pr.ID)
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ ListRequestsRequest) ([]PaymentRequest, int, error) {
	var list []PaymentRequest
	for _, pr := range f.items {
		list = append(list, *pr)
	}
	return list, len(list), nil
}

func (f *fakeRepo) Create(_ context.Context, pr PaymentRequest) (int64, error) {
	f.seq++
	pr.ID = f.seq
	pr.CreatedAt = time.Now()
	pr.UpdatedAt = pr.CreatedAt
	f.items[pr.ID] = &pr
	return pr.ID, nil
}

func (f *fakeRepo) Transition(_ context.Context, id int64, from, to Status, set map[string]any) error {
	pr, ok := f.items[id]
	if !ok || pr.Status != from {
		return shared.ErrInvalidStatus
	}
	pr.Status = to
	for col, v := range set {
		switch col {
		case "submitted_at":
			pr.SubmittedAt = v.(time.Time)
		case "manager_approved_at":
			t := v.(time.Time)
			pr.ManagerApprovedAt = &t
		case "finance_review_started_at":
			t := v.(time.Time)
			pr.FinanceReviewStartedAt = &t
		case "finance_approved_at":
			t := v.(time.Time)
			pr.FinanceApprovedAt = &t
		case "completed_at":
			t := v.(time.Time)
			pr.CompletedAt = &t
		case "rejection_reason":
			s := v.(string)
			pr.RejectionReason = &s
		case "finance_duration_secs":
			secs := v.(int64)
			if pr.FinanceDurationSecs == nil {
				pr.FinanceDurationSecs = &secs
			}
		default:
			return fmt.Errorf("unexpected column %q", col)
		}
	}
	return nil
}

func (f *fakeRepo) SetProofUploaded(_ context.Context, id int64, at time.Time) error {
	pr, ok := f.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	pr.ProofUploadedAt = &at
	return nil
}

func (f *fakeRepo) SetFinanceDuration(_ context.Context, id int64, secs int64) error {
	pr, ok := f.items[id]
	if !ok {
		return shared.ErrNotFound
	}
	if pr.FinanceDurationSecs == nil {
		pr.FinanceDurationSecs = &secs
	}
	return nil
}

func (f *fakeRepo) ListInFinanceReview(_ context.Context) ([]PaymentRequest, error) {
	var list []PaymentRequest
	for _, pr := range f.items {
		if pr.Status == StatusFinanceReview {
			list = append(list, *pr)
		}
	}
	return list, nil
}

func (f *fakeRepo) ListActiveRecurring(_ context.Context) ([]PaymentRequest, error) {
	var list []PaymentRequest
	for _, pr := range f.items {
		if pr.Status == StatusRecurring {
			list = append(list, *pr)
		}
	}
	return list, nil
}

func (f *fakeRepo) FinalizeRecurring(_ context.Context, id int64, now time.Time) (bool, error) {
	pr, ok := f.items[id]
	if !ok || pr.Status != StatusRecurring {
		return false, nil
	}
	pr.Status = StatusCompleted
	pr.CompletedAt = &now
	if pr.FinanceApprovedAt == nil {
		pr.FinanceApprovedAt = &now
	}
	return true, nil
}

type fakeDirectory struct {
	users map[int64]notify.Recipient
}

func (d *fakeDirectory) ListByRoles(_ context.Context, roles ...shared.Role) ([]notify.Recipient, error) {
	var out []notify.Recipient
	for _, u := range d.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListManagersByDepartment(_ context.Context, department string) ([]notify.Recipient, error) {
	var out []notify.Recipient
	for _, u := range d.users {
		if u.Role == shared.RoleDepartmentManager && u.Department == department {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Get(_ context.Context, id int64) (notify.Recipient, error) {
	u, ok := d.users[id]
	if !ok {
		return notify.Recipient{}, shared.ErrNotFound
	}
	return u, nil
}

type fakeNotes struct {
	seq  int64
	rows []notify.Notification
}

func (f *fakeNotes) InsertBatch(_ context.Context, notes []notify.Notification) ([]notify.Notification, error) {
	out := make([]notify.Notification, len(notes))
	for i, n := range notes {
		f.seq++
		n.ID = f.seq
		n.CreatedAt = time.Now()
		f.rows = append(f.rows, n)
		out[i] = n
	}
	return out, nil
}

func (f *fakeNotes) ListForUser(_ context.Context, userID int64, events []notify.Event, _, _ int) ([]notify.Notification, error) {
	var out []notify.Notification
	for _, n := range f.rows {
		if n.UserID == nil || *n.UserID != userID {
			continue
		}
		for _, ev := range events {
			if n.Event == ev {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (f *fakeNotes) UnreadCount(ctx context.Context, userID int64, events []notify.Event) (int, error) {
	list, _ := f.ListForUser(ctx, userID, events, 0, 0)
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotes) MarkRead(_ context.Context, userID, id int64) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID != nil && *f.rows[i].UserID == userID {
			f.rows[i].Read = true
			return nil
		}
	}
	return notify.ErrNotificationNotFound
}

func (f *fakeNotes) MarkAllRead(_ context.Context, userID int64, _ []notify.Event) (int64, error) {
	var n int64
	for i := range f.rows {
		if f.rows[i].UserID != nil && *f.rows[i].UserID == userID && !f.rows[i].Read {
			f.rows[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotes) LastTimingAlertAt(_ context.Context, requestID int64) (*time.Time, error) {
	var last *time.Time
	for _, n := range f.rows {
		if n.RequestID == nil || *n.RequestID != requestID {
			continue
		}
		if n.Event != notify.EventTimingAlert && n.Event != notify.EventTimingRecurring {
			continue
		}
		at := n.CreatedAt
		if last == nil || at.After(*last) {
			last = &at
		}
	}
	return last, nil
}

func (f *fakeNotes) ExistsForRequestOn(_ context.Context, requestID int64, event notify.Event, day time.Time) (bool, error) {
	for _, n := range f.rows {
		if n.RequestID != nil && *n.RequestID == requestID && n.Event == event &&
			n.CreatedAt.Truncate(24*time.Hour).Equal(day.Truncate(24*time.Hour)) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotes) eventsFor(userID int64) []notify.Event {
	var out []notify.Event
	for _, n := range f.rows {
		if n.UserID != nil && *n.UserID == userID {
			out = append(out, n.Event)
		}
	}
	return out
}

func testFixture(t *testing.T) (*Service, *fakeRepo, *fakeNotes) {
	t.Helper()
	dir := &fakeDirectory{users: map[int64]notify.Recipient{
		1: {ID: 1, Name: "Budi", Email: "budi@payflow.app", Role: shared.RoleITStaff, Department: "IT"},
		2: {ID: 2, Name: "Dewi", Email: "dewi@payflow.app", Role: shared.RoleDepartmentManager, Department: "IT"},
		3: {ID: 3, Name: "Rina", Email: "rina@payflow.app", Role: shared.RoleDepartmentManager, Department: "Marketing"},
		4: {ID: 4, Name: "Sari", Email: "sari.wulandari@payflow.app", Role: shared.RoleFinanceAdmin, Department: "Finance"},
		5: {ID: 5, Name: "Agus", Email: "agus@payflow.app", Role: shared.RoleFinanceStaff, Department: "Finance"},
	}}
	notes := &fakeNotes{}
	logger := slog.Default()
	router := notify.NewRouter(notes, dir, nil, logger)
	repo := newFakeRepo()
	return NewService(repo, dir, router, nil, logger), repo, notes
}

func submit(t *testing.T, svc *Service, req SubmitRequest) *PaymentRequest {
	t.Helper()
	pr, err := svc.Submit(context.Background(), 1, req)
	require.NoError(t, err)
	return pr
}

func TestSubmitCanonicalizesRecurrenceSpec(t *testing.T) {
	svc, _, _ := testFixture(t)

	pr := submit(t, svc, SubmitRequest{
		RequestType:    "vendor-payment",
		Amount:         1500000,
		Currency:       "IDR",
		Recurring:      true,
		RecurrenceSpec: "monthly:1:15|end=2026-12-31",
	})
	require.Equal(t, StatusPending, pr.Status)
	require.NotNil(t, pr.RecurrenceSpec)
	require.Equal(t, "monthly:1:15|end=2026-12-31", *pr.RecurrenceSpec)

	_, err := svc.Submit(context.Background(), 1, SubmitRequest{
		RequestType:    "vendor-payment",
		Amount:         100,
		Currency:       "IDR",
		Recurring:      true,
		RecurrenceSpec: "fortnightly:1",
	})
	require.ErrorIs(t, err, recurrence.ErrMalformedSpec)
}

func TestSubmitRoutesITStaffToITManagersOnly(t *testing.T) {
	svc, _, notes := testFixture(t)

	submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	require.Contains(t, notes.eventsFor(2), notify.EventNewSubmission)
	require.Empty(t, notes.eventsFor(3), "managers of other departments must not be notified")
	require.Empty(t, notes.eventsFor(4))
}

func TestSubmitUrgentUsesUrgentEvent(t *testing.T) {
	svc, _, notes := testFixture(t)

	submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD", Urgent: true})

	require.Contains(t, notes.eventsFor(2), notify.EventUrgentSubmission)
	require.NotContains(t, notes.eventsFor(2), notify.EventNewSubmission)
}

func TestApproveAdvancesThroughFinanceReview(t *testing.T) {
	svc, repo, notes := testFixture(t)
	pr := submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	approved, err := svc.Approve(context.Background(), pr.ID, 2)
	require.NoError(t, err)
	require.Equal(t, StatusFinanceReview, approved.Status)
	require.NotNil(t, approved.ManagerApprovedAt)
	require.NotNil(t, approved.FinanceReviewStartedAt)

	// Requestor hears the manager decision, finance hears it is their turn.
	require.Contains(t, notes.eventsFor(1), notify.EventManagerApproved)
	require.Contains(t, notes.eventsFor(4), notify.EventReadyForFinanceReview)
	require.Contains(t, notes.eventsFor(5), notify.EventReadyForFinanceReview)

	_, err = svc.Approve(context.Background(), pr.ID, 2)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	stored, err := repo.Get(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, StatusFinanceReview, stored.Status)
}

func TestFinanceApproveRecurringLandsInRecurring(t *testing.T) {
	svc, repo, _ := testFixture(t)
	pr := submit(t, svc, SubmitRequest{
		RequestType: "subscription", Amount: 100, Currency: "USD",
		Recurring: true, RecurrenceSpec: "monthly:1",
	})

	_, err := svc.Approve(context.Background(), pr.ID, 2)
	require.NoError(t, err)

	done, err := svc.FinanceApprove(context.Background(), pr.ID, 4)
	require.NoError(t, err)
	require.Equal(t, StatusRecurring, done.Status)
	require.NotNil(t, done.FinanceApprovedAt)
	require.NotNil(t, done.FinanceDurationSecs)

	// Duration is write-once.
	first := *done.FinanceDurationSecs
	require.NoError(t, repo.SetFinanceDuration(context.Background(), pr.ID, first+999))
	stored, err := repo.Get(context.Background(), pr.ID)
	require.NoError(t, err)
	require.Equal(t, first, *stored.FinanceDurationSecs)
}

func TestFinanceApproveNonRecurringThenComplete(t *testing.T) {
	svc, _, notes := testFixture(t)
	pr := submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	_, err := svc.Approve(context.Background(), pr.ID, 2)
	require.NoError(t, err)
	approved, err := svc.FinanceApprove(context.Background(), pr.ID, 4)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	done, err := svc.Complete(context.Background(), pr.ID, 4)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Contains(t, notes.eventsFor(1), notify.EventPaymentExecuted)

	_, err = svc.Complete(context.Background(), pr.ID, 4)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestRejectFromPreTerminalOnly(t *testing.T) {
	svc, _, notes := testFixture(t)
	pr := submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	_, err := svc.Approve(context.Background(), pr.ID, 2)
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), pr.ID, 2, RejectRequest{Reason: "missing quote"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "missing quote", *rejected.RejectionReason)
	require.Contains(t, notes.eventsFor(1), notify.EventRequestRejected)

	_, err = svc.Reject(context.Background(), pr.ID, 2, RejectRequest{Reason: "again"})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestResubmitReturnsToPending(t *testing.T) {
	svc, _, notes := testFixture(t)
	pr := submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	_, err := svc.Reject(context.Background(), pr.ID, 2, RejectRequest{Reason: "missing quote"})
	require.NoError(t, err)

	back, err := svc.Resubmit(context.Background(), pr.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPending, back.Status)
	require.Contains(t, notes.eventsFor(2), notify.EventRequestResubmitted)
}

func TestRecordProofUpload(t *testing.T) {
	svc, _, notes := testFixture(t)
	pr := submit(t, svc, SubmitRequest{RequestType: "hardware", Amount: 250, Currency: "USD"})

	got, err := svc.RecordProofUpload(context.Background(), pr.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, got.ProofUploadedAt)
	require.Contains(t, notes.eventsFor(1), notify.EventProofUploaded)
	require.Contains(t, notes.eventsFor(5), notify.EventProofUploaded)
}

func TestSubmitUnknownRequestor(t *testing.T) {
	svc, _, _ := testFixture(t)
	_, err := svc.Submit(context.Background(), 99, SubmitRequest{
		RequestType: "hardware", Amount: 250, Currency: "USD",
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
