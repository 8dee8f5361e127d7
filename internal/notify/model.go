// Package notify routes workflow events to notification recipients, persists
// the resulting rows and signals connected clients over Redis pub/sub.
package notify

import (
	"context"
	"time"

	"github.com/payflow-app/payflow/internal/shared"
)

// Event tags the business occurrence a notification describes. The set is
// closed; unknown tags route to nobody and are invisible to every viewer.
type Event string

const (
	EventNewSubmission         Event = "new_submission"
	EventUrgentSubmission      Event = "urgent_submission"
	EventRequestResubmitted    Event = "request_resubmitted"
	EventManagerApproved       Event = "manager_approved"
	EventReadyForFinanceReview Event = "ready_for_finance_review"
	EventFinanceReviewStarted  Event = "finance_review_started"
	EventRequestApproved       Event = "request_approved"
	EventRequestRejected       Event = "request_rejected"
	EventRequestCancelled      Event = "request_cancelled"
	EventStatusChanged         Event = "status_changed"
	EventProofUploaded         Event = "proof_uploaded"
	EventProofReminder         Event = "proof_reminder"
	EventPaymentExecuted       Event = "payment_executed"
	EventRecurringDue          Event = "recurring_due"
	EventRecurringReminder     Event = "recurring_reminder"
	EventRecurringCompleted    Event = "recurring_completed"
	EventInstallmentPaid       Event = "installment_paid"
	EventScheduleReplaced      Event = "schedule_replaced"
	EventTimingAlert           Event = "timing_alert"
	EventTimingRecurring       Event = "timing_recurring"
	EventUserCreated           Event = "user_created"
	EventUserUpdated           Event = "user_updated"
	EventUserDeleted           Event = "user_deleted"
	EventLoginCode             Event = "login_code"
	EventCommentAdded          Event = "comment_added"
)

// Notification is one persisted row. Rows are created by the router, flipped
// to read by their owner and never deleted; deleting a user nulls UserID.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Event     Event     `json:"event"`
	RequestID *int64    `json:"request_id,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient is the slice of a user account the router needs.
type Recipient struct {
	ID         int64
	Name       string
	Email      string
	Role       shared.Role
	Department string
}

// UserDirectory resolves recipients. Implemented by the users package.
type UserDirectory interface {
	ListByRoles(ctx context.Context, roles ...shared.Role) ([]Recipient, error)
	ListManagersByDepartment(ctx context.Context, department string) ([]Recipient, error)
	Get(ctx context.Context, id int64) (Recipient, error)
}

// RequestContext carries the request attributes recipient selection and
// message rendering depend on. Nil for events without a request (user_*).
type RequestContext struct {
	RequestID     int64
	RequestorID   int64
	RequestorName string
	RequestorRole shared.Role
	Department    string
	Amount        float64
	Currency      string
	Urgent        bool
}
