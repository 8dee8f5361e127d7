// Package requests implements the payment request approval state machine.
package requests

import (
	"time"

	"github.com/google/uuid"
)

// Status is the approval stage of a payment request.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusManagerApproved Status = "MANAGER_APPROVED"
	StatusFinanceReview   Status = "FINANCE_REVIEW"
	StatusApproved        Status = "APPROVED"
	StatusRecurring       Status = "RECURRING"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
)

// transitions lists the legal forward edges. Rejection is handled separately
// because it is reachable from every pre-terminal state.
var transitions = map[Status][]Status{
	StatusPending:         {StatusManagerApproved},
	StatusManagerApproved: {StatusFinanceReview},
	StatusFinanceReview:   {StatusApproved, StatusRecurring},
	StatusApproved:        {StatusCompleted},
	StatusRejected:        {StatusPending},
}

// Terminal reports whether the status admits no further transitions other
// than resubmission.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	if to == StatusRejected {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentRequest is one request moving through the approval chain.
type PaymentRequest struct {
	ID              int64     `json:"id"`
	PublicID        uuid.UUID `json:"public_id"`
	RequestType     string    `json:"request_type"`
	Description     string    `json:"description"`
	RequestorID     int64     `json:"requestor_id"`
	Department      string    `json:"department"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          Status    `json:"status"`
	Urgent          bool      `json:"urgent"`
	Recurring       bool      `json:"recurring"`
	RecurrenceSpec  *string   `json:"recurrence_spec,omitempty"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`

	SubmittedAt            time.Time  `json:"submitted_at"`
	ManagerApprovedAt      *time.Time `json:"manager_approved_at,omitempty"`
	FinanceReviewStartedAt *time.Time `json:"finance_review_started_at,omitempty"`
	FinanceApprovedAt      *time.Time `json:"finance_approved_at,omitempty"`
	CompletedAt            *time.Time `json:"completed_at,omitempty"`
	ProofUploadedAt        *time.Time `json:"proof_uploaded_at,omitempty"`
	FinanceDurationSecs    *int64     `json:"finance_duration_secs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
