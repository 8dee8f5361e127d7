// Package schedule manages the installment schedules of recurring payment
// requests: transactional replacement, payment recording and the completion
// check that closes a fully paid request.
package schedule

import "time"

// AmountTolerance is the float comparison slack applied when matching the
// installment sum against the request total, both at replacement and at the
// completion check.
const AmountTolerance = 0.001

// Installment is one scheduled payment of a recurring request.
type Installment struct {
	ID           int64      `json:"id"`
	RequestID    int64      `json:"request_id"`
	PaymentOrder int        `json:"payment_order"`
	DueDate      time.Time  `json:"due_date"`
	Amount       float64    `json:"amount"`
	Paid         bool       `json:"paid"`
	ReceiptRef   *string    `json:"receipt_ref,omitempty"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Entry is the caller-supplied shape of one installment in a Replace call.
type Entry struct {
	PaymentOrder int       `json:"payment_order" validate:"required,gt=0"`
	DueDate      time.Time `json:"due_date" validate:"required"`
	Amount       float64   `json:"amount" validate:"required,gt=0"`
}

// ReplaceRequest is the payload for replacing a request's schedule.
type ReplaceRequest struct {
	Entries []Entry `json:"entries" validate:"required,min=1,dive"`
}

// MarkPaidRequest records a payment against one installment.
type MarkPaidRequest struct {
	ReceiptRef string `json:"receipt_ref" validate:"required,max=200"`
}
