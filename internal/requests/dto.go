package requests

// SubmitRequest is the payload for creating a payment request.
type SubmitRequest struct {
	RequestType    string  `json:"request_type" validate:"required,max=60"`
	Description    string  `json:"description" validate:"max=2000"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	Currency       string  `json:"currency" validate:"required,len=3,uppercase"`
	Urgent         bool    `json:"urgent"`
	Recurring      bool    `json:"recurring"`
	RecurrenceSpec string  `json:"recurrence_spec,omitempty" validate:"omitempty,max=200"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ListRequestsRequest filters the request listing.
type ListRequestsRequest struct {
	Status      *string `json:"status,omitempty"`
	RequestorID *int64  `json:"requestor_id,omitempty"`
	Department  *string `json:"department,omitempty"`
	Limit       int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset      int     `json:"offset" validate:"gte=0"`
}
