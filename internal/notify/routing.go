package notify

import (
	"context"
	"fmt"

	"github.com/payflow-app/payflow/internal/shared"
)

// Write-side routing: who gets a notification row for a given event. This is
// a fixed table keyed by event, with the submission event further dispatched
// on the requestor's role. Read-side visibility (visibility.go) is a
// separate, deliberately asymmetric layer.

type selector func(ctx context.Context, dir UserDirectory, rc *RequestContext) ([]Recipient, error)

func byRoles(roles ...shared.Role) selector {
	return func(ctx context.Context, dir UserDirectory, _ *RequestContext) ([]Recipient, error) {
		return dir.ListByRoles(ctx, roles...)
	}
}

func managersOf(department string) selector {
	return func(ctx context.Context, dir UserDirectory, _ *RequestContext) ([]Recipient, error) {
		return dir.ListManagersByDepartment(ctx, department)
	}
}

func managersOfRequestorDepartment(ctx context.Context, dir UserDirectory, rc *RequestContext) ([]Recipient, error) {
	if rc == nil {
		return nil, nil
	}
	return dir.ListManagersByDepartment(ctx, rc.Department)
}

func requestor(ctx context.Context, dir UserDirectory, rc *RequestContext) ([]Recipient, error) {
	if rc == nil {
		return nil, nil
	}
	rec, err := dir.Get(ctx, rc.RequestorID)
	if err != nil {
		return nil, err
	}
	return []Recipient{rec}, nil
}

func union(selectors ...selector) selector {
	return func(ctx context.Context, dir UserDirectory, rc *RequestContext) ([]Recipient, error) {
		var all []Recipient
		for _, sel := range selectors {
			recs, err := sel(ctx, dir, rc)
			if err != nil {
				return nil, err
			}
			all = append(all, recs...)
		}
		return all, nil
	}
}

// submissionRules dispatch new submissions on the requestor's role, first
// match wins.
var submissionRules = []struct {
	match  func(role shared.Role) bool
	pick   selector
}{
	{
		match: func(role shared.Role) bool { return role == shared.RoleDepartmentManager },
		pick:  byRoles(shared.RoleGM),
	},
	{
		match: func(role shared.Role) bool { return role == shared.RoleOperationStaff },
		pick:  byRoles(shared.RoleOperationManager),
	},
	{
		match: func(role shared.Role) bool { return role == shared.RoleITStaff },
		pick:  managersOf(shared.DepartmentIT),
	},
	{
		match: func(role shared.Role) bool { return role.IsStaff() },
		pick:  managersOfRequestorDepartment,
	},
}

var routingTable = map[Event]selector{
	EventReadyForFinanceReview: byRoles(shared.RoleFinanceStaff, shared.RoleFinanceAdmin),
	EventFinanceReviewStarted:  byRoles(shared.RoleFinanceStaff, shared.RoleFinanceAdmin),
	EventProofUploaded:         union(requestor, byRoles(shared.RoleFinanceStaff, shared.RoleFinanceAdmin)),
	EventProofReminder:         requestor,
	// Finance is copied on approvals it did not perform.
	EventRequestApproved:  union(requestor, byRoles(shared.RoleFinanceStaff, shared.RoleFinanceAdmin)),
	EventManagerApproved:  requestor,
	EventPaymentExecuted:  union(requestor, byRoles(shared.RoleFinanceStaff, shared.RoleFinanceAdmin)),
	EventRequestRejected:  requestor,
	EventRequestCancelled: requestor,
	EventStatusChanged:    requestor,
	EventCommentAdded:     requestor,
	// The due events write to the union of the role set and the requestor;
	// read-side visibility narrows who actually sees them.
	EventRecurringDue:       union(byRoles(shared.RoleFinanceAdmin, shared.RoleProjectStaff), requestor),
	EventRecurringReminder:  union(byRoles(shared.RoleFinanceAdmin, shared.RoleProjectStaff), requestor),
	EventRecurringCompleted: union(byRoles(shared.RoleFinanceAdmin, shared.RoleProjectStaff), requestor),
	EventInstallmentPaid:    union(requestor, byRoles(shared.RoleFinanceAdmin)),
	EventScheduleReplaced:   byRoles(shared.RoleFinanceAdmin),
	EventTimingAlert:        byRoles(shared.RoleFinanceAdmin),
	EventTimingRecurring:    byRoles(shared.RoleFinanceAdmin),
	EventUserCreated:        byRoles(shared.RoleITStaff),
	EventUserUpdated:        byRoles(shared.RoleITStaff),
	EventUserDeleted:        byRoles(shared.RoleITStaff),
}

// ResolveRecipients returns the deduplicated recipient set for an event.
// Unknown events resolve to an empty set rather than an error.
func ResolveRecipients(ctx context.Context, dir UserDirectory, event Event, rc *RequestContext) ([]Recipient, error) {
	if dir == nil {
		return nil, fmt.Errorf("notify: user directory not configured")
	}

	var (
		recs []Recipient
		err  error
	)
	switch event {
	case EventNewSubmission, EventUrgentSubmission, EventRequestResubmitted:
		if rc == nil {
			return nil, nil
		}
		for _, rule := range submissionRules {
			if rule.match(rc.RequestorRole) {
				recs, err = rule.pick(ctx, dir, rc)
				break
			}
		}
	default:
		sel, ok := routingTable[event]
		if !ok {
			return nil, nil
		}
		recs, err = sel(ctx, dir, rc)
	}
	if err != nil {
		return nil, err
	}
	return dedupe(recs), nil
}

func dedupe(recs []Recipient) []Recipient {
	seen := make(map[int64]bool, len(recs))
	out := recs[:0]
	for _, rec := range recs {
		if rec.ID == 0 || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	return out
}
