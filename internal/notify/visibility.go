package notify

import "github.com/payflow-app/payflow/internal/shared"

// Read-side visibility: which event tags a viewing user is shown. This is
// independent of the write-side routing table and intentionally narrower for
// some roles (a recurring_due row written to a Project Staff user is only
// shown while that tag stays on their allow-list). Unknown tags are visible
// to nobody.

var ownRequestEvents = []Event{
	EventManagerApproved,
	EventRequestApproved,
	EventRequestRejected,
	EventRequestCancelled,
	EventStatusChanged,
	EventProofUploaded,
	EventProofReminder,
	EventPaymentExecuted,
	EventRecurringDue,
	EventRecurringReminder,
	EventRecurringCompleted,
	EventInstallmentPaid,
	EventCommentAdded,
	EventLoginCode,
}

var financeBaseEvents = []Event{
	EventReadyForFinanceReview,
	EventFinanceReviewStarted,
	EventRequestApproved,
	EventProofUploaded,
	EventPaymentExecuted,
	EventInstallmentPaid,
	EventScheduleReplaced,
	EventStatusChanged,
	EventCommentAdded,
	EventLoginCode,
}

var roleVisibility = map[shared.Role][]Event{
	shared.RoleAccountingStaff:  ownRequestEvents,
	shared.RoleHRStaff:          ownRequestEvents,
	shared.RoleMarketingStaff:   ownRequestEvents,
	shared.RoleProcurementStaff: ownRequestEvents,
	shared.RoleOperationStaff:   ownRequestEvents,
	shared.RoleITStaff: merge(ownRequestEvents,
		EventUserCreated, EventUserUpdated, EventUserDeleted),
	shared.RoleProjectStaff: merge(ownRequestEvents,
		EventRecurringDue, EventRecurringReminder, EventRecurringCompleted),
	shared.RoleDepartmentManager: merge(ownRequestEvents,
		EventNewSubmission, EventUrgentSubmission, EventRequestResubmitted),
	shared.RoleOperationManager: merge(ownRequestEvents,
		EventNewSubmission, EventUrgentSubmission, EventRequestResubmitted),
	shared.RoleGM: merge(ownRequestEvents,
		EventNewSubmission, EventUrgentSubmission, EventManagerApproved),
	shared.RoleFinanceStaff: financeBaseEvents,
	shared.RoleFinanceAdmin: merge(financeBaseEvents,
		EventRecurringDue, EventRecurringReminder, EventRecurringCompleted,
		EventTimingAlert, EventTimingRecurring,
		EventRequestRejected, EventRequestCancelled),
}

// extendedVisibilityEmail names the one Finance Admin identity that receives
// an extended notification set beyond the role default. This is a policy
// exception keyed on identity, kept out of the role table on purpose; do not
// fold it in.
const extendedVisibilityEmail = "sari.wulandari@payflow.app"

var extendedVisibilityEvents = []Event{
	EventNewSubmission,
	EventUrgentSubmission,
	EventRequestResubmitted,
	EventManagerApproved,
	EventProofReminder,
}

// VisibleEvents returns the event tags a viewer may see, applying the
// named-identity override on top of the role allow-list.
func VisibleEvents(role shared.Role, email string) []Event {
	base, ok := roleVisibility[role]
	if !ok {
		return nil
	}
	if email == extendedVisibilityEmail {
		return merge(base, extendedVisibilityEvents...)
	}
	return base
}

// CanSee reports whether the viewer's allow-list contains the event.
func CanSee(role shared.Role, email string, event Event) bool {
	for _, allowed := range VisibleEvents(role, email) {
		if allowed == event {
			return true
		}
	}
	return false
}

func merge(base []Event, extra ...Event) []Event {
	out := make([]Event, 0, len(base)+len(extra))
	seen := make(map[Event]bool, len(base)+len(extra))
	for _, ev := range base {
		if !seen[ev] {
			seen[ev] = true
			out = append(out, ev)
		}
	}
	for _, ev := range extra {
		if !seen[ev] {
			seen[ev] = true
			out = append(out, ev)
		}
	}
	return out
}
