// Package timing implements the finance-stage approval clock: the
// urgency-dependent overdue predicate, the write-once duration finalization
// and the reminder spacing policy.
package timing

import "time"

const (
	// UrgentThreshold is the finance review SLA for urgent requests.
	UrgentThreshold = 2 * time.Hour
	// NormalThreshold is the finance review SLA for everything else.
	NormalThreshold = 24 * time.Hour
)

// Review is the slice of a payment request the clock operates on.
type Review struct {
	Urgent       bool
	StartedAt    *time.Time
	EndedAt      *time.Time
	DurationSecs *int64
}

// Threshold returns the SLA for the given urgency.
func Threshold(urgent bool) time.Duration {
	if urgent {
		return UrgentThreshold
	}
	return NormalThreshold
}

// Overdue reports whether the review has been sitting in the finance stage
// past its threshold, and how long it has been there. Requests that never
// entered the stage, or already left it, are never overdue.
func Overdue(rev Review, now time.Time) (bool, time.Duration) {
	if rev.StartedAt == nil || rev.EndedAt != nil {
		return false, 0
	}
	elapsed := now.Sub(*rev.StartedAt)
	return elapsed > Threshold(rev.Urgent), elapsed
}

// DurationSecs returns the finance stage duration to store, or nil when it
// must not be written: either stamp missing, or a value is already stored.
// The stored value wins even if the stamps would now compute differently.
func DurationSecs(rev Review) *int64 {
	if rev.DurationSecs != nil {
		return nil
	}
	if rev.StartedAt == nil || rev.EndedAt == nil {
		return nil
	}
	secs := int64(rev.EndedAt.Sub(*rev.StartedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// ShouldRemind reports whether a repeat alert is due: the request is overdue
// and at least one threshold interval has passed since the last alert of
// either kind. A nil lastAlert means no alert exists yet, so the first one
// is always allowed.
func ShouldRemind(rev Review, lastAlert *time.Time, now time.Time) bool {
	over, _ := Overdue(rev, now)
	if !over {
		return false
	}
	if lastAlert == nil {
		return true
	}
	return now.Sub(*lastAlert) >= Threshold(rev.Urgent)
}
