package recurrence

import "time"

// IsDue reports whether a schedule fires on now's date, given the anchor
// date the recurrence was set up on. Pure and deterministic; evaluate in the
// request's local zone.
//
// Calendar frequencies require at least one full period elapsed, so the
// setup day itself never fires and cannot double-fire with the submission
// notification. Daily schedules count from day zero but may be gated behind
// a time of day.
func (s Spec) IsDue(anchor, now time.Time) bool {
	if s.Rule == nil {
		return false
	}
	if s.EndDate != nil && dateOf(now).After(dateOf(*s.EndDate)) {
		return false
	}
	if dateOf(now).Before(dateOf(anchor)) {
		return false
	}

	switch rule := s.Rule.(type) {
	case Daily:
		return rule.dueOn(anchor, now)
	case Weekly:
		return rule.dueOn(anchor, now)
	case Monthly:
		return rule.dueOn(anchor, now)
	case Quarterly:
		return rule.dueOn(anchor, now)
	case Yearly:
		return rule.dueOn(anchor, now)
	default:
		// Custom schedules are driven by explicit installment dates.
		return false
	}
}

// IsDueRaw evaluates a stored wire-form spec. Rows written before boundary
// validation existed may hold text that no longer parses; those fail closed
// (never due) and the caller is expected to log the parse error.
func IsDueRaw(raw string, anchor, now time.Time) (bool, error) {
	spec, err := Parse(raw)
	if err != nil {
		return false, err
	}
	return spec.IsDue(anchor, now), nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, immune to DST offsets.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}

func (r Daily) dueOn(anchor, now time.Time) bool {
	days := daysBetween(anchor, now)
	if days < 0 || days%r.Interval != 0 {
		return false
	}
	if r.At != nil {
		if now.Hour() < r.At.Hour {
			return false
		}
		if now.Hour() == r.At.Hour && now.Minute() < r.At.Minute {
			return false
		}
	}
	return true
}

func (r Weekly) dueOn(anchor, now time.Time) bool {
	if len(r.Days) == 0 {
		return now.Weekday() == anchor.Weekday()
	}
	for _, day := range r.Days {
		if now.Weekday() == day {
			return true
		}
	}
	return false
}

// elapsedMonths counts whole calendar months between the anchor's month and
// now's month. Day-of-month alignment is handled by the day selectors.
func elapsedMonths(anchor, now time.Time) int {
	return (now.Year()-anchor.Year())*12 + int(now.Month()) - int(anchor.Month())
}

// lastDayOfMonth returns the number of days in now's month.
func lastDayOfMonth(now time.Time) int {
	return time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
}

// clampDay maps a day selector past the end of the month onto the month's
// last day, so a schedule anchored on the 31st still fires in short months.
func clampDay(day, last int) int {
	if day > last {
		return last
	}
	return day
}

func dayMatches(days []int, anchor, now time.Time) bool {
	last := lastDayOfMonth(now)
	if len(days) == 0 {
		return now.Day() == clampDay(anchor.Day(), last)
	}
	for _, day := range days {
		if now.Day() == clampDay(day, last) {
			return true
		}
	}
	return false
}

func monthMatches(months []time.Month, anchor, now time.Time) bool {
	if len(months) == 0 {
		return now.Month() == anchor.Month()
	}
	for _, month := range months {
		if now.Month() == month {
			return true
		}
	}
	return false
}

func (r Monthly) dueOn(anchor, now time.Time) bool {
	months := elapsedMonths(anchor, now)
	if months <= 0 || months%r.Interval != 0 {
		return false
	}
	return dayMatches(r.Days, anchor, now)
}

func (r Quarterly) dueOn(anchor, now time.Time) bool {
	months := elapsedMonths(anchor, now)
	if months <= 0 || months%3 != 0 {
		return false
	}
	quarters := months / 3
	if quarters%r.Interval != 0 {
		return false
	}
	// Quarter alignment already pins the month when no selector is given.
	if len(r.Months) > 0 && !monthMatches(r.Months, anchor, now) {
		return false
	}
	return dayMatches(r.Days, anchor, now)
}

func (r Yearly) dueOn(anchor, now time.Time) bool {
	years := now.Year() - anchor.Year()
	if years <= 0 || years%r.Interval != 0 {
		return false
	}
	return monthMatches(r.Months, anchor, now) && dayMatches(r.Days, anchor, now)
}
