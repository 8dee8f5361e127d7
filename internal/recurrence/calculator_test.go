package recurrence

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustParse(t *testing.T, raw string) Spec {
	t.Helper()
	spec, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q) returned error: %v", raw, err)
	}
	return spec
}

func TestIsDue_MonthlyNeverFiresOnAnchorDate(t *testing.T) {
	spec := mustParse(t, "monthly:1")
	anchor := date(2024, time.January, 15)
	if spec.IsDue(anchor, anchor) {
		t.Fatalf("monthly schedule fired on its anchor date")
	}
}

func TestIsDue_MonthlyFiresOneIntervalLater(t *testing.T) {
	spec := mustParse(t, "monthly:1")
	anchor := date(2024, time.January, 15)
	if !spec.IsDue(anchor, date(2024, time.February, 15)) {
		t.Fatalf("monthly schedule did not fire one month after anchor")
	}
}

func TestIsDue_MonthlyIntervalTwo(t *testing.T) {
	spec := mustParse(t, "monthly:2")
	anchor := date(2024, time.January, 15)
	if spec.IsDue(anchor, date(2024, time.February, 15)) {
		t.Fatalf("interval-2 schedule fired after one month")
	}
	if !spec.IsDue(anchor, date(2024, time.March, 15)) {
		t.Fatalf("interval-2 schedule did not fire after two months")
	}
	if spec.IsDue(anchor, date(2024, time.March, 14)) {
		t.Fatalf("schedule fired on a non-matching day of month")
	}
}

func TestIsDue_MonthlyExplicitDays(t *testing.T) {
	spec := mustParse(t, "monthly:1:1,15")
	anchor := date(2024, time.January, 20)
	if !spec.IsDue(anchor, date(2024, time.February, 1)) {
		t.Fatalf("day selector 1 did not fire")
	}
	if !spec.IsDue(anchor, date(2024, time.February, 15)) {
		t.Fatalf("day selector 15 did not fire")
	}
	if spec.IsDue(anchor, date(2024, time.February, 20)) {
		t.Fatalf("anchor day fired despite explicit day selectors")
	}
}

func TestIsDue_MonthlyMonthEndAnchorClampsToShortMonths(t *testing.T) {
	spec := mustParse(t, "monthly:1")
	anchor := date(2024, time.January, 31)
	if !spec.IsDue(anchor, date(2024, time.February, 29)) {
		t.Fatalf("month-end anchor did not fire on February's last day")
	}
	if !spec.IsDue(anchor, date(2024, time.April, 30)) {
		t.Fatalf("month-end anchor did not fire on April 30th")
	}
	if !spec.IsDue(anchor, date(2024, time.March, 31)) {
		t.Fatalf("month-end anchor did not fire in a 31-day month")
	}
	if spec.IsDue(anchor, date(2024, time.February, 28)) {
		t.Fatalf("month-end anchor fired before the month's last day")
	}
}

func TestIsDue_MonthlyDaySelectorClampsToShortMonths(t *testing.T) {
	spec := mustParse(t, "monthly:1:31")
	anchor := date(2024, time.January, 5)
	if !spec.IsDue(anchor, date(2024, time.April, 30)) {
		t.Fatalf("day selector 31 did not clamp to April 30th")
	}
	if !spec.IsDue(anchor, date(2024, time.May, 31)) {
		t.Fatalf("day selector 31 did not fire on May 31st")
	}
	if spec.IsDue(anchor, date(2024, time.May, 30)) {
		t.Fatalf("day selector 31 fired on May 30th")
	}
}

func TestIsDue_DailyInterval(t *testing.T) {
	spec := mustParse(t, "daily:2")
	anchor := date(2024, time.March, 1)
	if !spec.IsDue(anchor, date(2024, time.March, 3)) {
		t.Fatalf("daily:2 did not fire two days after anchor")
	}
	if spec.IsDue(anchor, date(2024, time.March, 4)) {
		t.Fatalf("daily:2 fired on an odd day offset")
	}
	if !spec.IsDue(anchor, anchor) {
		t.Fatalf("daily schedule should count from day zero")
	}
}

func TestIsDue_DailyClockGate(t *testing.T) {
	spec := mustParse(t, "daily:1:09,30")
	anchor := date(2024, time.March, 1)
	before := time.Date(2024, time.March, 2, 9, 15, 0, 0, time.UTC)
	after := time.Date(2024, time.March, 2, 9, 30, 0, 0, time.UTC)
	if spec.IsDue(anchor, before) {
		t.Fatalf("daily schedule fired before its scheduled clock time")
	}
	if !spec.IsDue(anchor, after) {
		t.Fatalf("daily schedule did not fire at its scheduled clock time")
	}
}

func TestIsDue_WeeklySelectedDays(t *testing.T) {
	spec := mustParse(t, "weekly:monday,friday")
	anchor := date(2024, time.January, 3) // a Wednesday
	monday := date(2024, time.January, 8)
	wednesday := date(2024, time.January, 10)
	if !spec.IsDue(anchor, monday) {
		t.Fatalf("weekly schedule did not fire on a selected weekday")
	}
	if spec.IsDue(anchor, wednesday) {
		t.Fatalf("weekly schedule fired on an unselected weekday")
	}
}

func TestIsDue_WeeklyFallsBackToAnchorWeekday(t *testing.T) {
	spec := mustParse(t, "weekly")
	anchor := date(2024, time.January, 3) // a Wednesday
	if !spec.IsDue(anchor, date(2024, time.January, 10)) {
		t.Fatalf("weekly fallback did not fire on the anchor weekday")
	}
	if spec.IsDue(anchor, date(2024, time.January, 9)) {
		t.Fatalf("weekly fallback fired on a different weekday")
	}
}

func TestIsDue_Quarterly(t *testing.T) {
	spec := mustParse(t, "quarterly:1")
	anchor := date(2024, time.January, 10)
	if spec.IsDue(anchor, anchor) {
		t.Fatalf("quarterly fired on anchor date")
	}
	if !spec.IsDue(anchor, date(2024, time.April, 10)) {
		t.Fatalf("quarterly did not fire one quarter later")
	}
	if spec.IsDue(anchor, date(2024, time.March, 10)) {
		t.Fatalf("quarterly fired after only two months")
	}
}

func TestIsDue_Yearly(t *testing.T) {
	spec := mustParse(t, "yearly:1:6:15")
	anchor := date(2023, time.June, 15)
	if !spec.IsDue(anchor, date(2024, time.June, 15)) {
		t.Fatalf("yearly did not fire one year later")
	}
	if spec.IsDue(anchor, date(2023, time.June, 15)) {
		t.Fatalf("yearly fired on anchor date")
	}
	if spec.IsDue(anchor, date(2024, time.July, 15)) {
		t.Fatalf("yearly fired in the wrong month")
	}
}

func TestIsDue_EndDateStopsSchedule(t *testing.T) {
	spec := mustParse(t, "monthly:1|end=2024-03-01")
	anchor := date(2024, time.January, 15)
	if !spec.IsDue(anchor, date(2024, time.February, 15)) {
		t.Fatalf("schedule did not fire before its end date")
	}
	if spec.IsDue(anchor, date(2024, time.March, 15)) {
		t.Fatalf("schedule fired past its end date")
	}
}

func TestIsDue_CustomNeverFires(t *testing.T) {
	spec := mustParse(t, "custom")
	anchor := date(2024, time.January, 1)
	if spec.IsDue(anchor, date(2024, time.February, 1)) {
		t.Fatalf("custom schedule fired via the calculator")
	}
}

func TestIsDueRaw_FailsClosedOnLegacyRows(t *testing.T) {
	due, err := IsDueRaw("monthly:potato", date(2024, time.January, 1), date(2024, time.February, 1))
	if err == nil {
		t.Fatalf("expected parse error for malformed stored spec")
	}
	if due {
		t.Fatalf("malformed stored spec reported due")
	}
}

func TestIsDue_BeforeAnchorNeverDue(t *testing.T) {
	spec := mustParse(t, "daily:1")
	anchor := date(2024, time.June, 1)
	if spec.IsDue(anchor, date(2024, time.May, 31)) {
		t.Fatalf("schedule fired before its anchor date")
	}
}
