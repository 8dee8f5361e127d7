// Package recurrence models repeating payment schedules. The wire form is a
// colon/comma encoded string; it is parsed once at write time into a
// validated Spec so malformed input is rejected at the boundary instead of
// silently never firing.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedSpec wraps every parse failure so callers can match it.
var ErrMalformedSpec = errors.New("malformed recurrence spec")

// ClockTime is an optional time-of-day gate on daily schedules. A same-day
// occurrence only fires once the local clock passes it.
type ClockTime struct {
	Hour   int
	Minute int
}

// Rule is the frequency-specific part of a Spec.
type Rule interface {
	encode() string
	validate() error
}

// Daily fires every Interval days counted from the anchor date.
type Daily struct {
	Interval int
	At       *ClockTime
}

// Weekly fires on the selected weekdays. An empty set falls back to the
// anchor's weekday.
type Weekly struct {
	Days []time.Weekday
}

// Monthly fires on the selected days of month once a positive multiple of
// Interval whole months has elapsed since the anchor.
type Monthly struct {
	Days     []int
	Interval int
}

// Quarterly fires on the selected months and days once a positive multiple
// of Interval quarters has elapsed since the anchor.
type Quarterly struct {
	Months   []time.Month
	Days     []int
	Interval int
}

// Yearly fires on the selected months and days once a positive multiple of
// Interval years has elapsed since the anchor.
type Yearly struct {
	Months   []time.Month
	Days     []int
	Interval int
}

// Custom schedules are driven entirely by explicit per-installment dates;
// the calculator never fires them.
type Custom struct{}

// Spec is a validated recurrence specification.
type Spec struct {
	Rule    Rule
	EndDate *time.Time
}

// Parse decodes the wire form, e.g.
//
//	daily:2            every second day
//	daily:1:09,30      every day at 09:30
//	weekly:monday,friday
//	monthly:1:1,15     the 1st and 15th, every month
//	quarterly:1:1,4,7,10:5
//	yearly:1:6:15      June 15th every year
//	custom
//
// with an optional "|end=2006-01-02" suffix. Malformed input returns an
// error wrapping ErrMalformedSpec.
func Parse(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}, fmt.Errorf("%w: empty", ErrMalformedSpec)
	}

	var spec Spec
	body := raw
	if idx := strings.Index(raw, "|"); idx >= 0 {
		body = raw[:idx]
		end, err := parseEndDate(raw[idx+1:])
		if err != nil {
			return Spec{}, err
		}
		spec.EndDate = end
	}

	parts := strings.Split(body, ":")
	freq := strings.ToLower(strings.TrimSpace(parts[0]))
	args := parts[1:]

	var (
		rule Rule
		err  error
	)
	switch freq {
	case "daily":
		rule, err = parseDaily(args)
	case "weekly":
		rule, err = parseWeekly(args)
	case "monthly":
		rule, err = parseMonthly(args)
	case "quarterly":
		rule, err = parseQuarterly(args)
	case "yearly":
		rule, err = parseYearly(args)
	case "custom":
		if len(args) != 0 {
			err = fmt.Errorf("%w: custom takes no arguments", ErrMalformedSpec)
		} else {
			rule = Custom{}
		}
	default:
		err = fmt.Errorf("%w: unknown frequency %q", ErrMalformedSpec, freq)
	}
	if err != nil {
		return Spec{}, err
	}
	if err := rule.validate(); err != nil {
		return Spec{}, err
	}
	spec.Rule = rule
	return spec, nil
}

// Encode returns the canonical wire form. Parse(s.Encode()) round-trips.
func (s Spec) Encode() string {
	if s.Rule == nil {
		return ""
	}
	out := s.Rule.encode()
	if s.EndDate != nil {
		out += "|end=" + s.EndDate.Format("2006-01-02")
	}
	return out
}

// IsCustom reports whether the schedule is driven by explicit installments.
func (s Spec) IsCustom() bool {
	_, ok := s.Rule.(Custom)
	return ok
}

func parseEndDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "end=") {
		return nil, fmt.Errorf("%w: unknown suffix %q", ErrMalformedSpec, raw)
	}
	end, err := time.Parse("2006-01-02", strings.TrimPrefix(raw, "end="))
	if err != nil {
		return nil, fmt.Errorf("%w: end date: %v", ErrMalformedSpec, err)
	}
	return &end, nil
}

func parseInterval(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: interval %q", ErrMalformedSpec, raw)
	}
	return n, nil
}

func parseDaily(args []string) (Rule, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: daily wants interval[:HH,MM]", ErrMalformedSpec)
	}
	interval, err := parseInterval(args[0])
	if err != nil {
		return nil, err
	}
	rule := Daily{Interval: interval}
	if len(args) == 2 {
		at, err := parseClockTime(args[1])
		if err != nil {
			return nil, err
		}
		rule.At = at
	}
	return rule, nil
}

func parseClockTime(raw string) (*ClockTime, error) {
	fields := strings.Split(raw, ",")
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: time of day %q", ErrMalformedSpec, raw)
	}
	hour, err1 := strconv.Atoi(strings.TrimSpace(fields[0]))
	minute, err2 := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("%w: time of day %q", ErrMalformedSpec, raw)
	}
	return &ClockTime{Hour: hour, Minute: minute}, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseWeekly(args []string) (Rule, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("%w: weekly wants a day list", ErrMalformedSpec)
	}
	rule := Weekly{}
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		for _, name := range strings.Split(args[0], ",") {
			day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, fmt.Errorf("%w: weekday %q", ErrMalformedSpec, name)
			}
			rule.Days = append(rule.Days, day)
		}
	}
	return rule, nil
}

func parseDayList(raw string) ([]int, error) {
	var days []int
	for _, field := range strings.Split(raw, ",") {
		day, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("%w: day of month %q", ErrMalformedSpec, field)
		}
		days = append(days, day)
	}
	sort.Ints(days)
	return days, nil
}

func parseMonthList(raw string) ([]time.Month, error) {
	var months []time.Month
	for _, field := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 1 || n > 12 {
			return nil, fmt.Errorf("%w: month %q", ErrMalformedSpec, field)
		}
		months = append(months, time.Month(n))
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months, nil
}

func parseMonthly(args []string) (Rule, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: monthly wants interval[:days]", ErrMalformedSpec)
	}
	interval, err := parseInterval(args[0])
	if err != nil {
		return nil, err
	}
	rule := Monthly{Interval: interval}
	if len(args) == 2 {
		days, err := parseDayList(args[1])
		if err != nil {
			return nil, err
		}
		rule.Days = days
	}
	return rule, nil
}

func parseQuarterly(args []string) (Rule, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, fmt.Errorf("%w: quarterly wants interval[:months[:days]]", ErrMalformedSpec)
	}
	interval, err := parseInterval(args[0])
	if err != nil {
		return nil, err
	}
	rule := Quarterly{Interval: interval}
	if len(args) >= 2 {
		months, err := parseMonthList(args[1])
		if err != nil {
			return nil, err
		}
		rule.Months = months
	}
	if len(args) == 3 {
		days, err := parseDayList(args[2])
		if err != nil {
			return nil, err
		}
		rule.Days = days
	}
	return rule, nil
}

func parseYearly(args []string) (Rule, error) {
	if len(args) < 1 || len(args) > 3 {
		return nil, fmt.Errorf("%w: yearly wants interval[:months[:days]]", ErrMalformedSpec)
	}
	interval, err := parseInterval(args[0])
	if err != nil {
		return nil, err
	}
	rule := Yearly{Interval: interval}
	if len(args) >= 2 {
		months, err := parseMonthList(args[1])
		if err != nil {
			return nil, err
		}
		rule.Months = months
	}
	if len(args) == 3 {
		days, err := parseDayList(args[2])
		if err != nil {
			return nil, err
		}
		rule.Days = days
	}
	return rule, nil
}

func (r Daily) validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: daily interval must be >= 1", ErrMalformedSpec)
	}
	return nil
}

func (r Weekly) validate() error { return nil }

func validateDays(days []int) error {
	for _, day := range days {
		if day < 1 || day > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrMalformedSpec, day)
		}
	}
	return nil
}

func (r Monthly) validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: monthly interval must be >= 1", ErrMalformedSpec)
	}
	return validateDays(r.Days)
}

func (r Quarterly) validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: quarterly interval must be >= 1", ErrMalformedSpec)
	}
	return validateDays(r.Days)
}

func (r Yearly) validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: yearly interval must be >= 1", ErrMalformedSpec)
	}
	return validateDays(r.Days)
}

func (r Custom) validate() error { return nil }

func (r Daily) encode() string {
	out := fmt.Sprintf("daily:%d", r.Interval)
	if r.At != nil {
		out += fmt.Sprintf(":%02d,%02d", r.At.Hour, r.At.Minute)
	}
	return out
}

func (r Weekly) encode() string {
	if len(r.Days) == 0 {
		return "weekly"
	}
	names := make([]string, len(r.Days))
	for i, day := range r.Days {
		names[i] = strings.ToLower(day.String())
	}
	return "weekly:" + strings.Join(names, ",")
}

func joinInts(values []int) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = strconv.Itoa(v)
	}
	return strings.Join(fields, ",")
}

func joinMonths(months []time.Month) string {
	fields := make([]string, len(months))
	for i, m := range months {
		fields[i] = strconv.Itoa(int(m))
	}
	return strings.Join(fields, ",")
}

func (r Monthly) encode() string {
	out := fmt.Sprintf("monthly:%d", r.Interval)
	if len(r.Days) > 0 {
		out += ":" + joinInts(r.Days)
	}
	return out
}

func (r Quarterly) encode() string {
	out := fmt.Sprintf("quarterly:%d", r.Interval)
	if len(r.Months) > 0 {
		out += ":" + joinMonths(r.Months)
		if len(r.Days) > 0 {
			out += ":" + joinInts(r.Days)
		}
	}
	return out
}

func (r Yearly) encode() string {
	out := fmt.Sprintf("yearly:%d", r.Interval)
	if len(r.Months) > 0 {
		out += ":" + joinMonths(r.Months)
		if len(r.Days) > 0 {
			out += ":" + joinInts(r.Days)
		}
	}
	return out
}

func (r Custom) encode() string { return "custom" }
