// Package cron implements the discrete time-set expansion and
// next-fire computation of a five-field cron expression, grounded on
// an earlier implementation's TimerDescription::parse /
// get_next_execution, re-expressed against time.Time.
package cron

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Expression is a parsed five-field cron expression: each field is the
// sorted, deduplicated set of values it matches within its domain.
type Expression struct {
	minute  []int
	hour    []int
	day     []int
	month   []int
	weekday []int
}

// Parse parses a five-field cron expression: minute 0-59, hour 0-23,
// day-of-month 1-31, month 1-12, day-of-week 0-6 (0 = Sunday).
func Parse(raw string) (*Expression, error) {
	fields := strings.Fields(raw)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression %q: expected 5 fields, got %d", raw, len(fields))
	}

	minute, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("minute field: %w", err)
	}
	hour, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("hour field: %w", err)
	}
	day, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("day-of-month field: %w", err)
	}
	month, err := parseField(fields[3], 1, 12)
	if err != nil {
		return nil, fmt.Errorf("month field: %w", err)
	}
	weekday, err := parseField(fields[4], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("day-of-week field: %w", err)
	}

	return &Expression{minute: minute, hour: hour, day: day, month: month, weekday: weekday}, nil
}

// parseField expands one comma-separated list of atoms ("*", "N",
// "N-M", optionally suffixed "/S") into its sorted, deduplicated value set.
func parseField(spec string, min, max int) ([]int, error) {
	if spec == "" {
		return nil, fmt.Errorf("empty field")
	}

	set := make(map[int]struct{})
	for _, atom := range strings.Split(spec, ",") {
		if atom == "*" {
			for i := min; i <= max; i++ {
				set[i] = struct{}{}
			}
			continue
		}

		rangePart := atom
		step := 1
		if idx := strings.IndexByte(atom, '/'); idx >= 0 {
			rangePart = atom[:idx]
			s, err := strconv.Atoi(atom[idx+1:])
			if err != nil {
				return nil, fmt.Errorf("invalid step in %q: %w", atom, err)
			}
			step = s
		}

		begin, end := min, max
		if rangePart != "*" {
			var err error
			begin, end, err = parseRange(rangePart, min, max)
			if err != nil {
				return nil, err
			}
		}
		for i := begin; i <= end; i++ {
			if (i-begin)%step == 0 {
				set[i] = struct{}{}
			}
		}
	}

	result := make([]int, 0, len(set))
	for v := range set {
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}

func parseRange(spec string, min, max int) (begin, end int, err error) {
	parts := strings.SplitN(spec, "-", 2)
	begin, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[0])
	}
	if begin < min || begin > max {
		return 0, 0, fmt.Errorf("value %d out of range [%d,%d]", begin, min, max)
	}
	if len(parts) == 1 {
		return begin, begin, nil
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid number %q", parts[1])
	}
	if end < min || end > max {
		return 0, 0, fmt.Errorf("value %d out of range [%d,%d]", end, min, max)
	}
	if end < begin {
		return 0, 0, fmt.Errorf("interval end %d < begin %d", end, begin)
	}
	return begin, end, nil
}

// firstAtLeast returns the smallest element of sorted that is >= x, and
// whether one was found.
func firstAtLeast(sorted []int, x int) (int, bool) {
	i := sort.SearchInts(sorted, x)
	if i < len(sorted) {
		return sorted[i], true
	}
	return 0, false
}

// NextExecution computes the smallest instant strictly after `from`
// that matches the expression.
func (e *Expression) NextExecution(from time.Time) time.Time {
	from = from.Truncate(time.Minute)
	carry := 0

	minute, ok := firstAtLeast(e.minute, from.Minute()+1)
	if !ok {
		carry = 1
		minute = e.minute[0]
	}

	hour, ok := firstAtLeast(e.hour, from.Hour()+carry)
	if ok {
		carry = 0
	} else {
		carry = 1
		hour = e.hour[0]
	}

	nextWeekday, ok := firstAtLeast(e.weekday, int(from.Weekday())+carry)
	if !ok {
		nextWeekday = e.weekday[0]
	}

	nextDay, ok := firstAtLeast(e.day, from.Day()+carry)
	if ok {
		carry = 0
	} else {
		carry = 1
		nextDay = e.day[0]
	}

	nextMonth, ok := firstAtLeast(e.month, int(from.Month())+carry)
	if ok {
		carry = 0
	} else {
		carry = 1
		nextMonth = e.month[0]
	}

	weekdayRelevant := len(e.weekday) != 7
	dateRelevant := len(e.day) != 31 || len(e.month) != 12

	weekDelta := nextWeekday - int(from.Weekday())
	if weekDelta < 0 {
		weekDelta += 7
	}
	weekDuration := time.Duration(weekDelta) * 24 * time.Hour

	dateDuration := time.Duration(carry) * 365 * 24 * time.Hour
	if dateRelevant {
		for {
			candidate := from.Add(dateDuration)
			if candidate.Day() == nextDay && int(candidate.Month()) == nextMonth {
				break
			}
			dateDuration += 24 * time.Hour
		}
	}

	var chosen time.Duration
	switch {
	case weekdayRelevant && dateRelevant:
		if weekDuration < dateDuration {
			chosen = weekDuration
		} else {
			chosen = dateDuration
		}
	case dateRelevant:
		chosen = dateDuration
	default:
		chosen = weekDuration
	}

	result := from.Add(chosen)
	return time.Date(result.Year(), result.Month(), result.Day(), hour, minute, 0, 0, from.Location())
}

// Expand returns the explicit per-field value sets the expression was
// parsed into, the left-inverse form required for a round-trip
// property: parse then explicit-set-form must not widen the match of
// the original expression.
func (e *Expression) Expand() (minute, hour, day, month, weekday []int) {
	return e.minute, e.hour, e.day, e.month, e.weekday
}
