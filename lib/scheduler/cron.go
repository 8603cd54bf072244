// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a parsed 5-field cron expression (minute, hour,
// day-of-month, month, day-of-week). Use ParseCron to create one,
// then Next to compute fire times.
type Schedule struct {
	fields [5]fieldSet
}

// fieldSet is a compact set of integers 0-63 backed by one uint64.
type fieldSet uint64

func (f fieldSet) contains(value int) bool { return f&(1<<uint(value)) != 0 }
func (f *fieldSet) add(value int)          { *f |= 1 << uint(value) }

// fieldBounds describes the legal range of each cron field, in order.
var fieldBounds = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCron parses a standard 5-field cron expression. Supported
// syntax per field: "*", "*/step", single values, ranges "a-b",
// "a-b/step", and comma-separated lists of the above.
func ParseCron(expression string) (Schedule, error) {
	parts := strings.Fields(expression)
	if len(parts) != 5 {
		return Schedule{}, fmt.Errorf("cron: expected 5 fields, got %d", len(parts))
	}

	var schedule Schedule
	for i, part := range parts {
		bounds := fieldBounds[i]
		set, err := parseCronField(part, bounds.min, bounds.max)
		if err != nil {
			return Schedule{}, fmt.Errorf("cron: %s field: %w", bounds.name, err)
		}
		schedule.fields[i] = set
	}
	return schedule, nil
}

func parseCronField(field string, min, max int) (fieldSet, error) {
	var set fieldSet
	for _, term := range strings.Split(field, ",") {
		rangeStart, rangeEnd, step := min, max, 1

		base, stepText, hasStep := strings.Cut(term, "/")
		if hasStep {
			parsed, err := strconv.Atoi(stepText)
			if err != nil || parsed <= 0 {
				return 0, fmt.Errorf("bad step %q", stepText)
			}
			step = parsed
		}

		switch {
		case base == "*":
			// Full range.
		case strings.Contains(base, "-"):
			startText, endText, _ := strings.Cut(base, "-")
			start, err := strconv.Atoi(startText)
			if err != nil {
				return 0, fmt.Errorf("bad range start %q", startText)
			}
			end, err := strconv.Atoi(endText)
			if err != nil {
				return 0, fmt.Errorf("bad range end %q", endText)
			}
			rangeStart, rangeEnd = start, end
		default:
			value, err := strconv.Atoi(base)
			if err != nil {
				return 0, fmt.Errorf("bad value %q", base)
			}
			rangeStart, rangeEnd = value, value
		}

		if rangeStart < min || rangeEnd > max || rangeStart > rangeEnd {
			return 0, fmt.Errorf("value out of range %d-%d in %q", min, max, term)
		}
		for value := rangeStart; value <= rangeEnd; value += step {
			set.add(value)
		}
	}
	return set, nil
}

// Next returns the earliest time strictly after t that matches the
// schedule, evaluated in t's location. Returns an error when no match
// exists within four years (impossible schedules like Feb 31).
func (s Schedule) Next(t time.Time) (time.Time, error) {
	minutes, hours, daysOfMonth, months, daysOfWeek :=
		s.fields[0], s.fields[1], s.fields[2], s.fields[3], s.fields[4]

	location := t.Location()
	t = t.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	// A "*" field has every bit of its range set. When both day fields
	// are restricted, a day matching either one fires (the cron OR
	// rule); otherwise both must match, which leaves the restricted one.
	const allDaysOfMonth, allDaysOfWeek fieldSet = 1<<32 - 2, 1<<7 - 1
	eitherDay := daysOfMonth != allDaysOfMonth && daysOfWeek != allDaysOfWeek

	for t.Before(limit) {
		if !months.contains(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, location)
			continue
		}
		dayOfMonthMatches := daysOfMonth.contains(t.Day())
		dayOfWeekMatches := daysOfWeek.contains(int(t.Weekday()))
		dayMatches := dayOfMonthMatches && dayOfWeekMatches
		if eitherDay {
			dayMatches = dayOfMonthMatches || dayOfWeekMatches
		}
		if !dayMatches {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, location)
			continue
		}
		if !hours.contains(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, location)
			continue
		}
		if !minutes.contains(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %v", t)
}
