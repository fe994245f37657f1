// Package calendar maps day offsets from a project start onto calendar
// dates, either counting every day or only business days.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects which days count.
type Mode string

const (
	ModeCalendar Mode = "calendar" // every day is a workday
	ModeWorkdays Mode = "workdays" // weekends and holidays are skipped
)

// DateLayout is the boundary date format (DD-MM-YYYY).
const DateLayout = "02-01-2006"

type dateKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time) dateKey {
	y, m, d := t.Date()
	return dateKey{y, m, d}
}

// Calendar is an immutable value; copies share the holiday set, which is
// never written after New returns.
type Calendar struct {
	mode     Mode
	holidays map[dateKey]struct{}
}

// New builds a calendar. Any mode other than ModeCalendar skips weekends
// and the given holidays.
func New(mode Mode, holidays []time.Time) Calendar {
	c := Calendar{mode: mode, holidays: make(map[dateKey]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[keyOf(h)] = struct{}{}
	}
	return c
}

// Mode returns the calendar mode.
func (c Calendar) Mode() Mode { return c.mode }

func (c Calendar) everyDay() bool { return c.mode == ModeCalendar }

// IsHoliday reports whether d is in the holiday set.
func (c Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.holidays[keyOf(d)]
	return ok
}

// IsWorkday reports whether d counts toward day offsets.
func (c Calendar) IsWorkday(d time.Time) bool {
	if c.everyDay() {
		return true
	}
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.IsHoliday(d)
}

// Add moves n workdays from start. It walks one day at a time so that any
// holiday distribution is honoured; n == 0 returns start.
func (c Calendar) Add(start time.Time, n int) time.Time {
	d := Day(start)
	if c.everyDay() {
		return d.AddDate(0, 0, n)
	}
	step := 1
	if n < 0 {
		step = -1
	}
	for count := 0; count != n; {
		d = d.AddDate(0, 0, step)
		if c.IsWorkday(d) {
			count += step
		}
	}
	return d
}

// Diff counts the workdays crossed walking from a to b. The result is
// negative when b is before a.
func (c Calendar) Diff(a, b time.Time) int {
	d, end := Day(a), Day(b)
	if c.everyDay() {
		return int(end.Sub(d).Round(24*time.Hour) / (24 * time.Hour))
	}
	step := -1
	if d.Before(end) {
		step = 1
	}
	n := 0
	for (step > 0 && d.Before(end)) || (step < 0 && d.After(end)) {
		d = d.AddDate(0, 0, step)
		if c.IsWorkday(d) {
			n += step
		}
	}
	return n
}

// Day truncates t to its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DD-MM-YYYY date. Single-digit day and month fields
// are accepted; impossible dates such as 31-02-2024 are rejected.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q: want DD-MM-YYYY", s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v <= 0 {
			return time.Time{}, fmt.Errorf("invalid date %q: want DD-MM-YYYY", s)
		}
		n[i] = v
	}
	t := time.Date(n[2], time.Month(n[1]), n[0], 0, 0, 0, 0, time.UTC)
	if t.Day() != n[0] || int(t.Month()) != n[1] || t.Year() != n[2] {
		return time.Time{}, fmt.Errorf("invalid date %q: no such day", s)
	}
	return t, nil
}

// FormatDate renders t as DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseHolidays parses a list of DD-MM-YYYY strings, skipping entries that
// do not parse.
func ParseHolidays(list []string) []time.Time {
	out := make([]time.Time, 0, len(list))
	for _, s := range list {
		if t, err := ParseDate(s); err == nil {
			out = append(out, t)
		}
	}
	return out
}
