// Package recurrence expands a meeting's recurrence rule into the start times
// of its occurrences.
package recurrence

import (
	"errors"
	"fmt"
	"time"
)

// DefaultSpan bounds a series whose rule carries no explicit end.
const DefaultSpan = 90 * 24 * time.Hour

type Pattern string

const (
	Daily    Pattern = "daily"
	Weekly   Pattern = "weekly"
	Biweekly Pattern = "biweekly"
	Monthly  Pattern = "monthly"
)

func (p Pattern) Valid() bool {
	switch p {
	case Daily, Weekly, Biweekly, Monthly:
		return true
	}
	return false
}

var ErrInvalidRule = errors.New("invalid recurrence rule")

// Rule is the (pattern, day, until) triple owned by an anchor meeting.
//
// Day is the day of the month (1-31) for monthly rules and is required there.
// For weekly and biweekly rules it is the anchor's weekday (0-6) and only
// informational: fixed 7 or 14 day steps keep the weekday anyway.
type Rule struct {
	Pattern Pattern
	Day     *int
	Until   *time.Time
}

// End returns the inclusive upper bound of the series.
func (r Rule) End(anchor time.Time) time.Time {
	if r.Until != nil {
		return *r.Until
	}
	return anchor.Add(DefaultSpan)
}

func (r Rule) Validate(anchor time.Time) error {
	if !r.Pattern.Valid() {
		return fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, r.Pattern)
	}
	if r.Pattern == Monthly {
		if r.Day == nil {
			return fmt.Errorf("%w: monthly pattern requires a day of month", ErrInvalidRule)
		}
		if *r.Day < 1 || *r.Day > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRule, *r.Day)
		}
	}
	if !r.End(anchor).After(anchor) {
		return fmt.Errorf("%w: until must be after the first meeting", ErrInvalidRule)
	}
	return nil
}

// Expand returns the occurrences following anchor, strictly after it and up
// to and including the rule's end. Each keeps anchor's time of day in
// anchor's location.
func Expand(anchor time.Time, rule Rule) (*Sequence, error) {
	if err := rule.Validate(anchor); err != nil {
		return nil, err
	}
	s := Sequence{
		anchor:  anchor,
		until:   rule.End(anchor),
		pattern: rule.Pattern,
	}
	if rule.Day != nil {
		s.day = *rule.Day
	}
	return &s, nil
}

// All is a shorthand for Expand followed by Sequence.All.
func All(anchor time.Time, rule Rule) ([]time.Time, error) {
	s, err := Expand(anchor, rule)
	if err != nil {
		return nil, err
	}
	return s.All(), nil
}

// Sequence is a lazy, finite iterator over occurrence start times. It holds
// no reference to the clock, so identical inputs always give identical output.
type Sequence struct {
	anchor  time.Time
	until   time.Time
	pattern Pattern
	day     int
	step    int
	done    bool
}

// Next returns the next occurrence, or false once the series is exhausted.
func (s *Sequence) Next() (time.Time, bool) {
	if s.done {
		return time.Time{}, false
	}
	s.step++
	next := s.at(s.step)
	if next.After(s.until) {
		s.done = true
		return time.Time{}, false
	}
	return next, true
}

// Reset rewinds the sequence to the first occurrence after the anchor.
func (s *Sequence) Reset() {
	s.step = 0
	s.done = false
}

// All drains a fresh pass over the sequence. The iterator position is left
// untouched.
func (s *Sequence) All() []time.Time {
	c := Sequence{anchor: s.anchor, until: s.until, pattern: s.pattern, day: s.day}
	var out []time.Time
	for {
		t, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, t)
	}
}

func (s *Sequence) at(n int) time.Time {
	switch s.pattern {
	case Daily:
		return s.anchor.AddDate(0, 0, n)
	case Weekly:
		return s.anchor.AddDate(0, 0, 7*n)
	case Biweekly:
		return s.anchor.AddDate(0, 0, 14*n)
	default:
		return monthly(s.anchor, n, s.day)
	}
}

// monthly lands on day of the month n months after anchor, clamped to the
// last day of short months.
func monthly(anchor time.Time, n, day int) time.Time {
	y, m, _ := anchor.Date()
	// day 1 avoids time.Date normalizing e.g. Feb 31 into March
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, anchor.Location())
	if last := daysIn(first.Year(), first.Month(), anchor.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
