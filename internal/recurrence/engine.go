package recurrence

import (
	"iter"
	"slices"

	"github.com/example/room-booking/internal/civil"
)

// DefaultMaxOccurrences caps every expansion when the caller does not choose a limit.
const DefaultMaxOccurrences = 100

// Engine expands rules into occurrence dates.
type Engine struct {
	maxOccurrences int
}

// NewEngine constructs an Engine that stops every expansion after maxOccurrences dates.
// A non-positive value selects DefaultMaxOccurrences.
func NewEngine(maxOccurrences int) *Engine {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{maxOccurrences: maxOccurrences}
}

// MaxOccurrences returns the engine's expansion cap.
func (e *Engine) MaxOccurrences() int {
	if e == nil || e.maxOccurrences <= 0 {
		return DefaultMaxOccurrences
	}
	return e.maxOccurrences
}

// Occurrences lazily yields the dates of a series starting at anchor.
//
//   - A nil rule yields the anchor alone.
//   - DAILY steps one day at a time.
//   - WEEKLY steps one day at a time and keeps the days selected by BYDAY.
//   - MONTHLY keeps the anchor's day of month; short months roll over.
//
// The sequence ends after the first date past UNTIL or once the cap is reached.
// Ranging over the returned sequence again restarts it from the anchor.
func (e *Engine) Occurrences(anchor civil.Date, rule *Rule) iter.Seq[civil.Date] {
	limit := e.MaxOccurrences()
	return func(yield func(civil.Date) bool) {
		if rule == nil {
			yield(anchor)
			return
		}

		until, bounded := rule.Until.Get()
		emitted := 0

		if rule.frequency() == Monthly {
			for i := 0; emitted < limit; i++ {
				d := anchor.AddMonths(i)
				if bounded && d.After(until) {
					return
				}
				emitted++
				if !yield(d) {
					return
				}
			}
			return
		}

		filter := rule.frequency() == Weekly
		for d := anchor; emitted < limit; d = d.AddDays(1) {
			if bounded && d.After(until) {
				return
			}
			if filter && !rule.HasDay(d.Weekday()) {
				continue
			}
			emitted++
			if !yield(d) {
				return
			}
		}
	}
}

// Expand collects Occurrences into a slice.
func (e *Engine) Expand(anchor civil.Date, rule *Rule) []civil.Date {
	return slices.Collect(e.Occurrences(anchor, rule))
}

// OccursOn reports whether date is one of the series' capped occurrences.
func (e *Engine) OccursOn(anchor civil.Date, rule *Rule, date civil.Date) bool {
	if rule == nil {
		return date == anchor
	}
	if date.Before(anchor) {
		return false
	}
	for d := range e.Occurrences(anchor, rule) {
		if d == date {
			return true
		}
		if d.After(date) {
			return false
		}
	}
	return false
}

// Between yields the capped occurrences that fall within [from, to].
func (e *Engine) Between(anchor civil.Date, rule *Rule, from, to civil.Date) iter.Seq[civil.Date] {
	return func(yield func(civil.Date) bool) {
		for d := range e.Occurrences(anchor, rule) {
			if d.After(to) {
				return
			}
			if d.Before(from) {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

var defaultEngine = NewEngine(DefaultMaxOccurrences)

// Expand returns the occurrences of a series capped at maxCount dates
// (DefaultMaxOccurrences when maxCount is not positive).
func Expand(anchor civil.Date, rule *Rule, maxCount int) []civil.Date {
	return NewEngine(maxCount).Expand(anchor, rule)
}

// Occurrences is the lazy form of Expand.
func Occurrences(anchor civil.Date, rule *Rule, maxCount int) iter.Seq[civil.Date] {
	return NewEngine(maxCount).Occurrences(anchor, rule)
}

// OccursOn reports whether date belongs to the series under the default cap.
func OccursOn(anchor civil.Date, rule *Rule, date civil.Date) bool {
	return defaultEngine.OccursOn(anchor, rule, date)
}
