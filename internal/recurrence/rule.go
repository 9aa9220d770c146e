package recurrence

import (
	"strings"
	"time"

	"github.com/samber/mo"

	"github.com/example/room-booking/internal/civil"
)

// Frequency is the repetition unit of a rule.
type Frequency string

const (
	// Daily repeats every calendar day.
	Daily Frequency = "DAILY"
	// Weekly repeats on the selected weekdays.
	Weekly Frequency = "WEEKLY"
	// Monthly repeats on the anchor's day of month.
	Monthly Frequency = "MONTHLY"
)

const rulePrefix = "RRULE:"

var untilLayouts = []string{
	"20060102T150405Z",
	"20060102T150405",
	"20060102",
}

var weekdayCodes = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

var weekdayNames = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// Rule is the parsed form of a recurrence string. It is derived from the stored
// string on demand and never persisted on its own.
type Rule struct {
	Freq  Frequency
	Days  []time.Weekday
	Until mo.Option[civil.Date]
}

// Parse reads a rule of the form
//
//	RRULE:FREQ=<DAILY|WEEKLY|MONTHLY>[;BYDAY=<codes>][;UNTIL=<YYYYMMDDTHHMMSSZ>]
//
// Parsing never fails. A missing or unknown FREQ becomes DAILY, unknown weekday
// codes are dropped and an unreadable UNTIL leaves the rule unbounded.
func Parse(value string) Rule {
	rule := Rule{Freq: Daily, Until: mo.None[civil.Date]()}

	body := strings.TrimSpace(value)
	if len(body) >= len(rulePrefix) && strings.EqualFold(body[:len(rulePrefix)], rulePrefix) {
		body = body[len(rulePrefix):]
	}

	for _, part := range strings.Split(body, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			rule.Freq = parseFrequency(val)
		case "BYDAY":
			rule.Days = parseDays(val)
		case "UNTIL":
			rule.Until = parseUntil(val)
		}
	}

	return rule
}

// ParseOptional returns nil for a blank value, meaning the booking does not repeat.
func ParseOptional(value string) *Rule {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	rule := Parse(value)
	return &rule
}

// String renders the rule in the same grammar Parse accepts. Parse(r.String())
// equals r.Normalized().
func (r Rule) String() string {
	return rulePrefix + r.Value()
}

// Normalized returns r in the form Parse produces: an unknown frequency becomes
// DAILY and an empty BYDAY selection is nil.
func (r Rule) Normalized() Rule {
	r.Freq = r.frequency()
	if len(r.Days) == 0 {
		r.Days = nil
	}
	return r
}

// Value renders the rule without the RRULE: prefix, as used for iCalendar property values.
func (r Rule) Value() string {
	n := r.Normalized()

	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(string(n.Freq))
	if n.Days != nil {
		codes := make([]string, 0, len(n.Days))
		for _, day := range n.Days {
			codes = append(codes, weekdayNames[day])
		}
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(codes, ","))
	}
	if until, ok := n.Until.Get(); ok {
		b.WriteString(";UNTIL=")
		b.WriteString(until.In(time.UTC).Add(24*time.Hour - time.Second).Format(untilLayouts[0]))
	}
	return b.String()
}

// HasDay reports whether day is selected by BYDAY. An empty selection matches every day.
func (r Rule) HasDay(day time.Weekday) bool {
	if len(r.Days) == 0 {
		return true
	}
	for _, d := range r.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Bounded returns a copy of r whose UNTIL is set to until when r has none.
func (r Rule) Bounded(until civil.Date) Rule {
	if r.Until.IsPresent() {
		return r
	}
	r.Until = mo.Some(until)
	return r
}

func (r Rule) frequency() Frequency {
	switch r.Freq {
	case Daily, Weekly, Monthly:
		return r.Freq
	default:
		return Daily
	}
}

func parseFrequency(value string) Frequency {
	switch freq := Frequency(strings.ToUpper(value)); freq {
	case Daily, Weekly, Monthly:
		return freq
	default:
		return Daily
	}
}

func parseDays(value string) []time.Weekday {
	var days []time.Weekday
	seen := make(map[time.Weekday]struct{}, 7)
	for _, code := range strings.Split(value, ",") {
		day, ok := weekdayCodes[strings.ToUpper(strings.TrimSpace(code))]
		if !ok {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	return days
}

func parseUntil(value string) mo.Option[civil.Date] {
	for _, layout := range untilLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return mo.Some(civil.DateOf(t))
		}
	}
	return mo.None[civil.Date]()
}
