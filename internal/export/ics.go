// Package export renders room calendars for download, as an iCalendar feed or as
// an Excel workbook.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/recurrence"
)

const productID = "-//room-booking//Room Calendar//EN"

// floatingLayout formats local wall-clock times without a zone designator.
const floatingLayout = "20060102T150405"

// WriteICS encodes bookings as one VEVENT each. DTSTART and DTEND are floating
// local times. Series carry an RRULE limited to FREQ, BYDAY and either UNTIL or,
// for open-ended series, COUNT set to maxOccurrences. A non-positive
// maxOccurrences selects recurrence.DefaultMaxOccurrences.
func WriteICS(w io.Writer, room application.Room, bookings []application.Booking, maxOccurrences int, now time.Time) error {
	if maxOccurrences <= 0 {
		maxOccurrences = recurrence.DefaultMaxOccurrences
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropName, room.Name)

	for _, booking := range bookings {
		event, ok := newEvent(room, booking, maxOccurrences, now)
		if !ok {
			continue
		}
		cal.Children = append(cal.Children, event)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("export: encode calendar for room %s: %w", room.ID, err)
	}
	return nil
}

// newEvent reports false for a series that produces no occurrences.
func newEvent(room application.Room, booking application.Booking, maxOccurrences int, now time.Time) (*ical.Component, bool) {
	rule := booking.Rule()
	first := booking.Date
	if rule != nil {
		dates := recurrence.Expand(booking.Date, rule, 1)
		if len(dates) == 0 {
			return nil, false
		}
		first = dates[0]
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, booking.ID+"@room-booking")
	event.Props.SetText(ical.PropSummary, booking.Title)
	if booking.Description != "" {
		event.Props.SetText(ical.PropDescription, booking.Description)
	}
	if location := eventLocation(room); location != "" {
		event.Props.SetText(ical.PropLocation, location)
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	setFloating(event, ical.PropDateTimeStart, booking.StartTime.On(first, time.UTC))
	setFloating(event, ical.PropDateTimeEnd, booking.EndTime.On(first, time.UTC))
	if rule != nil {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = ruleValue(*rule, maxOccurrences)
		event.Props.Set(prop)
	}
	return event.Component, true
}

func setFloating(event *ical.Event, name string, t time.Time) {
	prop := ical.NewProp(name)
	prop.Value = t.Format(floatingLayout)
	event.Props.Set(prop)
}

func eventLocation(room application.Room) string {
	parts := make([]string, 0, 2)
	if room.Name != "" {
		parts = append(parts, room.Name)
	}
	if room.Location != "" {
		parts = append(parts, room.Location)
	}
	return strings.Join(parts, ", ")
}

// ruleValue spells out the booking semantics in RFC 5545 terms: a WEEKLY rule
// without BYDAY repeats daily, UNTIL is inclusive of its whole local day, and a
// series without UNTIL stops after maxOccurrences.
func ruleValue(rule recurrence.Rule, maxOccurrences int) string {
	var b strings.Builder
	freq := rule.Freq
	if freq != recurrence.Weekly && freq != recurrence.Monthly {
		freq = recurrence.Daily
	}
	b.WriteString("FREQ=" + string(freq))

	if freq == recurrence.Weekly {
		days := rule.Days
		if len(days) == 0 {
			days = []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
		}
		codes := make([]string, 0, len(days))
		for _, day := range days {
			codes = append(codes, strings.ToUpper(day.String()[:2]))
		}
		b.WriteString(";BYDAY=" + strings.Join(codes, ","))
	}

	if until, ok := rule.Until.Get(); ok {
		b.WriteString(";UNTIL=" + untilValue(until))
	} else {
		b.WriteString(";COUNT=" + strconv.Itoa(maxOccurrences))
	}
	return b.String()
}

func untilValue(until civil.Date) string {
	return civil.NewTimeOfDay(23, 59).On(until, time.UTC).Add(59 * time.Second).Format(floatingLayout)
}
