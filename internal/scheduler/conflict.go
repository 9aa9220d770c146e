package scheduler

import (
	"github.com/example/room-booking/internal/civil"
	"github.com/example/room-booking/internal/recurrence"
)

// DefaultOpenEndedMonths bounds existing series without UNTIL during conflict checks.
const DefaultOpenEndedMonths = 1

// Room carries the availability window a booking must fit in.
// A room whose window is unset (both ends zero) is available all day.
type Room struct {
	ID     string
	Opens  civil.TimeOfDay
	Closes civil.TimeOfDay
}

// Booking is a stored booking as seen by the resolver.
type Booking struct {
	ID     string
	RoomID string
	Date   civil.Date
	Start  civil.TimeOfDay
	End    civil.TimeOfDay
	Rule   *recurrence.Rule
}

// Proposal is a booking that has not been persisted yet, or the new state of one
// being edited. ExcludeID names the booking being edited so it does not collide
// with itself.
type Proposal struct {
	RoomID    string
	Date      civil.Date
	Start     civil.TimeOfDay
	End       civil.TimeOfDay
	Rule      *recurrence.Rule
	ExcludeID string
}

// Result is the outcome of a conflict check. HasConflict is set when Conflicts is
// non-empty or when the proposal falls outside the room's hours; in the latter case
// Conflicts is empty.
type Result struct {
	HasConflict      bool
	OutsideRoomHours bool
	Conflicts        []Booking
}

// Options tunes the resolver.
type Options struct {
	// MaxOccurrences caps every series expansion. Zero selects recurrence.DefaultMaxOccurrences.
	MaxOccurrences int
	// OpenEndedMonths bounds existing series without UNTIL to this many months past
	// their anchor when checked against a single-date proposal. Zero selects
	// DefaultOpenEndedMonths.
	OpenEndedMonths int
}

// Resolver decides whether a proposed booking collides with the bookings of its room.
type Resolver struct {
	engine          *recurrence.Engine
	openEndedMonths int
}

// NewResolver constructs a Resolver.
func NewResolver(opts Options) *Resolver {
	months := opts.OpenEndedMonths
	if months <= 0 {
		months = DefaultOpenEndedMonths
	}
	return &Resolver{
		engine:          recurrence.NewEngine(opts.MaxOccurrences),
		openEndedMonths: months,
	}
}

// Check runs the room-hours check and then scans existing in order, collecting every
// booking in the same room that overlaps the proposal in time and shares at least
// one date with it. When both sides recur, each series is expanded up to the
// occurrence cap only.
func (r *Resolver) Check(room Room, proposal Proposal, existing []Booking) Result {
	if !WithinRoomHours(room, proposal.Start, proposal.End) {
		return Result{HasConflict: true, OutsideRoomHours: true}
	}

	var proposedDates map[civil.Date]struct{}
	var conflicts []Booking
	for _, booking := range existing {
		if booking.RoomID != proposal.RoomID {
			continue
		}
		if proposal.ExcludeID != "" && booking.ID == proposal.ExcludeID {
			continue
		}
		if !TimeRangesOverlap(proposal.Start, proposal.End, booking.Start, booking.End) {
			continue
		}

		var shared bool
		switch {
		case proposal.Rule == nil && booking.Rule == nil:
			shared = proposal.Date == booking.Date
		case proposal.Rule == nil:
			shared = r.engine.OccursOn(booking.Date, r.bound(booking), proposal.Date)
		case booking.Rule == nil:
			shared = r.engine.OccursOn(proposal.Date, proposal.Rule, booking.Date)
		default:
			if proposedDates == nil {
				proposedDates = r.dateSet(proposal.Date, proposal.Rule)
			}
			shared = r.intersects(proposedDates, booking)
		}

		if shared {
			conflicts = append(conflicts, booking)
		}
	}

	return Result{HasConflict: len(conflicts) > 0, Conflicts: conflicts}
}

func (r *Resolver) bound(booking Booking) *recurrence.Rule {
	if booking.Rule == nil {
		return nil
	}
	bounded := booking.Rule.Bounded(booking.Date.AddMonths(r.openEndedMonths))
	return &bounded
}

func (r *Resolver) dateSet(anchor civil.Date, rule *recurrence.Rule) map[civil.Date]struct{} {
	set := make(map[civil.Date]struct{})
	for d := range r.engine.Occurrences(anchor, rule) {
		set[d] = struct{}{}
	}
	return set
}

func (r *Resolver) intersects(dates map[civil.Date]struct{}, booking Booking) bool {
	for d := range r.engine.Occurrences(booking.Date, booking.Rule) {
		if _, ok := dates[d]; ok {
			return true
		}
	}
	return false
}

// CheckConflict runs a check with default options.
func CheckConflict(room Room, proposal Proposal, existing []Booking) Result {
	return NewResolver(Options{}).Check(room, proposal, existing)
}

// TimeRangesOverlap reports whether [s1, e1) and [s2, e2) intersect.
// Ranges that only touch at an endpoint do not overlap.
func TimeRangesOverlap(s1, e1, s2, e2 civil.TimeOfDay) bool {
	return s1 < e2 && s2 < e1
}

// WithinRoomHours reports whether [start, end] lies inside the room's window.
func WithinRoomHours(room Room, start, end civil.TimeOfDay) bool {
	opens, closes := room.Opens, room.Closes
	if opens == 0 && closes == 0 {
		closes = civil.EndOfDay
	}
	return start >= opens && end <= closes
}
