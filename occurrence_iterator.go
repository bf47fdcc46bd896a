package ical

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"
)

// OccurrenceIterator produces one event's occurrences in ascending order:
// the RRULE expansion unioned with RDATE, with EXDATE entries removed
// (§4.5). It is lazy so an unbounded RRULE (no COUNT/UNTIL) can still be
// queried without materializing every occurrence up front.
type OccurrenceIterator struct {
	anchor   DateTime
	exdates  []DateTime
	next     func() (time.Time, bool)
	hasBound bool
	maxLeft  int
}

// NewOccurrenceIterator builds an iterator for one event's recurrence
// description. rule may be nil for a plain RDATE-only series. cfg bounds
// how many occurrences an unbounded rule (no COUNT, no UNTIL) may produce
// before further calls to Next report exhaustion, guarding against
// unbounded memory/CPU use (§4.5, §1 "Non-goals" size considerations).
func NewOccurrenceIterator(anchor DateTime, rule *RecurrenceRule, rdates, exdates []DateTime, cfg Config) (*OccurrenceIterator, error) {
	cfg = cfg.withDefaults()
	set := rrule.NewSet()
	set.DTStart(anchor.Time)

	hasBound := true
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if err := rule.ValidateAgainstAnchor(anchor); err != nil {
			return nil, err
		}
		opt, err := rule.toROption(anchor)
		if err != nil {
			return nil, err
		}
		rr, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecurrence, err)
		}
		set.RRule(rr)
		hasBound = rule.Count > 0 || rule.Until != nil
	} else {
		// With no RRULE the anchor is itself the first occurrence.
		set.RDate(anchor.Time)
	}
	for _, rd := range rdates {
		set.RDate(rd.Time)
	}
	for _, ex := range exdates {
		set.ExDate(ex.Time)
	}

	return &OccurrenceIterator{
		anchor:   anchor,
		exdates:  exdates,
		next:     set.Iterator(),
		hasBound: hasBound,
		maxLeft:  cfg.MaxExpansions,
	}, nil
}

// Next returns the next occurrence in ascending order, or ok=false once the
// series is exhausted (bounded rules) or the configured expansion ceiling
// is reached (unbounded rules).
func (it *OccurrenceIterator) Next() (DateTime, bool) {
	if !it.hasBound {
		if it.maxLeft <= 0 {
			return DateTime{}, false
		}
		it.maxLeft--
	}
	for {
		t, ok := it.next()
		if !ok {
			return DateTime{}, false
		}
		occ := occurrenceFromTime(it.anchor, t)
		if it.isExcluded(occ) {
			continue
		}
		return occ, true
	}
}

// isExcluded re-checks EXDATE membership with DateTime.Equal's value-aware
// comparison, as a belt-and-suspenders pass alongside the exclusions
// already registered with the underlying rrule.Set: the library matches by
// raw instant, which can diverge from §4.5's calendar-day/zoned-wall-time
// matching rules at the edges.
func (it *OccurrenceIterator) isExcluded(occ DateTime) bool {
	for _, ex := range it.exdates {
		if occ.Equal(ex) {
			return true
		}
	}
	return false
}

// Collect drains the iterator into a sorted slice. Safe for bounded series
// (COUNT/UNTIL) or an unbounded one with a small cfg.MaxExpansions
// ceiling; callers windowing an unbounded series over a wide range should
// prefer calling Next in a loop and checking each occurrence against their
// own range instead.
func (it *OccurrenceIterator) Collect() []DateTime {
	var out []DateTime
	for {
		occ, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, occ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func occurrenceFromTime(anchor DateTime, t time.Time) DateTime {
	switch anchor.Kind {
	case KindDate:
		return NewDate(t.Year(), t.Month(), t.Day())
	case KindDateTimeUTC:
		return NewDateTimeUTC(t)
	case KindDateTimeZoned:
		return NewDateTimeZoned(t, anchor.TZID, t.Location())
	default:
		return NewDateTimeFloating(t)
	}
}
