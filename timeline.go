package ical

import (
	"container/heap"
	"iter"
	"sort"
	"time"
)

// Occurrence is one materialized instance of an Item at a specific start
// time (§3 GLOSSARY, §4.6).
type Occurrence struct {
	ItemUID        string
	RecurrenceID   *DateTime
	Start          DateTime
	End            DateTime
	OverrideItem   Item // non-nil when an override replaced the master's candidate
	OverrideMaster bool
}

// timelineSource is one head-peekable stream the merger pulls from: one
// per recurring master series, plus one for every non-recurring item
// (§4.6, SPEC_FULL.md "Heap implementation").
type timelineSource interface {
	peek() (Occurrence, bool)
	advance()
}

// singleSource yields exactly one non-recurring item's occurrence, then
// is exhausted.
type singleSource struct {
	occ  Occurrence
	done bool
}

func (s *singleSource) peek() (Occurrence, bool) {
	if s.done {
		return Occurrence{}, false
	}
	return s.occ, true
}

func (s *singleSource) advance() { s.done = true }

// overrideEntry pairs an override item with its decoded RECURRENCE-ID, so
// lookup can use DateTime.Equal's wall-clock-aware comparison instead of a
// raw instant key (§4.6 "Override resolution"; a zoned master's override
// whose RECURRENCE-ID omits TZID decodes as floating time, and a raw
// UnixNano key would diverge from the zoned candidate by the zone offset).
type overrideEntry struct {
	rid  DateTime
	item Item
}

// seriesSource yields a master's occurrences, substituting any matching
// override and suppressing any occurrence whose RECURRENCE-ID also
// appears as an EXDATE on the master (§4.6 "Override resolution").
type seriesSource struct {
	uid       string
	it        *OccurrenceIterator
	duration  func(start DateTime) DateTime // resolves end for a generated candidate
	overrides []overrideEntry
	lookup    TimeZoneLookup
	cur       Occurrence
	curOK     bool
	exhausted bool
}

// findOverride scans overrides for an entry whose RECURRENCE-ID is
// DateTime.Equal to candidate (wall-clock time within its own Kind/zone,
// not raw instant equality).
func findOverride(overrides []overrideEntry, candidate DateTime) (Item, bool) {
	for _, ov := range overrides {
		if candidate.Equal(ov.rid) {
			return ov.item, true
		}
	}
	return nil, false
}

// overrideSpan resolves an override item's own start/end, falling back to
// the master's generated candidate start when the override omits its own
// anchor field. Event and ToDo expose DTSTART with different signatures
// (required vs optional), so this switches on concrete type rather than
// widening the Item interface (components.go's Item doc comment).
func overrideSpan(item Item, lookup TimeZoneLookup, fallbackStart DateTime) (start, end DateTime, ok bool) {
	switch v := item.(type) {
	case *Event:
		s, err := v.DTStart(lookup)
		if err != nil {
			s = fallbackStart
			v = v.Clone()
			v.SetDTStart(s)
		}
		e, err := v.End(lookup)
		if err != nil {
			return DateTime{}, DateTime{}, false
		}
		return s, e, true
	case *ToDo:
		s, hasStart, err := v.DTStart(lookup)
		if err != nil {
			return DateTime{}, DateTime{}, false
		}
		if !hasStart {
			s = fallbackStart
		}
		due, hasDue, err := v.Due(lookup)
		if err != nil {
			return DateTime{}, DateTime{}, false
		}
		e := s
		if hasDue {
			e = due
		}
		return s, e, true
	default:
		return DateTime{}, DateTime{}, false
	}
}

func (s *seriesSource) peek() (Occurrence, bool) {
	if !s.curOK && !s.exhausted {
		s.fill()
	}
	return s.cur, s.curOK
}

func (s *seriesSource) advance() {
	s.curOK = false
}

func (s *seriesSource) fill() {
	for {
		start, ok := s.it.Next()
		if !ok {
			s.exhausted = true
			return
		}
		if ov, found := findOverride(s.overrides, start); found {
			ovStart, end, ok := overrideSpan(ov, s.lookup, start)
			if !ok {
				continue
			}
			rid := start
			s.cur = Occurrence{ItemUID: s.uid, RecurrenceID: &rid, Start: ovStart, End: end, OverrideItem: ov, OverrideMaster: true}
			s.curOK = true
			return
		}
		rid := start
		end := s.duration(start)
		s.cur = Occurrence{ItemUID: s.uid, RecurrenceID: &rid, Start: start, End: end}
		s.curOK = true
		return
	}
}

// sourceHeap implements container/heap.Interface over timelineSources,
// ordered by each source's current head per §4.6's tie-break rules:
// all-day before timed, then UID, then insertion order.
type sourceHeap struct {
	sources []timelineSource
	order   []int
}

func (h *sourceHeap) Len() int { return len(h.sources) }

func (h *sourceHeap) Less(i, j int) bool {
	oi, _ := h.sources[i].peek()
	oj, _ := h.sources[j].peek()
	if !oi.Start.Time.Equal(oj.Start.Time) {
		return oi.Start.Before(oj.Start)
	}
	iAllDay, jAllDay := oi.Start.IsAllDay(), oj.Start.IsAllDay()
	if iAllDay != jAllDay {
		return iAllDay
	}
	if oi.ItemUID != oj.ItemUID {
		return oi.ItemUID < oj.ItemUID
	}
	return h.order[i] < h.order[j]
}

func (h *sourceHeap) Swap(i, j int) {
	h.sources[i], h.sources[j] = h.sources[j], h.sources[i]
	h.order[i], h.order[j] = h.order[j], h.order[i]
}

func (h *sourceHeap) Push(x any) {
	h.sources = append(h.sources, x.(timelineSource))
	h.order = append(h.order, len(h.order))
}

func (h *sourceHeap) Pop() any {
	n := len(h.sources)
	s := h.sources[n-1]
	h.sources = h.sources[:n-1]
	h.order = h.order[:n-1]
	return s
}

// Timeline merges every item in a Calendar into one chronologically
// ordered, lazily-expanded view (§4.6).
type Timeline struct {
	cal *Calendar
	cfg Config
}

func newTimeline(cal *Calendar, cfg Config) *Timeline {
	return &Timeline{cal: cal, cfg: cfg.withDefaults()}
}

// buildSources constructs one fresh timelineSource set per call, so
// repeated queries observe the calendar's state at call time (§5:
// iterators snapshot at creation, not at Timeline construction).
func (t *Timeline) buildSources() ([]timelineSource, error) {
	lookup := t.cfg.Lookup
	var sources []timelineSource

	overridesByUID := map[string][]overrideEntry{}
	collectOverride := func(uid string, rid DateTime, item Item) {
		overridesByUID[uid] = append(overridesByUID[uid], overrideEntry{rid: rid, item: item})
	}
	for _, e := range t.cal.Events {
		if e.IsMaster() {
			continue
		}
		rid, _, err := e.RecurrenceID(lookup)
		if err != nil {
			return nil, err
		}
		collectOverride(e.UID(), rid, e)
	}
	for _, td := range t.cal.ToDos {
		if td.IsMaster() {
			continue
		}
		rid, _, err := td.RecurrenceID(lookup)
		if err != nil {
			return nil, err
		}
		collectOverride(td.UID(), rid, td)
	}

	for _, e := range t.cal.Events {
		if !e.IsMaster() {
			continue
		}
		start, err := e.DTStart(lookup)
		if err != nil {
			return nil, err
		}
		rule, hasRule, err := e.RRule()
		if err != nil {
			return nil, err
		}
		rdates, err := e.RDates(lookup)
		if err != nil {
			return nil, err
		}
		exdates, err := e.ExDates(lookup)
		if err != nil {
			return nil, err
		}
		if !hasRule && len(rdates) == 0 {
			end, err := e.End(lookup)
			if err != nil {
				return nil, err
			}
			sources = append(sources, &singleSource{occ: Occurrence{ItemUID: e.UID(), Start: start, End: end}})
			continue
		}
		it, err := NewOccurrenceIterator(start, rule, rdates, exdates, t.cfg)
		if err != nil {
			return nil, err
		}
		dur, err := eventOccurrenceDuration(e, lookup)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &seriesSource{
			uid:       e.UID(),
			it:        it,
			duration:  dur,
			overrides: overridesByUID[e.UID()],
			lookup:    lookup,
		})
	}

	for _, td := range t.cal.ToDos {
		if !td.IsMaster() {
			continue
		}
		start, hasStart, err := td.DTStart(lookup)
		if err != nil {
			return nil, err
		}
		if !hasStart {
			// RFC 5545 requires DTSTART whenever RRULE is present, so a
			// VTODO with neither can only ever contribute its DUE (if any)
			// as a single, non-recurring occurrence.
			if due, hasDue, err := td.Due(lookup); err != nil {
				return nil, err
			} else if hasDue {
				sources = append(sources, &singleSource{occ: Occurrence{ItemUID: td.UID(), Start: due, End: due}})
			}
			continue
		}
		rule, hasRule, err := td.RRule()
		if err != nil {
			return nil, err
		}
		rdates, err := td.RDates(lookup)
		if err != nil {
			return nil, err
		}
		if !hasRule && len(rdates) == 0 {
			end, hasDue, err := td.Due(lookup)
			if err != nil {
				return nil, err
			}
			if !hasDue {
				end = start
			}
			sources = append(sources, &singleSource{occ: Occurrence{ItemUID: td.UID(), Start: start, End: end}})
			continue
		}
		exdates, err := td.ExDates(lookup)
		if err != nil {
			return nil, err
		}
		it, err := NewOccurrenceIterator(start, rule, rdates, exdates, t.cfg)
		if err != nil {
			return nil, err
		}
		dur, err := todoOccurrenceDuration(td, lookup)
		if err != nil {
			return nil, err
		}
		sources = append(sources, &seriesSource{
			uid:       td.UID(),
			it:        it,
			duration:  dur,
			overrides: overridesByUID[td.UID()],
			lookup:    lookup,
		})
	}

	return sources, nil
}

// eventOccurrenceDuration returns a function mapping a generated
// candidate's start to its end, preserving the master's DTEND-DTSTART
// gap (or DURATION) across every generated occurrence.
func eventOccurrenceDuration(e *Event, lookup TimeZoneLookup) (func(DateTime) DateTime, error) {
	start, err := e.DTStart(lookup)
	if err != nil {
		return nil, err
	}
	end, err := e.End(lookup)
	if err != nil {
		return nil, err
	}
	gap := end.Time.Sub(start.Time)
	return func(s DateTime) DateTime { return s.Add(gap) }, nil
}

// todoOccurrenceDuration mirrors eventOccurrenceDuration for a recurring
// VTODO master, preserving its DUE-DTSTART gap (or collapsing to a
// zero-length occurrence when DUE is absent) across every generated
// candidate.
func todoOccurrenceDuration(td *ToDo, lookup TimeZoneLookup) (func(DateTime) DateTime, error) {
	start, _, err := td.DTStart(lookup)
	if err != nil {
		return nil, err
	}
	due, hasDue, err := td.Due(lookup)
	if err != nil {
		return nil, err
	}
	if !hasDue {
		return func(s DateTime) DateTime { return s }, nil
	}
	gap := due.Time.Sub(start.Time)
	return func(s DateTime) DateTime { return s.Add(gap) }, nil
}

// drain pulls every source's current head in order until exhaustion or
// until stop returns true for the most recently yielded occurrence.
func (t *Timeline) drain(stop func(Occurrence) bool) ([]Occurrence, error) {
	sources, err := t.buildSources()
	if err != nil {
		return nil, err
	}
	h := &sourceHeap{}
	for _, s := range sources {
		if _, ok := s.peek(); ok {
			heap.Push(h, s)
		}
	}

	var out []Occurrence
	for h.Len() > 0 {
		s := h.sources[0]
		occ, ok := s.peek()
		if !ok {
			heap.Pop(h)
			continue
		}
		if stop != nil && stop(occ) {
			break
		}
		out = append(out, occ)
		s.advance()
		if _, ok := s.peek(); ok {
			heap.Fix(h, 0)
		} else {
			heap.Pop(h)
		}
	}
	return out, nil
}

// On returns every occurrence whose start falls on the given calendar
// day, with the day's bounds taken in day's own location and compared
// against each start's instant.
func (t *Timeline) On(day time.Time) []Occurrence {
	y, m, d := day.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	var out []Occurrence
	for _, o := range t.Overlapping(dayStart, dayEnd) {
		if !o.Start.Time.Before(dayStart) && o.Start.Time.Before(dayEnd) {
			out = append(out, o)
		}
	}
	return out
}

// Overlapping returns every occurrence intersecting [start, end), sorted
// ascending by start (§8 invariant 2); occurrences with equal starts keep
// the merge's tie-break order.
func (t *Timeline) Overlapping(start, end time.Time) []Occurrence {
	occs, err := t.drain(func(o Occurrence) bool { return !o.Start.Time.Before(end) })
	if err != nil {
		return nil
	}
	var out []Occurrence
	for _, o := range occs {
		if o.End.Time.After(start) && o.Start.Time.Before(end) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// StartingAt yields every occurrence from from onward, lazily, so an
// unbounded series can be consumed without materializing the whole tail.
func (t *Timeline) StartingAt(from time.Time) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		sources, err := t.buildSources()
		if err != nil {
			return
		}
		h := &sourceHeap{}
		for _, s := range sources {
			if _, ok := s.peek(); ok {
				heap.Push(h, s)
			}
		}
		for h.Len() > 0 {
			s := h.sources[0]
			occ, ok := s.peek()
			if !ok {
				heap.Pop(h)
				continue
			}
			if !occ.Start.Time.Before(from) {
				if !yield(occ) {
					return
				}
			}
			s.advance()
			if _, ok := s.peek(); ok {
				heap.Fix(h, 0)
			} else {
				heap.Pop(h)
			}
		}
	}
}
