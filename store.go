package ical

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DeleteMode selects which occurrences of a series a Store.Delete call
// removes (§4.7).
type DeleteMode int

const (
	DeleteThis DeleteMode = iota
	DeleteThisAndFuture
	DeleteAll
)

// EditMode selects which occurrences of a series a Store.Edit call
// affects (§4.7).
type EditMode int

const (
	EditThis EditMode = iota
	EditThisAndFuture
	EditAll
)

// ItemChanges is the set of fields a Store.Edit call may update. Nil
// fields are left untouched. Every field here is scheduling-significant
// per §4.7's SEQUENCE rule except Summary/Description.
type ItemChanges struct {
	Summary     *string
	Description *string
	Location    *string
	Status      *string
	DTStart     *DateTime
	DTEnd       *DateTime
	Duration    *Duration
	RRule       *RecurrenceRule
}

func (c ItemChanges) schedulingSignificant() bool {
	return c.DTStart != nil || c.DTEnd != nil || c.Duration != nil ||
		c.RRule != nil || c.Status != nil || c.Location != nil
}

func (c ItemChanges) apply(e *Event) {
	if c.Summary != nil {
		e.SetSummary(*c.Summary)
	}
	if c.Description != nil {
		e.SetDescription(*c.Description)
	}
	if c.Location != nil {
		e.SetLocation(*c.Location)
	}
	if c.Status != nil {
		e.SetStatus(ObjectStatus(*c.Status))
	}
	if c.DTStart != nil {
		e.SetDTStart(*c.DTStart)
	}
	if c.DTEnd != nil {
		e.SetDTEnd(*c.DTEnd)
	}
	if c.Duration != nil {
		e.SetDuration(*c.Duration)
	}
	if c.RRule != nil {
		e.SetRRule(c.RRule)
	}
}

// ObjectStatus is STATUS's text vocabulary, reused from the teacher's
// enum naming (§3 [EXPANSION]).
type ObjectStatus string

const (
	StatusTentative   ObjectStatus = "TENTATIVE"
	StatusConfirmed   ObjectStatus = "CONFIRMED"
	StatusCancelled   ObjectStatus = "CANCELLED"
	StatusNeedsAction ObjectStatus = "NEEDS-ACTION"
	StatusCompleted   ObjectStatus = "COMPLETED"
	StatusInProcess   ObjectStatus = "IN-PROCESS"
	StatusDraft       ObjectStatus = "DRAFT"
	StatusFinal       ObjectStatus = "FINAL"
)

// Store mediates mutations to a Calendar's items, maintaining the
// RFC 5545 invariants across RECURRENCE-ID/UID/SEQUENCE/DTSTAMP/EXDATE/
// UNTIL that a bare slice append/remove would violate (§4.7).
type Store struct {
	cal   *Calendar
	clock Clock
	cfg   Config
}

func NewStore(cal *Calendar, clock Clock, cfg Config) *Store {
	return &Store{cal: cal, clock: clock, cfg: cfg.withDefaults()}
}

func (s *Store) touch(e *Event, significant bool) {
	now := s.clock.Now()
	e.SetDTStamp(NewDateTimeUTC(now))
	e.SetLastModified(NewDateTimeUTC(now))
	if significant {
		e.SetSequence(e.Sequence() + 1)
	}
}

func (s *Store) touchToDo(t *ToDo, significant bool) {
	now := s.clock.Now()
	t.SetDTStamp(NewDateTimeUTC(now))
	t.SetLastModified(NewDateTimeUTC(now))
	if significant {
		t.SetSequence(t.Sequence() + 1)
	}
}

// findAnyMaster looks up a master across every item kind the store
// mutates, so UID collisions are caught regardless of which VEVENT/VTODO
// slice the clash lands in.
func (s *Store) findAnyMaster(uid string) Item {
	if e := s.findEventMaster(uid); e != nil {
		return e
	}
	if t := s.findToDoMaster(uid); t != nil {
		return t
	}
	return nil
}

// Add appends a new item, rejecting a master UID that collides with an
// existing master in the calendar (§4.7 "UID collisions are impossible
// for masters").
func (s *Store) Add(item Item) error {
	switch v := item.(type) {
	case *Event:
		if v.IsMaster() && s.findAnyMaster(v.UID()) != nil {
			return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrUIDCollision, v.UID())
		}
		s.cal.AddEvent(v)
	case *ToDo:
		if v.IsMaster() && s.findAnyMaster(v.UID()) != nil {
			return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrUIDCollision, v.UID())
		}
		s.cal.AddToDo(v)
	case *Journal:
		s.cal.AddJournal(v)
	default:
		return fmt.Errorf("%w: %w: unsupported item type", ErrStore, ErrModeIncompatible)
	}
	return nil
}

func (s *Store) findEventMaster(uid string) *Event {
	for _, e := range s.cal.Events {
		if e.UID() == uid && e.IsMaster() {
			return e
		}
	}
	return nil
}

func (s *Store) findEventOverride(uid string, recurrenceID DateTime) *Event {
	for _, e := range s.cal.Events {
		if e.UID() != uid || e.IsMaster() {
			continue
		}
		rid, ok, err := e.RecurrenceID(s.cfg.Lookup)
		if err != nil || !ok {
			continue
		}
		if rid.Equal(recurrenceID) {
			return e
		}
	}
	return nil
}

func (s *Store) removeEvents(pred func(*Event) bool) {
	out := s.cal.Events[:0]
	for _, e := range s.cal.Events {
		if !pred(e) {
			out = append(out, e)
		}
	}
	s.cal.Events = out
}

func (s *Store) findToDoMaster(uid string) *ToDo {
	for _, td := range s.cal.ToDos {
		if td.UID() == uid && td.IsMaster() {
			return td
		}
	}
	return nil
}

func (s *Store) removeToDos(pred func(*ToDo) bool) {
	out := s.cal.ToDos[:0]
	for _, td := range s.cal.ToDos {
		if !pred(td) {
			out = append(out, td)
		}
	}
	s.cal.ToDos = out
}

// Delete removes occurrences of the series identified by uid per mode
// (§4.7 "Delete semantics"), cascading to children related via
// RELATED-TO;RELTYPE=PARENT.
//
// VTODO series: DeleteAll and DeleteThis are supported, mirroring the
// VEVENT logic exactly since neither needs the UID-forking machinery.
// DeleteThisAndFuture is VEVENT-only (SPEC_FULL.md §4.7 "VTODO edit
// scope"); a recurring VTODO's this_and_future delete is rejected with
// ErrModeIncompatible rather than silently doing nothing.
func (s *Store) Delete(uid string, recurrenceID *DateTime, mode DeleteMode) error {
	if s.findEventMaster(uid) != nil {
		if err := s.deleteEventSeries(uid, recurrenceID, mode); err != nil {
			return err
		}
		return s.cascadeDeleteChildren(uid, map[string]bool{uid: true})
	}
	if s.findToDoMaster(uid) != nil {
		if err := s.deleteToDoSeries(uid, recurrenceID, mode); err != nil {
			return err
		}
		return s.cascadeDeleteChildren(uid, map[string]bool{uid: true})
	}
	return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrEditTargetNotFound, uid)
}

// deleteToDoSeries mirrors deleteEventSeries for a VTODO master; see its
// doc comment for the this_and_future restriction.
func (s *Store) deleteToDoSeries(uid string, recurrenceID *DateTime, mode DeleteMode) error {
	master := s.findToDoMaster(uid)
	if master == nil {
		return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrEditTargetNotFound, uid)
	}

	switch mode {
	case DeleteAll:
		s.removeToDos(func(t *ToDo) bool { return t.UID() == uid })
		return nil

	case DeleteThis:
		if recurrenceID == nil {
			s.removeToDos(func(t *ToDo) bool { return t.UID() == uid })
			return nil
		}
		exdates, err := master.ExDates(s.cfg.Lookup)
		if err != nil {
			return err
		}
		exdates = append(exdates, *recurrenceID)
		master.SetExDates(exdates)
		s.touchToDo(master, true)
		s.removeToDos(func(t *ToDo) bool {
			if t.UID() != uid || t.IsMaster() {
				return false
			}
			rid, ok, err := t.RecurrenceID(s.cfg.Lookup)
			return err == nil && ok && rid.Equal(*recurrenceID)
		})
		return nil

	case DeleteThisAndFuture:
		return fmt.Errorf("%w: %w: this_and_future is not supported for VTODO series", ErrStore, ErrModeIncompatible)
	}
	return fmt.Errorf("%w: %w: unrecognized delete mode", ErrStore, ErrModeIncompatible)
}

func (s *Store) deleteEventSeries(uid string, recurrenceID *DateTime, mode DeleteMode) error {
	master := s.findEventMaster(uid)
	if master == nil {
		return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrEditTargetNotFound, uid)
	}

	switch mode {
	case DeleteAll:
		s.removeEvents(func(e *Event) bool { return e.UID() == uid })
		return nil

	case DeleteThis:
		if recurrenceID == nil {
			s.removeEvents(func(e *Event) bool { return e.UID() == uid })
			return nil
		}
		exdates, err := master.ExDates(s.cfg.Lookup)
		if err != nil {
			return err
		}
		exdates = append(exdates, *recurrenceID)
		master.SetExDates(exdates)
		s.touch(master, true)
		s.removeEvents(func(e *Event) bool {
			if e.UID() != uid || e.IsMaster() {
				return false
			}
			rid, ok, err := e.RecurrenceID(s.cfg.Lookup)
			return err == nil && ok && rid.Equal(*recurrenceID)
		})
		return nil

	case DeleteThisAndFuture:
		if recurrenceID == nil {
			return fmt.Errorf("%w: %w: this_and_future requires a RECURRENCE-ID", ErrStore, ErrModeIncompatible)
		}
		start, err := master.DTStart(s.cfg.Lookup)
		if err != nil {
			return err
		}
		if recurrenceID.Equal(start) {
			s.removeEvents(func(e *Event) bool { return e.UID() == uid })
			return nil
		}
		if err := truncateUntil(master, *recurrenceID); err != nil {
			return err
		}
		s.touch(master, true)
		s.removeEvents(func(e *Event) bool {
			if e.UID() != uid || e.IsMaster() {
				return false
			}
			rid, ok, err := e.RecurrenceID(s.cfg.Lookup)
			return err == nil && ok && !rid.Before(*recurrenceID)
		})
		return nil
	}
	return fmt.Errorf("%w: %w: unrecognized delete mode", ErrStore, ErrModeIncompatible)
}

// truncateUntil sets the master's RRULE.UNTIL to the instant immediately
// before boundary: one day earlier for all-day, one second earlier for
// timed (§4.7).
func truncateUntil(master *Event, boundary DateTime) error {
	rule, has, err := master.RRule()
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %w: master has no RRULE to truncate", ErrStore, ErrModeIncompatible)
	}
	var until DateTime
	if boundary.IsAllDay() {
		until = boundary.AddDate(-1)
	} else {
		until = boundary.Add(-time.Second)
	}
	rule.Count = 0
	rule.Until = &until
	master.SetRRule(rule)
	return nil
}

// cascadeDeleteChildren deletes every ToDo whose RELATED-TO;RELTYPE=PARENT
// names uid, recursively, guarding against cycles with visited (§4.7,
// §9 "Cyclic references").
func (s *Store) cascadeDeleteChildren(parentUID string, visited map[string]bool) error {
	var children []string
	for _, td := range s.cal.ToDos {
		for _, rel := range td.RelatedTo() {
			if rel.RelType == "PARENT" && rel.UID == parentUID {
				children = append(children, td.UID())
			}
		}
	}
	for _, childUID := range children {
		if visited[childUID] {
			continue
		}
		visited[childUID] = true
		out := s.cal.ToDos[:0]
		for _, td := range s.cal.ToDos {
			if td.UID() != childUID {
				out = append(out, td)
			}
		}
		s.cal.ToDos = out
		if err := s.cascadeDeleteChildren(childUID, visited); err != nil {
			return err
		}
	}
	return nil
}

// Edit applies changes to occurrences of the series identified by uid
// per mode (§4.7 "Edit semantics"). ItemChanges models VEVENT's
// DTEND-shaped fields, so the edit engine only targets VEVENT series
// (SPEC_FULL.md §4.7 "VTODO edit scope"); a recurring VTODO's UID is
// reported with ErrModeIncompatible rather than the misleading
// ErrEditTargetNotFound, since the series does exist.
func (s *Store) Edit(uid string, recurrenceID *DateTime, changes ItemChanges, mode EditMode) error {
	master := s.findEventMaster(uid)
	if master == nil {
		if s.findToDoMaster(uid) != nil {
			return fmt.Errorf("%w: %w: VTODO series do not support the ItemChanges edit engine", ErrStore, ErrModeIncompatible)
		}
		return fmt.Errorf("%w: %w: UID %q", ErrStore, ErrEditTargetNotFound, uid)
	}

	switch mode {
	case EditAll:
		changes.apply(master)
		s.touch(master, changes.schedulingSignificant())
		if changes.DTStart != nil || changes.RRule != nil || changes.Duration != nil {
			if err := s.pruneStaleOverrides(master); err != nil {
				return err
			}
		}
		return nil

	case EditThis:
		if recurrenceID == nil {
			return fmt.Errorf("%w: %w: this requires a RECURRENCE-ID", ErrStore, ErrModeIncompatible)
		}
		if err := s.validateOverrideCandidate(master, *recurrenceID); err != nil {
			return err
		}
		ov := s.findEventOverride(uid, *recurrenceID)
		if ov == nil {
			ov = NewEvent(uid)
			ov.SetRecurrenceID(*recurrenceID)
			ov.SetDTStart(*recurrenceID)
			if end, ok, err := master.DTEnd(s.cfg.Lookup); err == nil && ok {
				start, _ := master.DTStart(s.cfg.Lookup)
				ov.SetDTEnd(recurrenceID.Add(end.Time.Sub(start.Time)))
			}
			s.cal.AddEvent(ov)
		}
		changes.apply(ov)
		s.touch(ov, changes.schedulingSignificant())
		return nil

	case EditThisAndFuture:
		if recurrenceID == nil {
			return fmt.Errorf("%w: %w: this_and_future requires a RECURRENCE-ID", ErrStore, ErrModeIncompatible)
		}
		start, err := master.DTStart(s.cfg.Lookup)
		if err != nil {
			return err
		}
		if recurrenceID.Equal(start) {
			changes.apply(master)
			s.touch(master, changes.schedulingSignificant())
			return nil
		}
		return s.forkSeries(master, *recurrenceID, changes)
	}
	return fmt.Errorf("%w: %w: unrecognized edit mode", ErrStore, ErrModeIncompatible)
}

// validateOverrideCandidate rejects an override assertion whose
// RECURRENCE-ID is not among the master's expansion candidates (§4.7
// "An edit... any override assertion without a matching expansion
// candidate is rejected").
func (s *Store) validateOverrideCandidate(master *Event, recurrenceID DateTime) error {
	rule, has, err := master.RRule()
	if err != nil {
		return err
	}
	if !has {
		start, err := master.DTStart(s.cfg.Lookup)
		if err != nil {
			return err
		}
		if !start.Equal(recurrenceID) {
			return fmt.Errorf("%w: %w", ErrStore, ErrOverrideOrphan)
		}
		return nil
	}
	start, err := master.DTStart(s.cfg.Lookup)
	if err != nil {
		return err
	}
	rdates, err := master.RDates(s.cfg.Lookup)
	if err != nil {
		return err
	}
	it, err := NewOccurrenceIterator(start, rule, rdates, nil, s.cfg)
	if err != nil {
		return err
	}
	for {
		occ, ok := it.Next()
		if !ok {
			return fmt.Errorf("%w: %w", ErrStore, ErrOverrideOrphan)
		}
		if occ.Equal(recurrenceID) {
			return nil
		}
		if occ.After(recurrenceID) {
			return fmt.Errorf("%w: %w", ErrStore, ErrOverrideOrphan)
		}
	}
}

// pruneStaleOverrides drops every override whose RECURRENCE-ID is no
// longer among master's regenerated expansion candidates, after an edit
// changed DTSTART/RRULE/DURATION (§4.7 "all: ... drop all overrides whose
// RECURRENCE-ID is no longer in the regenerated expansion, unless the
// edit preserves the expansion"). An edit that leaves the expansion
// unchanged is a no-op here, since every override's RID still matches.
func (s *Store) pruneStaleOverrides(master *Event) error {
	candidates, err := s.expansionCandidates(master)
	if err != nil {
		return err
	}
	s.removeEvents(func(e *Event) bool {
		if e.UID() != master.UID() || e.IsMaster() {
			return false
		}
		rid, ok, err := e.RecurrenceID(s.cfg.Lookup)
		if err != nil || !ok {
			return false
		}
		for _, c := range candidates {
			if c.Equal(rid) {
				return false
			}
		}
		return true
	})
	return nil
}

// expansionCandidates walks master's current (post-edit) RRULE/RDATE
// expansion, mirroring validateOverrideCandidate's walk. A master that no
// longer recurs at all returns an empty candidate set, so every override
// is dropped by pruneStaleOverrides.
func (s *Store) expansionCandidates(master *Event) ([]DateTime, error) {
	rule, has, err := master.RRule()
	if err != nil {
		return nil, err
	}
	rdates, err := master.RDates(s.cfg.Lookup)
	if err != nil {
		return nil, err
	}
	if !has && len(rdates) == 0 {
		return nil, nil
	}
	start, err := master.DTStart(s.cfg.Lookup)
	if err != nil {
		return nil, err
	}
	it, err := NewOccurrenceIterator(start, rule, rdates, nil, s.cfg)
	if err != nil {
		return nil, err
	}
	return it.Collect(), nil
}

// forkSeries clones master's original (pre-truncation) recurrence into a
// new series carrying a fresh UID, truncates master at boundary, and
// migrates every override at or after boundary onto the new UID (§4.7
// "this_and_future", SPEC_FULL.md "New-series UID minting").
func (s *Store) forkSeries(master *Event, boundary DateTime, changes ItemChanges) error {
	originalRule, hasRule, err := master.RRule()
	if err != nil {
		return err
	}

	newUID := uuid.NewString()
	fork := master.Clone()
	fork.SetUID(newUID)
	fork.removeAll(PropertyRecurrID)
	fork.SetDTStart(boundary)
	if hasRule {
		fork.SetRRule(originalRule)
	}
	changes.apply(fork)
	s.touch(fork, true)
	s.cal.AddEvent(fork)

	if err := truncateUntil(master, boundary); err != nil {
		return err
	}
	s.touch(master, true)

	for _, e := range s.cal.Events {
		if e.UID() != master.UID() || e.IsMaster() {
			continue
		}
		rid, ok, rerr := e.RecurrenceID(s.cfg.Lookup)
		if rerr != nil || !ok || rid.Before(boundary) {
			continue
		}
		e.SetUID(newUID)
	}
	return nil
}
