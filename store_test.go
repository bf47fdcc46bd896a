package ical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWeeklySeries(uid string, count int) (*Calendar, *Event) {
	cal := NewCalendar()
	e := NewEvent(uid)
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC)) // Monday
	e.SetDTStart(start)
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 17, 30, 0, 0, time.UTC)))
	e.SetRRule(&RecurrenceRule{Freq: FrequencyWeekly, Interval: 1, WkSt: "MO", Count: count, ByDay: []WeekdayNum{{Weekday: "MO"}}})
	e.SetSequence(0)
	cal.AddEvent(e)
	return cal, e
}

// TestStore_ScenarioS3_DeleteThisInstance covers scenario S3: deleting a
// single instance adds an EXDATE and the timeline excludes it thereafter
// (invariant 5).
func TestStore_ScenarioS3_DeleteThisInstance(t *testing.T) {
	cal, e := newWeeklySeries("weekly@example.com", 5)
	clock := NewFixedClock(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(cal, clock, DefaultConfig())

	target := NewDateTimeUTC(time.Date(2022, 9, 5, 16, 30, 0, 0, time.UTC))
	require.NoError(t, store.Delete(e.UID(), &target, DeleteThis))

	exdates, err := e.ExDates(nil)
	require.NoError(t, err)
	require.Len(t, exdates, 1)
	assert.True(t, exdates[0].Equal(target))

	tl := cal.Timeline(DefaultConfig())
	occs := tl.Overlapping(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, o := range occs {
		assert.False(t, o.Start.Time.Equal(target.Time))
	}
	assert.Equal(t, 1, e.Sequence())
}

// TestStore_ScenarioS4_EditThisAndFuture covers scenario S4: editing
// this-and-future from a non-first instance truncates the master's RRULE
// via UNTIL and forks a new series carrying the edit (invariant 6).
func TestStore_ScenarioS4_EditThisAndFuture(t *testing.T) {
	cal, e := newWeeklySeries("weekly@example.com", 5)
	clock := NewFixedClock(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(cal, clock, DefaultConfig())

	boundary := NewDateTimeUTC(time.Date(2022, 9, 12, 16, 30, 0, 0, time.UTC))
	newLocation := "New Office"
	changes := ItemChanges{Location: &newLocation}
	require.NoError(t, store.Edit(e.UID(), &boundary, changes, EditThisAndFuture))

	require.Len(t, cal.Events, 2)

	var originalMaster, forked *Event
	for _, ev := range cal.Events {
		if ev.UID() == "weekly@example.com" {
			originalMaster = ev
		} else {
			forked = ev
		}
	}
	require.NotNil(t, originalMaster)
	require.NotNil(t, forked)
	assert.NotEqual(t, "weekly@example.com", forked.UID())

	rule, has, err := originalMaster.RRule()
	require.NoError(t, err)
	require.True(t, has)
	require.NotNil(t, rule.Until)
	assert.True(t, rule.Until.Time.Equal(boundary.Time.Add(-time.Second)))

	forkedStart, err := forked.DTStart(nil)
	require.NoError(t, err)
	assert.True(t, forkedStart.Equal(boundary))

	loc, ok := forked.Location()
	require.True(t, ok)
	assert.Equal(t, "New Office", loc)

	forkedRule, hasRule, err := forked.RRule()
	require.NoError(t, err)
	require.True(t, hasRule)
	assert.Equal(t, FrequencyWeekly, forkedRule.Freq)

	tl := cal.Timeline(DefaultConfig())
	occs := tl.Overlapping(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	before := NewDateTimeUTC(time.Date(2022, 9, 5, 16, 30, 0, 0, time.UTC))
	var sawBeforeUnedited, sawAfterEdited bool
	for _, o := range occs {
		if o.Start.Equal(before) {
			sawBeforeUnedited = true
		}
		if o.Start.Time.Equal(boundary.Time) && o.ItemUID == forked.UID() {
			sawAfterEdited = true
		}
	}
	assert.True(t, sawBeforeUnedited, "instances before the boundary should be preserved")
	assert.True(t, sawAfterEdited, "instances from the boundary onward should belong to the forked series")
}

// TestStore_ScenarioS5_ConvertSingleEventToRecurring covers scenario S5:
// attaching a new RRULE to a previously single event via EditAll.
func TestStore_ScenarioS5_ConvertSingleEventToRecurring(t *testing.T) {
	cal := NewCalendar()
	e := NewEvent("single@example.com")
	e.SetDTStart(NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC)))
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 17, 30, 0, 0, time.UTC)))
	cal.AddEvent(e)

	clock := NewFixedClock(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(cal, clock, DefaultConfig())

	rule := &RecurrenceRule{Freq: FrequencyWeekly, Interval: 1, WkSt: "MO", Count: 4, ByDay: []WeekdayNum{{Weekday: "MO"}}}
	require.NoError(t, store.Edit(e.UID(), nil, ItemChanges{RRule: rule}, EditAll))

	got, has, err := e.RRule()
	require.NoError(t, err)
	require.True(t, has)
	assert.Equal(t, FrequencyWeekly, got.Freq)

	tl := cal.Timeline(DefaultConfig())
	occs := tl.Overlapping(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Len(t, occs, 4)
}

// TestStore_SequenceOnlyIncrementsOnSignificantChange covers invariant 7:
// SEQUENCE increments only for scheduling-significant edits.
func TestStore_SequenceOnlyIncrementsOnSignificantChange(t *testing.T) {
	cal := NewCalendar()
	e := NewEvent("single@example.com")
	e.SetDTStart(NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC)))
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 17, 30, 0, 0, time.UTC)))
	cal.AddEvent(e)

	clock := NewFixedClock(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC))
	store := NewStore(cal, clock, DefaultConfig())

	newSummary := "Renamed"
	require.NoError(t, store.Edit(e.UID(), nil, ItemChanges{Summary: &newSummary}, EditAll))
	assert.Equal(t, 0, e.Sequence())

	newStart := NewDateTimeUTC(time.Date(2022, 8, 29, 18, 0, 0, 0, time.UTC))
	require.NoError(t, store.Edit(e.UID(), nil, ItemChanges{DTStart: &newStart}, EditAll))
	assert.Equal(t, 1, e.Sequence())
}

func TestStore_Add_RejectsUIDCollision(t *testing.T) {
	cal := NewCalendar()
	cal.AddEvent(NewEvent("dup@example.com"))
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())

	err := store.Add(NewEvent("dup@example.com"))
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrUIDCollision)
}

func TestStore_CascadeDeleteChildren(t *testing.T) {
	cal := NewCalendar()
	parent := NewEvent("parent@example.com")
	parent.SetDTStart(NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC)))
	parent.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 17, 30, 0, 0, time.UTC)))
	cal.AddEvent(parent)

	child := NewToDo("child@example.com")
	child.AddRelatedTo("parent@example.com", "PARENT")
	cal.AddToDo(child)

	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())
	require.NoError(t, store.Delete("parent@example.com", nil, DeleteAll))

	assert.Empty(t, cal.Events)
	assert.Empty(t, cal.ToDos)
}

func TestStore_Delete_TargetNotFound(t *testing.T) {
	cal := NewCalendar()
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())
	err := store.Delete("missing@example.com", nil, DeleteAll)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrEditTargetNotFound)
}

func TestStore_Edit_OverrideOrphanRejected(t *testing.T) {
	cal, e := newWeeklySeries("weekly@example.com", 5)
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())

	badRid := NewDateTimeUTC(time.Date(2022, 9, 3, 16, 30, 0, 0, time.UTC)) // a Saturday, not in the series
	newSummary := "x"
	err := store.Edit(e.UID(), &badRid, ItemChanges{Summary: &newSummary}, EditThis)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrOverrideOrphan)
}

// TestStore_EditAll_PrunesStaleOverrides covers the EditAll case where
// changing RRULE/DTSTART leaves a previously valid override's
// RECURRENCE-ID outside the regenerated expansion: the orphaned override
// must be dropped rather than left to linger on the timeline.
func TestStore_EditAll_PrunesStaleOverrides(t *testing.T) {
	cal, e := newWeeklySeries("weekly@example.com", 5)
	store := NewStore(cal, NewFixedClock(time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)), DefaultConfig())

	rid := NewDateTimeUTC(time.Date(2022, 9, 5, 16, 30, 0, 0, time.UTC))
	movedSummary := "moved"
	require.NoError(t, store.Edit(e.UID(), &rid, ItemChanges{Summary: &movedSummary}, EditThis))
	require.Len(t, cal.Events, 2)

	newRule := &RecurrenceRule{Freq: FrequencyWeekly, Interval: 1, WkSt: "MO", Count: 4, ByDay: []WeekdayNum{{Weekday: "TU"}}}
	require.NoError(t, store.Edit(e.UID(), nil, ItemChanges{RRule: newRule}, EditAll))

	require.Len(t, cal.Events, 1, "the override's RECURRENCE-ID no longer falls on a Tuesday, so it should be pruned")
	assert.Equal(t, "weekly@example.com", cal.Events[0].UID())
}

// TestStore_ToDo_AddDeleteAll covers Store.Add/Store.Delete working on a
// recurring VTODO master the same way they do for a VEVENT master.
func TestStore_ToDo_AddDeleteAll(t *testing.T) {
	cal := NewCalendar()
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())

	td := NewToDo("chores@example.com")
	td.SetDTStart(NewDateTimeUTC(time.Date(2022, 8, 29, 9, 0, 0, 0, time.UTC)))
	td.SetRRule(&RecurrenceRule{Freq: FrequencyDaily, Interval: 1, WkSt: "MO", Count: 3})
	require.NoError(t, store.Add(td))
	require.Len(t, cal.ToDos, 1)

	require.NoError(t, store.Delete(td.UID(), nil, DeleteAll))
	assert.Empty(t, cal.ToDos)
}

// TestStore_ToDo_DeleteThisAddsExdate covers DeleteThis on a recurring
// VTODO instance.
func TestStore_ToDo_DeleteThisAddsExdate(t *testing.T) {
	cal := NewCalendar()
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())

	td := NewToDo("chores@example.com")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 9, 0, 0, 0, time.UTC))
	td.SetDTStart(start)
	td.SetRRule(&RecurrenceRule{Freq: FrequencyDaily, Interval: 1, WkSt: "MO", Count: 3})
	cal.AddToDo(td)

	target := NewDateTimeUTC(time.Date(2022, 8, 30, 9, 0, 0, 0, time.UTC))
	require.NoError(t, store.Delete(td.UID(), &target, DeleteThis))

	exdates, err := td.ExDates(nil)
	require.NoError(t, err)
	require.Len(t, exdates, 1)
	assert.True(t, exdates[0].Equal(target))
}

// TestStore_ToDo_EditAndDeleteThisAndFuture_ModeIncompatible covers the
// documented scope narrowing (SPEC_FULL.md §4.7 "VTODO edit scope"):
// Store.Edit and a this_and_future delete on a recurring VTODO's UID
// return ErrModeIncompatible rather than a misleading "not found".
func TestStore_ToDo_EditAndDeleteThisAndFuture_ModeIncompatible(t *testing.T) {
	cal := NewCalendar()
	store := NewStore(cal, NewFixedClock(time.Now()), DefaultConfig())

	td := NewToDo("chores@example.com")
	td.SetDTStart(NewDateTimeUTC(time.Date(2022, 8, 29, 9, 0, 0, 0, time.UTC)))
	td.SetRRule(&RecurrenceRule{Freq: FrequencyDaily, Interval: 1, WkSt: "MO", Count: 3})
	cal.AddToDo(td)

	newSummary := "x"
	err := store.Edit(td.UID(), nil, ItemChanges{Summary: &newSummary}, EditAll)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrModeIncompatible)

	boundary := NewDateTimeUTC(time.Date(2022, 8, 30, 9, 0, 0, 0, time.UTC))
	err = store.Delete(td.UID(), &boundary, DeleteThisAndFuture)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, ErrModeIncompatible)
}
