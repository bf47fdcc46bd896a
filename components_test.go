package ical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_DTStartMissing(t *testing.T) {
	e := NewEvent("uid-1")
	_, err := e.DTStart(nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEvent_EndFromDuration(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	d, err := ParseDuration("PT1H")
	require.NoError(t, err)
	e.SetDuration(d)

	end, err := e.End(nil)
	require.NoError(t, err)
	assert.Equal(t, start.Time.Add(time.Hour), end.Time)

	_, has, err := e.DTEnd(nil)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEvent_SetDTEndClearsDuration(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	d, _ := ParseDuration("PT1H")
	e.SetDuration(d)

	end := NewDateTimeUTC(time.Date(2022, 8, 29, 18, 0, 0, 0, time.UTC))
	e.SetDTEnd(end)

	_, has, err := e.EventDuration()
	require.NoError(t, err)
	assert.False(t, has)

	gotEnd, err := e.End(nil)
	require.NoError(t, err)
	assert.True(t, gotEnd.Equal(end))
}

func TestEvent_Validate_BothEndAndDuration(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	e.replaceOrAppend(PropertyDtend, start.ToContentLine(string(PropertyDtend)))
	e.Properties = append(e.Properties, ContentLine{Name: string(PropertyDuration), Value: "PT1H"})

	err := e.Validate(nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrBothEndAndDuration)
}

func TestEvent_Validate_EndBeforeStart(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 15, 0, 0, 0, time.UTC)))

	err := e.Validate(nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrEndBeforeStart)
}

func TestEvent_Validate_OK(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 17, 30, 0, 0, time.UTC)))
	assert.NoError(t, e.Validate(nil))
}

func TestEvent_Clone_Independent(t *testing.T) {
	e := NewEvent("uid-1")
	e.SetSummary("original")
	clone := e.Clone()
	clone.SetSummary("changed")

	orig, _ := e.Summary()
	cp, _ := clone.Summary()
	assert.Equal(t, "original", orig)
	assert.Equal(t, "changed", cp)
}

func TestEvent_IsMaster(t *testing.T) {
	e := NewEvent("uid-1")
	assert.True(t, e.IsMaster())
	e.SetRecurrenceID(NewDate(2022, time.September, 5))
	assert.False(t, e.IsMaster())
}

func TestToDo_DueAndDuration(t *testing.T) {
	td := NewToDo("uid-2")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 9, 0, 0, 0, time.UTC))
	td.SetDTStart(start)
	due := NewDateTimeUTC(time.Date(2022, 8, 29, 17, 0, 0, 0, time.UTC))
	td.SetDue(due)

	got, ok, err := td.Due(nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(due))

	d, _ := ParseDuration("PT2H")
	td.SetDuration(d)
	_, hasDue, err := td.Due(nil)
	require.NoError(t, err)
	assert.False(t, hasDue)
}

func TestToDo_PercentComplete(t *testing.T) {
	td := NewToDo("uid-2")
	td.SetPercentComplete(50)
	v, ok := td.PercentComplete()
	require.True(t, ok)
	assert.Equal(t, 50, v)
}

func TestJournal_RoundTrip(t *testing.T) {
	j := NewJournal("uid-3")
	start := NewDate(2022, time.August, 29)
	j.SetDTStart(start)

	pc := j.ToParsedComponent()
	decoded := decodeJournal(pc)
	got, ok, err := decoded.DTStart(nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(start))
}

func TestAttendee_RoundTrip(t *testing.T) {
	e := NewEvent("uid-1")
	e.AddAttendee(Attendee{CalAddress: "mailto:jane@example.com", PartStat: "ACCEPTED", Role: "CHAIR", CN: "Jane Doe", RSVP: true})

	atts := e.Attendees()
	require.Len(t, atts, 1)
	assert.Equal(t, "mailto:jane@example.com", atts[0].CalAddress)
	assert.Equal(t, "ACCEPTED", atts[0].PartStat)
	assert.Equal(t, "CHAIR", atts[0].Role)
	assert.Equal(t, "Jane Doe", atts[0].CN)
	assert.True(t, atts[0].RSVP)
}

func TestRelatedTo_DefaultsToSibling(t *testing.T) {
	e := NewEvent("uid-1")
	e.AddRelatedTo("parent-uid", "")
	rel := e.RelatedTo()
	require.Len(t, rel, 1)
	assert.Equal(t, "SIBLING", rel[0].RelType)
}

func TestRelatedTo_Parent(t *testing.T) {
	e := NewEvent("uid-1")
	e.AddRelatedTo("parent-uid", "PARENT")
	rel := e.RelatedTo()
	require.Len(t, rel, 1)
	assert.Equal(t, "PARENT", rel[0].RelType)
}

func TestCategories_CommaListNormalization(t *testing.T) {
	e := NewEvent("uid-1")
	e.SetCategories([]string{"BUSINESS", "HUMAN RESOURCES"})
	assert.Equal(t, []string{"BUSINESS", "HUMAN RESOURCES"}, e.Categories())

	cl := e.prop(PropertyCategories)
	require.NotNil(t, cl)
	assert.Equal(t, "BUSINESS,HUMAN RESOURCES", cl.Value)
}

func TestEvent_DecodeRoundTrip(t *testing.T) {
	e := NewEvent("uid-1")
	start := NewDateTimeUTC(time.Date(2022, 8, 29, 16, 30, 0, 0, time.UTC))
	e.SetDTStart(start)
	e.SetDTEnd(NewDateTimeUTC(time.Date(2022, 8, 29, 19, 0, 0, 0, time.UTC)))
	e.SetSummary("Annual Employee Review")

	pc := e.ToParsedComponent()
	decoded := decodeEvent(pc)
	assert.Equal(t, e.UID(), decoded.UID())
	gotSummary, _ := decoded.Summary()
	assert.Equal(t, "Annual Employee Review", gotSummary)
}
