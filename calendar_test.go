package ical

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioS1 is the literal round-trip scenario: decode then encode must
// preserve UID/DTSTAMP/DTSTART/DTEND/SUMMARY/CLASS/CATEGORIES exactly, and
// property order must survive unchanged.
const scenarioS1 = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:19970901T130000Z-123401@example.com\r\n" +
	"DTSTAMP:19970901T130000Z\r\n" +
	"DTSTART:19970903T163000Z\r\n" +
	"DTEND:19970903T190000Z\r\n" +
	"SUMMARY:Annual Employee Review\r\n" +
	"CLASS:PRIVATE\r\n" +
	"CATEGORIES:BUSINESS,HUMAN RESOURCES\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestDecode_ScenarioS1_RoundTrip(t *testing.T) {
	cal, err := Decode(strings.NewReader(scenarioS1), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, cal.Events, 1)

	e := cal.Events[0]
	assert.Equal(t, "19970901T130000Z-123401@example.com", e.UID())

	dtstamp, ok, err := e.DTStamp(nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "19970901T130000Z", dtstamp.Format())

	start, err := e.DTStart(nil)
	require.NoError(t, err)
	assert.Equal(t, "19970903T163000Z", start.Format())

	end, ok, err := e.DTEnd(nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "19970903T190000Z", end.Format())

	summary, _ := e.Summary()
	assert.Equal(t, "Annual Employee Review", summary)

	class, _ := e.Class()
	assert.Equal(t, "PRIVATE", class)

	assert.Equal(t, []string{"BUSINESS", "HUMAN RESOURCES"}, e.Categories())

	var b strings.Builder
	require.NoError(t, cal.Encode(&b))

	// Property order must survive: UID, DTSTAMP, DTSTART, DTEND, SUMMARY,
	// CLASS, CATEGORIES appear in that order inside VEVENT.
	out := b.String()
	uidIdx := strings.Index(out, "UID:")
	dtstampIdx := strings.Index(out, "DTSTAMP:")
	dtstartIdx := strings.Index(out, "DTSTART:")
	dtendIdx := strings.Index(out, "DTEND:")
	summaryIdx := strings.Index(out, "SUMMARY:")
	classIdx := strings.Index(out, "CLASS:")
	categoriesIdx := strings.Index(out, "CATEGORIES:")
	assert.True(t, uidIdx < dtstampIdx)
	assert.True(t, dtstampIdx < dtstartIdx)
	assert.True(t, dtstartIdx < dtendIdx)
	assert.True(t, dtendIdx < summaryIdx)
	assert.True(t, summaryIdx < classIdx)
	assert.True(t, classIdx < categoriesIdx)
}

func TestDecode_RequiresSingleVCALENDAR(t *testing.T) {
	_, err := Decode(strings.NewReader("BEGIN:VEVENT\r\nUID:x\r\nEND:VEVENT\r\n"), DefaultConfig())
	assert.ErrorIs(t, err, ErrParse)
}

func TestDecode_RejectOrphanOverridesRejectsOrphanRecurrenceID(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:orphan@example.com\r\n" +
		"RECURRENCE-ID:20220905T163000Z\r\n" +
		"DTSTAMP:20220829T163000Z\r\n" +
		"DTSTART:20220905T163000Z\r\n" +
		"SUMMARY:Orphan override\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	cfg := DefaultConfig()
	cfg.RejectOrphanOverrides = true
	_, err := Decode(strings.NewReader(in), cfg)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrRecurrenceIDOrphan)
}

func TestDecode_NonStrictAllowsOrphanRecurrenceID(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:orphan@example.com\r\n" +
		"RECURRENCE-ID:20220905T163000Z\r\n" +
		"DTSTAMP:20220829T163000Z\r\n" +
		"DTSTART:20220905T163000Z\r\n" +
		"SUMMARY:Orphan override\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	cal, err := Decode(strings.NewReader(in), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, cal.Events, 1)
}

func TestDecode_StrictRejectsUnknownFreq(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:x@example.com\r\n" +
		"DTSTAMP:20220829T163000Z\r\n" +
		"DTSTART:20220829T163000Z\r\n" +
		"RRULE:FREQ=FORTNIGHTLY\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	cfg := DefaultConfig()
	cfg.StrictRFC5545 = true
	_, err := Decode(strings.NewReader(in), cfg)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	_, err = Decode(strings.NewReader(in), DefaultConfig())
	assert.NoError(t, err)
}

func TestDecode_StrictRejectsMalformedEscape(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//test//EN\r\n" +
		"BEGIN:VEVENT\r\n" +
		"UID:x@example.com\r\n" +
		"DTSTAMP:20220829T163000Z\r\n" +
		"DTSTART:20220829T163000Z\r\n" +
		`SUMMARY:bad\xescape` + "\r\n" +
		"END:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	cfg := DefaultConfig()
	cfg.StrictRFC5545 = true
	_, err := Decode(strings.NewReader(in), cfg)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, ErrMalformedEscape)

	_, err = Decode(strings.NewReader(in), DefaultConfig())
	assert.NoError(t, err)
}

func TestNewCalendar_Defaults(t *testing.T) {
	cal := NewCalendar()
	assert.Equal(t, "2.0", cal.Version())
	assert.Equal(t, "-//icalgo//icalgo//EN", cal.ProdID())
}

func TestCalendar_Items_Order(t *testing.T) {
	cal := NewCalendar()
	cal.AddEvent(NewEvent("e1"))
	cal.AddToDo(NewToDo("t1"))
	cal.AddJournal(NewJournal("j1"))

	items := cal.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "e1", items[0].UID())
	assert.Equal(t, "t1", items[1].UID())
	assert.Equal(t, "j1", items[2].UID())
}

func TestCalendar_UnknownComponentPreserved(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\n" +
		"VERSION:2.0\r\n" +
		"PRODID:-//test//test//EN\r\n" +
		"BEGIN:X-CUSTOM\r\n" +
		"X-FIELD:value\r\n" +
		"END:X-CUSTOM\r\n" +
		"END:VCALENDAR\r\n"

	cal, err := Decode(strings.NewReader(in), DefaultConfig())
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, cal.Encode(&b))
	assert.Contains(t, b.String(), "BEGIN:X-CUSTOM")
	assert.Contains(t, b.String(), "X-FIELD:value")
}
