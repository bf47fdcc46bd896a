package ical

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalVEVENT = "BEGIN:VCALENDAR\r\n" +
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

func TestParseComponents_WellFormedNesting(t *testing.T) {
	top, err := ParseComponents(strings.NewReader(minimalVEVENT))
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "VCALENDAR", top[0].Name)
	require.Len(t, top[0].Children, 1)
	assert.Equal(t, "VEVENT", top[0].Children[0].Name)
}

func TestParseComponents_MismatchedEnd(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nEND:VTODO\r\n"
	_, err := ParseComponents(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrMismatchedEnd)
}

func TestParseComponents_UnclosedStack(t *testing.T) {
	in := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\n"
	_, err := ParseComponents(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrUnclosedStack)
}

func TestParseComponents_PropertyOutsideComponent(t *testing.T) {
	in := "SUMMARY:oops\r\n"
	_, err := ParseComponents(strings.NewReader(in))
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, ErrPropertyNoParent)
}

func TestSerializeComponent_RoundTrip(t *testing.T) {
	top, err := ParseComponents(strings.NewReader(minimalVEVENT))
	require.NoError(t, err)

	var b bytes.Buffer
	require.NoError(t, SerializeComponent(&b, top[0]))

	top2, err := ParseComponents(strings.NewReader(b.String()))
	require.NoError(t, err)
	require.Len(t, top2, 1)
	assert.Equal(t, top[0].Name, top2[0].Name)
	if diff := cmp.Diff(top[0], top2[0]); diff != "" {
		t.Errorf("component tree changed across round-trip (-want +got):\n%s", diff)
	}
}
