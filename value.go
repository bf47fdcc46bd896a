package ical

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateTimeKind tags which of the four value spaces from spec §4.3/§9 a
// DateTime carries: a bare calendar date, an instant in UTC, an instant
// anchored to a named zone, or a "floating" local time with no zone at
// all.
type DateTimeKind int

const (
	KindDate DateTimeKind = iota
	KindDateTimeUTC
	KindDateTimeZoned
	KindDateTimeFloating
)

func (k DateTimeKind) String() string {
	switch k {
	case KindDate:
		return "DATE"
	case KindDateTimeUTC:
		return "DATE-TIME(UTC)"
	case KindDateTimeZoned:
		return "DATE-TIME(zoned)"
	case KindDateTimeFloating:
		return "DATE-TIME(floating)"
	default:
		return "DATE-TIME(unknown)"
	}
}

// DateTime is the package's tagged value for every DATE/DATE-TIME property
// (DTSTART, DTEND, DUE, RECURRENCE-ID, RDATE, EXDATE, DTSTAMP, CREATED,
// LAST-MODIFIED). Time always holds an absolute instant that orders
// correctly against every other DateTime (§3 invariants): for KindDate it
// is midnight UTC; for KindDateTimeFloating it is the wall clock value
// with no zone conversion applied. This is a deliberate simplification of
// the open question in spec §9: floating values order against each other
// and against zoned/UTC values as if they were UTC, which is undefined by
// RFC 5545 but must be total for the timeline merge (§4.6) to work.
type DateTime struct {
	Kind DateTimeKind
	Time time.Time
	TZID string // set only when Kind == KindDateTimeZoned
}

// NewDate builds an all-day value for the given calendar day.
func NewDate(y int, m time.Month, d int) DateTime {
	return DateTime{Kind: KindDate, Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// NewDateTimeUTC builds a UTC instant value.
func NewDateTimeUTC(t time.Time) DateTime {
	return DateTime{Kind: KindDateTimeUTC, Time: t.UTC()}
}

// NewDateTimeZoned builds a value anchored to a named zone. loc must be the
// *time.Location the caller's TimeZoneLookup resolved for tzid.
func NewDateTimeZoned(t time.Time, tzid string, loc *time.Location) DateTime {
	return DateTime{Kind: KindDateTimeZoned, Time: t.In(loc), TZID: tzid}
}

// NewDateTimeFloating builds a zone-less local value.
func NewDateTimeFloating(t time.Time) DateTime {
	return DateTime{Kind: KindDateTimeFloating, Time: time.Date(
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC,
	)}
}

func (dt DateTime) IsAllDay() bool { return dt.Kind == KindDate }

// Before/After/Equal order DateTimes by their stored instant, with Equal
// additionally applying the value-type-aware comparison spec §4.5 demands
// for EXDATE matching: calendar-day equality for dates, wall-time equality
// within the shared zone for zoned values, wall-time equality between a
// zoned value and a floating one, and instant equality for UTC.
func (dt DateTime) Before(other DateTime) bool { return dt.Time.Before(other.Time) }
func (dt DateTime) After(other DateTime) bool  { return dt.Time.After(other.Time) }

func (dt DateTime) Equal(other DateTime) bool {
	if dt.Kind == KindDate && other.Kind == KindDate {
		return dt.Time.Year() == other.Time.Year() &&
			dt.Time.Month() == other.Time.Month() &&
			dt.Time.Day() == other.Time.Day()
	}
	if dt.Kind == KindDateTimeZoned && other.Kind == KindDateTimeZoned && dt.TZID == other.TZID {
		return dt.Time.Format(icalTimestampFormatLocal) == other.Time.Format(icalTimestampFormatLocal)
	}
	if (dt.Kind == KindDateTimeZoned && other.Kind == KindDateTimeFloating) ||
		(dt.Kind == KindDateTimeFloating && other.Kind == KindDateTimeZoned) {
		return dt.Time.Format(icalTimestampFormatLocal) == other.Time.Format(icalTimestampFormatLocal)
	}
	return dt.Time.Equal(other.Time)
}

// AddDate shifts a date value by whole days (used for all-day UNTIL/EXDATE
// arithmetic in the store, §4.7).
func (dt DateTime) AddDate(days int) DateTime {
	dt.Time = dt.Time.AddDate(0, 0, days)
	return dt
}

// Add shifts a timed value by a duration, preserving Kind/TZID.
func (dt DateTime) Add(d time.Duration) DateTime {
	dt.Time = dt.Time.Add(d)
	return dt
}

const (
	icalTimestampFormatUTC   = "20060102T150405Z"
	icalTimestampFormatLocal = "20060102T150405"
	icalDateFormat           = "20060102"
)

// Format renders the raw wire-form value for this DateTime (§4.3 "On
// encode").
func (dt DateTime) Format() string {
	switch dt.Kind {
	case KindDate:
		return dt.Time.Format(icalDateFormat)
	case KindDateTimeUTC:
		return dt.Time.UTC().Format(icalTimestampFormatUTC)
	default:
		return dt.Time.Format(icalTimestampFormatLocal)
	}
}

// Params returns the VALUE=/TZID= parameters this DateTime needs on its
// content line: VALUE=DATE for all-day, TZID=<name> for zoned, neither for
// UTC (implicit via the trailing Z) or floating (§4.3 "On encode").
func (dt DateTime) Params() []Param {
	switch dt.Kind {
	case KindDate:
		return []Param{{Name: string(ParameterValue), Values: []string{string(ValueDataTypeDate)}}}
	case KindDateTimeZoned:
		return []Param{{Name: string(ParameterTzid), Values: []string{dt.TZID}}}
	default:
		return nil
	}
}

// ToContentLine builds a full content line for a single-valued DATE/
// DATE-TIME property such as DTSTART, DTEND, DUE, RECURRENCE-ID, DTSTAMP.
func (dt DateTime) ToContentLine(name string) ContentLine {
	return ContentLine{Name: name, Params: dt.Params(), Value: dt.Format()}
}

// ParseDateTimeValue decodes one raw DATE/DATE-TIME value. tzid is the
// TZID= parameter on the content line, if any; loc is the *time.Location
// the caller's TimeZoneLookup resolved for it (nil if tzid is empty or
// unresolved). A local DATE-TIME with a tzid but a nil loc is rejected with
// ErrDecode; with no tzid it decodes as floating.
func ParseDateTimeValue(raw, tzid string, loc *time.Location) (DateTime, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case len(raw) == 8 && isAllDigits(raw):
		t, err := time.ParseInLocation(icalDateFormat, raw, time.UTC)
		if err != nil {
			return DateTime{}, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
		}
		return DateTime{Kind: KindDate, Time: t}, nil

	case len(raw) == 16 && raw[8] == 'T' && raw[15] == 'Z':
		t, err := time.ParseInLocation(icalTimestampFormatUTC, raw, time.UTC)
		if err != nil {
			return DateTime{}, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
		}
		return DateTime{Kind: KindDateTimeUTC, Time: t}, nil

	case len(raw) == 15 && raw[8] == 'T':
		if tzid != "" {
			if loc == nil {
				return DateTime{}, fmt.Errorf("%w: unresolved TZID %q", ErrDecode, tzid)
			}
			t, err := time.ParseInLocation(icalTimestampFormatLocal, raw, loc)
			if err != nil {
				return DateTime{}, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
			}
			return DateTime{Kind: KindDateTimeZoned, Time: t, TZID: tzid}, nil
		}
		t, err := time.ParseInLocation(icalTimestampFormatLocal, raw, time.UTC)
		if err != nil {
			return DateTime{}, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
		}
		return DateTime{Kind: KindDateTimeFloating, Time: t}, nil

	default:
		return DateTime{}, fmt.Errorf("%w: unrecognized DATE/DATE-TIME value %q", ErrValueTypeMismatch, raw)
	}
}

func isAllDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// decodeDateTimeProperty decodes a single-valued property's content line
// into a DateTime, resolving TZID via lookup (may be nil).
func decodeDateTimeProperty(cl *ContentLine, lookup TimeZoneLookup) (DateTime, error) {
	tzid, _ := cl.paramFirst(string(ParameterTzid))
	var loc *time.Location
	if tzid != "" && lookup != nil {
		if l, ok := lookup(tzid); ok {
			loc = l
		}
	}
	vt := valueType(cl)
	dt, err := ParseDateTimeValue(cl.Value, tzid, loc)
	if err != nil {
		return DateTime{}, err
	}
	if vt == ValueDataTypeDate && dt.Kind != KindDate {
		return DateTime{}, fmt.Errorf("%w: VALUE=DATE but value %q is not a bare date", ErrValueParamConflict, cl.Value)
	}
	return dt, nil
}

// decodeDateTimeListProperty decodes a multi-valued DATE/DATE-TIME
// property such as RDATE/EXDATE, which may appear as several repeated
// content lines and/or a single comma-joined value (§9 Open Question:
// incoming shape is not normalized at decode time).
func decodeDateTimeListProperty(lines []*ContentLine, lookup TimeZoneLookup) ([]DateTime, error) {
	var out []DateTime
	for _, cl := range lines {
		tzid, _ := cl.paramFirst(string(ParameterTzid))
		var loc *time.Location
		if tzid != "" && lookup != nil {
			if l, ok := lookup(tzid); ok {
				loc = l
			}
		}
		for _, part := range strings.Split(cl.Value, ",") {
			dt, err := ParseDateTimeValue(part, tzid, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, dt)
		}
	}
	return out, nil
}

// encodeDateTimeListProperty renders a set of same-typed DateTimes as one
// comma-joined content line (§9: re-emit normalizes to one shape).
func encodeDateTimeListProperty(name string, values []DateTime) *ContentLine {
	if len(values) == 0 {
		return nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Format()
	}
	return &ContentLine{Name: name, Params: values[0].Params(), Value: strings.Join(parts, ",")}
}

// TimeZoneLookup resolves an IANA zone name to a *time.Location. The core
// never ships a time-zone database (§1, §6); callers supply one (e.g.
// backed by the standard library's tzdata or a caller's own RFC 8536
// parser).
type TimeZoneLookup func(name string) (*time.Location, bool)

// --- DURATION (§4.3, grounded on arran4-golang-ical/property.go's
// ParseDurationReader state machine) ---

// Duration is the ISO 8601 subset RFC 5545 allows: P[nD]T[nH][nM][nS] or
// PnW, optionally negative.
type Duration struct {
	Positive bool
	Weeks    int
	Days     int
	Hours    int
	Minutes  int
	Seconds  int
}

// AsTimeDuration approximates this Duration as a time.Duration, treating a
// day as exactly 24 hours and a week as 7 days (§4.3's documented nominal
// vs accurate distinction is not reconciled against any real calendar
// here; callers needing DST-correct arithmetic should add Days via
// DateTime.AddDate instead of through this method).
func (d Duration) AsTimeDuration() time.Duration {
	total := time.Duration(d.Weeks)*7*24*time.Hour +
		time.Duration(d.Days)*24*time.Hour +
		time.Duration(d.Hours)*time.Hour +
		time.Duration(d.Minutes)*time.Minute +
		time.Duration(d.Seconds)*time.Second
	if !d.Positive {
		total = -total
	}
	return total
}

func (d Duration) String() string {
	var b strings.Builder
	if !d.Positive {
		b.WriteByte('-')
	}
	b.WriteByte('P')
	if d.Weeks > 0 && d.Days == 0 && d.Hours == 0 && d.Minutes == 0 && d.Seconds == 0 {
		fmt.Fprintf(&b, "%dW", d.Weeks)
		return b.String()
	}
	if d.Days > 0 {
		fmt.Fprintf(&b, "%dD", d.Days)
	}
	if d.Hours > 0 || d.Minutes > 0 || d.Seconds > 0 {
		b.WriteByte('T')
		if d.Hours > 0 {
			fmt.Fprintf(&b, "%dH", d.Hours)
		}
		if d.Minutes > 0 {
			fmt.Fprintf(&b, "%dM", d.Minutes)
		}
		if d.Seconds > 0 {
			fmt.Fprintf(&b, "%dS", d.Seconds)
		}
	}
	wroteBody := d.Days > 0 || d.Hours > 0 || d.Minutes > 0 || d.Seconds > 0
	if !wroteBody {
		b.WriteString("T0S")
	}
	return b.String()
}

// ParseDuration decodes one ISO 8601 subset duration value.
func ParseDuration(s string) (Duration, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	var d Duration
	d.Positive = true
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		d.Positive = s[i] == '+'
		i++
	}
	if i >= len(s) || s[i] != 'P' {
		return Duration{}, fmt.Errorf("%w: duration %q missing 'P'", ErrValueTypeMismatch, s)
	}
	i++
	inTime := false
	for i < len(s) {
		if s[i] == 'T' {
			inTime = true
			i++
			continue
		}
		start := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start {
			return Duration{}, fmt.Errorf("%w: duration %q malformed near %q", ErrValueTypeMismatch, s, s[i:])
		}
		n, err := strconv.Atoi(s[start:i])
		if err != nil {
			return Duration{}, fmt.Errorf("%w: %v", ErrValueTypeMismatch, err)
		}
		if i >= len(s) {
			return Duration{}, fmt.Errorf("%w: duration %q missing unit designator", ErrValueTypeMismatch, s)
		}
		unit := s[i]
		i++
		switch {
		case unit == 'W' && !inTime:
			d.Weeks += n
		case unit == 'D' && !inTime:
			d.Days += n
		case unit == 'H' && inTime:
			d.Hours += n
		case unit == 'M' && inTime:
			d.Minutes += n
		case unit == 'S' && inTime:
			d.Seconds += n
		default:
			return Duration{}, fmt.Errorf("%w: duration %q has unit %q in the wrong position", ErrValueTypeMismatch, s, string(unit))
		}
	}
	return d, nil
}
