package ical

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/teambition/rrule-go"
)

// Frequency is RRULE's FREQ value. Every value round-trips through decode
// and encode (§4.4); only DAILY/WEEKLY/MONTHLY may be expanded into
// occurrences (§1 Non-goals, §4.4).
type Frequency string

const (
	FrequencySecondly Frequency = "SECONDLY"
	FrequencyMinutely Frequency = "MINUTELY"
	FrequencyHourly   Frequency = "HOURLY"
	FrequencyDaily    Frequency = "DAILY"
	FrequencyWeekly   Frequency = "WEEKLY"
	FrequencyMonthly  Frequency = "MONTHLY"
	FrequencyYearly   Frequency = "YEARLY"
)

func (f Frequency) supported() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

// known reports whether f is one of RFC 5545 §3.3.10's seven FREQ values.
// This is broader than supported(): SECONDLY/MINUTELY/HOURLY/YEARLY are
// known (decode-valid) but not supported for expansion (§1 Non-goals).
// Config.StrictRFC5545 rejects FREQ values that aren't known at all.
func (f Frequency) known() bool {
	switch f {
	case FrequencySecondly, FrequencyMinutely, FrequencyHourly,
		FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	default:
		return false
	}
}

// WeekdayNum is one BYDAY entry: a weekday code optionally prefixed with a
// signed ordinal, used only with FREQ=MONTHLY (§4.4).
type WeekdayNum struct {
	Weekday string // MO|TU|WE|TH|FR|SA|SU
	Ordinal int    // 0 when unspecified
}

func (w WeekdayNum) String() string {
	if w.Ordinal == 0 {
		return w.Weekday
	}
	return fmt.Sprintf("%+d%s", w.Ordinal, w.Weekday)[:] // e.g. +2MO, -1SU
}

var weekdayCodes = map[string]rrule.Weekday{
	"MO": rrule.MO, "TU": rrule.TU, "WE": rrule.WE, "TH": rrule.TH,
	"FR": rrule.FR, "SA": rrule.SA, "SU": rrule.SU,
}

func validWeekdayCode(s string) bool {
	_, ok := weekdayCodes[s]
	return ok
}

// RecurrenceRule is the validated RRULE tuple from §4.4.
type RecurrenceRule struct {
	Freq       Frequency
	Interval   int
	Count      int // 0 means unset
	Until      *DateTime
	BySecond   []int
	ByMinute   []int
	ByHour     []int
	ByDay      []WeekdayNum
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByMonth    []int
	BySetPos   []int
	WkSt       string
}

// NewRecurrenceRule returns a rule for freq with the defaults INTERVAL=1
// and WKST=MO. It performs no validation; Validate checks the invariants
// from §4.4 that do not depend on the anchor (INTERVAL >= 1, COUNT/UNTIL
// mutual exclusivity, BYDAY ordinals restricted to MONTHLY).
func NewRecurrenceRule(freq Frequency) (*RecurrenceRule, error) {
	return &RecurrenceRule{Freq: freq, Interval: 1, WkSt: "MO"}, nil
}

func (r *RecurrenceRule) Validate() error {
	if r.Interval < 1 {
		return fmt.Errorf("%w: INTERVAL must be >= 1, got %d", ErrValidation, r.Interval)
	}
	if r.Count > 0 && r.Until != nil {
		return fmt.Errorf("%w: %w", ErrValidation, ErrCountAndUntil)
	}
	if r.Freq != FrequencyMonthly {
		for _, bd := range r.ByDay {
			if bd.Ordinal != 0 {
				return fmt.Errorf("%w: BYDAY ordinal %q only valid with FREQ=MONTHLY", ErrValidation, bd.String())
			}
		}
	}
	if r.WkSt == "" {
		r.WkSt = "MO"
	}
	if !validWeekdayCode(r.WkSt) {
		return fmt.Errorf("%w: invalid WKST %q", ErrValidation, r.WkSt)
	}
	for _, bd := range r.ByDay {
		if !validWeekdayCode(bd.Weekday) {
			return fmt.Errorf("%w: invalid BYDAY weekday %q", ErrValidation, bd.Weekday)
		}
	}
	return nil
}

// ValidateAgainstAnchor enforces the one invariant that needs the event's
// DTSTART: UNTIL's value type must match the anchor's (§3 invariants).
func (r *RecurrenceRule) ValidateAgainstAnchor(anchor DateTime) error {
	if r.Until == nil {
		return nil
	}
	anchorIsDate := anchor.Kind == KindDate
	untilIsDate := r.Until.Kind == KindDate
	if anchorIsDate != untilIsDate {
		return fmt.Errorf("%w: %w", ErrDecode, ErrUntilTypeMismatch)
	}
	if !anchorIsDate && r.Until.Kind != KindDateTimeUTC {
		return fmt.Errorf("%w: %w: UNTIL must be UTC when DTSTART is timed", ErrDecode, ErrUntilTypeMismatch)
	}
	return nil
}

// --- decode/encode (§4.3's RRULE row) ---

// ParseRecurrenceRule decodes an RRULE value string. Every FREQ decodes
// without error (round-trip is always preserved); Validate/
// ValidateAgainstAnchor and NewOccurrenceIterator are where unsupported
// shapes are rejected.
func ParseRecurrenceRule(raw string) (*RecurrenceRule, error) {
	r := &RecurrenceRule{Interval: 1, WkSt: "MO"}
	for _, part := range strings.Split(raw, ";") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: malformed RRULE part %q", ErrDecode, part)
		}
		key, val := strings.ToUpper(kv[0]), kv[1]
		var err error
		switch key {
		case "FREQ":
			r.Freq = Frequency(strings.ToUpper(val))
		case "INTERVAL":
			r.Interval, err = strconv.Atoi(val)
		case "COUNT":
			r.Count, err = strconv.Atoi(val)
		case "UNTIL":
			var dt DateTime
			dt, err = ParseDateTimeValue(val, "", nil)
			if err == nil {
				r.Until = &dt
			}
		case "BYSECOND":
			r.BySecond, err = parseIntList(val)
		case "BYMINUTE":
			r.ByMinute, err = parseIntList(val)
		case "BYHOUR":
			r.ByHour, err = parseIntList(val)
		case "BYDAY":
			r.ByDay, err = parseByDayList(val)
		case "BYMONTHDAY":
			r.ByMonthDay, err = parseIntList(val)
		case "BYYEARDAY":
			r.ByYearDay, err = parseIntList(val)
		case "BYWEEKNO":
			r.ByWeekNo, err = parseIntList(val)
		case "BYMONTH":
			r.ByMonth, err = parseIntList(val)
		case "BYSETPOS":
			r.BySetPos, err = parseIntList(val)
		case "WKST":
			r.WkSt = strings.ToUpper(val)
		default:
			// unknown RRULE part: ignored rather than rejected, so
			// forward-compatible extensions still round-trip elsewhere
			// (the raw string is preserved by the caller, not reconstructed
			// solely from this struct, when StrictRFC5545 is false).
		}
		if err != nil {
			return nil, fmt.Errorf("%w: RRULE part %q: %v", ErrDecode, part, err)
		}
	}
	if r.Freq == "" {
		return nil, fmt.Errorf("%w: RRULE missing FREQ", ErrDecode)
	}
	if r.WkSt == "" {
		r.WkSt = "MO"
	}
	return r, nil
}

func parseIntList(val string) ([]int, error) {
	parts := strings.Split(val, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func parseByDayList(val string) ([]WeekdayNum, error) {
	parts := strings.Split(val, ",")
	out := make([]WeekdayNum, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) < 2 {
			return nil, fmt.Errorf("malformed BYDAY entry %q", p)
		}
		code := p[len(p)-2:]
		ordStr := p[:len(p)-2]
		wd := WeekdayNum{Weekday: code}
		if ordStr != "" {
			n, err := strconv.Atoi(ordStr)
			if err != nil {
				return nil, fmt.Errorf("malformed BYDAY ordinal in %q: %w", p, err)
			}
			wd.Ordinal = n
		}
		out = append(out, wd)
	}
	return out, nil
}

// String re-encodes the rule into its RRULE value form (§4.3).
func (r *RecurrenceRule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "FREQ=%s", r.Freq)
	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	if r.Count > 0 {
		fmt.Fprintf(&b, ";COUNT=%d", r.Count)
	}
	if r.Until != nil {
		fmt.Fprintf(&b, ";UNTIL=%s", r.Until.Format())
	}
	writeIntList(&b, "BYSECOND", r.BySecond)
	writeIntList(&b, "BYMINUTE", r.ByMinute)
	writeIntList(&b, "BYHOUR", r.ByHour)
	if len(r.ByDay) > 0 {
		parts := make([]string, len(r.ByDay))
		for i, wd := range r.ByDay {
			parts[i] = wd.String()
		}
		fmt.Fprintf(&b, ";BYDAY=%s", strings.Join(parts, ","))
	}
	writeIntList(&b, "BYMONTHDAY", r.ByMonthDay)
	writeIntList(&b, "BYYEARDAY", r.ByYearDay)
	writeIntList(&b, "BYWEEKNO", r.ByWeekNo)
	writeIntList(&b, "BYMONTH", r.ByMonth)
	writeIntList(&b, "BYSETPOS", r.BySetPos)
	if r.WkSt != "" && r.WkSt != "MO" {
		fmt.Fprintf(&b, ";WKST=%s", r.WkSt)
	}
	return b.String()
}

func writeIntList(b *strings.Builder, key string, vals []int) {
	if len(vals) == 0 {
		return
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	fmt.Fprintf(b, ";%s=%s", key, strings.Join(parts, ","))
}

// --- bridging to github.com/teambition/rrule-go (§4.4 "Library-backed
// expansion" in SPEC_FULL.md) ---

func rruleFrequency(f Frequency) (rrule.Frequency, error) {
	switch f {
	case FrequencyDaily:
		return rrule.DAILY, nil
	case FrequencyWeekly:
		return rrule.WEEKLY, nil
	case FrequencyMonthly:
		return rrule.MONTHLY, nil
	default:
		return 0, fmt.Errorf("%w: %w: FREQ=%s", ErrRecurrence, ErrUnsupportedFrequency, f)
	}
}

// toROption translates the validated rule plus its anchor into rrule-go's
// option struct. anchor.Time is used as DTSTART; the caller is responsible
// for attaching it to an rrule.Set via Set.DTStart so zoned/floating
// anchors iterate in their own wall clock.
func (r *RecurrenceRule) toROption(anchor DateTime) (rrule.ROption, error) {
	freq, err := rruleFrequency(r.Freq)
	if err != nil {
		return rrule.ROption{}, err
	}
	opt := rrule.ROption{
		Freq:     freq,
		Dtstart:  anchor.Time,
		Interval: r.Interval,
	}
	if r.Count > 0 {
		opt.Count = r.Count
	}
	if r.Until != nil {
		opt.Until = r.Until.Time
	}
	if wkst, ok := weekdayCodes[r.WkSt]; ok {
		opt.Wkst = wkst
	}
	opt.Bysecond = r.BySecond
	opt.Byminute = r.ByMinute
	opt.Byhour = r.ByHour
	opt.Bymonthday = r.ByMonthDay
	opt.Byyearday = r.ByYearDay
	opt.Byweekno = r.ByWeekNo
	opt.Bymonth = r.ByMonth
	opt.Bysetpos = r.BySetPos
	if len(r.ByDay) > 0 {
		days := make([]rrule.Weekday, len(r.ByDay))
		for i, wd := range r.ByDay {
			base := weekdayCodes[wd.Weekday]
			if wd.Ordinal != 0 {
				days[i] = base.Nth(wd.Ordinal)
			} else {
				days[i] = base
			}
		}
		opt.Byweekday = days
	}
	return opt, nil
}
