package ical

import (
	"fmt"
	"strconv"
	"strings"
)

// itemBase holds the property list shared by every item/component kind,
// generalizing arran4-golang-ical's ComponentBase: properties stay in an
// ordered ContentLine slice and accessors scan/splice that slice on
// demand, so decode followed by encode preserves original property order
// (§8 scenario S1) without needing a canonical field order to rebuild it.
type itemBase struct {
	Name       string
	Properties []ContentLine
	Alarms     []*Alarm
}

func newItemBase(name string) itemBase { return itemBase{Name: name} }

func (b *itemBase) ComponentName() string { return b.Name }

func (b *itemBase) prop(name Property) *ContentLine {
	for i := range b.Properties {
		if b.Properties[i].Name == string(name) {
			return &b.Properties[i]
		}
	}
	return nil
}

func (b *itemBase) allProps(name Property) []*ContentLine {
	var out []*ContentLine
	for i := range b.Properties {
		if b.Properties[i].Name == string(name) {
			out = append(out, &b.Properties[i])
		}
	}
	return out
}

func (b *itemBase) replaceOrAppend(name Property, cl ContentLine) {
	for i := range b.Properties {
		if b.Properties[i].Name == string(name) {
			b.Properties[i] = cl
			return
		}
	}
	b.Properties = append(b.Properties, cl)
}

func (b *itemBase) removeAll(name Property) {
	out := b.Properties[:0]
	for _, p := range b.Properties {
		if p.Name != string(name) {
			out = append(out, p)
		}
	}
	b.Properties = out
}

func (b *itemBase) textValue(name Property) (string, bool) {
	p := b.prop(name)
	if p == nil {
		return "", false
	}
	return FromText(p.Value), true
}

func (b *itemBase) setText(name Property, value string, params ...PropertyParameter) {
	cl := ContentLine{Name: string(name), Value: ToText(value)}
	applyParams(&cl, params)
	b.replaceOrAppend(name, cl)
}

func (b *itemBase) textList(name Property) []string {
	var out []string
	for _, p := range b.allProps(name) {
		out = append(out, FromText(p.Value))
	}
	return out
}

func (b *itemBase) addText(name Property, s string) {
	b.Properties = append(b.Properties, ContentLine{Name: string(name), Value: ToText(s)})
}

func (b *itemBase) dateTimeValue(name Property, lookup TimeZoneLookup) (DateTime, bool, error) {
	p := b.prop(name)
	if p == nil {
		return DateTime{}, false, nil
	}
	dt, err := decodeDateTimeProperty(p, lookup)
	if err != nil {
		return DateTime{}, false, err
	}
	return dt, true, nil
}

func (b *itemBase) setDateTime(name Property, dt DateTime) {
	b.replaceOrAppend(name, dt.ToContentLine(string(name)))
}

// --- identity & bookkeeping (§3, §4.7) ---

func (b *itemBase) UID() string {
	v, _ := b.textValue(PropertyUID)
	return v
}

func (b *itemBase) SetUID(uid string) { b.setText(PropertyUID, uid) }

func (b *itemBase) Sequence() int {
	v, ok := b.textValue(PropertySequence)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (b *itemBase) SetSequence(n int) { b.setText(PropertySequence, strconv.Itoa(n)) }

func (b *itemBase) DTStamp(lookup TimeZoneLookup) (DateTime, bool, error) {
	return b.dateTimeValue(PropertyDtstamp, lookup)
}
func (b *itemBase) SetDTStamp(dt DateTime) { b.setDateTime(PropertyDtstamp, dt) }

func (b *itemBase) LastModified(lookup TimeZoneLookup) (DateTime, bool, error) {
	return b.dateTimeValue(PropertyLastMod, lookup)
}
func (b *itemBase) SetLastModified(dt DateTime) { b.setDateTime(PropertyLastMod, dt) }

func (b *itemBase) Created(lookup TimeZoneLookup) (DateTime, bool, error) {
	return b.dateTimeValue(PropertyCreated, lookup)
}
func (b *itemBase) SetCreated(dt DateTime) { b.setDateTime(PropertyCreated, dt) }

func (b *itemBase) IsMaster() bool { return b.prop(PropertyRecurrID) == nil }

func (b *itemBase) RecurrenceID(lookup TimeZoneLookup) (DateTime, bool, error) {
	return b.dateTimeValue(PropertyRecurrID, lookup)
}
func (b *itemBase) SetRecurrenceID(dt DateTime) { b.setDateTime(PropertyRecurrID, dt) }

// --- recurrence (§4.3, §4.4) ---

func (b *itemBase) RRule() (*RecurrenceRule, bool, error) {
	p := b.prop(PropertyRrule)
	if p == nil {
		return nil, false, nil
	}
	r, err := ParseRecurrenceRule(p.Value)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (b *itemBase) SetRRule(r *RecurrenceRule) {
	if r == nil {
		b.removeAll(PropertyRrule)
		return
	}
	b.replaceOrAppend(PropertyRrule, ContentLine{Name: string(PropertyRrule), Value: r.String()})
}

func (b *itemBase) RDates(lookup TimeZoneLookup) ([]DateTime, error) {
	return decodeDateTimeListProperty(b.allProps(PropertyRdate), lookup)
}

func (b *itemBase) SetRDates(values []DateTime) {
	b.removeAll(PropertyRdate)
	if cl := encodeDateTimeListProperty(string(PropertyRdate), values); cl != nil {
		b.Properties = append(b.Properties, *cl)
	}
}

func (b *itemBase) ExDates(lookup TimeZoneLookup) ([]DateTime, error) {
	return decodeDateTimeListProperty(b.allProps(PropertyExdate), lookup)
}

func (b *itemBase) SetExDates(values []DateTime) {
	b.removeAll(PropertyExdate)
	if cl := encodeDateTimeListProperty(string(PropertyExdate), values); cl != nil {
		b.Properties = append(b.Properties, *cl)
	}
}

// --- surface-level field catalog (§3 [EXPANSION]) ---

func (b *itemBase) Summary() (string, bool)     { return b.textValue(PropertySummary) }
func (b *itemBase) SetSummary(s string)         { b.setText(PropertySummary, s) }
func (b *itemBase) Description() (string, bool) { return b.textValue(PropertyDescription) }
func (b *itemBase) SetDescription(s string)     { b.setText(PropertyDescription, s) }
func (b *itemBase) Location() (string, bool)    { return b.textValue(PropertyLocation) }
func (b *itemBase) SetLocation(s string)        { b.setText(PropertyLocation, s) }
func (b *itemBase) Status() (string, bool)      { return b.textValue(PropertyStatus) }
func (b *itemBase) SetStatus(s ObjectStatus)    { b.setText(PropertyStatus, string(s)) }
func (b *itemBase) Class() (string, bool)       { return b.textValue(PropertyClass) }
func (b *itemBase) SetClass(s string)           { b.setText(PropertyClass, s) }
func (b *itemBase) Transp() (string, bool)      { return b.textValue(PropertyTransp) }
func (b *itemBase) SetTransp(s string)          { b.setText(PropertyTransp, s) }
func (b *itemBase) URL() (string, bool)         { return b.textValue(PropertyURL) }
func (b *itemBase) SetURL(s string)             { b.setText(PropertyURL, s) }
func (b *itemBase) Color() (string, bool)       { return b.textValue(PropertyColor) }
func (b *itemBase) SetColor(s string)           { b.setText(PropertyColor, s) }
func (b *itemBase) Organizer() (string, bool)   { return b.textValue(PropertyOrganizer) }
func (b *itemBase) SetOrganizer(cn string)      { b.setText(PropertyOrganizer, cn) }

func (b *itemBase) Priority() (int, bool) {
	v, ok := b.textValue(PropertyPriority)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
func (b *itemBase) SetPriority(p int) { b.setText(PropertyPriority, strconv.Itoa(p)) }

func (b *itemBase) Geo() (lat, lon float64, ok bool) {
	v, has := b.textValue(PropertyGeo)
	if !has {
		return 0, 0, false
	}
	parts := strings.SplitN(v, ";", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	la, err1 := strconv.ParseFloat(parts[0], 64)
	lo, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return la, lo, true
}

func (b *itemBase) SetGeo(lat, lon float64) {
	b.setText(PropertyGeo, fmt.Sprintf("%v;%v", lat, lon))
}

// Attendee is one ATTENDEE line's decoded shape (§3 [EXPANSION]).
type Attendee struct {
	CalAddress string
	PartStat   string
	Role       string
	CUType     string
	RSVP       bool
	CN         string
}

func (b *itemBase) Attendees() []Attendee {
	var out []Attendee
	for _, p := range b.allProps(PropertyAttendee) {
		a := Attendee{CalAddress: p.Value}
		a.PartStat, _ = p.paramFirst(string(ParameterPartstat))
		a.Role, _ = p.paramFirst(string(ParameterRole))
		a.CUType, _ = p.paramFirst(string(ParameterCutype))
		a.CN, _ = p.paramFirst(string(ParameterCn))
		if rsvp, ok := p.paramFirst(string(ParameterRsvp)); ok {
			a.RSVP = strings.EqualFold(rsvp, "TRUE")
		}
		out = append(out, a)
	}
	return out
}

func (b *itemBase) AddAttendee(a Attendee) {
	cl := ContentLine{Name: string(PropertyAttendee), Value: a.CalAddress}
	if a.PartStat != "" {
		cl.setParam(string(ParameterPartstat), a.PartStat)
	}
	if a.Role != "" {
		cl.setParam(string(ParameterRole), a.Role)
	}
	if a.CUType != "" {
		cl.setParam(string(ParameterCutype), a.CUType)
	}
	if a.CN != "" {
		cl.setParam(string(ParameterCn), a.CN)
	}
	if a.RSVP {
		cl.setParam(string(ParameterRsvp), "TRUE")
	}
	b.Properties = append(b.Properties, cl)
}

func (b *itemBase) Contacts() []string  { return b.textList(PropertyContact) }
func (b *itemBase) AddContact(s string) { b.addText(PropertyContact, s) }
func (b *itemBase) Comments() []string  { return b.textList(PropertyComment) }
func (b *itemBase) AddComment(s string) { b.addText(PropertyComment, s) }

// Categories/Resources may arrive as one comma-joined line or several
// repeated lines (§4.3 [EXPANSION], §9 Open Question); SetCategories/
// SetResources always normalize to one comma-joined line on next encode.
func (b *itemBase) Categories() []string     { return b.commaList(PropertyCategories) }
func (b *itemBase) SetCategories(v []string) { b.setCommaList(PropertyCategories, v) }
func (b *itemBase) Resources() []string      { return b.commaList(PropertyResources) }
func (b *itemBase) SetResources(v []string)  { b.setCommaList(PropertyResources, v) }

func (b *itemBase) commaList(name Property) []string {
	var out []string
	for _, p := range b.allProps(name) {
		for _, part := range strings.Split(p.Value, ",") {
			out = append(out, FromText(part))
		}
	}
	return out
}

func (b *itemBase) setCommaList(name Property, values []string) {
	b.removeAll(name)
	if len(values) == 0 {
		return
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = ToText(v)
	}
	b.Properties = append(b.Properties, ContentLine{Name: string(name), Value: strings.Join(escaped, ",")})
}

// RelatedTo is one RELATED-TO line: the related item's UID and its
// relationship type. Default per RFC 5545 is SIBLING; PARENT/CHILD drive
// the store's cascade delete (§4.7 [EXPANSION]).
type RelatedTo struct {
	UID     string
	RelType string
}

func (b *itemBase) RelatedTo() []RelatedTo {
	var out []RelatedTo
	for _, p := range b.allProps(PropertyRelatedTo) {
		rt := RelatedTo{UID: FromText(p.Value), RelType: "SIBLING"}
		if v, ok := p.paramFirst(string(ParameterReltype)); ok {
			rt.RelType = strings.ToUpper(v)
		}
		out = append(out, rt)
	}
	return out
}

func (b *itemBase) AddRelatedTo(uid, relType string) {
	cl := ContentLine{Name: string(PropertyRelatedTo), Value: ToText(uid)}
	if relType != "" {
		cl.setParam(string(ParameterReltype), strings.ToUpper(relType))
	}
	b.Properties = append(b.Properties, cl)
}

func (b *itemBase) Attachments() []string { return b.textList(PropertyAttach) }

func (b *itemBase) AddAttachmentURI(uri string) {
	b.Properties = append(b.Properties, ContentLine{Name: string(PropertyAttach), Value: uri})
}

func (b *itemBase) AddAlarm(a *Alarm) { b.Alarms = append(b.Alarms, a) }

func (b *itemBase) toParsedComponent() *ParsedComponent {
	pc := &ParsedComponent{Name: b.Name, Properties: append([]ContentLine(nil), b.Properties...)}
	for _, a := range b.Alarms {
		pc.Children = append(pc.Children, a.pc)
	}
	return pc
}

func decodeItemBase(pc *ParsedComponent) itemBase {
	b := itemBase{Name: pc.Name, Properties: append([]ContentLine(nil), pc.Properties...)}
	for _, c := range pc.childrenNamed("VALARM") {
		b.Alarms = append(b.Alarms, &Alarm{pc: c})
	}
	return b
}

// --- Item ---

// Item is the identity shared by every schedulable component (§3 "Event /
// ToDo"): a Calendar's item slices, the timeline, and the store all hold
// Items uniformly. Type-specific behavior — DTSTART vs DTSTART/DUE, DTEND
// vs DURATION — is reached with a type switch on the concrete type rather
// than widening this interface.
type Item interface {
	isItem()
	ComponentName() string
	UID() string
	ToParsedComponent() *ParsedComponent
}

// --- Event (VEVENT) ---

// Event is a VEVENT: a timed or all-day item whose DTEND/DURATION are
// mutually exclusive (§3 invariants).
type Event struct{ itemBase }

func NewEvent(uid string) *Event {
	e := &Event{itemBase: newItemBase("VEVENT")}
	e.SetUID(uid)
	return e
}

func decodeEvent(pc *ParsedComponent) *Event { return &Event{itemBase: decodeItemBase(pc)} }

func (e *Event) isItem() {}

func (e *Event) DTStart(lookup TimeZoneLookup) (DateTime, error) {
	p := e.prop(PropertyDtstart)
	if p == nil {
		return DateTime{}, fmt.Errorf("%w: VEVENT %s missing DTSTART", ErrValidation, e.UID())
	}
	return decodeDateTimeProperty(p, lookup)
}

func (e *Event) SetDTStart(dt DateTime) { e.setDateTime(PropertyDtstart, dt) }

func (e *Event) DTEnd(lookup TimeZoneLookup) (DateTime, bool, error) {
	return e.dateTimeValue(PropertyDtend, lookup)
}

func (e *Event) SetDTEnd(dt DateTime) {
	e.removeAll(PropertyDuration)
	e.setDateTime(PropertyDtend, dt)
}

func (e *Event) EventDuration() (Duration, bool, error) {
	p := e.prop(PropertyDuration)
	if p == nil {
		return Duration{}, false, nil
	}
	d, err := ParseDuration(p.Value)
	return d, err == nil, err
}

func (e *Event) SetDuration(d Duration) {
	e.removeAll(PropertyDtend)
	e.replaceOrAppend(PropertyDuration, ContentLine{Name: string(PropertyDuration), Value: d.String()})
}

// End resolves the event's effective end: DTEND if present, else
// DTSTART+DURATION, else DTSTART itself for a zero-length event.
func (e *Event) End(lookup TimeZoneLookup) (DateTime, error) {
	start, err := e.DTStart(lookup)
	if err != nil {
		return DateTime{}, err
	}
	if end, ok, err := e.DTEnd(lookup); err != nil {
		return DateTime{}, err
	} else if ok {
		return end, nil
	}
	if d, ok, err := e.EventDuration(); err != nil {
		return DateTime{}, err
	} else if ok {
		return start.Add(d.AsTimeDuration()), nil
	}
	return start, nil
}

// Validate checks the event-level invariants from §3 that span several
// properties at once (the ones a single field accessor can't enforce).
func (e *Event) Validate(lookup TimeZoneLookup) error {
	start, err := e.DTStart(lookup)
	if err != nil {
		return err
	}
	end, hasEnd, err := e.DTEnd(lookup)
	if err != nil {
		return err
	}
	_, hasDur, err := e.EventDuration()
	if err != nil {
		return err
	}
	if hasEnd && hasDur {
		return fmt.Errorf("%w: %w", ErrValidation, ErrBothEndAndDuration)
	}
	if hasEnd && !end.After(start) {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEndBeforeStart)
	}
	if rr, has, err := e.RRule(); err != nil {
		return err
	} else if has {
		if err := rr.Validate(); err != nil {
			return err
		}
		if err := rr.ValidateAgainstAnchor(start); err != nil {
			return err
		}
	}
	return nil
}

func (e *Event) Clone() *Event {
	return &Event{itemBase: itemBase{
		Name:       e.Name,
		Properties: append([]ContentLine(nil), e.Properties...),
		Alarms:     append([]*Alarm(nil), e.Alarms...),
	}}
}

func (e *Event) ToParsedComponent() *ParsedComponent { return e.toParsedComponent() }

// --- ToDo (VTODO) ---

// ToDo is a VTODO: DTSTART is optional, DUE/DURATION are mutually
// exclusive when present (§3).
type ToDo struct{ itemBase }

func NewToDo(uid string) *ToDo {
	t := &ToDo{itemBase: newItemBase("VTODO")}
	t.SetUID(uid)
	return t
}

func decodeToDo(pc *ParsedComponent) *ToDo { return &ToDo{itemBase: decodeItemBase(pc)} }

func (t *ToDo) isItem() {}

func (t *ToDo) DTStart(lookup TimeZoneLookup) (DateTime, bool, error) {
	return t.dateTimeValue(PropertyDtstart, lookup)
}
func (t *ToDo) SetDTStart(dt DateTime) { t.setDateTime(PropertyDtstart, dt) }

func (t *ToDo) Due(lookup TimeZoneLookup) (DateTime, bool, error) {
	return t.dateTimeValue(PropertyDue, lookup)
}

func (t *ToDo) SetDue(dt DateTime) {
	t.removeAll(PropertyDuration)
	t.setDateTime(PropertyDue, dt)
}

func (t *ToDo) ToDoDuration() (Duration, bool, error) {
	p := t.prop(PropertyDuration)
	if p == nil {
		return Duration{}, false, nil
	}
	d, err := ParseDuration(p.Value)
	return d, err == nil, err
}

func (t *ToDo) SetDuration(d Duration) {
	t.removeAll(PropertyDue)
	t.replaceOrAppend(PropertyDuration, ContentLine{Name: string(PropertyDuration), Value: d.String()})
}

func (t *ToDo) PercentComplete() (int, bool) {
	v, ok := t.textValue(PropertyPercent)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
func (t *ToDo) SetPercentComplete(p int) { t.setText(PropertyPercent, strconv.Itoa(p)) }

func (t *ToDo) Completed(lookup TimeZoneLookup) (DateTime, bool, error) {
	return t.dateTimeValue(PropertyCompleted, lookup)
}
func (t *ToDo) SetCompleted(dt DateTime) { t.setDateTime(PropertyCompleted, dt) }

func (t *ToDo) Clone() *ToDo {
	return &ToDo{itemBase: itemBase{
		Name:       t.Name,
		Properties: append([]ContentLine(nil), t.Properties...),
		Alarms:     append([]*Alarm(nil), t.Alarms...),
	}}
}

func (t *ToDo) ToParsedComponent() *ParsedComponent { return t.toParsedComponent() }

// --- Journal (VJOURNAL) ---

// Journal is a VJOURNAL: a dated note with no end/duration of its own
// (§3 [EXPANSION] supplementing the original spec's Event/ToDo pair).
type Journal struct{ itemBase }

func NewJournal(uid string) *Journal {
	j := &Journal{itemBase: newItemBase("VJOURNAL")}
	j.SetUID(uid)
	return j
}

func decodeJournal(pc *ParsedComponent) *Journal { return &Journal{itemBase: decodeItemBase(pc)} }

func (j *Journal) isItem() {}

func (j *Journal) DTStart(lookup TimeZoneLookup) (DateTime, bool, error) {
	return j.dateTimeValue(PropertyDtstart, lookup)
}
func (j *Journal) SetDTStart(dt DateTime) { j.setDateTime(PropertyDtstart, dt) }

func (j *Journal) Clone() *Journal {
	return &Journal{itemBase: itemBase{Name: j.Name, Properties: append([]ContentLine(nil), j.Properties...)}}
}

func (j *Journal) ToParsedComponent() *ParsedComponent { return j.toParsedComponent() }

// --- inert round-tripping carriers (§3 [EXPANSION]) ---

// Alarm wraps a VALARM sub-component verbatim: alarm expansion is out of
// scope (§1 Non-goals), but the data must still round-trip.
type Alarm struct{ pc *ParsedComponent }

func (a *Alarm) Action() string {
	if p := a.pc.property(string(PropertyAction)); p != nil {
		return p.Value
	}
	return ""
}

func (a *Alarm) Trigger() string {
	if p := a.pc.property(string(PropertyTrigger)); p != nil {
		return p.Value
	}
	return ""
}

func (a *Alarm) ToParsedComponent() *ParsedComponent { return a.pc }

// FreeBusy wraps a VFREEBUSY verbatim: free/busy expansion is out of
// scope (§1 Non-goals), but decode/encode preserve it.
type FreeBusy struct{ pc *ParsedComponent }

func decodeFreeBusy(pc *ParsedComponent) *FreeBusy { return &FreeBusy{pc: pc} }

func (f *FreeBusy) UID() string {
	if p := f.pc.property(string(PropertyUID)); p != nil {
		return p.Value
	}
	return ""
}

func (f *FreeBusy) ToParsedComponent() *ParsedComponent { return f.pc }

// Timezone wraps a VTIMEZONE (with its STANDARD/DAYLIGHT children)
// verbatim: RFC 8536 TZif parsing is a sibling module, out of scope
// (§1 Non-goals). TZID is exposed so a caller's TimeZoneLookup can use it
// as a fallback resolution source.
type Timezone struct{ pc *ParsedComponent }

func decodeTimezone(pc *ParsedComponent) *Timezone { return &Timezone{pc: pc} }

func (tz *Timezone) TZID() string {
	if p := tz.pc.property(string(PropertyTzid)); p != nil {
		return p.Value
	}
	return ""
}

func (tz *Timezone) ToParsedComponent() *ParsedComponent { return tz.pc }
