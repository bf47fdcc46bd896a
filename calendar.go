package ical

import (
	"fmt"
	"io"
	"strings"
)

// Calendar is a decoded VCALENDAR: its calendar-level properties plus
// every item and inert sub-component it carries, generalizing
// arran4-golang-ical's Calendar (which held a flat []Component) into the
// typed slices §3's [MODULE] blocks name.
type Calendar struct {
	Properties []ContentLine

	Events    []*Event
	ToDos     []*ToDo
	Journals  []*Journal
	FreeBusys []*FreeBusy
	Timezones []*Timezone

	// unknown holds any top-level child component this package doesn't
	// model (e.g. a vendor extension), preserved verbatim for re-encode.
	unknown []*ParsedComponent
}

// NewCalendar returns an empty VCALENDAR stamped with the properties
// every producer must include (§4.2).
func NewCalendar() *Calendar {
	c := &Calendar{}
	c.setProperty(PropertyVersion, "2.0")
	c.setProperty(PropertyProductID, "-//icalgo//icalgo//EN")
	c.setProperty(PropertyCalscale, "GREGORIAN")
	return c
}

func (c *Calendar) property(name Property) *ContentLine {
	for i := range c.Properties {
		if c.Properties[i].Name == string(name) {
			return &c.Properties[i]
		}
	}
	return nil
}

func (c *Calendar) setProperty(name Property, value string) {
	for i := range c.Properties {
		if c.Properties[i].Name == string(name) {
			c.Properties[i].Value = value
			return
		}
	}
	c.Properties = append(c.Properties, ContentLine{Name: string(name), Value: value})
}

func (c *Calendar) ProdID() string {
	if p := c.property(PropertyProductID); p != nil {
		return p.Value
	}
	return ""
}

func (c *Calendar) SetProdID(id string) { c.setProperty(PropertyProductID, id) }

func (c *Calendar) Version() string {
	if p := c.property(PropertyVersion); p != nil {
		return p.Value
	}
	return ""
}

func (c *Calendar) SetMethod(m string) { c.setProperty(PropertyMethod, m) }

// AddEvent/AddToDo/AddJournal append a new master or override item; the
// caller decides UID/RECURRENCE-ID via the item's own setters.
func (c *Calendar) AddEvent(e *Event)       { c.Events = append(c.Events, e) }
func (c *Calendar) AddToDo(t *ToDo)         { c.ToDos = append(c.ToDos, t) }
func (c *Calendar) AddJournal(j *Journal)   { c.Journals = append(c.Journals, j) }
func (c *Calendar) AddFreeBusy(f *FreeBusy) { c.FreeBusys = append(c.FreeBusys, f) }
func (c *Calendar) AddTimezone(z *Timezone) { c.Timezones = append(c.Timezones, z) }

// Items returns every Event/ToDo/Journal in the calendar as the narrow
// Item interface, in the order Events, then ToDos, then Journals (§3's
// "Item" catalog).
func (c *Calendar) Items() []Item {
	items := make([]Item, 0, len(c.Events)+len(c.ToDos)+len(c.Journals))
	for _, e := range c.Events {
		items = append(items, e)
	}
	for _, t := range c.ToDos {
		items = append(items, t)
	}
	for _, j := range c.Journals {
		items = append(items, j)
	}
	return items
}

// Decode parses a VCALENDAR stream into a Calendar (§4.2/§4.3). The
// reader must contain exactly one top-level VCALENDAR component.
func Decode(r io.Reader, cfg Config) (*Calendar, error) {
	top, err := ParseComponents(r)
	if err != nil {
		return nil, err
	}
	if len(top) != 1 || top[0].Name != "VCALENDAR" {
		return nil, fmt.Errorf("%w: expected exactly one top-level VCALENDAR component", ErrParse)
	}
	root := top[0]

	c := &Calendar{Properties: append([]ContentLine(nil), root.Properties...)}
	for _, child := range root.Children {
		switch child.Name {
		case "VEVENT":
			c.Events = append(c.Events, decodeEvent(child))
		case "VTODO":
			c.ToDos = append(c.ToDos, decodeToDo(child))
		case "VJOURNAL":
			c.Journals = append(c.Journals, decodeJournal(child))
		case "VFREEBUSY":
			c.FreeBusys = append(c.FreeBusys, decodeFreeBusy(child))
		case "VTIMEZONE":
			c.Timezones = append(c.Timezones, decodeTimezone(child))
		default:
			c.unknown = append(c.unknown, child)
		}
	}

	if cfg.StrictRFC5545 {
		if err := c.validateStrict(); err != nil {
			return nil, err
		}
	}
	if cfg.RejectOrphanOverrides {
		if err := c.validateRecurrenceIDs(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// validateStrict rejects an unrecognized RRULE FREQ or a malformed TEXT
// backslash escape on any item, per Config.StrictRFC5545 (§6).
func (c *Calendar) validateStrict() error {
	check := func(props []ContentLine) error {
		for i := range props {
			cl := &props[i]
			if cl.Name == string(PropertyRrule) {
				rr, err := ParseRecurrenceRule(cl.Value)
				if err != nil {
					return err
				}
				if !rr.Freq.known() {
					return fmt.Errorf("%w: %w: FREQ=%s", ErrDecode, ErrUnknownFrequency, rr.Freq)
				}
				continue
			}
			if valueType(cl) == ValueDataTypeText {
				if err := validateTextEscapes(cl.Value); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for _, e := range c.Events {
		if err := check(e.Properties); err != nil {
			return err
		}
	}
	for _, t := range c.ToDos {
		if err := check(t.Properties); err != nil {
			return err
		}
	}
	for _, j := range c.Journals {
		if err := check(j.Properties); err != nil {
			return err
		}
	}
	return nil
}

// validateRecurrenceIDs enforces §3's invariant that every override's
// RECURRENCE-ID UID matches some master in the same calendar. It only
// runs under Config.RejectOrphanOverrides since a calendar fragment (one
// override shipped without its master, e.g. over a sync protocol) is a
// legitimate input otherwise (§4.7).
func (c *Calendar) validateRecurrenceIDs() error {
	masters := map[string]bool{}
	for _, e := range c.Events {
		if e.IsMaster() {
			masters[e.UID()] = true
		}
	}
	for _, t := range c.ToDos {
		if t.IsMaster() {
			masters[t.UID()] = true
		}
	}
	for _, j := range c.Journals {
		if j.IsMaster() {
			masters[j.UID()] = true
		}
	}
	check := func(uid string, isMaster bool) error {
		if !isMaster && !masters[uid] {
			return fmt.Errorf("%w: %w: UID %q", ErrValidation, ErrRecurrenceIDOrphan, uid)
		}
		return nil
	}
	for _, e := range c.Events {
		if err := check(e.UID(), e.IsMaster()); err != nil {
			return err
		}
	}
	for _, t := range c.ToDos {
		if err := check(t.UID(), t.IsMaster()); err != nil {
			return err
		}
	}
	for _, j := range c.Journals {
		if err := check(j.UID(), j.IsMaster()); err != nil {
			return err
		}
	}
	return nil
}

// Encode serializes the calendar as a complete VCALENDAR stream (§4.1).
func (c *Calendar) Encode(w io.Writer) error {
	root := &ParsedComponent{Name: "VCALENDAR", Properties: c.Properties}
	for _, e := range c.Events {
		root.Children = append(root.Children, e.ToParsedComponent())
	}
	for _, t := range c.ToDos {
		root.Children = append(root.Children, t.ToParsedComponent())
	}
	for _, j := range c.Journals {
		root.Children = append(root.Children, j.ToParsedComponent())
	}
	for _, f := range c.FreeBusys {
		root.Children = append(root.Children, f.ToParsedComponent())
	}
	for _, z := range c.Timezones {
		root.Children = append(root.Children, z.ToParsedComponent())
	}
	root.Children = append(root.Children, c.unknown...)
	return SerializeComponent(w, root)
}

// String renders the calendar to its wire form, panicking only if the
// underlying writer fails, which a strings.Builder never does.
func (c *Calendar) String() string {
	var b strings.Builder
	if err := c.Encode(&b); err != nil {
		panic(err)
	}
	return b.String()
}

// Timeline builds a merged occurrence view over every item in the
// calendar (§4.6).
func (c *Calendar) Timeline(cfg Config) *Timeline {
	return newTimeline(c, cfg)
}
