package ical

import (
	"fmt"
	"strings"
)

// Property names this package understands natively (§4.3's table plus the
// surface-level catalog from SPEC_FULL.md). Anything else decodes as an
// opaque IANA or X- property and still round-trips (§4.2).
type Property string

const (
	PropertyCalscale    Property = "CALSCALE"
	PropertyMethod      Property = "METHOD"
	PropertyProductID   Property = "PRODID"
	PropertyVersion     Property = "VERSION"
	PropertyUID         Property = "UID"
	PropertyDtstamp     Property = "DTSTAMP"
	PropertyDtstart     Property = "DTSTART"
	PropertyDtend       Property = "DTEND"
	PropertyDue         Property = "DUE"
	PropertyDuration    Property = "DURATION"
	PropertySummary     Property = "SUMMARY"
	PropertyDescription Property = "DESCRIPTION"
	PropertyLocation    Property = "LOCATION"
	PropertyStatus      Property = "STATUS"
	PropertySequence    Property = "SEQUENCE"
	PropertyLastMod     Property = "LAST-MODIFIED"
	PropertyCreated     Property = "CREATED"
	PropertyRrule       Property = "RRULE"
	PropertyRdate       Property = "RDATE"
	PropertyExdate      Property = "EXDATE"
	PropertyRecurrID    Property = "RECURRENCE-ID"
	PropertyCategories  Property = "CATEGORIES"
	PropertyResources   Property = "RESOURCES"
	PropertyClass       Property = "CLASS"
	PropertyTransp      Property = "TRANSP"
	PropertyPriority    Property = "PRIORITY"
	PropertyURL         Property = "URL"
	PropertyGeo         Property = "GEO"
	PropertyOrganizer   Property = "ORGANIZER"
	PropertyAttendee    Property = "ATTENDEE"
	PropertyContact     Property = "CONTACT"
	PropertyComment     Property = "COMMENT"
	PropertyRelatedTo   Property = "RELATED-TO"
	PropertyAttach      Property = "ATTACH"
	PropertyRequestStat Property = "REQUEST-STATUS"
	PropertyTzid        Property = "TZID"
	PropertyTzoffsetto  Property = "TZOFFSETTO"
	PropertyTzoffsetfr  Property = "TZOFFSETFROM"
	PropertyTzname      Property = "TZNAME"
	PropertyTzurl       Property = "TZURL"
	PropertyAction      Property = "ACTION"
	PropertyTrigger     Property = "TRIGGER"
	PropertyRepeat      Property = "REPEAT"
	PropertyFreebusy    Property = "FREEBUSY"
	PropertyPercent     Property = "PERCENT-COMPLETE"
	PropertyCompleted   Property = "COMPLETED"
	PropertyColor       Property = "COLOR"
)

// Parameter names (§3 "Parameter").
type Parameter string

const (
	ParameterValue    Parameter = "VALUE"
	ParameterTzid     Parameter = "TZID"
	ParameterRelated  Parameter = "RELATED"
	ParameterReltype  Parameter = "RELTYPE"
	ParameterRole     Parameter = "ROLE"
	ParameterPartstat Parameter = "PARTSTAT"
	ParameterCutype   Parameter = "CUTYPE"
	ParameterRsvp     Parameter = "RSVP"
	ParameterFmttype  Parameter = "FMTTYPE"
	ParameterEncoding Parameter = "ENCODING"
	ParameterAltrep   Parameter = "ALTREP"
	ParameterCn       Parameter = "CN"
)

// ValueDataType is RFC 5545's tagged value-type vocabulary (§4.3, §9).
type ValueDataType string

const (
	ValueDataTypeText       ValueDataType = "TEXT"
	ValueDataTypeDate       ValueDataType = "DATE"
	ValueDataTypeDateTime   ValueDataType = "DATE-TIME"
	ValueDataTypeDuration   ValueDataType = "DURATION"
	ValueDataTypePeriod     ValueDataType = "PERIOD"
	ValueDataTypeRecur      ValueDataType = "RECUR"
	ValueDataTypeInteger    ValueDataType = "INTEGER"
	ValueDataTypeFloat      ValueDataType = "FLOAT"
	ValueDataTypeCalAddress ValueDataType = "CAL-ADDRESS"
	ValueDataTypeURI        ValueDataType = "URI"
	ValueDataTypeUTCOffset  ValueDataType = "UTC-OFFSET"
	ValueDataTypeBinary     ValueDataType = "BINARY"
	ValueDataTypeBoolean    ValueDataType = "BOOLEAN"
)

// defaultValueType generalizes arran4-golang-ical's property.go
// GetValueType switch into the §4.3 property→value-space table this spec
// needs.
func defaultValueType(name string) ValueDataType {
	switch Property(strings.ToUpper(name)) {
	case PropertyDtstart, PropertyDtend, PropertyDue, PropertyRecurrID,
		PropertyCreated, PropertyDtstamp, PropertyLastMod, PropertyCompleted,
		PropertyRdate, PropertyExdate:
		return ValueDataTypeDateTime
	case PropertyDuration, PropertyTrigger:
		return ValueDataTypeDuration
	case PropertyRrule:
		return ValueDataTypeRecur
	case PropertySequence, PropertyPriority, PropertyRepeat, PropertyPercent:
		return ValueDataTypeInteger
	case PropertyGeo:
		return ValueDataTypeFloat
	case PropertyFreebusy:
		return ValueDataTypePeriod
	case PropertyTzoffsetto, PropertyTzoffsetfr:
		return ValueDataTypeUTCOffset
	case PropertyAttendee, PropertyOrganizer:
		return ValueDataTypeCalAddress
	case PropertyAttach, PropertyURL, PropertyTzurl:
		return ValueDataTypeURI
	default:
		return ValueDataTypeText
	}
}

// valueType resolves a content line's effective value type: an explicit
// VALUE= parameter wins, otherwise the property's default (§4.3).
func valueType(cl *ContentLine) ValueDataType {
	if v, ok := cl.paramFirst(string(ParameterValue)); ok {
		return ValueDataType(strings.ToUpper(v))
	}
	return defaultValueType(cl.Name)
}

// PropertyParameter mirrors arran4-golang-ical's construction-option style:
// a small interface so New*/Set* calls can accept a variadic list of
// optional parameters instead of exposing Param directly.
type PropertyParameter interface {
	KeyValue() (string, []string)
}

type keyValues struct {
	key    string
	values []string
}

func (kv keyValues) KeyValue() (string, []string) { return kv.key, kv.values }

func WithTZID(tzid string) PropertyParameter {
	return keyValues{key: string(ParameterTzid), values: []string{tzid}}
}

func WithValueType(kind ValueDataType) PropertyParameter {
	return keyValues{key: string(ParameterValue), values: []string{string(kind)}}
}

func WithParam(name string, values ...string) PropertyParameter {
	return keyValues{key: name, values: values}
}

func applyParams(cl *ContentLine, params []PropertyParameter) {
	for _, p := range params {
		k, v := p.KeyValue()
		cl.setParam(k, v...)
	}
}

// --- text escaping (§4.1 "Value escapes") ---

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\n", `\n`,
)

// ToText escapes a decoded text value back into its RFC 5545 wire form.
func ToText(s string) string { return textEscaper.Replace(s) }

var textUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\N`, "\n",
	`\n`, "\n",
	`\;`, `;`,
	`\,`, `,`,
)

// FromText un-escapes a raw wire-form text value into its decoded form.
func FromText(s string) string { return textUnescaper.Replace(s) }

// validateTextEscapes rejects a raw TEXT value carrying a backslash escape
// RFC 5545 §3.3.11 doesn't define — a trailing backslash with nothing
// following it, or a backslash followed by anything other than \, ;, ,,
// n, or N. FromText silently passes these through unchanged rather than
// rejecting them; this is the check Config.StrictRFC5545 gates instead.
func validateTextEscapes(raw string) error {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		if i+1 >= len(raw) {
			return fmt.Errorf("%w: %w: trailing backslash", ErrDecode, ErrMalformedEscape)
		}
		switch raw[i+1] {
		case '\\', ';', ',', 'n', 'N':
			i++
		default:
			return fmt.Errorf("%w: %w: %q", ErrDecode, ErrMalformedEscape, raw[i:i+2])
		}
	}
	return nil
}
