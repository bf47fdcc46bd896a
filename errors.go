package ical

import "errors"

// Sentinel error kinds. Errors surfaced by this package wrap one of these
// via %w, so callers can branch with errors.Is(err, ical.ErrDecode)
// without depending on message text. The exception is value.go's DATE/
// DATE-TIME and DURATION decoding: those errors wrap ErrValueTypeMismatch
// or ErrValueParamConflict and no kind (an unresolved TZID wraps ErrDecode).
var (
	ErrLex        = errors.New("ical: lex error")
	ErrParse      = errors.New("ical: parse error")
	ErrDecode     = errors.New("ical: decode error")
	ErrValidation = errors.New("ical: validation error")
	ErrRecurrence = errors.New("ical: recurrence error")
	ErrStore      = errors.New("ical: store error")
)

// Lexer-level causes (§4.1).
var (
	ErrUnterminatedFold  = errors.New("continuation line with no predecessor")
	ErrUnterminatedQuote = errors.New("unterminated quoted parameter value")
	ErrUnexpectedControl = errors.New("unexpected control character in value")
)

// Parser-level causes (§4.2).
var (
	ErrEmptyStack       = errors.New("END with no matching BEGIN")
	ErrMismatchedEnd    = errors.New("END name does not match top of stack")
	ErrUnclosedStack    = errors.New("end of input with components still open")
	ErrPropertyNoParent = errors.New("property outside any component")
)

// Decode-level causes (§4.3).
var (
	ErrValueTypeMismatch  = errors.New("value does not match its declared type")
	ErrValueParamConflict = errors.New("VALUE parameter conflicts with actual value")
	ErrUntilTypeMismatch  = errors.New("UNTIL value type does not match DTSTART")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrExpectedOneTZID    = errors.New("expected exactly one TZID parameter value")
	ErrUnknownFrequency   = errors.New("unrecognized RRULE FREQ")
	ErrMalformedEscape    = errors.New("malformed backslash escape in TEXT value")
)

// Validation-level causes (§3/§4 invariants).
var (
	ErrBothEndAndDuration = errors.New("both DTEND/DUE and DURATION are set")
	ErrCountAndUntil      = errors.New("RRULE has both COUNT and UNTIL")
	ErrEndBeforeStart     = errors.New("DTEND/DUE is not after DTSTART")
	ErrRecurrenceIDOrphan = errors.New("RECURRENCE-ID has no matching master")
	ErrMixedValueTypes    = errors.New("mixed DATE and DATE-TIME values where one type was expected")
)

// Recurrence-level causes (§4.4/§4.5).
var (
	ErrUnsupportedFrequency = errors.New("FREQ is not supported for expansion")
	ErrUnboundedExpansion   = errors.New("unbounded recurrence requested without a range or max_expansions")
)

// Store-level causes (§4.7).
var (
	ErrUIDCollision       = errors.New("UID already used by another master")
	ErrEditTargetNotFound = errors.New("edit/delete target not found")
	ErrModeIncompatible   = errors.New("mode incompatible with item shape")
	ErrOverrideOrphan     = errors.New("override RECURRENCE-ID has no matching expansion candidate")
)
