package ical

// Config holds the recognized options from spec §6.
type Config struct {
	// StrictRFC5545 rejects unknown RRULE FREQ values and malformed TEXT
	// backslash escapes at decode time instead of preserving them
	// opaquely. Default false.
	StrictRFC5545 bool

	// RejectOrphanOverrides requires every override's RECURRENCE-ID to
	// name a master UID present in the same calendar, checked at decode
	// time (§4.7). Independent of StrictRFC5545: a calendar fragment
	// shipped without its master (e.g. one VEVENT synced ahead of the
	// rest of its series) is a legitimate non-strict input, so this is a
	// separate opt-in rather than folded into StrictRFC5545. Default
	// false.
	RejectOrphanOverrides bool

	// MaxExpansions caps how many occurrences each unbounded recurrence
	// iterator (no COUNT, no UNTIL) produces. The cap applies to every
	// timeline query, ranged or not: occurrences beyond it are not yielded
	// even when a query's range reaches them. Default 3650 (roughly 10
	// years of daily occurrences) when zero.
	MaxExpansions int

	// Lookup resolves TZID parameters to *time.Location for every zoned
	// DATE-TIME property this package decodes. A nil Lookup means any
	// zoned value errors on first access rather than silently degrading to
	// floating time (§6 "TimeZoneLookup... supplied by caller").
	Lookup TimeZoneLookup
}

const defaultMaxExpansions = 3650

// withDefaults returns a copy of cfg with zero-value fields replaced by
// their documented defaults.
func (cfg Config) withDefaults() Config {
	if cfg.MaxExpansions <= 0 {
		cfg.MaxExpansions = defaultMaxExpansions
	}
	return cfg
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{StrictRFC5545: false, MaxExpansions: defaultMaxExpansions}
}
