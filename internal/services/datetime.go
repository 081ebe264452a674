package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// NormalizedDateTime is the canonical output of datetime normalization:
// an ISO date, a 24-hour wall-clock time, and a validated IANA zone.
// Any field may be empty when the source did not carry it.
type NormalizedDateTime struct {
	Date     string // YYYY-MM-DD
	Time     string // HH:MM
	Timezone string // IANA name or ""
}

// DateTimeInput describes one source datetime in whatever shape the
// extractor found it. Exactly one of Raw or the Date/Time parts is
// expected to be populated.
type DateTimeInput struct {
	Raw  string // timestamp, ISO string, or free text
	Date string // already-local YYYY-MM-DD part
	Time string // already-local time part (any common clock format)

	// Zone is the IANA zone supplied by the caller (venue zone or source
	// config). For ISO inputs carrying their own offset it is ignored
	// unless TreatZAsLocal is set.
	Zone string

	// TreatZAsLocal strips a trailing Z from the raw value and parses the
	// remainder as local to Zone. Several sources append Z to values that
	// are actually venue-local.
	TreatZAsLocal bool
}

// DateTimeNormalizer reconciles the incompatible datetime representations
// emitted by different source formats into NormalizedDateTime triples.
type DateTimeNormalizer struct{}

// NewDateTimeNormalizer creates a new datetime normalizer
func NewDateTimeNormalizer() *DateTimeNormalizer {
	return &DateTimeNormalizer{}
}

var (
	digitsOnlyRe  = regexp.MustCompile(`^\d{9,13}$`)
	isoDateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`)
	isoDateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Normalize routes an input to the matching parse branch. Unparseable
// input degrades to the zero NormalizedDateTime, never an error.
func (n *DateTimeNormalizer) Normalize(input DateTimeInput) NormalizedDateTime {
	zone := ValidateTimezone(input.Zone)

	if input.Date != "" || input.Time != "" {
		return n.fromLocalParts(input.Date, input.Time, zone)
	}

	raw := strings.TrimSpace(input.Raw)
	if raw == "" {
		return NormalizedDateTime{}
	}

	if digitsOnlyRe.MatchString(raw) {
		return n.fromUnixTimestamp(raw, zone)
	}

	if isoDateOnlyRe.MatchString(raw) {
		return NormalizedDateTime{Date: raw, Timezone: zone}
	}

	if isoDateTimeRe.MatchString(raw) {
		return n.fromISO(raw, zone, input.TreatZAsLocal)
	}

	return n.fromFreeText(raw, zone)
}

// fromUnixTimestamp converts a unix timestamp, auto-detecting seconds vs
// milliseconds by magnitude, from UTC into the supplied zone.
func (n *DateTimeNormalizer) fromUnixTimestamp(raw, zone string) NormalizedDateTime {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return NormalizedDateTime{}
	}

	// 13-digit values are milliseconds
	if ts > 1_000_000_000_000 {
		ts = ts / 1000
	}

	instant := time.Unix(ts, 0).UTC()
	if zone != "" {
		loc, err := time.LoadLocation(zone)
		if err == nil {
			instant = instant.In(loc)
		}
	}

	return NormalizedDateTime{
		Date:     instant.Format("2006-01-02"),
		Time:     instant.Format("15:04"),
		Timezone: zone,
	}
}

// fromISO parses an ISO-8601 string. A value carrying its own offset is
// kept local to that offset; a trailing Z means UTC converted into the
// supplied zone, unless treatZAsLocal strips it first.
func (n *DateTimeNormalizer) fromISO(raw, zone string, treatZAsLocal bool) NormalizedDateTime {
	value := strings.Replace(raw, " ", "T", 1)

	if treatZAsLocal {
		value = strings.TrimSuffix(value, "Z")
	}

	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02T15:04:05-0700",
	}

	for _, layout := range layouts {
		parsed, err := time.Parse(layout, value)
		if err != nil {
			continue
		}

		// Zoneless layouts parse in UTC wall-clock terms; those values are
		// local readings, not instants, so no conversion applies.
		if layout == "2006-01-02T15:04:05" || layout == "2006-01-02T15:04" {
			return NormalizedDateTime{
				Date:     parsed.Format("2006-01-02"),
				Time:     parsed.Format("15:04"),
				Timezone: zone,
			}
		}

		// Value carried a real offset. A UTC marker with a supplied zone
		// means "convert into that zone"; any other offset is the source's
		// own local reading and is kept as-is.
		_, offset := parsed.Zone()
		if offset == 0 && zone != "" {
			loc, err := time.LoadLocation(zone)
			if err == nil {
				local := parsed.In(loc)
				return NormalizedDateTime{
					Date:     local.Format("2006-01-02"),
					Time:     local.Format("15:04"),
					Timezone: zone,
				}
			}
		}

		result := NormalizedDateTime{
			Date: parsed.Format("2006-01-02"),
			Time: parsed.Format("15:04"),
		}
		if offset == 0 {
			result.Timezone = "UTC"
		}
		return result
	}

	return n.fromFreeText(raw, zone)
}

// fromLocalParts combines already-local date and time parts with the
// supplied zone. Values are validated, never converted.
func (n *DateTimeNormalizer) fromLocalParts(date, timePart, zone string) NormalizedDateTime {
	result := NormalizedDateTime{Timezone: zone}

	if date != "" {
		if parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date)); err == nil {
			result.Date = parsed.Format("2006-01-02")
		} else if parsed, err := dateparse.ParseAny(date); err == nil {
			result.Date = parsed.Format("2006-01-02")
		}
	}

	if timePart != "" {
		result.Time = normalizeClockTime(timePart)
	}

	if result.Date == "" && result.Time == "" {
		return NormalizedDateTime{}
	}
	return result
}

// fromFreeText is the best-effort branch for unknown formats, parsing in
// the supplied default zone when the value embeds no zone of its own.
func (n *DateTimeNormalizer) fromFreeText(raw, zone string) NormalizedDateTime {
	loc := time.UTC
	if zone != "" {
		if parsed, err := time.LoadLocation(zone); err == nil {
			loc = parsed
		}
	}

	parsed, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return NormalizedDateTime{}
	}

	result := NormalizedDateTime{
		Date:     parsed.Format("2006-01-02"),
		Timezone: zone,
	}

	// dateparse yields midnight for date-only input; only keep the time
	// component when the raw value visibly carried one
	if hasClockComponent(raw) {
		result.Time = parsed.Format("15:04")
	}

	return result
}

// ValidateTimezone returns the name unchanged when it is a valid IANA
// zone, otherwise empty. Raw or unvalidated strings never propagate.
func ValidateTimezone(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}

	// Reject bare offsets and abbreviations that LoadLocation would accept
	// ("UTC" passes, "Local" and numeric offsets do not)
	if trimmed == "Local" {
		return ""
	}

	if _, err := time.LoadLocation(trimmed); err != nil {
		return ""
	}
	return trimmed
}

var clockRe = regexp.MustCompile(`(?i)(\d{1,2}:\d{2}|\d{1,2}\s*(am|pm))`)

func hasClockComponent(raw string) bool {
	return clockRe.MatchString(raw)
}

// normalizeClockTime coerces common clock formats (7pm, 7:30 PM, 19:30)
// into 24-hour HH:MM, degrading to empty on anything unrecognizable.
func normalizeClockTime(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	layouts := []string{
		"15:04",
		"15:04:05",
		"3:04 PM",
		"3:04PM",
		"3 PM",
		"3PM",
	}

	upper := strings.ToUpper(trimmed)
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, upper); err == nil {
			return parsed.Format("15:04")
		}
	}

	return ""
}
