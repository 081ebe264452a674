package services

import (
	"fmt"
	"testing"
	"time"
)

func TestNormalize_UnixTimestamp(t *testing.T) {
	n := NewDateTimeNormalizer()

	// 2025-06-01 01:30:00 UTC = 2025-05-31 18:30 in Los Angeles
	result := n.Normalize(DateTimeInput{Raw: "1748741400", Zone: "America/Los_Angeles"})

	if result.Date != "2025-05-31" {
		t.Errorf("expected date 2025-05-31, got %s", result.Date)
	}
	if result.Time != "18:30" {
		t.Errorf("expected time 18:30, got %s", result.Time)
	}
	if result.Timezone != "America/Los_Angeles" {
		t.Errorf("expected America/Los_Angeles, got %s", result.Timezone)
	}
}

func TestNormalize_MillisecondTimestamp(t *testing.T) {
	n := NewDateTimeNormalizer()

	sec := n.Normalize(DateTimeInput{Raw: "1748741400", Zone: "America/Chicago"})
	ms := n.Normalize(DateTimeInput{Raw: "1748741400000", Zone: "America/Chicago"})

	if sec != ms {
		t.Errorf("second and millisecond forms disagree: %+v vs %+v", sec, ms)
	}
}

func TestNormalize_TimestampRoundTrip(t *testing.T) {
	n := NewDateTimeNormalizer()

	testCases := []struct {
		instant time.Time
		zone    string
	}{
		{time.Date(2025, 6, 1, 1, 30, 0, 0, time.UTC), "America/Los_Angeles"},
		{time.Date(2025, 1, 15, 23, 59, 0, 0, time.UTC), "America/New_York"},
		{time.Date(2025, 11, 2, 12, 30, 0, 0, time.UTC), "America/Chicago"},
		{time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), "Europe/London"},
	}

	for _, tc := range testCases {
		t.Run(tc.zone, func(t *testing.T) {
			result := n.Normalize(DateTimeInput{
				Raw:  fmt.Sprintf("%d", tc.instant.Unix()),
				Zone: tc.zone,
			})

			loc, err := time.LoadLocation(result.Timezone)
			if err != nil {
				t.Fatalf("invalid output zone %q: %v", result.Timezone, err)
			}

			reconstructed, err := time.ParseInLocation("2006-01-02 15:04", result.Date+" "+result.Time, loc)
			if err != nil {
				t.Fatalf("failed to reconstruct instant: %v", err)
			}

			diff := reconstructed.Sub(tc.instant)
			if diff < -time.Minute || diff > time.Minute {
				t.Errorf("round trip drifted %v: %v -> %+v -> %v", diff, tc.instant, result, reconstructed)
			}
		})
	}
}

func TestNormalize_ISOWithOffset(t *testing.T) {
	n := NewDateTimeNormalizer()

	// Offset comes from the string itself; supplied zone is ignored
	result := n.Normalize(DateTimeInput{Raw: "2025-06-01T20:00:00-05:00", Zone: "America/Los_Angeles"})

	if result.Date != "2025-06-01" || result.Time != "20:00" {
		t.Errorf("expected local reading preserved, got %+v", result)
	}
	if result.Timezone != "" {
		t.Errorf("numeric offset is not an IANA zone, expected empty, got %s", result.Timezone)
	}
}

func TestNormalize_UTCStringConvertedToZone(t *testing.T) {
	n := NewDateTimeNormalizer()

	result := n.Normalize(DateTimeInput{Raw: "2025-06-02T01:30:00Z", Zone: "America/Los_Angeles"})

	if result.Date != "2025-06-01" {
		t.Errorf("expected date 2025-06-01, got %s", result.Date)
	}
	if result.Time != "18:30" {
		t.Errorf("expected time 18:30, got %s", result.Time)
	}
	if result.Timezone != "America/Los_Angeles" {
		t.Errorf("expected America/Los_Angeles, got %s", result.Timezone)
	}
}

func TestNormalize_TreatZAsLocal(t *testing.T) {
	n := NewDateTimeNormalizer()

	// Sources that append Z to venue-local values: the Z is stripped and
	// no conversion happens
	result := n.Normalize(DateTimeInput{
		Raw:           "2025-06-01T20:00:00Z",
		Zone:          "America/Chicago",
		TreatZAsLocal: true,
	})

	if result.Date != "2025-06-01" || result.Time != "20:00" {
		t.Errorf("expected 2025-06-01 20:00 kept local, got %+v", result)
	}
	if result.Timezone != "America/Chicago" {
		t.Errorf("expected America/Chicago, got %s", result.Timezone)
	}
}

func TestNormalize_LocalParts(t *testing.T) {
	n := NewDateTimeNormalizer()

	testCases := []struct {
		name     string
		date     string
		timePart string
		expected NormalizedDateTime
	}{
		{
			name:     "ISO date with 24h time",
			date:     "2025-06-01",
			timePart: "19:30",
			expected: NormalizedDateTime{Date: "2025-06-01", Time: "19:30", Timezone: "America/Denver"},
		},
		{
			name:     "12h clock time",
			date:     "2025-06-01",
			timePart: "7:30 PM",
			expected: NormalizedDateTime{Date: "2025-06-01", Time: "19:30", Timezone: "America/Denver"},
		},
		{
			name:     "Compact meridiem",
			date:     "2025-06-01",
			timePart: "7pm",
			expected: NormalizedDateTime{Date: "2025-06-01", Time: "19:00", Timezone: "America/Denver"},
		},
		{
			name:     "US slash date",
			date:     "06/01/2025",
			timePart: "",
			expected: NormalizedDateTime{Date: "2025-06-01", Timezone: "America/Denver"},
		},
		{
			name:     "Garbage time degrades to empty",
			date:     "2025-06-01",
			timePart: "doors at dusk",
			expected: NormalizedDateTime{Date: "2025-06-01", Timezone: "America/Denver"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := n.Normalize(DateTimeInput{Date: tc.date, Time: tc.timePart, Zone: "America/Denver"})
			if result != tc.expected {
				t.Errorf("got %+v, expected %+v", result, tc.expected)
			}
		})
	}
}

func TestNormalize_FreeText(t *testing.T) {
	n := NewDateTimeNormalizer()

	result := n.Normalize(DateTimeInput{Raw: "June 1, 2025 8:00 PM", Zone: "America/Chicago"})

	if result.Date != "2025-06-01" {
		t.Errorf("expected 2025-06-01, got %s", result.Date)
	}
	if result.Time != "20:00" {
		t.Errorf("expected 20:00, got %s", result.Time)
	}
}

func TestNormalize_FreeTextDateOnlyKeepsNoTime(t *testing.T) {
	n := NewDateTimeNormalizer()

	result := n.Normalize(DateTimeInput{Raw: "June 1, 2025", Zone: "America/Chicago"})

	if result.Date != "2025-06-01" {
		t.Errorf("expected 2025-06-01, got %s", result.Date)
	}
	if result.Time != "" {
		t.Errorf("date-only input must not invent a midnight time, got %s", result.Time)
	}
}

func TestNormalize_UnparseableInput(t *testing.T) {
	n := NewDateTimeNormalizer()

	result := n.Normalize(DateTimeInput{Raw: "doors open whenever", Zone: "America/Chicago"})

	if result != (NormalizedDateTime{}) {
		t.Errorf("expected zero value for unparseable input, got %+v", result)
	}
}

func TestValidateTimezone(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Valid IANA zone", "America/Chicago", "America/Chicago"},
		{"UTC", "UTC", "UTC"},
		{"Invalid name", "Central Time", ""},
		{"Bogus zone", "America/Springfield", ""},
		{"Empty", "", ""},
		{"Local rejected", "Local", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := ValidateTimezone(tc.input); result != tc.expected {
				t.Errorf("ValidateTimezone(%q) = %q, expected %q", tc.input, result, tc.expected)
			}
		})
	}
}
