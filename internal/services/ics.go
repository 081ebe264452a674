package services

import (
	"context"
	"strings"

	ics "github.com/arran4/golang-ical"

	"live-events-scraper/internal/models"
)

// ICSExtractor extracts events from iCalendar feeds. Venue calendars
// commonly publish these alongside (or instead of) their HTML listings.
type ICSExtractor struct{}

// NewICSExtractor creates a new ICS feed extractor
func NewICSExtractor() *ICSExtractor {
	return &ICSExtractor{}
}

func (e *ICSExtractor) Name() string {
	return models.MethodICS
}

// CanHandle probes for the calendar envelope
func (e *ICSExtractor) CanHandle(content, sourceURL string) bool {
	return strings.Contains(content, "BEGIN:VCALENDAR")
}

// Extract parses the calendar and maps VEVENT components to raw events.
// Parse failures yield an empty list.
func (e *ICSExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	cal, err := ics.ParseCalendar(strings.NewReader(content))
	if err != nil {
		return nil
	}

	// Google-style feeds carry the calendar's zone; it becomes the default
	// for floating and UTC-marked values
	calendarZone := ""
	for _, prop := range cal.CalendarProperties {
		if prop.IANAToken == "X-WR-TIMEZONE" {
			calendarZone = prop.Value
			break
		}
	}

	var events []models.RawEvent
	for _, component := range cal.Events() {
		event, ok := e.mapVEvent(component, calendarZone)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	return events
}

// mapVEvent maps one VEVENT into a RawEvent, carrying the raw DTSTART and
// TZID through to the datetime normalizer
func (e *ICSExtractor) mapVEvent(component *ics.VEvent, calendarZone string) (models.RawEvent, bool) {
	event := models.RawEvent{
		Title:       icsPropertyValue(component, ics.ComponentPropertySummary),
		Description: icsPropertyValue(component, ics.ComponentPropertyDescription),
		VenueName:   icsPropertyValue(component, ics.ComponentPropertyLocation),
		TicketURL:   icsPropertyValue(component, ics.ComponentPropertyUrl),
		Timezone:    calendarZone,
	}
	if event.Title == "" {
		return models.RawEvent{}, false
	}

	if start := component.GetProperty(ics.ComponentPropertyDtStart); start != nil {
		event.StartRaw = icsValueToISO(start.Value)
		if tzid := icsParam(start, "TZID"); tzid != "" {
			event.Timezone = tzid
		}
	}
	if end := component.GetProperty(ics.ComponentPropertyDtEnd); end != nil {
		event.EndRaw = icsValueToISO(end.Value)
	}

	return event, true
}

func icsPropertyValue(component *ics.VEvent, name ics.ComponentProperty) string {
	prop := component.GetProperty(name)
	if prop == nil {
		return ""
	}
	return strings.TrimSpace(icsUnescape(prop.Value))
}

func icsParam(prop *ics.IANAProperty, name string) string {
	values, ok := prop.ICalParameters[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}

// icsValueToISO rewrites iCalendar datetime forms (20250601T200000Z,
// 20250601T200000, 20250601) into the ISO forms the datetime normalizer
// understands. Unrecognized values pass through for the free-text branch.
func icsValueToISO(value string) string {
	value = strings.TrimSpace(value)

	compact := value
	utc := strings.HasSuffix(compact, "Z")
	compact = strings.TrimSuffix(compact, "Z")

	switch len(compact) {
	case 15: // 20250601T200000
		iso := compact[0:4] + "-" + compact[4:6] + "-" + compact[6:8] + "T" +
			compact[9:11] + ":" + compact[11:13] + ":" + compact[13:15]
		if utc {
			iso += "Z"
		}
		return iso
	case 8: // 20250601, all-day event
		return compact[0:4] + "-" + compact[4:6] + "-" + compact[6:8]
	}

	return value
}

// icsUnescape undoes iCalendar text escaping (\, \; \n)
func icsUnescape(value string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\N`, "\n",
		`\,`, ",",
		`\;`, ";",
		`\\`, `\`,
	)
	return replacer.Replace(value)
}
