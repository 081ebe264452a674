package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"live-events-scraper/internal/models"
)

// serverDataMarker is the embedded payload assignment ticketing platforms
// render into organizer and venue pages
const serverDataMarker = "window.__SERVER_DATA__"

// maxWidgetPages bounds continuation fetches for one extraction call
const maxWidgetPages = 5

// PlatformWidgetExtractor extracts events from platform-embedded JSON
// payloads (Eventbrite-style organizer pages) and follows the payload's
// continuation URLs through the platform API, up to a fixed page ceiling.
type PlatformWidgetExtractor struct {
	fetcher *FetchClient
}

// widgetPayload is the embedded/API payload shape shared by the page
// bootstrap data and the paginated API responses
type widgetPayload struct {
	Events     []widgetEvent `json:"events"`
	Pagination struct {
		PageNumber  int    `json:"page_number"`
		PageCount   int    `json:"page_count"`
		NextPageURL string `json:"next_page_url"`
	} `json:"pagination"`
}

type widgetEvent struct {
	Name    widgetText     `json:"name"`
	Summary string         `json:"summary"`
	Start   widgetDateTime `json:"start"`
	End     widgetDateTime `json:"end"`
	URL     string         `json:"url"`
	Venue   struct {
		Name    string `json:"name"`
		Address struct {
			Address1   string `json:"address_1"`
			City       string `json:"city"`
			Region     string `json:"region"`
			PostalCode string `json:"postal_code"`
		} `json:"address"`
	} `json:"venue"`
	Logo struct {
		URL string `json:"url"`
	} `json:"logo"`
	TicketAvailability struct {
		MinimumTicketPrice struct {
			Display string `json:"display"`
		} `json:"minimum_ticket_price"`
		IsFree bool `json:"is_free"`
	} `json:"ticket_availability"`
}

// widgetText handles name fields that arrive either as a bare string or
// as {"text": "...", "html": "..."}
type widgetText struct {
	Text string
}

func (w *widgetText) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		w.Text = plain
		return nil
	}
	var wrapped struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		w.Text = wrapped.Text
	}
	// Unrecognized shapes leave the name empty rather than failing the block
	return nil
}

type widgetDateTime struct {
	Timezone string `json:"timezone"`
	Local    string `json:"local"`
	UTC      string `json:"utc"`
}

// NewPlatformWidgetExtractor creates a new platform widget extractor
func NewPlatformWidgetExtractor(fetcher *FetchClient) *PlatformWidgetExtractor {
	return &PlatformWidgetExtractor{fetcher: fetcher}
}

func (e *PlatformWidgetExtractor) Name() string {
	return models.MethodPlatformWidget
}

// CanHandle probes for the embedded bootstrap payload
func (e *PlatformWidgetExtractor) CanHandle(content, sourceURL string) bool {
	return strings.Contains(content, serverDataMarker)
}

// Extract decodes the embedded payload and follows its continuation URLs
// with a fixed page ceiling and a call-local visited set
func (e *PlatformWidgetExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	payload := extractEmbeddedJSON(content, serverDataMarker)
	if payload == "" {
		return nil
	}

	var data widgetPayload
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil
	}

	events := e.mapEvents(data.Events)

	visited := map[string]bool{}
	nextURL := data.Pagination.NextPageURL
	for page := 1; page < maxWidgetPages && nextURL != "" && !visited[nextURL]; page++ {
		visited[nextURL] = true

		body, err := e.fetcher.Fetch(ctx, nextURL)
		if err != nil {
			log.Printf("Widget continuation fetch failed for %s: %v", nextURL, err)
			break
		}

		var pageData widgetPayload
		if err := json.Unmarshal(body, &pageData); err != nil {
			log.Printf("Widget continuation payload malformed for %s: %v", nextURL, err)
			break
		}

		events = append(events, e.mapEvents(pageData.Events)...)
		nextURL = pageData.Pagination.NextPageURL
	}

	return events
}

// mapEvents maps platform event records into raw events, preferring the
// already-local reading over the UTC one
func (e *PlatformWidgetExtractor) mapEvents(widgetEvents []widgetEvent) []models.RawEvent {
	var events []models.RawEvent
	for _, we := range widgetEvents {
		if we.Name.Text == "" {
			continue
		}

		event := models.RawEvent{
			Title:        we.Name.Text,
			Description:  we.Summary,
			Timezone:     we.Start.Timezone,
			VenueName:    we.Venue.Name,
			VenueAddress: we.Venue.Address.Address1,
			VenueCity:    we.Venue.Address.City,
			VenueState:   we.Venue.Address.Region,
			VenueZip:     we.Venue.Address.PostalCode,
			TicketURL:    we.URL,
		}

		// The platform emits both a UTC instant and a venue-local reading;
		// the local one is authoritative and needs no conversion
		if we.Start.Local != "" {
			event.StartRaw = we.Start.Local
		} else {
			event.StartRaw = we.Start.UTC
		}
		if we.End.Local != "" {
			event.EndRaw = we.End.Local
		} else {
			event.EndRaw = we.End.UTC
		}

		if we.Logo.URL != "" {
			event.ImageURLs = []string{we.Logo.URL}
		}

		if we.TicketAvailability.IsFree {
			event.Price = "Free"
		} else {
			event.Price = we.TicketAvailability.MinimumTicketPrice.Display
		}

		events = append(events, event)
	}
	return events
}

// extractEmbeddedJSON locates `marker = {...}` in page markup and returns
// the balanced JSON object, respecting strings and escapes
func extractEmbeddedJSON(content, marker string) string {
	idx := strings.Index(content, marker)
	if idx < 0 {
		return ""
	}

	rest := content[idx+len(marker):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[eq+1:])
	if !strings.HasPrefix(rest, "{") {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i, r := range rest {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return rest[:i+1]
				}
			}
		}
	}
	return ""
}
