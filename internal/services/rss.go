package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"live-events-scraper/internal/models"
)

// RSSExtractor extracts events from RSS/Atom feeds. Feeds using the RSS
// 1.0 event module (ev: namespace) carry structured start/end/location;
// plain feeds fall back to scanning item text for a date.
type RSSExtractor struct{}

// NewRSSExtractor creates a new RSS/Atom feed extractor
func NewRSSExtractor() *RSSExtractor {
	return &RSSExtractor{}
}

func (e *RSSExtractor) Name() string {
	return models.MethodRSS
}

// CanHandle probes for a feed envelope
func (e *RSSExtractor) CanHandle(content, sourceURL string) bool {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.Contains(head, "<rss") || strings.Contains(head, "<feed") ||
		strings.Contains(head, "<rdf:RDF")
}

var textDateRe = regexp.MustCompile(`(?i)\b(\d{4}-\d{2}-\d{2}|(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4})\b`)

// Extract parses the feed and maps items to raw events. Parse failures
// yield an empty list. The parser is per-call: gofeed parsers initialize
// their translators lazily and are not safe to share across goroutines.
func (e *RSSExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	feed, err := gofeed.NewParser().ParseString(content)
	if err != nil {
		return nil
	}

	var events []models.RawEvent
	for _, item := range feed.Items {
		if item == nil || item.Title == "" {
			continue
		}

		event := models.RawEvent{
			Title:       item.Title,
			Description: item.Description,
			TicketURL:   item.Link,
		}

		if item.Image != nil && item.Image.URL != "" {
			event.ImageURLs = []string{item.Image.URL}
		}

		if ev, ok := item.Extensions["ev"]; ok {
			if values, ok := ev["startdate"]; ok && len(values) > 0 {
				event.StartRaw = values[0].Value
			}
			if values, ok := ev["enddate"]; ok && len(values) > 0 {
				event.EndRaw = values[0].Value
			}
			if values, ok := ev["location"]; ok && len(values) > 0 {
				event.VenueName = values[0].Value
			}
		}

		// Plain feeds: best-effort date scan of the item text. The item's
		// publish date is when the post went up, not when the event is, so
		// it is deliberately not used.
		if event.StartRaw == "" {
			if match := textDateRe.FindString(item.Title + " " + item.Description); match != "" {
				event.StartRaw = match
			}
		}

		events = append(events, event)
	}
	return events
}
