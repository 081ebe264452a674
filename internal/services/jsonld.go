package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"live-events-scraper/internal/models"
)

// JSONLDExtractor extracts events from Schema.org JSON-LD blocks embedded
// in page markup. This is the most structured source shape and probes
// first.
type JSONLDExtractor struct{}

// NewJSONLDExtractor creates a new JSON-LD extractor
func NewJSONLDExtractor() *JSONLDExtractor {
	return &JSONLDExtractor{}
}

func (e *JSONLDExtractor) Name() string {
	return models.MethodJSONLD
}

// CanHandle probes for ld+json script blocks without parsing them
func (e *JSONLDExtractor) CanHandle(content, sourceURL string) bool {
	return strings.Contains(content, "application/ld+json")
}

// Extract parses every ld+json block and maps Schema.org Event nodes to
// raw events. Malformed blocks are skipped, never fatal.
func (e *JSONLDExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var events []models.RawEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		events = append(events, e.parseBlock(sel.Text())...)
	})
	return events
}

// parseBlock decodes one ld+json payload, which may be a single node, a
// top-level array, or a @graph wrapper.
func (e *JSONLDExtractor) parseBlock(payload string) []models.RawEvent {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	var nodes []map[string]interface{}

	if strings.HasPrefix(payload, "[") {
		var list []map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil
		}
		nodes = list
	} else {
		var node map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &node); err != nil {
			return nil
		}
		if graph, ok := node["@graph"].([]interface{}); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]interface{}); ok {
					nodes = append(nodes, m)
				}
			}
		} else {
			nodes = append(nodes, node)
		}
	}

	var events []models.RawEvent
	for _, node := range nodes {
		if !isEventNode(node) {
			continue
		}
		if event, ok := e.mapEventNode(node); ok {
			events = append(events, event)
		}
	}
	return events
}

// isEventNode checks the @type field for Schema.org event vocabulary,
// covering subtypes like MusicEvent and TheaterEvent
func isEventNode(node map[string]interface{}) bool {
	for _, t := range jsonStringList(node["@type"]) {
		if strings.Contains(strings.ToLower(t), "event") || strings.EqualFold(t, "Festival") {
			return true
		}
	}
	return false
}

// mapEventNode maps one Schema.org Event node into a RawEvent
func (e *JSONLDExtractor) mapEventNode(node map[string]interface{}) (models.RawEvent, bool) {
	event := models.RawEvent{
		Title:       jsonString(node["name"]),
		Description: jsonString(node["description"]),
		StartRaw:    jsonString(node["startDate"]),
		EndRaw:      jsonString(node["endDate"]),
		ImageURLs:   jsonStringList(node["image"]),
	}

	if event.Title == "" {
		return models.RawEvent{}, false
	}

	if location, ok := node["location"].(map[string]interface{}); ok {
		event.VenueName = jsonString(location["name"])
		switch address := location["address"].(type) {
		case string:
			event.VenueAddress = address
		case map[string]interface{}:
			event.VenueAddress = jsonString(address["streetAddress"])
			event.VenueCity = jsonString(address["addressLocality"])
			event.VenueState = jsonString(address["addressRegion"])
			event.VenueZip = jsonString(address["postalCode"])
		}
	}

	if offer := firstNode(node["offers"]); offer != nil {
		if price := jsonString(offer["price"]); price != "" {
			currency := jsonString(offer["priceCurrency"])
			if currency == "" || currency == "USD" {
				event.Price = price
			} else {
				event.Price = fmt.Sprintf("%s %s", price, currency)
			}
		}
		event.TicketURL = jsonString(offer["url"])
	}

	if performer := firstNode(node["performer"]); performer != nil {
		event.Performer = jsonString(performer["name"])
	} else {
		event.Performer = jsonString(node["performer"])
	}

	if event.TicketURL == "" {
		event.TicketURL = jsonString(node["url"])
	}

	return event, true
}

// jsonString extracts a string from a JSON value that may be a string,
// number, or ImageObject-style wrapper
func jsonString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case map[string]interface{}:
		// ImageObject / nested name holders
		if url := jsonString(v["url"]); url != "" {
			return url
		}
		return jsonString(v["name"])
	}
	return ""
}

// jsonStringList coerces a string, object, or mixed array into a list of
// strings
func jsonStringList(value interface{}) []string {
	switch v := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return []string{trimmed}
		}
	case []interface{}:
		var list []string
		for _, item := range v {
			if s := jsonString(item); s != "" {
				list = append(list, s)
			}
		}
		return list
	case map[string]interface{}:
		if s := jsonString(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

// firstNode returns the first object from a value that may be an object
// or an array of objects
func firstNode(value interface{}) map[string]interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return v
	case []interface{}:
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				return m
			}
		}
	}
	return nil
}
