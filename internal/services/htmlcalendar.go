package services

import (
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"live-events-scraper/internal/models"
)

// maxCalendarPages bounds the month-forward crawl for one extraction
// call: at most 12 pages, roughly a year of monthly calendar views
const maxCalendarPages = 12

// HTMLCalendarExtractor extracts events from bespoke HTML calendar markup:
// Schema.org microdata when present, heuristic event-class containers
// otherwise. It follows "next" pagination links up to a fixed ceiling.
type HTMLCalendarExtractor struct {
	fetcher *FetchClient
}

// NewHTMLCalendarExtractor creates a new HTML calendar extractor
func NewHTMLCalendarExtractor(fetcher *FetchClient) *HTMLCalendarExtractor {
	return &HTMLCalendarExtractor{fetcher: fetcher}
}

func (e *HTMLCalendarExtractor) Name() string {
	return models.MethodHTMLCalendar
}

// CanHandle probes for event-shaped markup: Event microdata or
// event-class containers alongside date markup
func (e *HTMLCalendarExtractor) CanHandle(content, sourceURL string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}

	if doc.Find(`[itemtype*="Event"]`).Length() > 0 {
		return true
	}

	containers := doc.Find(`.event, .event-item, .event-listing, article[class*="event"], li[class*="event"], div[class*="event-"]`)
	return containers.Length() > 0 && doc.Find("time[datetime], .date, .event-date").Length() > 0
}

// Extract parses the page and crawls forward through pagination links.
// The visited set is local to this call, never process-wide.
func (e *HTMLCalendarExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	visited := map[string]bool{sourceURL: true}
	return e.crawl(ctx, content, sourceURL, visited, maxCalendarPages)
}

// crawl extracts one page, then follows its next link while pages remain
// under the ceiling
func (e *HTMLCalendarExtractor) crawl(ctx context.Context, content, pageURL string, visited map[string]bool, remaining int) []models.RawEvent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	events := e.extractMicrodata(doc)
	if len(events) == 0 {
		events = e.extractHeuristic(doc)
	}

	if remaining <= 1 {
		return events
	}

	nextURL := e.findNextLink(doc, pageURL)
	if nextURL == "" || visited[nextURL] {
		return events
	}
	visited[nextURL] = true

	body, err := e.fetcher.Fetch(ctx, nextURL)
	if err != nil {
		log.Printf("Calendar pagination fetch failed for %s: %v", nextURL, err)
		return events
	}

	return append(events, e.crawl(ctx, string(body), nextURL, visited, remaining-1)...)
}

// extractMicrodata maps Schema.org Event microdata nodes
func (e *HTMLCalendarExtractor) extractMicrodata(doc *goquery.Document) []models.RawEvent {
	var events []models.RawEvent

	doc.Find(`[itemscope][itemtype*="Event"]`).Each(func(_ int, sel *goquery.Selection) {
		event := models.RawEvent{
			Title:    itempropValue(sel, "name"),
			StartRaw: itempropValue(sel, "startDate"),
			EndRaw:   itempropValue(sel, "endDate"),
			Price:    itempropValue(sel, "price"),
		}
		if event.Title == "" {
			return
		}

		location := sel.Find(`[itemprop="location"]`).First()
		if location.Length() > 0 {
			event.VenueName = itempropValue(location, "name")
			if event.VenueName == "" {
				event.VenueName = strings.TrimSpace(location.Text())
			}
			event.VenueAddress = itempropValue(location, "address")
		}

		if href, ok := sel.Find(`a[itemprop="url"]`).First().Attr("href"); ok {
			event.TicketURL = href
		}

		events = append(events, event)
	})

	return events
}

// extractHeuristic maps bespoke event-class containers without microdata
func (e *HTMLCalendarExtractor) extractHeuristic(doc *goquery.Document) []models.RawEvent {
	var events []models.RawEvent

	doc.Find(`.event, .event-item, .event-listing, article[class*="event"], li[class*="event"]`).Each(func(_ int, sel *goquery.Selection) {
		title := firstText(sel, "h1, h2, h3, h4, .title, .event-title")
		if title == "" {
			return
		}

		event := models.RawEvent{
			Title:     title,
			VenueName: firstText(sel, ".venue, .location, .event-venue"),
			Price:     firstText(sel, ".price, .event-price"),
		}

		// Prefer the machine-readable datetime attribute over display text
		if datetime, ok := sel.Find("time[datetime]").First().Attr("datetime"); ok {
			event.StartRaw = datetime
		} else {
			event.StartRaw = firstText(sel, ".date, .event-date, time")
		}

		if href, ok := sel.Find("a").First().Attr("href"); ok {
			event.TicketURL = href
		}

		events = append(events, event)
	})

	return events
}

// findNextLink locates a forward pagination link and resolves it against
// the current page URL
func (e *HTMLCalendarExtractor) findNextLink(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	var href string
	selectors := []string{
		`a[rel="next"]`,
		"a.next",
		`a[class*="next"]`,
	}
	for _, selector := range selectors {
		if value, ok := doc.Find(selector).First().Attr("href"); ok && value != "" {
			href = value
			break
		}
	}
	if href == "" {
		doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(sel.Text()))
			if text == "next" || text == "next month" || text == "next »" || text == "»" {
				href, _ = sel.Attr("href")
				return false
			}
			return true
		})
	}
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func itempropValue(sel *goquery.Selection, prop string) string {
	node := sel.Find(`[itemprop="` + prop + `"]`).First()
	if node.Length() == 0 {
		return ""
	}
	if content, ok := node.Attr("content"); ok && content != "" {
		return strings.TrimSpace(content)
	}
	if datetime, ok := node.Attr("datetime"); ok && datetime != "" {
		return strings.TrimSpace(datetime)
	}
	return strings.TrimSpace(node.Text())
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}
