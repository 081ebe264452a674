package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/MusicEvent" class="event">
  <span itemprop="name">Jazz Night</span>
  <time itemprop="startDate" datetime="2025-06-01T20:00:00-05:00">June 1</time>
  <div itemprop="location" itemscope itemtype="https://schema.org/MusicVenue">
    <span itemprop="name">The Blue Note</span>
  </div>
  <a itemprop="url" href="/events/jazz-night">Details</a>
</div>
</body></html>`

const heuristicPage = `<html><body>
<ul>
  <li class="event-item">
    <h3>Record Fair</h3>
    <span class="date">June 14, 2025</span>
    <span class="venue">Parking Lot B</span>
    <span class="price">Free</span>
    <a href="/events/record-fair">More</a>
  </li>
</ul>
</body></html>`

func TestHTMLCalendar_Microdata(t *testing.T) {
	extractor := NewHTMLCalendarExtractor(NewFetchClient())

	if !extractor.CanHandle(microdataPage, "https://venue.com/calendar") {
		t.Fatal("expected extractor to claim microdata page")
	}

	events := extractor.Extract(context.Background(), microdataPage, "https://venue.com/calendar")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.Title != "Jazz Night" {
		t.Errorf("unexpected title: %s", event.Title)
	}
	if event.StartRaw != "2025-06-01T20:00:00-05:00" {
		t.Errorf("datetime attribute must win, got %s", event.StartRaw)
	}
	if event.VenueName != "The Blue Note" {
		t.Errorf("unexpected venue: %s", event.VenueName)
	}
	if event.TicketURL != "/events/jazz-night" {
		t.Errorf("unexpected URL: %s", event.TicketURL)
	}
}

func TestHTMLCalendar_HeuristicContainers(t *testing.T) {
	extractor := NewHTMLCalendarExtractor(NewFetchClient())

	if !extractor.CanHandle(heuristicPage, "https://venue.com/calendar") {
		t.Fatal("expected extractor to claim event-class markup")
	}

	events := extractor.Extract(context.Background(), heuristicPage, "https://venue.com/calendar")
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	event := events[0]
	if event.Title != "Record Fair" {
		t.Errorf("unexpected title: %s", event.Title)
	}
	if event.StartRaw != "June 14, 2025" {
		t.Errorf("unexpected date text: %s", event.StartRaw)
	}
	if event.VenueName != "Parking Lot B" {
		t.Errorf("unexpected venue: %s", event.VenueName)
	}
}

func TestHTMLCalendar_CrawlCeiling(t *testing.T) {
	var pagesServed int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := atomic.AddInt32(&pagesServed, 1)
		// Artificially unbounded chain of next links
		fmt.Fprintf(w, `<html><body>
			<div class="event"><h3>Show %d</h3><span class="date">2025-06-%02d</span></div>
			<a rel="next" href="/page/%d">Next</a>
		</body></html>`, page, (page%28)+1, page+1)
	}))
	defer server.Close()

	firstPage := fmt.Sprintf(`<html><body>
		<div class="event"><h3>Show 0</h3><span class="date">2025-06-01</span></div>
		<a rel="next" href="%s/page/1">Next</a>
	</body></html>`, server.URL)

	extractor := NewHTMLCalendarExtractor(NewFetchClient())
	events := extractor.Extract(context.Background(), firstPage, server.URL+"/page/0")

	if got := atomic.LoadInt32(&pagesServed); got != maxCalendarPages-1 {
		t.Errorf("expected %d crawled pages, got %d", maxCalendarPages-1, got)
	}
	if len(events) != maxCalendarPages {
		t.Errorf("expected %d events across the crawl, got %d", maxCalendarPages, len(events))
	}
}

func TestHTMLCalendar_CycleDetection(t *testing.T) {
	var pagesServed int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pagesServed, 1)
		// Points back at the entry page: the visited set must stop the loop
		fmt.Fprintf(w, `<html><body>
			<div class="event"><h3>Looped Show</h3><span class="date">2025-06-02</span></div>
			<a rel="next" href="/start">Next</a>
		</body></html>`)
	}))
	defer server.Close()

	firstPage := fmt.Sprintf(`<html><body>
		<div class="event"><h3>Show 0</h3><span class="date">2025-06-01</span></div>
		<a rel="next" href="%s/loop">Next</a>
	</body></html>`, server.URL)

	extractor := NewHTMLCalendarExtractor(NewFetchClient())
	events := extractor.Extract(context.Background(), firstPage, server.URL+"/start")

	if got := atomic.LoadInt32(&pagesServed); got != 1 {
		t.Errorf("expected exactly 1 crawled page, got %d", got)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestHTMLCalendar_DoesNotClaimPlainPages(t *testing.T) {
	extractor := NewHTMLCalendarExtractor(NewFetchClient())
	if extractor.CanHandle("<html><body><p>About our venue</p></body></html>", "https://venue.com/about") {
		t.Error("must not claim pages without event markup")
	}
}
