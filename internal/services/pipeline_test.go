package services

import (
	"context"
	"strings"
	"testing"

	"live-events-scraper/internal/models"
)

// stubProviderExtractor claims content but yields only image candidates,
// the way flyer-only sources do
type stubProviderExtractor struct {
	stubExtractor
	candidates []models.ImageCandidate
}

func (s *stubProviderExtractor) ImageCandidates(content, sourceURL string) []models.ImageCandidate {
	return s.candidates
}

func textPipeline(events []models.RawEvent) (*Pipeline, *MemoryLedger) {
	extractor := &stubExtractor{name: "stub", claims: true, events: events}
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{extractor})
	ledger := NewMemoryLedger()
	return NewPipeline(dispatcher, nil, ledger, nil), ledger
}

func TestPipeline_ProcessEmitsNormalizedEvent(t *testing.T) {
	raw := models.RawEvent{
		Title:     "Jazz <b>Night</b>",
		StartRaw:  "2025-06-01T20:00:00",
		VenueName: "The Blue Note",
		Price:     "15",
		TicketURL: "/tickets/jazz-night",
	}
	pipeline, ledger := textPipeline([]models.RawEvent{raw})

	result, err := pipeline.Process(context.Background(), SourceDocument{
		Content:   "page",
		SourceURL: "https://venue.com/shows",
		Timezone:  "America/Chicago",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Event == nil {
		t.Fatalf("expected an emitted event, got %+v", result)
	}
	event := result.Event
	if event.Title != "Jazz Night" {
		t.Errorf("title must be sanitized, got %q", event.Title)
	}
	if event.StartDate != "2025-06-01" || event.StartTime != "20:00" {
		t.Errorf("unexpected start: %s %s", event.StartDate, event.StartTime)
	}
	if event.VenueTimezone != "America/Chicago" {
		t.Errorf("unexpected timezone: %s", event.VenueTimezone)
	}
	if event.Price != "$15" {
		t.Errorf("unexpected price: %s", event.Price)
	}
	if event.TicketURL != "https://venue.com/tickets/jazz-night" {
		t.Errorf("ticket URL must resolve against the source, got %s", event.TicketURL)
	}
	if !strings.HasPrefix(event.ID, "evt_") {
		t.Errorf("unexpected event ID: %s", event.ID)
	}
	if result.ExtractionMethod != "stub" {
		t.Errorf("unexpected extraction method: %s", result.ExtractionMethod)
	}

	processed, _ := ledger.IsProcessed(context.Background(), event.ID, models.ScopeEvent)
	if !processed {
		t.Error("emitted event must be marked in the ledger")
	}
}

func TestPipeline_SecondRunSkipsProcessed(t *testing.T) {
	raw := models.RawEvent{Title: "Jazz Night", StartRaw: "2025-06-01", VenueName: "The Blue Note"}
	pipeline, _ := textPipeline([]models.RawEvent{raw})
	doc := SourceDocument{Content: "page", SourceURL: "https://venue.com/shows"}

	first, err := pipeline.Process(context.Background(), doc)
	if err != nil || first.Event == nil {
		t.Fatalf("first run must emit: %+v, %v", first, err)
	}

	second, err := pipeline.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Event != nil {
		t.Errorf("second run must not re-emit, got %+v", second.Event)
	}
	if second.SkippedProcessed != 1 {
		t.Errorf("expected 1 skipped as processed, got %d", second.SkippedProcessed)
	}
}

func TestPipeline_FirstEligibleOnly(t *testing.T) {
	raws := []models.RawEvent{
		{Title: "Early Show", StartRaw: "2025-06-01"},
		{Title: "Late Show", StartRaw: "2025-06-01"},
	}
	pipeline, ledger := textPipeline(raws)

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Event == nil || result.Event.Title != "Early Show" {
		t.Fatalf("expected the first eligible event, got %+v", result.Event)
	}
	if result.RawEventCount != 2 {
		t.Errorf("expected 2 raw events counted, got %d", result.RawEventCount)
	}

	// One bounded unit of work: the later raw event stays untouched
	lateID := models.GenerateEventID("Late Show", "2025-06-01", "")
	processed, _ := ledger.IsProcessed(context.Background(), lateID, models.ScopeEvent)
	if processed {
		t.Error("events past the first eligible must not be marked")
	}
}

func TestPipeline_DuplicateSkippedWithoutMarking(t *testing.T) {
	raw := models.RawEvent{Title: "Jazz Night", StartRaw: "2025-06-01", VenueName: "The Blue Note"}
	extractor := &stubExtractor{name: "stub", claims: true, events: []models.RawEvent{raw}}
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{extractor})
	ledger := NewMemoryLedger()
	search := &fakeEventSearch{byVenueAndDate: []models.StoredEventSummary{storedJazzNight}}
	pipeline := NewPipeline(dispatcher, nil, ledger, NewDuplicateMatcher(search))

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Event != nil {
		t.Errorf("duplicate must not emit, got %+v", result.Event)
	}
	if result.SkippedDuplicate != 1 {
		t.Errorf("expected 1 skipped duplicate, got %d", result.SkippedDuplicate)
	}

	// Unmarked so a corrected stored record can pick it up later
	eventID := models.GenerateEventID("Jazz Night", "2025-06-01", "The Blue Note")
	processed, _ := ledger.IsProcessed(context.Background(), eventID, models.ScopeEvent)
	if processed {
		t.Error("skipped duplicates must not be marked in the ledger")
	}
}

func TestPipeline_MissingDateSkipsIdentity(t *testing.T) {
	raw := models.RawEvent{Title: "Jazz Night", VenueName: "The Blue Note"}
	pipeline, _ := textPipeline([]models.RawEvent{raw})

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Event != nil {
		t.Errorf("event without a date has no identity and must not emit, got %+v", result.Event)
	}
	if result.SkippedIdentity != 1 {
		t.Errorf("expected 1 skipped for missing identity, got %d", result.SkippedIdentity)
	}
}

func TestPipeline_VisionFallbackWhenNothingClaims(t *testing.T) {
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{
		&stubExtractor{name: "stub", claims: false},
	})
	ledger := NewMemoryLedger()
	vision := NewVisionProcessor(&fakeVisionModel{response: oneEventResponse}, &fakeDownloader{}, ledger, nil)
	pipeline := NewPipeline(dispatcher, vision, ledger, nil)

	page := `<html><body>
		<img src="https://venue.com/images/june-show-flyer.jpg" width="800" height="600" alt="June events">
	</body></html>`

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: page, SourceURL: "https://venue.com/shows"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExtractionMethod != models.MethodVision {
		t.Errorf("expected vision fallback, got %q", result.ExtractionMethod)
	}
	if result.Event == nil || result.Event.Title != "Jazz Night" {
		t.Fatalf("expected the flyer-read event, got %+v", result.Event)
	}
	if result.Event.StartDate != "2025-06-01" || result.Event.StartTime != "20:00" {
		t.Errorf("unexpected start: %s %s", result.Event.StartDate, result.Event.StartTime)
	}
}

func TestPipeline_ProviderCandidatesFeedVision(t *testing.T) {
	provider := &stubProviderExtractor{
		stubExtractor: stubExtractor{name: models.MethodVision, claims: true},
		candidates:    []models.ImageCandidate{{URL: "https://venue.com/flyer.jpg", Score: 80}},
	}
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{provider})
	ledger := NewMemoryLedger()
	downloader := &fakeDownloader{}
	vision := NewVisionProcessor(&fakeVisionModel{response: oneEventResponse}, downloader, ledger, nil)
	pipeline := NewPipeline(dispatcher, vision, ledger, nil)

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Event == nil || result.Event.Title != "Jazz Night" {
		t.Fatalf("expected event from provider candidates, got %+v", result.Event)
	}
	if len(downloader.fetched) != 1 || downloader.fetched[0] != "https://venue.com/flyer.jpg" {
		t.Errorf("expected the provider's candidate downloaded, got %v", downloader.fetched)
	}
}

func TestPipeline_EventMethodValidated(t *testing.T) {
	raw := models.RawEvent{Title: "Jazz Night", StartRaw: "2025-06-01"}

	extractor := &stubExtractor{name: models.MethodJSONLD, claims: true, events: []models.RawEvent{raw}}
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{extractor})
	pipeline := NewPipeline(dispatcher, nil, NewMemoryLedger(), nil)

	result, err := pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil || result.Event == nil {
		t.Fatalf("expected an emitted event: %+v, %v", result, err)
	}
	if result.Event.ExtractionMethod != models.MethodJSONLD {
		t.Errorf("expected method %s on the record, got %q", models.MethodJSONLD, result.Event.ExtractionMethod)
	}

	// An unrecognized method name never lands on the emitted record
	unknown := &stubExtractor{name: "experimental", claims: true, events: []models.RawEvent{raw}}
	pipeline = NewPipeline(NewExtractorDispatcherWithExtractors([]FormatExtractor{unknown}), nil, NewMemoryLedger(), nil)

	result, err = pipeline.Process(context.Background(), SourceDocument{Content: "page", SourceURL: "https://venue.com"})
	if err != nil || result.Event == nil {
		t.Fatalf("expected an emitted event: %+v, %v", result, err)
	}
	if result.Event.ExtractionMethod != "" {
		t.Errorf("unknown method must reset to empty, got %q", result.Event.ExtractionMethod)
	}
}

func TestPipeline_EmptyResultIsNormal(t *testing.T) {
	dispatcher := NewExtractorDispatcherWithExtractors([]FormatExtractor{
		&stubExtractor{name: "stub", claims: false},
	})
	pipeline := NewPipeline(dispatcher, nil, NewMemoryLedger(), nil)

	result, err := pipeline.Process(context.Background(), SourceDocument{
		Content:   "<html><body><p>About us</p></body></html>",
		SourceURL: "https://venue.com/about",
	})
	if err != nil {
		t.Fatalf("unrecognized content is not an error: %v", err)
	}
	if result.Event != nil || result.RawEventCount != 0 || result.ExtractionMethod != "" {
		t.Errorf("expected an empty result, got %+v", result)
	}
	if result.RunID == "" {
		t.Error("every invocation gets a run ID")
	}
}
