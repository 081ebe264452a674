package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"live-events-scraper/internal/models"
)

// SourceDocument is one fetched document plus what the source config
// knows about it. It lives for exactly one pipeline invocation.
type SourceDocument struct {
	Content   string
	SourceURL string
	// ContentTypeHint is the Content-Type the fetch reported, when known
	ContentTypeHint string
	// Timezone is the venue/source IANA zone used as the normalization
	// default for values that carry no zone of their own
	Timezone string
	// TreatZAsLocal is set for sources known to append a bogus Z to
	// venue-local datetimes
	TreatZAsLocal bool
}

// PipelineResult reports what one invocation did, for logs and the
// Lambda run summary
type PipelineResult struct {
	RunID            string        `json:"run_id"`
	SourceURL        string        `json:"source_url"`
	ExtractionMethod string        `json:"extraction_method,omitempty"`
	RawEventCount    int           `json:"raw_event_count"`
	SkippedProcessed int           `json:"skipped_processed"`
	SkippedDuplicate int           `json:"skipped_duplicate"`
	SkippedIdentity  int           `json:"skipped_identity"`
	Event            *models.Event `json:"event,omitempty"`
	ProcessingMS     int64         `json:"processing_ms"`
}

// Pipeline is the extraction-and-identity core: one invocation in, zero
// or one normalized event out. It owns no persistence; the ledger and
// catalog search are external collaborators.
type Pipeline struct {
	dispatcher *ExtractorDispatcher
	normalizer *DateTimeNormalizer
	finder     *ImageCandidateFinder
	vision     *VisionProcessor
	ledger     ProcessedLedger
	matcher    *DuplicateMatcher
}

// NewPipeline wires the pipeline over its collaborators
func NewPipeline(dispatcher *ExtractorDispatcher, vision *VisionProcessor, ledger ProcessedLedger, matcher *DuplicateMatcher) *Pipeline {
	return &Pipeline{
		dispatcher: dispatcher,
		normalizer: NewDateTimeNormalizer(),
		finder:     NewImageCandidateFinder(),
		vision:     vision,
		ledger:     ledger,
		matcher:    matcher,
	}
}

// Process runs one bounded unit of work: dispatch, extract, normalize,
// dedup, emit at most one event. An empty result is normal steady state,
// not a failure; only ledger errors surface.
func (p *Pipeline) Process(ctx context.Context, doc SourceDocument) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{
		RunID:     uuid.NewString(),
		SourceURL: doc.SourceURL,
	}

	rawEvents, extractor := p.dispatcher.Dispatch(ctx, doc.Content, doc.SourceURL)
	if extractor != nil {
		result.ExtractionMethod = extractor.Name()
	}

	if len(rawEvents) == 0 {
		rawEvents = p.visionFallback(ctx, doc, extractor)
		if len(rawEvents) > 0 {
			result.ExtractionMethod = models.MethodVision
		}
	}

	result.RawEventCount = len(rawEvents)
	if len(rawEvents) == 0 {
		result.ProcessingMS = time.Since(start).Milliseconds()
		return result, nil
	}

	for _, raw := range rawEvents {
		event := p.buildEvent(raw, doc, result.ExtractionMethod)
		if event.Title == "" {
			continue
		}

		eventID := models.GenerateEventID(event.Title, event.StartDate, event.Venue.Name)
		if eventID == "" {
			// No stable identity without title and date; cannot dedup,
			// cannot emit
			result.SkippedIdentity++
			continue
		}

		processed, err := p.ledger.IsProcessed(ctx, eventID, models.ScopeEvent)
		if err != nil {
			return result, fmt.Errorf("ledger check failed: %w", err)
		}
		if processed {
			result.SkippedProcessed++
			continue
		}

		if p.matcher != nil {
			duplicate, err := p.matcher.FindDuplicate(ctx, event.Title, event.StartDate, event.Venue.Name)
			if err != nil {
				// Degraded search loses dedup against stored events for
				// this run, nothing else
				log.Printf("Duplicate search degraded for %s: %v", doc.SourceURL, err)
			} else if duplicate != nil {
				result.SkippedDuplicate++
				continue
			}
		}

		if err := p.ledger.MarkProcessed(ctx, eventID, models.ScopeEvent); err != nil {
			return result, fmt.Errorf("ledger mark failed: %w", err)
		}

		event.ID = eventID
		result.Event = &event
		break
	}

	result.ProcessingMS = time.Since(start).Milliseconds()
	return result, nil
}

// visionFallback substitutes image extraction when no textual extractor
// produced events: the matched extractor's own candidates when it exposes
// them, a finder pass over the page when nothing claimed it at all.
func (p *Pipeline) visionFallback(ctx context.Context, doc SourceDocument, extractor FormatExtractor) []models.RawEvent {
	if p.vision == nil {
		return nil
	}

	var candidates []models.ImageCandidate
	if provider, ok := extractor.(ImageCandidateProvider); ok {
		candidates = provider.ImageCandidates(doc.Content, doc.SourceURL)
	} else if extractor == nil {
		candidates = p.finder.FindCandidates(doc.Content, doc.SourceURL)
	}

	if len(candidates) == 0 {
		return nil
	}

	return p.vision.ProcessCandidates(ctx, doc.SourceURL, candidates)
}

// buildEvent normalizes one raw record into a canonical event, enforcing
// the field invariants: ISO dates, 24-hour times, validated IANA zone,
// sanitized text, absolute URLs
func (p *Pipeline) buildEvent(raw models.RawEvent, doc SourceDocument, method string) models.Event {
	// Only known method names go on the record itself
	if !models.ValidExtractionMethod(method) {
		method = ""
	}

	zone := raw.Timezone
	if zone == "" {
		zone = doc.Timezone
	}
	treatZAsLocal := raw.TreatZAsLocal || doc.TreatZAsLocal

	startNorm := p.normalizer.Normalize(DateTimeInput{
		Raw:           raw.StartRaw,
		Date:          raw.StartDate,
		Time:          raw.StartTime,
		Zone:          zone,
		TreatZAsLocal: treatZAsLocal,
	})
	endNorm := p.normalizer.Normalize(DateTimeInput{
		Raw:           raw.EndRaw,
		Date:          raw.EndDate,
		Time:          raw.EndTime,
		Zone:          zone,
		TreatZAsLocal: treatZAsLocal,
	})

	event := models.Event{
		Title:       models.SanitizeText(raw.Title),
		Description: models.SanitizeText(raw.Description),
		StartDate:   startNorm.Date,
		StartTime:   startNorm.Time,
		EndDate:     endNorm.Date,
		EndTime:     endNorm.Time,
		Venue: models.Venue{
			Name:    models.SanitizeText(raw.VenueName),
			Address: models.SanitizeText(raw.VenueAddress),
			City:    models.SanitizeText(raw.VenueCity),
			State:   models.SanitizeText(raw.VenueState),
			Zip:     strings.TrimSpace(raw.VenueZip),
		},
		VenueTimezone:    startNorm.Timezone,
		TicketURL:        resolveAgainstSource(raw.TicketURL, doc.SourceURL),
		Price:            models.CoercePrice(raw.Price),
		Performer:        models.SanitizeText(raw.Performer),
		ExtractionMethod: method,
		SourceURL:        doc.SourceURL,
		ScrapedAt:        time.Now().UTC(),
	}

	for _, imageURL := range raw.ImageURLs {
		if resolved := resolveAgainstSource(imageURL, doc.SourceURL); resolved != "" && models.IsValidImageURL(resolved) {
			event.ImageURLs = append(event.ImageURLs, resolved)
		}
	}

	// Malformed values reset to empty rather than propagate
	if !models.ValidDate(event.StartDate) {
		event.StartDate = ""
	}
	if !models.ValidTime(event.StartTime) {
		event.StartTime = ""
	}
	if !models.ValidDate(event.EndDate) {
		event.EndDate = ""
	}
	if !models.ValidTime(event.EndTime) {
		event.EndTime = ""
	}

	return event
}

// resolveAgainstSource makes a possibly-relative URL absolute against the
// source page URL, dropping anything unresolvable
func resolveAgainstSource(href, sourceURL string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return ref.String()
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
