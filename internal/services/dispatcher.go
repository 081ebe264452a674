package services

import (
	"context"
	"log"

	"live-events-scraper/internal/models"
)

// FormatExtractor is one extraction strategy for one source shape.
// CanHandle is a cheap capability probe over the already-fetched content;
// Extract must never fail on malformed input, it returns an empty list
// instead. Extractors may issue their own bounded secondary fetches.
type FormatExtractor interface {
	Name() string
	CanHandle(content, sourceURL string) bool
	Extract(ctx context.Context, content, sourceURL string) []models.RawEvent
}

// ImageCandidateProvider is implemented by extractors whose sources embed
// events as marketing images rather than text. Extract legitimately
// returns nothing for them; the pipeline feeds their candidates to the
// vision fallback instead.
type ImageCandidateProvider interface {
	ImageCandidates(content, sourceURL string) []models.ImageCandidate
}

// ExtractorDispatcher probes registered extractors in a fixed priority
// order and commits to the first positive match. It never merges results
// from multiple extractors and fetches nothing itself.
type ExtractorDispatcher struct {
	extractors []FormatExtractor
}

// NewExtractorDispatcher creates a dispatcher with the default strategy
// order: most structured formats first, generic markup last.
func NewExtractorDispatcher(fetcher *FetchClient, flyerDomains []string) *ExtractorDispatcher {
	return &ExtractorDispatcher{
		extractors: []FormatExtractor{
			NewJSONLDExtractor(),
			NewPlatformWidgetExtractor(fetcher),
			NewICSExtractor(),
			NewRSSExtractor(),
			NewHTMLCalendarExtractor(fetcher),
			NewFlyerSourceExtractor(flyerDomains),
		},
	}
}

// NewExtractorDispatcherWithExtractors creates a dispatcher with an
// explicit strategy list, used in tests
func NewExtractorDispatcherWithExtractors(extractors []FormatExtractor) *ExtractorDispatcher {
	return &ExtractorDispatcher{extractors: extractors}
}

// Extractors returns the registered strategies in probe order
func (d *ExtractorDispatcher) Extractors() []FormatExtractor {
	return d.extractors
}

// Dispatch probes each extractor in order and runs the first that claims
// the content. Returns the raw events and the matched extractor, or
// (nil, nil) when no strategy claims the document — callers treat that as
// SourceUnrecognized, not an error.
func (d *ExtractorDispatcher) Dispatch(ctx context.Context, content, sourceURL string) ([]models.RawEvent, FormatExtractor) {
	for _, extractor := range d.extractors {
		if !extractor.CanHandle(content, sourceURL) {
			continue
		}

		events := extractor.Extract(ctx, content, sourceURL)
		log.Printf("Extractor %s claimed %s: %d raw events", extractor.Name(), sourceURL, len(events))
		return events, extractor
	}

	return nil, nil
}
