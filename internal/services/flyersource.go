package services

import (
	"context"
	"net/url"
	"strings"

	"live-events-scraper/internal/models"
)

// FlyerSourceExtractor handles sources known to publish events purely as
// promotional flyer images with no textual listings. Extract always
// returns nothing; the pipeline routes its image candidates to the vision
// fallback instead.
type FlyerSourceExtractor struct {
	domains []string
	finder  *ImageCandidateFinder
}

// NewFlyerSourceExtractor creates an extractor claiming the configured
// flyer-only domains
func NewFlyerSourceExtractor(domains []string) *FlyerSourceExtractor {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		normalized = append(normalized, strings.TrimPrefix(domain, "www."))
	}
	return &FlyerSourceExtractor{
		domains: normalized,
		finder:  NewImageCandidateFinder(),
	}
}

func (e *FlyerSourceExtractor) Name() string {
	return models.MethodVision
}

// CanHandle matches the source host against the configured domain list
func (e *FlyerSourceExtractor) CanHandle(content, sourceURL string) bool {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	for _, domain := range e.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Extract always returns nothing: these sources have no textual events
func (e *FlyerSourceExtractor) Extract(ctx context.Context, content, sourceURL string) []models.RawEvent {
	return nil
}

// ImageCandidates exposes the scored flyer candidates for the vision
// fallback
func (e *FlyerSourceExtractor) ImageCandidates(content, sourceURL string) []models.ImageCandidate {
	return e.finder.FindCandidates(content, sourceURL)
}
