package services

import (
	"context"
	"fmt"

	"live-events-scraper/internal/models"
)

// DuplicateMatcher performs fuzzy equivalence checks between a candidate
// event and already-stored events, via the external catalog search.
type DuplicateMatcher struct {
	search EventSearch
}

// NewDuplicateMatcher creates a duplicate matcher over a catalog search
func NewDuplicateMatcher(search EventSearch) *DuplicateMatcher {
	return &DuplicateMatcher{search: search}
}

// FindDuplicate looks for a stored event that describes the same
// real-world event as the candidate. Two tiers:
//
// Tier 1: when the candidate carries a venue, candidates are scoped to
// that venue and date, then titles are fuzzy-matched.
//
// Tier 2: when no venue is supplied or tier 1 found nothing, candidates
// are scoped by date alone. Titles are fuzzy-matched; when BOTH sides
// carry a venue the venues must also match, but a missing venue on either
// side accepts the title match. Permissive when venue data is absent,
// strict when it conflicts.
//
// Missing title or date means no duplicate is determinable.
func (m *DuplicateMatcher) FindDuplicate(ctx context.Context, title, startDate, venue string) (*models.StoredEventSummary, error) {
	if title == "" || startDate == "" {
		return nil, nil
	}

	if venue != "" {
		candidates, err := m.search.SearchByVenueAndDate(ctx, venue, startDate)
		if err != nil {
			return nil, fmt.Errorf("venue-scoped duplicate search failed: %w", err)
		}
		for i := range candidates {
			if models.TitlesMatch(title, candidates[i].Title) {
				return &candidates[i], nil
			}
		}
	}

	candidates, err := m.search.SearchByDate(ctx, startDate)
	if err != nil {
		return nil, fmt.Errorf("date-scoped duplicate search failed: %w", err)
	}

	for i := range candidates {
		if !models.TitlesMatch(title, candidates[i].Title) {
			continue
		}
		if venue != "" && candidates[i].VenueName != "" && !models.VenuesMatch(venue, candidates[i].VenueName) {
			continue
		}
		return &candidates[i], nil
	}

	return nil, nil
}
