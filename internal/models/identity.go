package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	bracketedRe  = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)

	// supportMarkers split a billing into headliner and support acts.
	// Matched case-insensitively; everything after the first marker drops.
	supportMarkers = []string{
		" w/ ",
		" with ",
		" feat. ",
		" featuring ",
		" ft. ",
		" plus ",
		" + ",
	}

	// tourSeparators may introduce a tour name; the tail drops only when
	// it actually reads like one
	tourSeparators = []string{" - ", " – ", ": "}

	leadingArticles = []string{"the ", "a ", "an "}
)

// CoreTitle reduces an event billing to its stable core: HTML entities
// decoded, bracketed annotations and support-act qualifiers removed, tour
// names stripped, casefolded, whitespace collapsed. Two listings of the
// same show from different sources reduce to the same core.
func CoreTitle(title string) string {
	cleaned := html.UnescapeString(title)
	cleaned = bracketedRe.ReplaceAllString(cleaned, " ")

	lower := strings.ToLower(cleaned)
	for _, marker := range supportMarkers {
		if idx := strings.Index(lower, marker); idx >= 0 {
			cleaned = cleaned[:idx]
			lower = lower[:idx]
		}
	}

	// A dash or colon segment drops only when the tail names a tour;
	// "Drum - Bass Collective" keeps its dash
	for _, sep := range tourSeparators {
		if idx := strings.Index(cleaned, sep); idx >= 0 {
			tail := strings.ToLower(cleaned[idx+len(sep):])
			if strings.Contains(tail, "tour") {
				cleaned = cleaned[:idx]
			}
		}
	}

	cleaned = strings.ToLower(cleaned)
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// NormalizeVenueName reduces a venue name for identity and matching:
// entities decoded, parenthetical and dash room qualifiers removed,
// leading articles dropped, casefolded, whitespace collapsed
func NormalizeVenueName(venue string) string {
	cleaned := html.UnescapeString(venue)
	cleaned = bracketedRe.ReplaceAllString(cleaned, " ")

	// "The Fillmore - Poster Room" names the same building
	if idx := strings.Index(cleaned, " - "); idx >= 0 {
		cleaned = cleaned[:idx]
	}

	cleaned = strings.ToLower(cleaned)
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	for _, article := range leadingArticles {
		if strings.HasPrefix(cleaned, article) {
			cleaned = strings.TrimSpace(cleaned[len(article):])
			break
		}
	}

	return cleaned
}

// GenerateEventID derives the stable event identifier from the
// normalized title, start date, and venue. Title and date are required;
// without both there is no usable identity and the result is empty.
func GenerateEventID(title, startDate, venueName string) string {
	core := CoreTitle(title)
	if core == "" || startDate == "" {
		return ""
	}

	input := fmt.Sprintf("%s|%s|%s", core, startDate, NormalizeVenueName(venueName))
	hash := sha256.Sum256([]byte(input))
	return "evt_" + hex.EncodeToString(hash[:])[:16]
}

// GenerateImageID derives the stable identifier for one image on one
// page, keyed by both URLs so the same image on two pages is two entries
func GenerateImageID(pageURL, imageURL string) string {
	input := fmt.Sprintf("%s|%s", pageURL, imageURL)
	hash := sha256.Sum256([]byte(input))
	return "img_" + hex.EncodeToString(hash[:])[:16]
}

// TitlesMatch reports whether two billings reduce to the same core
// title. Empty cores never match anything.
func TitlesMatch(a, b string) bool {
	coreA := CoreTitle(a)
	coreB := CoreTitle(b)
	return coreA != "" && coreA == coreB
}

// VenuesMatch reports whether two venue names normalize to the same
// venue. Empty names never match anything.
func VenuesMatch(a, b string) bool {
	normA := NormalizeVenueName(a)
	normB := NormalizeVenueName(b)
	return normA != "" && normA == normB
}
