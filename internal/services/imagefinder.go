package services

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"live-events-scraper/internal/models"
)

// Signal weights for flyer-likelihood scoring. Each category contributes
// at most once; the first matching term within a category wins.
const (
	weightFlyerVocabulary  = 30
	weightEventVocabulary  = 20
	weightLargeDimensions  = 25 // >= 600x400
	weightMediumDimensions = 15 // >= 400x300
	weightEventAncestor    = 15
	weightNearbyDateText   = 15
	weightLinkWrapped      = 10
	weightTicketLink       = 10 // on top of weightLinkWrapped

	penaltyChromeVocabulary = 40 // logo/icon/avatar/nav/thumbnail
	penaltyTinyDimensions   = 40 // below 200x150
	penaltyChromeAncestor   = 40 // header/footer/nav/aside

	// MinImageScore is the floor a candidate must reach to surface at all
	MinImageScore = 40

	// MaxImageCandidates bounds the returned list
	MaxImageCandidates = 5
)

var (
	flyerVocabulary  = []string{"flyer", "poster", "showcard", "gig", "billboard"}
	eventVocabulary  = []string{"event", "show", "concert", "calendar", "lineup", "performance"}
	chromeVocabulary = []string{"logo", "icon", "avatar", "nav", "thumb", "thumbnail", "badge", "sprite"}

	ticketPathVocabulary = []string{"ticket", "event", "show", "rsvp"}

	monthDayRe = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}\b`)
	meridiemRe = regexp.MustCompile(`(?i)\b\d{1,2}(:\d{2})?\s*(am|pm)\b`)
)

// ImageCandidateFinder scores images in arbitrary HTML for how likely
// they are to be event flyers or posters.
type ImageCandidateFinder struct{}

// NewImageCandidateFinder creates a new image candidate finder
func NewImageCandidateFinder() *ImageCandidateFinder {
	return &ImageCandidateFinder{}
}

// FindCandidates parses the page, scores every image, and returns
// candidates at or above MinImageScore, sorted by descending score and
// capped at MaxImageCandidates. Malformed HTML yields nil, not an error.
func (f *ImageCandidateFinder) FindCandidates(content, pageURL string) []models.ImageCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var candidates []models.ImageCandidate
	seen := make(map[string]bool)

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			src, _ = sel.Attr("data-src")
		}
		resolved := resolveImageURL(src, base)
		if resolved == "" || seen[resolved] {
			return
		}

		width := parseDimension(sel, "width")
		height := parseDimension(sel, "height")
		alt, _ := sel.Attr("alt")

		score := f.scoreImage(sel, resolved, width, height)
		if score < MinImageScore {
			return
		}

		seen[resolved] = true
		candidates = append(candidates, models.ImageCandidate{
			URL:    resolved,
			Score:  score,
			Width:  width,
			Height: height,
			Alt:    strings.TrimSpace(alt),
		})
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > MaxImageCandidates {
		candidates = candidates[:MaxImageCandidates]
	}
	return candidates
}

// scoreImage accumulates signal weights for one image. The score floors
// at zero.
func (f *ImageCandidateFinder) scoreImage(sel *goquery.Selection, resolvedURL string, width, height int) int {
	score := 0

	alt, _ := sel.Attr("alt")
	class, _ := sel.Attr("class")
	haystack := strings.ToLower(alt + " " + resolvedURL + " " + class)

	if containsAny(haystack, flyerVocabulary) {
		score += weightFlyerVocabulary
	}
	if containsAny(haystack, eventVocabulary) {
		score += weightEventVocabulary
	}

	// Size tiers: large, medium, or a penalty below the floor. Mutually
	// exclusive; images without declared dimensions score neutral here.
	switch {
	case width >= 600 && height >= 400:
		score += weightLargeDimensions
	case width >= 400 && height >= 300:
		score += weightMediumDimensions
	case width > 0 && height > 0 && (width < 200 || height < 150):
		score -= penaltyTinyDimensions
	}

	if sel.Closest(`[class*="event"], [id*="event"], [itemtype*="Event"]`).Length() > 0 {
		score += weightEventAncestor
	}

	nearby := sel.Parent().Text()
	if monthDayRe.MatchString(nearby) || meridiemRe.MatchString(nearby) {
		score += weightNearbyDateText
	}

	if link := sel.Closest("a"); link.Length() > 0 {
		score += weightLinkWrapped
		if href, ok := link.Attr("href"); ok && containsAny(strings.ToLower(href), ticketPathVocabulary) {
			score += weightTicketLink
		}
	}

	if containsAny(haystack, chromeVocabulary) {
		score -= penaltyChromeVocabulary
	}
	if sel.Closest("header, footer, nav, aside").Length() > 0 {
		score -= penaltyChromeAncestor
	}

	if score < 0 {
		score = 0
	}
	return score
}

// resolveImageURL resolves protocol-relative, absolute-path, and relative
// image references against the page URL.
func resolveImageURL(src string, base *url.URL) string {
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return ""
	}

	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}

	if ref.IsAbs() {
		return ref.String()
	}
	if base == nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func parseDimension(sel *goquery.Selection, attr string) int {
	value, ok := sel.Attr(attr)
	if !ok {
		return 0
	}
	value = strings.TrimSuffix(strings.TrimSpace(value), "px")
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
