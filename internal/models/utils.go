package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
)

var (
	priceRe = regexp.MustCompile(`(?i)(free|\$\s?\d+(?:\.\d{2})?(?:\s?[-–]\s?\$?\d+(?:\.\d{2})?)?)`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	bareNum = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)
)

// GenerateRunID creates a unique ID for a pipeline run
func GenerateRunID(timestamp time.Time) string {
	input := fmt.Sprintf("run|%d", timestamp.UnixNano())
	hash := sha256.Sum256([]byte(input))
	return "run_" + hex.EncodeToString(hash[:])[:8]
}

// IsValidURL performs basic URL validation
func IsValidURL(url string) bool {
	if url == "" {
		return false
	}

	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// IsValidImageURL performs enhanced URL validation for images
func IsValidImageURL(url string) bool {
	if !IsValidURL(url) {
		return false
	}

	// Check for common image extensions
	imageExtensions := []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}
	urlLower := strings.ToLower(url)

	for _, ext := range imageExtensions {
		if strings.Contains(urlLower, ext) {
			return true
		}
	}

	// Allow URLs that might have query parameters or no extension (many CDNs)
	return true
}

// SanitizeText decodes HTML entities, strips residual tags, and collapses
// whitespace in free-text fields coming out of extractors
func SanitizeText(text string) string {
	cleaned := html.UnescapeString(text)
	cleaned = tagRe.ReplaceAllString(cleaned, " ")
	cleaned = whitespaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// CoercePrice extracts a displayable price from an arbitrary source value.
// Invalid or unrecognizable input degrades to empty string, never an error.
func CoercePrice(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Bare numeric values get a currency prefix
	if bareNum.MatchString(trimmed) {
		if trimmed == "0" || trimmed == "0.00" {
			return "Free"
		}
		return "$" + trimmed
	}

	if match := priceRe.FindString(trimmed); match != "" {
		if strings.EqualFold(match, "free") {
			return "Free"
		}
		return strings.ReplaceAll(match, " ", "")
	}

	return ""
}

// ValidDate reports whether a string is a well-formed YYYY-MM-DD date
func ValidDate(date string) bool {
	if date == "" {
		return false
	}
	_, err := time.Parse("2006-01-02", date)
	return err == nil
}

// ValidTime reports whether a string is a well-formed 24-hour HH:MM time
func ValidTime(t string) bool {
	if t == "" {
		return false
	}
	_, err := time.Parse("15:04", t)
	return err == nil
}

// ValidExtractionMethod checks if the extraction method is valid
func ValidExtractionMethod(method string) bool {
	validMethods := []string{
		MethodJSONLD,
		MethodPlatformWidget,
		MethodICS,
		MethodRSS,
		MethodHTMLCalendar,
		MethodVision,
	}

	for _, validMethod := range validMethods {
		if method == validMethod {
			return true
		}
	}
	return false
}
