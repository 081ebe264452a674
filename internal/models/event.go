package models

import "time"

// Extraction methods, recorded on every emitted event
const (
	MethodJSONLD         = "jsonld"
	MethodPlatformWidget = "platform-widget"
	MethodICS            = "ics"
	MethodRSS            = "rss"
	MethodHTMLCalendar   = "html-calendar"
	MethodVision         = "vision"
)

// Ledger scopes partition processed identifiers so event IDs and vision
// image IDs never clash
const (
	ScopeEvent       = "event"
	ScopeVisionImage = "vision-image"
)

// Event is the canonical normalized event record this pipeline emits.
// Dates are YYYY-MM-DD, times are 24-hour HH:MM, and both stay empty
// rather than hold a malformed value.
type Event struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	StartDate        string    `json:"start_date,omitempty"`
	StartTime        string    `json:"start_time,omitempty"`
	EndDate          string    `json:"end_date,omitempty"`
	EndTime          string    `json:"end_time,omitempty"`
	Venue            Venue     `json:"venue"`
	VenueTimezone    string    `json:"venue_timezone,omitempty"`
	TicketURL        string    `json:"ticket_url,omitempty"`
	Price            string    `json:"price,omitempty"`
	Performer        string    `json:"performer,omitempty"`
	ImageURLs        []string  `json:"image_urls,omitempty"`
	ExtractionMethod string    `json:"extraction_method"`
	SourceURL        string    `json:"source_url"`
	ScrapedAt        time.Time `json:"scraped_at"`
}

// Venue is where an event happens
type Venue struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// RawEvent is the loose intermediate every extractor produces. Fields
// hold whatever the source gave, unnormalized; the pipeline turns raw
// records into canonical Events. Datetime values may arrive either as a
// single raw string or already split into date and time parts.
type RawEvent struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartRaw  string `json:"start_raw,omitempty"`
	EndRaw    string `json:"end_raw,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	EndTime   string `json:"end_time,omitempty"`

	VenueName    string `json:"venue_name,omitempty"`
	VenueAddress string `json:"venue_address,omitempty"`
	VenueCity    string `json:"venue_city,omitempty"`
	VenueState   string `json:"venue_state,omitempty"`
	VenueZip     string `json:"venue_zip,omitempty"`

	// Timezone is the IANA zone the source declared for its datetimes,
	// when it declared one at all
	Timezone string `json:"timezone,omitempty"`
	// TreatZAsLocal marks values whose Z suffix is known to be bogus
	TreatZAsLocal bool `json:"-"`

	TicketURL string   `json:"ticket_url,omitempty"`
	Price     string   `json:"price,omitempty"`
	Performer string   `json:"performer,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// ImageCandidate is one scored flyer-likelihood candidate from a page
type ImageCandidate struct {
	URL    string `json:"url"`
	Score  int    `json:"score"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Alt    string `json:"alt,omitempty"`
}

// StoredEventSummary is the minimal projection of an already-stored
// event that duplicate matching consumes
type StoredEventSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	VenueName string `json:"venue_name"`
	StartDate string `json:"start_date"`
}
