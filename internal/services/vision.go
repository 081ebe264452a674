package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"live-events-scraper/internal/models"
)

// VisionModel is the external vision-capable model interface: image in,
// raw response text out. No other contract is assumed.
type VisionModel interface {
	AnalyzeImage(ctx context.Context, imageData []byte, prompt string) (string, error)
}

// ImageDownloader fetches image bytes. FetchClient satisfies it.
type ImageDownloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FlyerArchiver persists downloaded flyer images before analysis.
// Archival failures are never fatal to the pipeline.
type FlyerArchiver interface {
	ArchiveFlyer(ctx context.Context, pageURL, imageURL string, data []byte) error
}

// visionPrompt is the fixed instruction text sent with every flyer image
const visionPrompt = `You are reading a promotional event flyer or poster image.

Extract every event announced on the image into this exact JSON structure:
{
  "events": [
    {
      "title": "Event or headliner name",
      "date": "YYYY-MM-DD",
      "time": "HH:MM in 24-hour clock",
      "venue": "Venue name",
      "price": "Ticket price as printed",
      "performer": "Performer or lineup"
    }
  ],
  "confidence": 0.0,
  "notes": "anything ambiguous or unreadable"
}

Rules:
- Only report what is visibly printed on the image. Do not guess missing
  fields; leave them as empty strings.
- If the year is not printed, leave the date empty rather than inventing one.
- If the image is not an event flyer or poster, return an empty events array.
- Respond with the JSON object only.`

// VisionExtractionResponse is the strict schema the vision model is
// instructed to return
type VisionExtractionResponse struct {
	Events     []VisionEvent `json:"events"`
	Confidence float64       `json:"confidence"`
	Notes      string        `json:"notes"`
}

// VisionEvent is one event as read off a flyer image
type VisionEvent struct {
	Title     string `json:"title"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Venue     string `json:"venue"`
	Price     string `json:"price"`
	Performer string `json:"performer"`
}

// VisionProcessor is the extraction fallback for sources with no usable
// textual data: it walks ranked image candidates and asks a vision model
// to read the first not-yet-analyzed flyer.
type VisionProcessor struct {
	model      VisionModel
	downloader ImageDownloader
	ledger     ProcessedLedger
	archiver   FlyerArchiver // optional
}

// NewVisionProcessor creates a vision processor over the given
// collaborators. archiver may be nil.
func NewVisionProcessor(model VisionModel, downloader ImageDownloader, ledger ProcessedLedger, archiver FlyerArchiver) *VisionProcessor {
	return &VisionProcessor{
		model:      model,
		downloader: downloader,
		ledger:     ledger,
		archiver:   archiver,
	}
}

// ProcessCandidates walks candidates in rank order and returns the events
// read from the first candidate actually analyzed this run.
//
// Per candidate: already-marked candidates are skipped outright; download
// failures advance to the next candidate; once a candidate is analyzed it
// is marked processed regardless of outcome, and the run ends whether or
// not it yielded events. That throttles spend to at most one vision call
// per run and at most one analysis per image, ever. Failed analyses are
// never retried.
func (v *VisionProcessor) ProcessCandidates(ctx context.Context, pageURL string, candidates []models.ImageCandidate) []models.RawEvent {
	for _, candidate := range candidates {
		imageID := models.GenerateImageID(pageURL, candidate.URL)

		processed, err := v.ledger.IsProcessed(ctx, imageID, models.ScopeVisionImage)
		if err != nil {
			// Without the ledger the at-most-once guarantee is gone; skip
			log.Printf("Vision ledger check failed for %s: %v", candidate.URL, err)
			continue
		}
		if processed {
			continue
		}

		imageData, err := v.downloader.Fetch(ctx, candidate.URL)
		if err != nil {
			log.Printf("Flyer download failed for %s: %v", candidate.URL, err)
			continue
		}

		if v.archiver != nil {
			if err := v.archiver.ArchiveFlyer(ctx, pageURL, candidate.URL, imageData); err != nil {
				log.Printf("Flyer archive failed for %s: %v", candidate.URL, err)
			}
		}

		events, err := v.analyze(ctx, imageData)

		// Marked even on failure: one analysis attempt per image, ever
		if markErr := v.ledger.MarkProcessed(ctx, imageID, models.ScopeVisionImage); markErr != nil {
			log.Printf("Vision ledger mark failed for %s: %v", candidate.URL, markErr)
		}

		if err != nil {
			log.Printf("Vision analysis failed for %s: %v", candidate.URL, err)
			return nil
		}

		if len(events) == 0 {
			// Not a flyer, or unreadable. A later run tries the next
			// candidate; this run is done.
			return nil
		}

		return events
	}

	return nil
}

// analyze sends one image to the vision model and parses the response.
// Decode failure and empty events both mean "no result".
func (v *VisionProcessor) analyze(ctx context.Context, imageData []byte) ([]models.RawEvent, error) {
	response, err := v.model.AnalyzeImage(ctx, imageData, visionPrompt)
	if err != nil {
		return nil, err
	}

	cleaned := cleanJSONResponse(response)

	var parsed VisionExtractionResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		log.Printf("Vision response was not valid JSON: %v", err)
		return nil, nil
	}

	var events []models.RawEvent
	for _, ve := range parsed.Events {
		if ve.Title == "" {
			continue
		}
		events = append(events, models.RawEvent{
			Title:     ve.Title,
			StartDate: ve.Date,
			StartTime: ve.Time,
			VenueName: ve.Venue,
			Price:     ve.Price,
			Performer: ve.Performer,
		})
	}
	return events, nil
}

// cleanJSONResponse removes markdown code fences models wrap around JSON
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}

// OpenAIVisionModel calls a vision-capable OpenAI chat model with the
// image inlined as a data URL
type OpenAIVisionModel struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIVisionModel creates the OpenAI-backed vision model
func NewOpenAIVisionModel() *OpenAIVisionModel {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	return &OpenAIVisionModel{
		client:    openai.NewClient(apiKey),
		model:     openai.GPT4o,
		maxTokens: 2000,
	}
}

// AnalyzeImage sends the prompt plus image and returns the raw response
func (m *OpenAIVisionModel) AnalyzeImage(ctx context.Context, imageData []byte, prompt string) (string, error) {
	if len(imageData) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	contentType := http.DetectContentType(imageData)
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(imageData))

	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from vision model")
	}

	return resp.Choices[0].Message.Content, nil
}
