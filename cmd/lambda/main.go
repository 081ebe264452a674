package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"live-events-scraper/internal/models"
	"live-events-scraper/internal/services"
)

// LambdaEvent represents the EventBridge trigger event
type LambdaEvent struct {
	Source       string                 `json:"source"`
	DetailType   string                 `json:"detail-type"`
	Detail       map[string]interface{} `json:"detail"`
	TriggerType  string                 `json:"trigger-type,omitempty"`  // manual, scheduled
	SourceFilter []string               `json:"source-filter,omitempty"` // optional filter for specific sources
}

// LambdaResponse represents the function response
type LambdaResponse struct {
	Success        bool           `json:"success"`
	Message        string         `json:"message"`
	RunID          string         `json:"run_id"`
	EventsEmitted  int            `json:"events_emitted"`
	ProcessingTime int64          `json:"processing_time_ms"`
	Summary        *RunSummary    `json:"summary"`
	Events         []models.Event `json:"events,omitempty"`
	Errors         []string       `json:"errors,omitempty"`
}

// RunSummary provides detailed per-run results
type RunSummary struct {
	TotalSources      int            `json:"total_sources"`
	SuccessfulSources int            `json:"successful_sources"`
	FailedSources     int            `json:"failed_sources"`
	EventsEmitted     int            `json:"events_emitted"`
	SkippedProcessed  int            `json:"skipped_processed"`
	SkippedDuplicate  int            `json:"skipped_duplicate"`
	SkippedIdentity   int            `json:"skipped_identity"`
	SourceResults     []SourceResult `json:"source_results"`
}

// SourceResult represents the result from processing a single source
type SourceResult struct {
	Name             string `json:"name"`
	URL              string `json:"url"`
	Success          bool   `json:"success"`
	ExtractionMethod string `json:"extraction_method,omitempty"`
	RawEvents        int    `json:"raw_events"`
	Emitted          bool   `json:"emitted"`
	ProcessingMS     int64  `json:"processing_time_ms"`
	Error            string `json:"error,omitempty"`
}

// EventSource is one configured listing page to process each run
type EventSource struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	Domain        string `json:"domain"`
	Timezone      string `json:"timezone"`
	TreatZAsLocal bool   `json:"treat_z_as_local"`
	Enabled       bool   `json:"enabled"`
}

// GetEventSources returns the configured event listing sources
func GetEventSources() []EventSource {
	return []EventSource{
		{
			Name:     "Empty Bottle Calendar",
			URL:      "https://www.emptybottle.com/shows/",
			Domain:   "emptybottle.com",
			Timezone: "America/Chicago",
			Enabled:  true,
		},
		{
			Name:     "Hideout Chicago",
			URL:      "https://hideoutchicago.com/events/",
			Domain:   "hideoutchicago.com",
			Timezone: "America/Chicago",
			Enabled:  true,
		},
		{
			Name:          "Sleeping Village",
			URL:           "https://sleeping-village.com/events/",
			Domain:        "sleeping-village.com",
			Timezone:      "America/Chicago",
			TreatZAsLocal: true, // feed appends Z to venue-local datetimes
			Enabled:       true,
		},
		{
			Name:     "Constellation Calendar",
			URL:      "https://constellation-chicago.com/calendar.ics",
			Domain:   "constellation-chicago.com",
			Timezone: "America/Chicago",
			Enabled:  true,
		},
		{
			Name:     "Cafe Mustache Flyers",
			URL:      "https://cafemustache.com/events/",
			Domain:   "cafemustache.com",
			Timezone: "America/Chicago",
			Enabled:  true,
		},
	}
}

// flyerDomains lists sources that publish events only as flyer images
func flyerDomains() []string {
	if value := os.Getenv("FLYER_DOMAINS"); value != "" {
		return strings.Split(value, ",")
	}
	return []string{"cafemustache.com"}
}

// Orchestrator runs the extraction pipeline across all configured sources
type Orchestrator struct {
	fetcher  *services.FetchClient
	pipeline *services.Pipeline
	runID    string
}

// NewOrchestrator wires the pipeline over its AWS-backed collaborators
func NewOrchestrator(ctx context.Context) (*Orchestrator, error) {
	ledgerTable := os.Getenv("LEDGER_TABLE_NAME")
	if ledgerTable == "" {
		return nil, fmt.Errorf("LEDGER_TABLE_NAME environment variable is required")
	}
	catalogTable := os.Getenv("CATALOG_TABLE_NAME")
	if catalogTable == "" {
		return nil, fmt.Errorf("CATALOG_TABLE_NAME environment variable is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	dynamoService := services.NewDynamoDBService(dynamodb.NewFromConfig(cfg), ledgerTable, catalogTable)

	// Flyer archival is optional; the pipeline runs without it
	var archiver services.FlyerArchiver
	if os.Getenv("S3_BUCKET_NAME") != "" {
		s3Client, err := services.NewS3Client(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		archiver = s3Client
	}

	fetcher := services.NewFetchClient()
	vision := services.NewVisionProcessor(services.NewOpenAIVisionModel(), fetcher, dynamoService, archiver)
	dispatcher := services.NewExtractorDispatcher(fetcher, flyerDomains())
	matcher := services.NewDuplicateMatcher(dynamoService)

	return &Orchestrator{
		fetcher:  fetcher,
		pipeline: services.NewPipeline(dispatcher, vision, dynamoService, matcher),
		runID:    models.GenerateRunID(time.Now()),
	}, nil
}

// ProcessSource fetches one listing page and runs the pipeline over it
func (o *Orchestrator) ProcessSource(ctx context.Context, source EventSource) (SourceResult, *models.Event) {
	result := SourceResult{
		Name: source.Name,
		URL:  source.URL,
	}

	log.Printf("Processing source: %s (%s)", source.Name, source.URL)

	body, err := o.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		result.Error = fmt.Sprintf("fetch failed: %v", err)
		log.Printf("Failed to fetch %s: %v", source.Name, err)
		return result, nil
	}

	pipelineResult, err := o.pipeline.Process(ctx, services.SourceDocument{
		Content:       string(body),
		SourceURL:     source.URL,
		Timezone:      source.Timezone,
		TreatZAsLocal: source.TreatZAsLocal,
	})
	if err != nil {
		result.Error = fmt.Sprintf("pipeline failed: %v", err)
		log.Printf("Pipeline failed for %s: %v", source.Name, err)
		return result, nil
	}

	result.Success = true
	result.ExtractionMethod = pipelineResult.ExtractionMethod
	result.RawEvents = pipelineResult.RawEventCount
	result.Emitted = pipelineResult.Event != nil
	result.ProcessingMS = pipelineResult.ProcessingMS

	log.Printf("Processed %s via %s: %d raw events, emitted=%v (skipped %d processed, %d duplicate, %d identity)",
		source.Name, pipelineResult.ExtractionMethod, pipelineResult.RawEventCount, result.Emitted,
		pipelineResult.SkippedProcessed, pipelineResult.SkippedDuplicate, pipelineResult.SkippedIdentity)

	return result, pipelineResult.Event
}

// ProcessAllSources runs every enabled source with bounded concurrency
func (o *Orchestrator) ProcessAllSources(ctx context.Context, sources []EventSource, sourceFilter []string) (*RunSummary, []models.Event) {
	if len(sourceFilter) > 0 {
		filtered := []EventSource{}
		for _, source := range sources {
			for _, filter := range sourceFilter {
				if source.Domain == filter || source.Name == filter {
					filtered = append(filtered, source)
					break
				}
			}
		}
		sources = filtered
		log.Printf("Filtered to %d sources", len(sources))
	}

	enabled := []EventSource{}
	for _, source := range sources {
		if source.Enabled {
			enabled = append(enabled, source)
		}
	}
	sources = enabled

	log.Printf("Run %s: processing %d enabled sources", o.runID, len(sources))

	var wg sync.WaitGroup
	results := make([]SourceResult, len(sources))
	emitted := make([]*models.Event, len(sources))

	maxConcurrency := 3 // bound secondary fetch and vision API pressure
	semaphore := make(chan struct{}, maxConcurrency)

	for i, source := range sources {
		wg.Add(1)
		go func(index int, src EventSource) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[index], emitted[index] = o.ProcessSource(ctx, src)
		}(i, source)
	}
	wg.Wait()

	summary := &RunSummary{
		TotalSources:  len(sources),
		SourceResults: results,
	}

	var events []models.Event
	for i, result := range results {
		if result.Success {
			summary.SuccessfulSources++
		} else {
			summary.FailedSources++
		}
		if emitted[i] != nil {
			events = append(events, *emitted[i])
		}
	}
	summary.EventsEmitted = len(events)

	log.Printf("Run %s complete: %d events from %d/%d sources",
		o.runID, summary.EventsEmitted, summary.SuccessfulSources, summary.TotalSources)

	return summary, events
}

// HandleLambdaEvent is the main Lambda handler function
func HandleLambdaEvent(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	start := time.Now()

	log.Printf("Lambda function started with event: %+v", event)

	orchestrator, err := NewOrchestrator(ctx)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to initialize orchestrator: %v", err)
		log.Printf("ERROR: %s", errorMsg)
		return LambdaResponse{
			Success:        false,
			Message:        errorMsg,
			ProcessingTime: time.Since(start).Milliseconds(),
		}, err
	}

	triggerType := event.TriggerType
	if triggerType == "" {
		if event.Source == "aws.events" {
			triggerType = "scheduled"
		} else {
			triggerType = "manual"
		}
	}
	log.Printf("Starting run with trigger type: %s", triggerType)

	summary, events := orchestrator.ProcessAllSources(ctx, GetEventSources(), event.SourceFilter)

	response := LambdaResponse{
		Success:        summary.SuccessfulSources > 0,
		Message:        fmt.Sprintf("Emitted %d events from %d/%d sources", summary.EventsEmitted, summary.SuccessfulSources, summary.TotalSources),
		RunID:          orchestrator.runID,
		EventsEmitted:  summary.EventsEmitted,
		ProcessingTime: time.Since(start).Milliseconds(),
		Summary:        summary,
		Events:         events,
	}

	var errors []string
	for _, result := range summary.SourceResults {
		if !result.Success && result.Error != "" {
			errors = append(errors, fmt.Sprintf("%s: %s", result.Name, result.Error))
		}
	}
	response.Errors = errors

	log.Printf("Lambda function completed: %s (%dms)", response.Message, response.ProcessingTime)

	return response, nil
}

// main is the entry point for the Lambda function
func main() {
	lambda.Start(HandleLambdaEvent)
}
