package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"live-events-scraper/internal/services"
)

// extract runs the extraction pipeline once over a single source, from a
// live URL or a saved page, and prints the result as JSON. It uses an
// in-memory ledger, so nothing persists between invocations.
func main() {
	sourceURL := flag.String("url", "", "source page URL to fetch and process")
	inputFile := flag.String("file", "", "process a saved page from a file instead of fetching")
	fileURL := flag.String("file-url", "", "source URL to attribute to -file content")
	timezone := flag.String("timezone", "", "default IANA timezone for the source")
	zLocal := flag.Bool("z-local", false, "treat Z-suffixed datetimes as venue-local")
	flyers := flag.String("flyer-domains", "", "comma-separated flyer-only source domains")
	useVision := flag.Bool("vision", false, "enable the vision fallback (needs OPENAI_API_KEY)")
	timeout := flag.Duration("timeout", 60*time.Second, "overall processing timeout")
	flag.Parse()

	if *sourceURL == "" && *inputFile == "" {
		fmt.Fprintln(os.Stderr, "usage: extract -url <page-url> | -file <path> -file-url <page-url>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fetcher := services.NewFetchClient()

	var content, pageURL string
	switch {
	case *inputFile != "":
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *inputFile, err)
		}
		content = string(data)
		pageURL = *fileURL
		if pageURL == "" {
			pageURL = "file://" + *inputFile
		}
	default:
		body, err := fetcher.Fetch(ctx, *sourceURL)
		if err != nil {
			log.Fatalf("Failed to fetch %s: %v", *sourceURL, err)
		}
		content = string(body)
		pageURL = *sourceURL
	}

	var flyerDomains []string
	if *flyers != "" {
		flyerDomains = strings.Split(*flyers, ",")
	}

	ledger := services.NewMemoryLedger()

	var vision *services.VisionProcessor
	if *useVision {
		vision = services.NewVisionProcessor(services.NewOpenAIVisionModel(), fetcher, ledger, nil)
	}

	dispatcher := services.NewExtractorDispatcher(fetcher, flyerDomains)
	pipeline := services.NewPipeline(dispatcher, vision, ledger, nil)

	result, err := pipeline.Process(ctx, services.SourceDocument{
		Content:       content,
		SourceURL:     pageURL,
		Timezone:      *timezone,
		TreatZAsLocal: *zLocal,
	})
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(string(output))
}
