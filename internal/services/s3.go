package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"live-events-scraper/internal/models"
)

// S3Client archives downloaded flyer images so vision analyses stay
// reproducible after source pages rotate their media
type S3Client struct {
	client     *s3.Client
	bucketName string
	region     string
}

// NewS3Client creates a new S3 client with AWS SDK v2
func NewS3Client(ctx context.Context) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	bucketName := os.Getenv("S3_BUCKET_NAME")
	if bucketName == "" {
		return nil, fmt.Errorf("S3_BUCKET_NAME environment variable is required")
	}

	return &S3Client{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		region:     cfg.Region,
	}, nil
}

// ArchiveFlyer stores one downloaded flyer image under a key derived from
// its page and image URLs, so re-archiving the same image overwrites
// rather than accumulates
func (c *S3Client) ArchiveFlyer(ctx context.Context, pageURL, imageURL string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("flyer data cannot be empty")
	}

	imageID := models.GenerateImageID(pageURL, imageURL)
	key := fmt.Sprintf("flyers/%s/%s", time.Now().UTC().Format("2006/01"), imageID)

	contentType := http.DetectContentType(data)

	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"source-page": pageURL,
			"source-url":  imageURL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive flyer: %w", err)
	}

	return nil
}
