package artifactstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"

	"github.com/kampai-studio/kampai/internal/pkg/env"
)

// Config holds the S3-compatible storage settings for archived outputs.
type Config struct {
	Enabled         bool
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	EndpointURL     string
	Bucket          string
}

// ConfigFromEnv reads the artifact archive settings. The archive is
// optional; without a bucket the store is disabled and generation results
// are served from the vendor URLs only.
func ConfigFromEnv() *Config {
	bucket := env.GetEnv("ARTIFACT_S3_BUCKET", "")
	return &Config{
		Enabled:         bucket != "",
		Region:          env.GetEnv("ARTIFACT_S3_REGION", "us-east-1"),
		AccessKeyID:     env.GetEnv("ARTIFACT_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("ARTIFACT_S3_SECRET_ACCESS_KEY", ""),
		EndpointURL:     env.GetEnv("ARTIFACT_S3_ENDPOINT", ""),
		Bucket:          bucket,
	}
}

// Client archives generated images to S3-compatible storage.
type Client struct {
	s3Client   *s3.Client
	cfg        *Config
	httpClient *http.Client
}

// NewClient creates a new artifact store client.
func NewClient(cfg *Config) (*Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("artifact store is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	client := &Client{
		s3Client:   s3Client,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	if err := client.testConnection(); err != nil {
		return nil, fmt.Errorf("failed to connect to S3: %w", err)
	}

	log.Infof("[ArtifactStore] Initialized S3 client for bucket: %s", cfg.Bucket)
	return client, nil
}

// testConnection checks that the bucket is reachable.
func (c *Client) testConnection() error {
	_, err := c.s3Client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(c.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", c.cfg.Bucket, err)
	}
	return nil
}

// ObjectKey builds the archive key for one output of a generation job.
func ObjectKey(userID uint, jobID, sourceURL string) string {
	name := path.Base(sourceURL)
	if name == "" || name == "." || name == "/" {
		name = "output.png"
	}
	return fmt.Sprintf("generations/%d/%s/%s", userID, jobID, name)
}

// ArchiveURL downloads a vendor output URL and stores it under objectKey.
func (c *Client) ArchiveURL(ctx context.Context, sourceURL, objectKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact fetch returned %d", resp.StatusCode)
	}

	return c.Upload(ctx, objectKey, resp.Body, resp.ContentLength, resp.Header.Get("Content-Type"))
}

// Upload stores a stream under objectKey in the archive bucket.
func (c *Client) Upload(ctx context.Context, objectKey string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(objectKey),
		Body:   body,
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	log.Infof("[ArtifactStore] Archived %s", objectKey)
	return nil
}

// Delete removes an archived object.
func (c *Client) Delete(ctx context.Context, objectKey string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", objectKey, err)
	}
	return nil
}
