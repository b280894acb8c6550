package r2

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Client uploads user-provided input images to an S3-compatible bucket and
// hands back a dereferenceable public URL.
type Client struct {
	s3Client      *s3.Client
	bucket        string
	publicBaseURL string
}

// NewClient builds the upload client. All arguments are required; callers with
// no upload storage configured should not construct a client at all.
func NewClient(endpoint, bucket, accessKeyID, accessKeySecret, publicBaseURL string) (*Client, error) {
	if endpoint == "" || bucket == "" || accessKeyID == "" || accessKeySecret == "" {
		return nil, fmt.Errorf("upload storage credentials not configured")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID,
			accessKeySecret,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	if publicBaseURL == "" {
		publicBaseURL = strings.TrimSuffix(endpoint, "/") + "/" + bucket
	}

	return &Client{
		s3Client:      client,
		bucket:        bucket,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Upload stores the object under a fresh uuid-derived key and returns its
// public URL.
func (c *Client) Upload(ctx context.Context, body io.Reader, contentType string) (string, error) {
	objectKey := uuid.NewString() + extensionFor(contentType)

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return c.publicBaseURL + "/" + objectKey, nil
}

// DeleteObject removes an uploaded object by its key.
func (c *Client) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	return err
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
