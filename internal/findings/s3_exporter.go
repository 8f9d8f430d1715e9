package findings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/spark-corp/redshadow/pkg/models"
)

// s3Client is the subset of *s3.Client the exporter depends on.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter archives a Finding log snapshot to an S3 bucket at engagement
// cleanup, the optional sink spec.md leaves unspecified beyond "durable
// store for the duration of an engagement."
type S3Exporter struct {
	client s3Client
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Exporter builds an exporter writing one JSON array of findings per
// export under prefix in bucket.
func NewS3Exporter(client *s3.Client, bucket, prefix string) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// Export serializes findings as one JSON array and writes it to
// s3://bucket/prefix/<engagementID>-<timestamp>.json.
func (e *S3Exporter) Export(ctx context.Context, engagementID string, findings []models.Finding) error {
	body, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return fmt.Errorf("findings: marshal export: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%d.json", e.prefix, engagementID, e.now().Unix())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("findings: put object %s: %w", key, err)
	}
	return nil
}
