package extraction

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/apexcrm/lead-console/pkg/logging"
)

// S3API is the subset of the S3 client used by DocumentArchive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// DocumentArchive keeps a copy of every uploaded document in S3 so the
// original upload survives the extraction pipeline.
type DocumentArchive struct {
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

// NewDocumentArchive creates an archive. If bucket is empty, all
// operations are no-ops.
func NewDocumentArchive(s3Client S3API, bucket string, logger *logging.Logger) *DocumentArchive {
	if logger == nil {
		logger = logging.Default()
	}
	return &DocumentArchive{bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (a *DocumentArchive) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil
}

// Store writes the document to S3 keyed by lead id and upload date.
func (a *DocumentArchive) Store(ctx context.Context, leadID string, document []byte) error {
	if !a.Enabled() {
		return nil
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("documents/v1/%d/%02d/%02d/%s.pdf", now.Year(), now.Month(), now.Day(), leadID)

	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(document),
		ContentType: aws.String(MediaTypePDF),
	})
	if err != nil {
		return fmt.Errorf("extraction: s3 put %s: %w", key, err)
	}

	a.logger.Info("archived lead document", "lead_id", leadID, "s3_key", key, "bytes", len(document))
	return nil
}
