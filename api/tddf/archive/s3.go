package archive

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const (
	tddfDefaultBucket  = "mms-tddf-archive"
	tddfDefaultRegion  = "us-east-1"
	tddfDefaultBaseURL = "https://mms-tddf-archive.s3.us-east-1.amazonaws.com/"
)

func archiveEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("TDDF_S3_ENABLED")), "true")
}

func tddfBucket() string {
	if b := strings.TrimSpace(os.Getenv("TDDF_S3_BUCKET")); b != "" {
		return b
	}
	return tddfDefaultBucket
}

func tddfRegion() string {
	if r := strings.TrimSpace(os.Getenv("TDDF_S3_REGION")); r != "" {
		return r
	}
	return tddfDefaultRegion
}

func tddfBaseURL() string {
	if u := strings.TrimSpace(os.Getenv("TDDF_S3_BASE_URL")); u != "" {
		u = strings.TrimSuffix(u, "/")
		return u + "/"
	}
	return tddfDefaultBaseURL
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "tddf-file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ArchiveOriginal uploads the raw file content to S3 keyed by upload date and
// file id, and returns the public URL. When TDDF_S3_ENABLED is not "true"
// archival is skipped and ("", nil) is returned; archival is never allowed to
// fail an ingest, so callers only log the error.
func ArchiveOriginal(ctx context.Context, fileID uuid.UUID, filename string, content []byte) (string, error) {
	if !archiveEnabled() {
		return "", nil
	}
	bucket := tddfBucket()
	key := fmt.Sprintf("tddf/%s/%s_%s",
		time.Now().Format("2006/01/02"), fileID, sanitizeFilename(filename))

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(tddfRegion()))
	if err != nil {
		return "", fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3 (bucket %s, key %s): %w", bucket, key, err)
	}
	url := tddfBaseURL() + key
	log.Printf("[AUDIT] Archived original TDDF file %s to %s", fileID, url)
	return url, nil
}
