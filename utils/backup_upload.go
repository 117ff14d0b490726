// utils/backup_upload.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type BackupR2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	PublicURL       string // base for the returned object URLs
}

// objectPutter is the part of *s3.Client the uploader needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// BackupUploader pushes export documents to an R2 bucket.
type BackupUploader struct {
	client objectPutter
	config BackupR2Config
	now    func() time.Time
}

func NewBackupUploader(ctx context.Context, cfg BackupR2Config) (*BackupUploader, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("missing required R2 configuration parameters")
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
			"",
		)),
		config.WithRetryer(func() aws.Retryer {
			return aws.NopRetryer{}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	// Verify bucket exists and we have permissions
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return nil, fmt.Errorf("bucket %s not found or you don't have permission to access it", cfg.BucketName)
		}
		return nil, fmt.Errorf("failed to access bucket: %w", err)
	}

	return newBackupUploader(client, cfg), nil
}

func newBackupUploader(client objectPutter, cfg BackupR2Config) *BackupUploader {
	return &BackupUploader{client: client, config: cfg, now: time.Now}
}

// UploadExport stores an export document and returns its public URL.
func (r *BackupUploader) UploadExport(ctx context.Context, blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", fmt.Errorf("export document cannot be empty")
	}

	key := BackupObjectKey(r.now())
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	return fmt.Sprintf("%s/%s", strings.TrimSuffix(r.config.PublicURL, "/"), key), nil
}

// BackupObjectKey is backups/<yyyy>/<mm>/rdv_export_<yyyymmddThhmmssZ>.json, in UTC.
func BackupObjectKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%04d/%02d/rdv_export_%s.json", t.Year(), int(t.Month()), t.Format("20060102T150405Z"))
}
