package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/estatematch/internal/netx"
	"github.com/dmitrijs2005/estatematch/internal/report"
	sc "github.com/dmitrijs2005/estatematch/internal/server/config"
	"github.com/google/uuid"
)

// presignExpiry bounds both the upload and the download link.
const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}

	uploadPresigned = netx.UploadPresigned
)

// ReportArchive stores rendered reports in an S3 compatible bucket.
type ReportArchive struct {
	config *sc.Config
	client *http.Client
}

// NewReportArchive returns nil when no bucket is configured.
func NewReportArchive(cfg *sc.Config) *ReportArchive {
	if cfg.S3Bucket == "" {
		return nil
	}
	return &ReportArchive{config: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

// ReportKey builds the object key for a report stored at t.
func ReportKey(t time.Time) string {
	return fmt.Sprintf("reports/%d/%d/%d/%v.pdf", t.Year(), int(t.Month()), t.Day(), uuid.New())
}

func (a *ReportArchive) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(a.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			a.config.S3RootUser,
			a.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(a.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})
	return newS3PresignClient(client), nil
}

// Store uploads pdf and returns a time-limited download URL.
func (a *ReportArchive) Store(ctx context.Context, pdf []byte) (string, error) {
	pc, err := a.getPresignClient(ctx)
	if err != nil {
		return "", fmt.Errorf("s3 config: %w", err)
	}

	bucket := a.config.S3Bucket
	key := ReportKey(timeNow())
	contentType := report.ContentType

	put, err := presignPutObject(pc, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}

	if err := uploadPresigned(ctx, a.client, put.URL, contentType, pdf); err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}

	get, err := presignGetObject(pc, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return get.URL, nil
}
