// Package storage persists hazard photos in S3-compatible object storage and
// produces the long-lived presigned URLs embedded in finalized reports.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"safetyreport_backend/platform/apperr"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rwcarlsen/goexif/exif"
)

// Image is a stored hazard photo.
type Image struct {
	Key        string
	URL        string
	MIMEType   string
	Data       []byte
	CapturedAt *time.Time
}

// ImageStore downloads incoming media, uploads it to the report-images
// bucket, and presigns a download URL.
type ImageStore struct {
	client      *minio.Client
	bucket      string
	urlTTL      time.Duration
	maxFileSize int64
	httpClient  *http.Client
	log         *logger.Logger
}

// NewImageStore creates the MinIO-backed image store.
func NewImageStore(cfg config.MinIOConfig, log *logger.Logger) (*ImageStore, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("minio is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &ImageStore{
		client:      client,
		bucket:      cfg.GetMinioBucketReportImages(),
		urlTTL:      cfg.GetImageURLTTL(),
		maxFileSize: cfg.GetMinIOMaxFileSize(),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log,
	}, nil
}

// EnsureBucket creates the report-images bucket if it does not exist.
func (s *ImageStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// Save fetches the media at mediaURL, uploads it keyed under the sender, and
// returns the stored image with a presigned download URL. The raw bytes stay
// in the result so the classifier can run without a second download.
func (s *ImageStore) Save(ctx context.Context, mediaURL, senderKey string) (Image, error) {
	data, mimeType, err := s.fetch(ctx, mediaURL)
	if err != nil {
		return Image{}, err
	}

	capturedAt := extractCaptureTime(data)

	key := fmt.Sprintf("%s/%s%s", senderKey, uuid.New().String(), extensionFor(mimeType))

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  mimeType,
		UserMetadata: map[string]string{"sender": senderKey},
	})
	if err != nil {
		return Image{}, fmt.Errorf("upload image %s: %w", key, err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlTTL, url.Values{})
	if err != nil {
		return Image{}, fmt.Errorf("presign image %s: %w", key, err)
	}

	return Image{
		Key:        key,
		URL:        presigned.String(),
		MIMEType:   mimeType,
		Data:       data,
		CapturedAt: capturedAt,
	}, nil
}

func (s *ImageStore) fetch(ctx context.Context, mediaURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create media request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUnavailable, "fetch media", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", apperr.Unavailable(fmt.Sprintf("media fetch returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxFileSize+1))
	if err != nil {
		return nil, "", apperr.Wrap(apperr.KindUnavailable, "read media body", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, "", apperr.Validation(fmt.Sprintf("media exceeds maximum size of %d bytes", s.maxFileSize))
	}
	if len(data) == 0 {
		return nil, "", apperr.Validation("media body is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	return data, mimeType, nil
}

// extractCaptureTime reads the EXIF DateTime when present. Missing or
// malformed EXIF is normal for forwarded media and is not an error.
func extractCaptureTime(data []byte) *time.Time {
	meta, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	taken, err := meta.DateTime()
	if err != nil {
		return nil
	}

	return &taken
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
