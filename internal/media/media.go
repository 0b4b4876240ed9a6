// Package media stores uploaded images and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"vidhub/internal/config"
	"vidhub/internal/middleware"
	"vidhub/internal/observability"

	"github.com/google/uuid"
)

const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

var (
	// ErrEmptyURL is returned when a backend reports success without a URL.
	ErrEmptyURL = errors.New("media upload returned no url")
	// ErrForeignURL is returned when Delete is given a URL the store did not issue.
	ErrForeignURL = errors.New("url was not issued by this media store")
)

// Uploader moves a locally staged file to durable storage and returns its URL.
// Delete removes an object by the URL Upload returned.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Delete(ctx context.Context, url string) error
}

// New builds the uploader selected by MEDIA_DRIVER, wrapped with the upload
// timeout and latency metrics.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	var (
		inner Uploader
		err   error
	)
	switch cfg.MediaDriver {
	case DriverS3:
		inner, err = NewS3Uploader(ctx, S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	case DriverLocal, "":
		inner, err = NewLocalUploader(cfg.PublicDir, "")
	default:
		return nil, fmt.Errorf("unsupported media driver %q", cfg.MediaDriver)
	}
	if err != nil {
		return nil, err
	}
	driver := cfg.MediaDriver
	if driver == "" {
		driver = DriverLocal
	}
	return WithTimeout(inner, driver, cfg.UploadTimeout()), nil
}

type timedUploader struct {
	next    Uploader
	driver  string
	timeout time.Duration
}

// WithTimeout bounds every upload by timeout and records its latency under driver.
func WithTimeout(next Uploader, driver string, timeout time.Duration) Uploader {
	return &timedUploader{next: next, driver: driver, timeout: timeout}
}

func (u *timedUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	start := time.Now()
	url, err := u.next.Upload(ctx, localPath)
	if err == nil && url == "" {
		err = ErrEmptyURL
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
		middleware.Logger.WarnContext(ctx, "media upload failed",
			slog.String("driver", u.driver),
			slog.String("file", filepath.Base(localPath)),
			slog.String("error", err.Error()),
		)
	}
	observability.MediaUploadLatency.WithLabelValues(u.driver, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}
	return url, nil
}

func (u *timedUploader) Delete(ctx context.Context, url string) error {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	if err := u.next.Delete(ctx, url); err != nil {
		middleware.Logger.WarnContext(ctx, "media delete failed",
			slog.String("driver", u.driver),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// objectKey returns a unique, date-partitioned storage key preserving the extension.
func objectKey(localPath string) string {
	d := time.Now().UTC()
	ext := strings.ToLower(filepath.Ext(localPath))
	return fmt.Sprintf("images/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), ext)
}
