package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"vidhub/internal/middleware"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an uploaded file exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds the maximum upload size")

// Stage writes an uploaded multipart file to dir under a fresh name and
// returns its path. The caller must Cleanup the path.
func Stage(fh *multipart.FileHeader, dir string, maxBytes int64) (string, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return "", ErrTooLarge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	dst := filepath.Join(dir, uuid.NewString()+ext)
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}

	var r io.Reader = src
	if maxBytes > 0 {
		r = io.LimitReader(src, maxBytes+1)
	}
	n, err := io.Copy(out, r)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		Cleanup(dst)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write staged file: %w", err)
	}

	return dst, nil
}

// Cleanup removes staged files, ignoring empty and already-removed paths.
func Cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			middleware.Logger.Warn("failed to remove staged upload",
				slog.String("file", filepath.Base(p)),
				slog.String("error", err.Error()),
			)
		}
	}
}
