package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalUploader copies files under PUBLIC_DIR/uploads, which the server serves statically.
type LocalUploader struct {
	dir     string
	baseURL string
}

// NewLocalUploader creates the upload directory under publicDir. URLs are
// prefixed with baseURL, or are root-relative when baseURL is empty.
func NewLocalUploader(publicDir, baseURL string) (*LocalUploader, error) {
	dir := filepath.Join(publicDir, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload copies localPath into the upload directory.
func (u *LocalUploader) Upload(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := objectKey(localPath)
	dst := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}

	if err := copyFile(ctx, localPath, dst); err != nil {
		_ = os.Remove(dst)
		return "", err
	}

	return u.baseURL + path.Join("/uploads", key), nil
}

// Delete removes an object Upload created. A missing file is not an error.
func (u *LocalUploader) Delete(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key, ok := strings.CutPrefix(url, u.baseURL+"/uploads/")
	if !ok || key == "" || !filepath.IsLocal(filepath.FromSlash(key)) {
		return ErrForeignURL
	}

	err := os.Remove(filepath.Join(u.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}

	if _, err := io.Copy(out, readerWithContext{ctx: ctx, r: in}); err != nil {
		out.Close()
		return fmt.Errorf("copy object: %w", err)
	}
	return out.Close()
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
