package media

import (
	"errors"
	"fmt"
	"image"
	"os"

	// Decoders accepted for avatar and cover images.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrNotImage is returned for files no registered decoder recognises.
var ErrNotImage = errors.New("file is not a supported image")

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	Format string
	Width  int
	Height int
}

// Inspect reads only the image header of path.
func Inspect(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return ImageInfo{}, ErrNotImage
	}
	return ImageInfo{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
