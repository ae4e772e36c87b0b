package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded size of an upload (40 MP).
const DefaultMaxPixels = 40_000_000

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrNotImage      = errors.New("file is not a supported image")
	ErrTooLarge      = errors.New("file exceeds maximum size")
	ErrTooManyPixels = errors.New("image dimensions exceed the maximum")
)

// ImageInfo describes a validated upload.
type ImageInfo struct {
	Format      string
	ContentType string
	Ext         string
	Width       int
	Height      int
}

var formatExt = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"bmp":  ".bmp",
	"tiff": ".tiff",
	"webp": ".webp",
}

// InspectImage fully decodes data and reports its format. Anything that does
// not decode, is larger than maxSize bytes or declares more than maxPixels
// pixels is rejected. The pixel bound is checked from the header, before
// the decode allocates.
func InspectImage(data []byte, maxSize, maxPixels int64) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrEmptyFile
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return ImageInfo{}, fmt.Errorf("%w of %d bytes", ErrTooLarge, maxSize)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, ErrNotImage
	}
	ext, ok := formatExt[format]
	if !ok {
		return ImageInfo{}, ErrNotImage
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return ImageInfo{}, fmt.Errorf("%w of %d pixels (%dx%d)", ErrTooManyPixels, maxPixels, cfg.Width, cfg.Height)
	}
	// DecodeConfig only reads the header; a truncated body still fails here.
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return ImageInfo{}, ErrNotImage
	}

	return ImageInfo{
		Format:      format,
		ContentType: "image/" + format,
		Ext:         ext,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}
