package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLocalStorage(t *testing.T) {
	// Create temporary directory for tests
	tempDir := t.TempDir()

	storage, err := NewLocalStorage(tempDir, "http://localhost:8080/")
	require.NoError(t, err)

	t.Run("Upload", func(t *testing.T) {
		ctx := context.Background()
		data := pngBytes(t)

		require.NoError(t, storage.Upload(ctx, "references/u1/1-0.png", data, "image/png"))

		content, err := os.ReadFile(filepath.Join(storage.Dir(), "references", "u1", "1-0.png"))
		require.NoError(t, err)
		assert.Equal(t, data, content)
	})

	t.Run("Upload does not overwrite", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Upload(ctx, "results/r1/1.png", []byte("a"), "image/png"))
		assert.Error(t, storage.Upload(ctx, "results/r1/1.png", []byte("b"), "image/png"))
	})

	t.Run("PublicURL", func(t *testing.T) {
		assert.Equal(t, "http://localhost:8080/files/results/r1/1.png", storage.PublicURL("results/r1/1.png"))
	})

	t.Run("Delete", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, storage.Upload(ctx, "tmp/file.png", []byte("test"), "image/png"))

		require.NoError(t, storage.Delete(ctx, "tmp/file.png"))
		_, err := os.Stat(filepath.Join(storage.Dir(), "tmp", "file.png"))
		assert.True(t, os.IsNotExist(err))

		// Test deleting non-existent file
		assert.Error(t, storage.Delete(ctx, "nonexistent"))

		// Test deleting file outside the storage directory
		assert.Error(t, storage.Delete(ctx, "../outside"))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, storage.Upload(ctx, "x/y.png", []byte("z"), "image/png"), context.Canceled)
	})
}

func TestObjectPaths(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)

	assert.Equal(t, "references/user-1/1700000000123456789-2.png", ReferencePath("user-1", at, 2, "PNG"))
	assert.Equal(t, "results/req-9/1700000000123456789.jpg", ResultPath("req-9", at, ".jpg"))

	// Ids can never climb out of their namespace.
	p := ReferencePath("../../etc", at, 0, ".png")
	assert.True(t, strings.HasPrefix(p, "references/"))
	assert.NotContains(t, p, "..")
}

func TestSupabasePublicURL(t *testing.T) {
	s, err := NewSupabaseStorage("https://abc.supabase.co/", "service-key", "thumbnails")
	require.NoError(t, err)
	assert.Equal(t,
		"https://abc.supabase.co/storage/v1/object/public/thumbnails/results/r1/1.png",
		s.PublicURL("results/r1/1.png"))

	_, err = NewSupabaseStorage("", "key", "bucket")
	assert.Error(t, err)
	_, err = NewSupabaseStorage("https://abc.supabase.co", "key", "")
	assert.Error(t, err)
}

// oversizedPNG returns a tiny PNG whose header declares width x height
// pixels; only the IHDR chunk is rewritten, so the body never matches it.
func oversizedPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	data := pngBytes(t)
	// 8-byte signature, then IHDR: length(4) type(4) data(13) crc(4).
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

// Smallest lossless WebP: a single 1x1 pixel.
const webpPixel = "UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func TestInspectImage(t *testing.T) {
	var jpegBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	webp, err := base64.StdEncoding.DecodeString(webpPixel)
	require.NoError(t, err)
	full := pngBytes(t)

	tests := []struct {
		name      string
		data      []byte
		maxSize   int64
		maxPixels int64
		wantErr   error
		wantExt   string
		wantW     int
		wantH     int
	}{
		{name: "png", data: full, maxSize: 1 << 20, maxPixels: DefaultMaxPixels, wantExt: ".png", wantW: 4, wantH: 3},
		{name: "jpeg", data: jpegBuf.Bytes(), wantExt: ".jpg", wantW: 8, wantH: 8},
		{name: "webp", data: webp, maxSize: 1 << 20, maxPixels: DefaultMaxPixels, wantExt: ".webp", wantW: 1, wantH: 1},
		{name: "not an image", data: []byte("%PDF-1.4 definitely not an image"), maxSize: 1 << 20, wantErr: ErrNotImage},
		{name: "truncated", data: full[:len(full)/2], maxSize: 1 << 20, wantErr: ErrNotImage},
		{name: "too large", data: full, maxSize: 10, wantErr: ErrTooLarge},
		{name: "empty", data: nil, maxSize: 10, wantErr: ErrEmptyFile},
		{name: "dimensions above pixel cap", data: oversizedPNG(t, 20000, 20000), maxSize: 1 << 20, maxPixels: DefaultMaxPixels, wantErr: ErrTooManyPixels},
		{name: "pixel cap is inclusive", data: full, maxPixels: 12, wantExt: ".png", wantW: 4, wantH: 3},
		{name: "one pixel over the cap", data: full, maxPixels: 11, wantErr: ErrTooManyPixels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := InspectImage(tt.data, tt.maxSize, tt.maxPixels)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, info.Ext)
			assert.Equal(t, "image/"+info.Format, info.ContentType)
			assert.Equal(t, tt.wantW, info.Width)
			assert.Equal(t, tt.wantH, info.Height)
		})
	}
}
