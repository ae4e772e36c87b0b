package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// BlobStore defines the interface for file storage operations
type BlobStore interface {
	// Upload stores data under path. Existing objects are not overwritten.
	Upload(ctx context.Context, path string, data []byte, contentType string) error

	// PublicURL returns the URL clients use to fetch the object at path.
	PublicURL(path string) string

	// Delete removes an object from storage
	Delete(ctx context.Context, path string) error
}

const (
	referencesPrefix = "references"
	resultsPrefix    = "results"
)

// ReferencePath builds the object path for an image attached to a submission.
// Paths are namespaced by user and made unique with a timestamp and the
// position of the file in the submission.
func ReferencePath(userID string, at time.Time, n int, ext string) string {
	return path.Join(referencesPrefix, cleanSegment(userID), fmt.Sprintf("%d-%d%s", at.UnixNano(), n, normalizeExt(ext)))
}

// ResultPath builds the object path for an admin-uploaded result.
func ResultPath(requestID string, at time.Time, ext string) string {
	return path.Join(resultsPrefix, cleanSegment(requestID), fmt.Sprintf("%d%s", at.UnixNano(), normalizeExt(ext)))
}

func cleanSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "")
	s = strings.ReplaceAll(s, "..", "")
	if s == "" {
		return "_"
	}
	return s
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
