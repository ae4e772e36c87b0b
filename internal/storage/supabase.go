package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage stores objects in a Supabase Storage bucket. The bucket is
// expected to be public so PublicURL resolves without signing.
type SupabaseStorage struct {
	client     *storage_go.Client
	projectURL string
	bucket     string
}

// NewSupabaseStorage creates a client for <projectURL>/storage/v1 using the
// service key.
func NewSupabaseStorage(projectURL, serviceKey, bucket string) (*SupabaseStorage, error) {
	if projectURL == "" || serviceKey == "" {
		return nil, errors.New("supabase url and service key are required")
	}
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	projectURL = strings.TrimRight(projectURL, "/")
	client := storage_go.NewClient(projectURL+"/storage/v1", serviceKey, nil)
	return &SupabaseStorage{client: client, projectURL: projectURL, bucket: bucket}, nil
}

func (s *SupabaseStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	upsert := false
	opts := storage_go.FileOptions{ContentType: &contentType, Upsert: &upsert}

	// The storage client has no context support, so the call is raced against ctx.
	done := make(chan error, 1)
	go func() {
		resp, err := s.client.UploadFile(s.bucket, objectPath, bytes.NewReader(data), opts)
		if err == nil && resp.Key == "" {
			err = fmt.Errorf("upload of %s returned no object key", objectPath)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("supabase upload: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supabase upload: %w", ctx.Err())
	}
}

func (s *SupabaseStorage) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.projectURL, s.bucket, strings.TrimLeft(objectPath, "/"))
}

func (s *SupabaseStorage) Delete(ctx context.Context, objectPath string) error {
	if _, err := s.client.RemoveFile(s.bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("supabase delete: %w", err)
	}
	return nil
}
