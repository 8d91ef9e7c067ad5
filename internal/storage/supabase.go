package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseStorage stores objects in one bucket of a Supabase project.
type SupabaseStorage struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

func NewSupabaseStorage(supabaseURL, serviceKey, bucket string) *SupabaseStorage {
	return &SupabaseStorage{
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (s *SupabaseStorage) Upload(ctx context.Context, path string, data io.Reader, contentType string) error {
	url := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, data)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", contentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("upload failed (%d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Delete removes objects in one request. Missing objects are not an error.
func (s *SupabaseStorage) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	url := fmt.Sprintf("%s/object/%s", s.baseURL, s.bucket)

	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return fmt.Errorf("marshal delete request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("delete failed (%d)", resp.StatusCode)
	}
	return nil
}

func (s *SupabaseStorage) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, path)
}

func (s *SupabaseStorage) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}
