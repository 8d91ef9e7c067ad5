package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotType, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL+"/", "svc-key", "violation-photos")
	err := s.Upload(context.Background(), "violations/acme/v1/0.jpg", strings.NewReader("jpeg"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/violation-photos/violations/acme/v1/0.jpg", gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, "Bearer svc-key", gotAuth)
	assert.Equal(t, "jpeg", gotBody)
	assert.Equal(t, srv.URL+"/storage/v1/object/public/violation-photos/violations/acme/v1/0.jpg",
		s.PublicURL("violations/acme/v1/0.jpg"))
}

func TestSupabaseUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Payload too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "k", "b")
	err := s.Upload(context.Background(), "x.png", strings.NewReader("x"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "413")
}

func TestSupabaseDelete(t *testing.T) {
	var method, path string
	var body map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSupabaseStorage(srv.URL, "k", "photos")
	require.NoError(t, s.Delete(context.Background(), "a.jpg", "b.jpg"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/storage/v1/object/photos", path)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, body["prefixes"])

	// No paths means no request.
	method = ""
	require.NoError(t, s.Delete(context.Background()))
	assert.Empty(t, method)
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage("http://localhost/files/")
	ctx := context.Background()

	require.NoError(t, m.Upload(ctx, "a/b.png", strings.NewReader("png"), "image/png"))
	obj, ok := m.Get("a/b.png")
	require.True(t, ok)
	assert.Equal(t, []byte("png"), obj.Data)
	assert.Equal(t, "http://localhost/files/a/b.png", m.PublicURL("a/b.png"))

	require.NoError(t, m.Delete(ctx, "a/b.png", "missing"))
	assert.Equal(t, 0, m.Len())
}
