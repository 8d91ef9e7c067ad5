// Package storage keeps uploaded violation photos in a blob bucket.
package storage

import (
	"context"
	"io"
)

type Storage interface {
	Upload(ctx context.Context, path string, data io.Reader, contentType string) error
	Delete(ctx context.Context, paths ...string) error
	PublicURL(path string) string
}
