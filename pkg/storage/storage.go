// Package storage describes the object store used for archived roster reports.
package storage

import (
	"context"
	"io"
	"time"
)

type UploadInput struct {
	Key         string
	ContentType string
	Body        io.Reader
	Size        int64
}

// Object is a stored object as returned by a listing.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	URL          string    `json:"url"`
}

type Service interface {
	// PutObject uploads the body and returns a URL clients can fetch it from.
	PutObject(ctx context.Context, in UploadInput) (string, error)
	// ListObjects returns every object whose key starts with prefix.
	ListObjects(ctx context.Context, prefix string) ([]Object, error)
}
