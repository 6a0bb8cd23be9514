// Package storage archives the original bytes of ingested documents.
package storage

import (
	"context"
	"io"
	"path"
)

type Archiver interface {
	// Put stores the object and returns its location URI.
	Put(ctx context.Context, objectName, contentType string, r io.Reader) (uri string, err error)
	// Remove is a no-op for unknown objects.
	Remove(ctx context.Context, objectName string) error
	Close() error
}

// DocumentObject is the object name of an archived source document.
func DocumentObject(fileName string) string {
	return path.Join("documents", fileName)
}
