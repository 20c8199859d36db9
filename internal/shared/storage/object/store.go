package object

import (
	"context"
	"io"
)

// ObjectStore defines the contract for persisting and retrieving artifacts,
// such as archived batch outputs, under caller-chosen keys.
type ObjectStore interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}
