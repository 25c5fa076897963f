// Package storage defines the persistence backend contract used by the document store,
// together with the errors every backend reports.
package storage

import (
	"context"
	"errors"

	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

var (
	// ErrNotFound means the backing resource (file, row, key) does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrDecode means the stored content is not a well-formed document.
	ErrDecode = errors.New("document is malformed")

	// ErrWrite means the document could not be persisted. The previously stored
	// document is left intact when a backend returns it.
	ErrWrite = errors.New("document write failed")
)

// Backend reads and replaces the whole document as one unit.
//
// Load returns a freshly decoded document on every call; callers may mutate it freely.
// Save replaces the stored document atomically: readers observe either the old or the
// new content, never a mix of both.
type Backend interface {
	Load(ctx context.Context) (*models.Document, error)
	Save(ctx context.Context, doc *models.Document) error
	Ping(ctx context.Context) error
	Close() error
}
