// Package memorystorage is a process-local backend. It keeps only the encoded
// form of the last saved document, so every Load hands out an independent copy,
// exactly like a file backend would.
package memorystorage

import (
	"context"
	"sync"

	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

type MemoryStorage struct {
	mu   sync.RWMutex
	data []byte
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		data: append([]byte(nil), storage.EmptyDocument...),
	}, nil
}

// NewWithContent seeds the storage with raw document content. The content is
// not validated until the first Load.
func NewWithContent(content []byte) *MemoryStorage {
	return &MemoryStorage{
		data: append([]byte(nil), content...),
	}
}

func (theStorage *MemoryStorage) Load(ctx context.Context) (*models.Document, error) {
	theStorage.mu.RLock()
	defer theStorage.mu.RUnlock()

	return storage.Decode(theStorage.data)
}

func (theStorage *MemoryStorage) Save(ctx context.Context, doc *models.Document) error {
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}

	theStorage.mu.Lock()
	theStorage.data = data
	theStorage.mu.Unlock()

	return nil
}

// Content returns a copy of the currently stored bytes.
func (theStorage *MemoryStorage) Content() []byte {
	theStorage.mu.RLock()
	defer theStorage.mu.RUnlock()

	return append([]byte(nil), theStorage.data...)
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
