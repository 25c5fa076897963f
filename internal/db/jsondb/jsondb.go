// Package jsondb keeps the document in a single JSON file.
//
// The whole file is read on every Load and rewritten on every Save. Save never
// writes into the live file: it writes a temporary file next to it, flushes it
// to disk and renames it over the original, so an interrupted write leaves the
// previous document in place.
package jsondb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

const filePerm = 0644

type JSONDB struct {
	fileName string
}

// New returns a file backend for fileName, creating the file with an empty
// document when it does not exist yet.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{fileName: fileName}

	_, err := os.Stat(fileName)
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := db.replaceFile(storage.EmptyDocument); err != nil {
		return nil, err
	}

	return db, nil
}

// FileName returns the path of the backing file.
func (db *JSONDB) FileName() string {
	return db.fileName
}

func (db *JSONDB) Load(ctx context.Context) (*models.Document, error) {
	data, err := os.ReadFile(db.fileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, db.fileName)
		}
		return nil, fmt.Errorf("error reading %s: %w", db.fileName, err)
	}

	return storage.Decode(data)
}

func (db *JSONDB) Save(ctx context.Context, doc *models.Document) error {
	data, err := storage.Encode(doc)
	if err != nil {
		return err
	}

	return db.replaceFile(data)
}

func (db *JSONDB) replaceFile(data []byte) (err error) {
	dir, base := filepath.Split(db.fileName)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: error creating temporary file: %w", storage.ErrWrite, err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("%w: error writing to file: %w", storage.ErrWrite, err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: error syncing file: %w", storage.ErrWrite, err)
	}

	if err = tmp.Chmod(filePerm); err != nil {
		return fmt.Errorf("%w: error setting file mode: %w", storage.ErrWrite, err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: error closing file: %w", storage.ErrWrite, err)
	}

	if err = os.Rename(tmpName, db.fileName); err != nil {
		return fmt.Errorf("%w: error replacing %s: %w", storage.ErrWrite, db.fileName, err)
	}

	if err = syncDir(dir); err != nil {
		return fmt.Errorf("%w: error syncing directory %s: %w", storage.ErrWrite, dir, err)
	}

	return nil
}

// syncDir flushes the directory entry so that a completed rename survives a crash.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTSUP) {
		return err
	}

	return nil
}

// Ping checks that the backing file is still there.
func (db *JSONDB) Ping(ctx context.Context) error {
	if _, err := os.Stat(db.fileName); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, db.fileName)
		}
		return err
	}

	return nil
}

// Close is a no-op: every Save is already on disk.
func (db *JSONDB) Close() error {
	return nil
}
