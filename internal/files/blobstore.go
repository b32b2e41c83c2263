// Huddle - Location-Based Ephemeral Groups
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/huddle

// Package files stores group file blobs in an embedded badger database.
// Metadata lives in PostgreSQL; this store only maps file ID to bytes,
// namespaced by the group's storage folder so a whole group can be
// dropped with one prefix scan.
package files

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/huddle/internal/logging"
)

// ErrBlobNotFound is returned when no blob exists for the key.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is a badger-backed blob store.
type BlobStore struct {
	db *badger.DB
}

// Open opens or creates the store at path. An empty path opens an
// in-memory store, used by tests.
func Open(path string) (*BlobStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{}).
		WithCompactL0OnClose(true)
	if path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob store at %q: %w", path, err)
	}
	return &BlobStore{db: db}, nil
}

func blobKey(storageFolder, fileID string) []byte {
	return []byte(storageFolder + "/" + fileID)
}

// Put stores the blob under the group's storage folder.
func (s *BlobStore) Put(storageFolder, fileID string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(storageFolder, fileID), data)
	})
	if err != nil {
		return fmt.Errorf("put blob %s/%s: %w", storageFolder, fileID, err)
	}
	return nil
}

// Get returns the blob bytes.
func (s *BlobStore) Get(storageFolder, fileID string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(storageFolder, fileID))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s/%s: %w", storageFolder, fileID, err)
	}
	return out, nil
}

// Delete removes one blob. Deleting a missing blob is not an error.
func (s *BlobStore) Delete(storageFolder, fileID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(blobKey(storageFolder, fileID))
	})
	if err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", storageFolder, fileID, err)
	}
	return nil
}

// DeleteFolder removes every blob under the group's storage folder.
// Returns the number of blobs removed.
func (s *BlobStore) DeleteFolder(storageFolder string) (int, error) {
	prefix := []byte(storageFolder + "/")

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan folder %s: %w", storageFolder, err)
	}

	for _, key := range keys {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return 0, fmt.Errorf("delete key %s: %w", key, err)
		}
	}
	return len(keys), nil
}

// Close flushes and closes the store.
func (s *BlobStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Debug().Msgf("badger: "+format, args...)
}
