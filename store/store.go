// Package store persists documents in a local bbolt database, one bucket
// holding the latest markdown text per document ID.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketDocuments = []byte("documents")

// Bolt is a document store backed by a single bbolt file. Safe for
// concurrent use.
type Bolt struct {
	db *bolt.DB
}

// Open opens or creates the database file and ensures the documents
// bucket exists. Opening a file another process holds open fails after a
// one second lock timeout.
func Open(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Put stores the latest text for a document, replacing any earlier value.
func (s *Bolt) Put(docID, text string) error {
	if docID == "" {
		return fmt.Errorf("put: empty document id")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(docID), []byte(text))
	})
}

// Get returns the stored text for a document. ok is false when the
// document was never stored.
func (s *Bolt) Get(docID string) (text string, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDocuments).Get([]byte(docID))
		if v != nil {
			text = string(v)
			ok = true
		}
		return nil
	})
	return text, ok, err
}

// Close closes the underlying database file.
func (s *Bolt) Close() error {
	return s.db.Close()
}

// CommitFunc adapts Put on one document to a session's Commit option.
func (s *Bolt) CommitFunc(docID string) func(text string) error {
	return func(text string) error {
		return s.Put(docID, text)
	}
}
