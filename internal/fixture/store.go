// Package fixture is a self-contained backend for the structure endpoint,
// meant for development and demos: page structures and chunk lists live in
// a single bbolt file, optionally seeded from real PDFs.
package fixture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/structlay/internal/structure"
	"go.etcd.io/bbolt"
)

var (
	bucketPages  = []byte("pages")
	bucketChunks = []byte("chunks")
)

// Store persists fixture documents.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open fixture db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketPages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketChunks); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// pageKey orders a document's pages lexicographically so prefix scans
// walk them in reading order. Page is bounded well below five digits.
func pageKey(docID string, page int) []byte {
	return []byte(fmt.Sprintf("%s/%05d", docID, page))
}

func (s *Store) PutPage(ps *structure.PageStructure) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ps)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPages).Put(pageKey(ps.DocID, ps.Page), data)
	})
}

// Page returns the stored structure, or nil when the page is unknown.
func (s *Store) Page(docID string, page int) (*structure.PageStructure, error) {
	var ps *structure.PageStructure
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketPages).Get(pageKey(docID, page))
		if data == nil {
			return nil
		}
		ps = &structure.PageStructure{}
		return json.Unmarshal(data, ps)
	})
	if err != nil {
		return nil, err
	}
	return ps, nil
}

func (s *Store) PutChunks(docID string, chunks []structure.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(chunks)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketChunks).Put([]byte(docID), data)
	})
}

// Chunks returns the document's chunk list, or nil when unknown.
func (s *Store) Chunks(docID string) ([]structure.Chunk, error) {
	var chunks []structure.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &chunks)
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Documents lists the distinct ids with at least one stored page.
func (s *Store) Documents() ([]string, error) {
	var docs []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		last := ""
		return tx.Bucket(bucketPages).ForEach(func(k, v []byte) error {
			key := string(k)
			i := strings.LastIndex(key, "/")
			if i < 0 {
				return nil
			}
			if id := key[:i]; id != last {
				last = id
				docs = append(docs, id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// PageCount reports how many pages are stored for a document.
func (s *Store) PageCount(docID string) (int, error) {
	count := 0
	prefix := []byte(docID + "/")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPages).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteDocument removes all pages and chunks stored under docID.
func (s *Store) DeleteDocument(docID string) error {
	prefix := []byte(docID + "/")
	return s.db.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketPages).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return tx.Bucket(bucketChunks).Delete([]byte(docID))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
