package draft

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "drafts"

// DB defines the interface for draft persistence
type DB interface {
	// SaveDraft saves a draft to the database
	SaveDraft(draft *Draft) error

	// GetDraft retrieves a draft by ID
	GetDraft(id string) (*Draft, error)

	// ListDrafts returns drafts with the given status, newest first.
	// An empty status returns everything.
	ListDrafts(status string) ([]*Draft, error)

	// DeleteDraft removes a draft from the database
	DeleteDraft(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveDraft saves a draft to the database
func (b *BoltDB) SaveDraft(draft *Draft) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data, err := json.Marshal(draft)
		if err != nil {
			return fmt.Errorf("marshaling draft: %w", err)
		}
		return bucket.Put([]byte(draft.ID), data)
	})
}

// GetDraft retrieves a draft by ID
func (b *BoltDB) GetDraft(id string) (*Draft, error) {
	var draft *Draft
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("draft not found: %s", id)
		}
		return json.Unmarshal(data, &draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// ListDrafts returns drafts with the given status, newest first
func (b *BoltDB) ListDrafts(status string) ([]*Draft, error) {
	drafts := make([]*Draft, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var draft Draft
			if err := json.Unmarshal(v, &draft); err != nil {
				return fmt.Errorf("unmarshaling draft: %w", err)
			}
			if status != "" && draft.Status != status {
				return nil
			}
			drafts = append(drafts, &draft)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})
	return drafts, nil
}

// DeleteDraft removes a draft from the database
func (b *BoltDB) DeleteDraft(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
