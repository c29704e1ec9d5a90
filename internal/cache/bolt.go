package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const bucketName = "extractions"

// Bolt is a persistent cache stored in a single bbolt file.
type Bolt struct {
	db         *bbolt.DB
	defaultTTL time.Duration
	now        func() time.Time
}

type boltEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// NewBolt opens (or creates) the cache file at path.
func NewBolt(path string, defaultTTL time.Duration) (*Bolt, error) {
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

	return &Bolt{db: db, defaultTTL: defaultTTL, now: time.Now}, nil
}

// Get returns the stored value. Expired entries are removed.
func (b *Bolt) Get(key string) ([]byte, bool) {
	var entry boltEntry
	found := false

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("unmarshaling entry: %w", err)
		}
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && b.now().After(entry.ExpiresAt) {
		_ = b.Delete(key)
		return nil, false
	}
	return entry.Data, true
}

// Set stores value. A ttl of zero uses the default; a negative default means no expiry.
func (b *Bolt) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = b.defaultTTL
	}

	entry := boltEntry{Data: value}
	if ttl > 0 {
		entry.ExpiresAt = b.now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

func (b *Bolt) Delete(key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Close closes the database file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
