package repository

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	bolt "go.etcd.io/bbolt"
)

var recordBucket = []byte("records")

// Bolt is a Store backed by a single bbolt file. Every record lives in one bucket.
type Bolt struct {
	path string
	db   *bolt.DB
}

// NewBolt opens (creating if needed) the bbolt file at path.
func NewBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, goerr.New("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create store directory", goerr.V("path", path))
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open bolt db", goerr.V("path", path))
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(recordBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create record bucket", goerr.V("path", path))
	}

	return &Bolt{path: path, db: db}, nil
}

func (b *Bolt) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		// bytes returned by Get are only valid inside the transaction
		if v := tx.Bucket(recordBucket).Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to read record", goerr.V("key", key))
	}
	return value, found, nil
}

func (b *Bolt) Set(ctx context.Context, key, value string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to write record", goerr.V("key", key))
	}
	return nil
}

func (b *Bolt) Remove(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Delete([]byte(key))
	})
	if err != nil {
		return goerr.Wrap(err, "failed to remove record", goerr.V("key", key))
	}
	return nil
}

func (b *Bolt) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to enumerate records", goerr.V("path", b.path))
	}
	return keys, nil
}

// Close the underlying DB
func (b *Bolt) Close() error {
	return b.db.Close()
}
