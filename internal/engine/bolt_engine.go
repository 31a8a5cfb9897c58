package engine

import (
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/mvasko/kvs/pkg/kvserr"
)

var kvBucket = []byte("kv")

// BoltEngine is a thin Engine adapter over an embedded bbolt database,
// standing in for spec.md §4.5's "thin wrapper over an embedded
// off-the-shelf key/value store" — proof that the server's dependency on
// Engine is genuinely substitutable, not just a single concrete type in
// disguise.
type BoltEngine struct {
	db *bbolt.DB
}

// OpenBolt opens (creating if absent) a bbolt-backed Engine rooted at
// dir/kv.db.
func OpenBolt(dir string) (*BoltEngine, error) {
	if err := checkMarker(dir, FlavorBolt); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "kv.db")
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.CodeIO, err, "open bolt database").WithDetail("path", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, kvserr.Wrap(kvserr.CodeIO, err, "create bolt bucket")
	}

	return &BoltEngine{db: db}, nil
}

func (e *BoltEngine) Set(key, value string) error {
	err := e.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return kvserr.Wrap(kvserr.CodeIO, err, "bolt put").WithDetail("key", key)
	}
	return nil
}

func (e *BoltEngine) Get(key string) (string, bool, error) {
	var value []byte
	err := e.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(kvBucket).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, kvserr.Wrap(kvserr.CodeIO, err, "bolt get").WithDetail("key", key)
	}
	if value == nil {
		return "", false, nil
	}
	return string(value), true, nil
}

func (e *BoltEngine) Remove(key string) error {
	err := e.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(kvBucket)
		if b.Get([]byte(key)) == nil {
			return kvserr.New(kvserr.CodeNotFound, "Key not found").WithDetail("key", key)
		}
		return b.Delete([]byte(key))
	})
	return err
}

func (e *BoltEngine) Close() error {
	if err := e.db.Close(); err != nil {
		return kvserr.Wrap(kvserr.CodeIO, err, "close bolt database")
	}
	return nil
}
