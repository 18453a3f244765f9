package store

import (
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.etcd.io/bbolt"

	"github.com/slipwayhq/slipway/internal/xlog"
)

// Entry is a cached outcome for one fingerprint: the output produced,
// how long it took, the run count it was produced at, and the
// execution log recorded while producing it (spec.md section 3,
// "Cache").
type Entry struct {
	Output   interface{}   `cbor:"output"`
	Duration time.Duration `cbor:"duration"`
	RunCount int           `cbor:"runCount"`
	Logs     []string      `cbor:"logs"`
}

// Cache is the content-addressed map from input fingerprint to Entry.
type Cache interface {
	Get(fingerprint string) (*Entry, bool, error)
	Put(fingerprint string, entry *Entry) error
}

// MemCache is a process-lifetime, in-memory Cache backed by an LRU,
// used standalone or as the fast tier in front of a BoltCache.
type MemCache struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *Entry]
}

// NewMemCache builds a MemCache holding up to size entries.
func NewMemCache(size int) (*MemCache, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemCache{cache: c}, nil
}

func (m *MemCache) Get(fingerprint string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, have := m.cache.Get(fingerprint)
	return e, have, nil
}

func (m *MemCache) Put(fingerprint string, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(fingerprint, entry)
	return nil
}

// BoltCache persists cache entries across process runs in a single
// bbolt bucket, CBOR-encoded for compactness.
type BoltCache struct {
	db     *bbolt.DB
	bucket []byte
}

var cacheBucket = []byte("slipway-cache")

// OpenBoltCache opens (creating if necessary) a BoltCache at
// filename.
func OpenBoltCache(filename string) (*BoltCache, error) {
	db, err := bbolt.Open(filename, 0644, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	xlog.Logf("store: opened bolt cache %s", filename)
	return &BoltCache{db: db, bucket: cacheBucket}, nil
}

func (b *BoltCache) Close() error {
	xlog.Logf("store: closing bolt cache %s", b.db.Path())
	return b.db.Close()
}

func (b *BoltCache) Get(fingerprint string) (*Entry, bool, error) {
	var entry *Entry
	err := b.db.View(func(tx *bbolt.Tx) error {
		bs := tx.Bucket(b.bucket).Get([]byte(fingerprint))
		if bs == nil {
			return nil
		}
		var e Entry
		if err := cbor.Unmarshal(bs, &e); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, entry != nil, nil
}

func (b *BoltCache) Put(fingerprint string, entry *Entry) error {
	bs, err := cbor.Marshal(entry)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(fingerprint), bs)
	})
}

// TieredCache checks a fast MemCache before falling back to a durable
// Cache (typically a BoltCache), populating the fast tier on a
// durable hit.
type TieredCache struct {
	Fast    Cache
	Durable Cache
}

func (t *TieredCache) Get(fingerprint string) (*Entry, bool, error) {
	if t.Fast != nil {
		if e, have, err := t.Fast.Get(fingerprint); err != nil {
			return nil, false, err
		} else if have {
			return e, true, nil
		}
	}
	if t.Durable == nil {
		return nil, false, nil
	}
	e, have, err := t.Durable.Get(fingerprint)
	if err != nil || !have {
		return nil, have, err
	}
	if t.Fast != nil {
		_ = t.Fast.Put(fingerprint, e)
	}
	return e, true, nil
}

func (t *TieredCache) Put(fingerprint string, entry *Entry) error {
	if t.Fast != nil {
		if err := t.Fast.Put(fingerprint, entry); err != nil {
			return err
		}
	}
	if t.Durable != nil {
		return t.Durable.Put(fingerprint, entry)
	}
	return nil
}
