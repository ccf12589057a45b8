package relay

import (
	"time"

	"github.com/dgraph-io/badger/v3"
)

// Cache stores the last good aggregation responses so upstream outages serve
// slightly stale data instead of errors.
type Cache struct {
	db *badger.DB
}

// OpenCache opens a badger store at path, or in memory when path is empty.
func OpenCache(path string) (*Cache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Get returns the cached value for key, or ok=false.
func (c *Cache) Get(key string) ([]byte, bool) {
	var out []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return out, true
}

// Set stores val under key with a TTL.
func (c *Cache) Set(key string, val []byte, ttl time.Duration) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), val)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Close releases the store.
func (c *Cache) Close() error {
	return c.db.Close()
}
