// Package fetch implements the content-addressed lookups used to serve
// peers: VID common data, reconstructed payloads, and leaves by hash
// (spec.md §4.H). Every lookup is backed by the consensus persistence
// store and rate-limited against the store to bound load from misbehaving
// peers. Only VID-common lookups are fronted by the local cache; payload
// and leaf lookups always go to the store.
package fetch

import (
	"context"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-ds-leveldb"
)

// Cache is a content-addressed local cache in front of the persistence
// store, keyed by content hash.
type Cache struct {
	store ds.Datastore
}

// OpenCache opens (creating if necessary) a leveldb-backed cache at dir.
func OpenCache(dir string) (*Cache, error) {
	store, err := leveldb.NewDatastore(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// NewMemCache returns an in-memory cache, useful for tests and for nodes
// configured without a persistent fetch cache.
func NewMemCache() *Cache {
	return &Cache{store: ds.NewMapDatastore()}
}

func (c *Cache) Close() error {
	return c.store.Close()
}

func cacheKey(namespace, hash string) ds.Key {
	return ds.NewKey("/" + namespace + "/" + hash)
}

func (c *Cache) get(ctx context.Context, namespace, hash string) ([]byte, bool) {
	val, err := c.store.Get(ctx, cacheKey(namespace, hash))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *Cache) put(ctx context.Context, namespace, hash string, val []byte) {
	_ = c.store.Put(ctx, cacheKey(namespace, hash), val)
}
