package embedding

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/estategraph/estate-engine/pkg/config"
)

// VectorCache memoizes provider calls across runs, keyed by model and text.
// Implementations must be safe for concurrent use by the worker shards.
type VectorCache interface {
	Get(model, text string) ([]float64, bool)
	Put(model, text string, vector []float64)
	Close() error
}

// NewVectorCache builds the configured cache: disabled yields a no-op, an
// empty path yields a process-local in-memory cache, otherwise a persistent
// badger store at the path.
func NewVectorCache(cfg config.CacheConfig, logger *zap.Logger) (VectorCache, error) {
	if !cfg.Enabled {
		return noopCache{}, nil
	}
	if cfg.Path == "" {
		return newMemoryCache(), nil
	}
	return newBadgerCache(cfg.Path, logger)
}

// cacheKey collapses (model, text) into a fixed-size key. The NUL separator
// keeps distinct pairs from colliding.
func cacheKey(model, text string) []byte {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return h.Sum(nil)
}

type noopCache struct{}

func (noopCache) Get(string, string) ([]float64, bool) { return nil, false }
func (noopCache) Put(string, string, []float64)        {}
func (noopCache) Close() error                         { return nil }

// memoryCache is a map-backed cache for runs without a cache directory.
type memoryCache struct {
	mu      sync.RWMutex
	vectors map[string][]float64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{vectors: make(map[string][]float64)}
}

func (c *memoryCache) Get(model, text string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vectors[string(cacheKey(model, text))]
	return v, ok
}

func (c *memoryCache) Put(model, text string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[string(cacheKey(model, text))] = vector
}

func (c *memoryCache) Close() error { return nil }

// badgerCache persists vectors on disk so repeated runs over the same corpus
// skip the provider entirely.
type badgerCache struct {
	db     *badger.DB
	logger *zap.Logger
}

func newBadgerCache(path string, logger *zap.Logger) (*badgerCache, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open vector cache at %s: %w", path, err)
	}
	return &badgerCache{db: db, logger: logger.Named("vector_cache")}, nil
}

func (c *badgerCache) Get(model, text string) ([]float64, bool) {
	var vector []float64
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(model, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &vector)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return vector, true
}

func (c *badgerCache) Put(model, text string, vector []float64) {
	val, err := json.Marshal(vector)
	if err != nil {
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(model, text), val)
	})
	if err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (c *badgerCache) Close() error { return c.db.Close() }
