package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/models"
)

// DefaultCapacity bounds the number of resident models.
const DefaultCapacity = 16384

// Source is the storage capability the cache consumes.
type Source interface {
	Stat(name string) (models.ProfileMeta, error)
	Read(name string) ([]byte, error)
}

type cached struct {
	mtime int64
	model *Model
}

// Cache holds parsed models keyed by profile name. An entry is valid while
// the backing file's modification time matches the one it was built from.
type Cache struct {
	src    Source
	logger *slog.Logger

	mu  sync.Mutex
	lru *simplelru.LRU[string, cached]
}

// NewCache creates a cache over src holding at most capacity models.
// A non-positive capacity selects DefaultCapacity.
func NewCache(src Source, capacity int, logger *slog.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	lru, err := simplelru.NewLRU[string, cached](capacity, nil)
	if err != nil {
		panic(err) // capacity is positive
	}
	return &Cache{src: src, logger: logger, lru: lru}
}

// Get returns the model for name, rebuilding it when the file changed.
// A missing profile yields apperr.ErrNotFound.
func (c *Cache) Get(ctx context.Context, name string) (*Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, err := c.src.Stat(name)
	if err != nil {
		return nil, mapErr(name, err)
	}
	mtime := meta.ModTime.UnixNano()

	c.mu.Lock()
	hit, ok := c.lru.Get(name)
	c.mu.Unlock()
	if ok && hit.mtime == mtime {
		return hit.model, nil
	}

	data, err := c.src.Read(name)
	if err != nil {
		return nil, mapErr(name, err)
	}
	m := Build(name, string(data))

	c.mu.Lock()
	c.lru.Add(name, cached{mtime: mtime, model: m})
	c.mu.Unlock()

	c.logger.Debug("profile: rebuilt model", slog.String("profile", name), slog.Int("bytes", len(data)))
	return m, nil
}

// Invalidate drops the cached model for name, if any.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	c.lru.Remove(name)
	c.mu.Unlock()
}

// Len reports the number of resident models.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func mapErr(name string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalidName) {
		return err
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("profile %s: %w", name, apperr.ErrNotFound)
	}
	return fmt.Errorf("profile %s: %w", name, err)
}
