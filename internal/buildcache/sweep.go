package buildcache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Sweep removes scratch directories under the root that carry the cache's
// prefix and are not resident, left behind by a previous process. It
// returns how many were removed.
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return 0, fmt.Errorf("buildcache: sweep: %w", err)
	}

	resident := make(map[string]bool)
	c.mu.Lock()
	for _, a := range c.lru.Values() {
		resident[a.Dir] = true
	}
	c.mu.Unlock()

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !e.IsDir() || !strings.HasPrefix(e.Name(), c.prefix) {
			continue
		}
		dir := filepath.Join(c.root, e.Name())
		if resident[dir] {
			continue
		}
		if c.remove(dir) == nil {
			removed++
		}
	}
	c.metrics.AddSwept(removed)
	if removed > 0 {
		c.logger.Info("buildcache: swept orphaned scratch dirs", slog.Int("count", removed))
	}
	return removed, nil
}
