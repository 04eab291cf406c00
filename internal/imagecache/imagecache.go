// Package imagecache is the filesystem blob cache artwork lands in, keyed
// by the variant's stable iid. Writes are once-wins: a duplicate write of
// an iid that already exists is a successful no-op, which makes the fetch
// stage safe to redo after a lease expiry.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arcstream/arcstream/internal/storage"
)

// Cache stores each blob as <root>/<aa>/<iid>, sharded on the first two
// hex characters so one directory never accumulates the whole library.
type Cache struct {
	root string
}

func New(root string) (*Cache, error) {
	if root == "" {
		return nil, errors.New("image cache root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image cache root: %w", err)
	}
	return &Cache{root: root}, nil
}

func (c *Cache) path(iid string) string {
	shard := "00"
	if len(iid) >= 2 {
		shard = iid[:2]
	}
	return filepath.Join(c.root, shard, iid)
}

// Write stores data under iid unless a blob already exists there.
func (c *Cache) Write(_ context.Context, iid string, data []byte) error {
	target := c.path(iid)
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	// write-then-rename keeps a concurrent reader from observing a
	// partial blob
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (c *Cache) Read(_ context.Context, iid string) ([]byte, error) {
	data, err := os.ReadFile(c.path(iid))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	return data, err
}

func (c *Cache) Has(_ context.Context, iid string) (bool, error) {
	_, err := os.Stat(c.path(iid))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Stats walks the cache and totals blobs and bytes.
func (c *Cache) Stats(_ context.Context) (storage.CacheStats, error) {
	var stats storage.CacheStats
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) == ".tmp" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.ItemCount++
		stats.BytesUsed += info.Size()
		return nil
	})
	return stats, err
}

var _ storage.ImageCache = (*Cache)(nil)
