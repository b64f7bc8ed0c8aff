// Package cache persists raw fetch payloads keyed by request identity.
//
// Stable keys (history pages, settled comment pages) are served from disk
// forever once stored. Volatile keys (the newest page of a still-growing
// list) always hit the fetch function; the stored copy is a read-through
// audit log, never a short-circuit.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wbscraper/pkg/logger"
)

// Volatility decides whether a stored payload may be served without fetching.
type Volatility int

const (
	// Stable payloads never change once observed and are cached permanently
	Stable Volatility = iota
	// Volatile payloads must always be refetched
	Volatile
)

func (v Volatility) String() string {
	if v == Stable {
		return "stable"
	}
	return "volatile"
}

// FetchFunc produces the payload for a key on a cache miss or volatile read.
type FetchFunc func(ctx context.Context) ([]byte, error)

type envelope struct {
	CachedAt int64  `json:"cached_at"`
	Data     []byte `json:"data"`
}

// Cache is a file-per-key payload store that survives process restarts.
type Cache struct {
	dir    string
	logger logger.Logger
}

// New creates the cache directory if needed.
func New(dir string, log logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir, logger: log}, nil
}

// GetOrFetch returns the payload for key. Stable keys return the stored
// payload without invoking fetch; volatile keys always invoke fetch and
// overwrite the stored payload on success. A fetch failure writes nothing and
// propagates; a stale stable entry is never served in place of a required
// volatile fetch.
func (c *Cache) GetOrFetch(ctx context.Context, key string, vol Volatility, fetch FetchFunc) ([]byte, error) {
	if vol == Stable {
		if data, ok := c.get(key); ok {
			c.logger.DebugWithFields("cache hit", map[string]interface{}{
				"key": key,
			})
			return data, nil
		}
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.put(key, data); err != nil {
		// a failed cache write must not fail the unit
		c.logger.WarnWithFields("cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return data, nil
}

// Contains reports whether a payload is stored for key.
func (c *Cache) Contains(key string) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Clear removes every stored payload.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) path(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func (c *Cache) get(key string) ([]byte, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// corrupt entry, treat as miss
		return nil, false
	}
	return env.Data, true
}

// put writes atomically via tmp file and rename so a crash mid-write cannot
// leave a truncated entry.
func (c *Cache) put(key string, data []byte) error {
	raw, err := json.Marshal(envelope{CachedAt: time.Now().Unix(), Data: data})
	if err != nil {
		return err
	}

	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
