// Package captions provides the transcript cache shared by every phase.
//
// Entries are keyed by video id and stored as JSON records in a
// storage.RecordStore. Expiry is checked lazily on read: an expired or
// undecodable record is deleted and reported as a miss. Storage failures
// never reach the caller; reads degrade to a miss and writes are logged.
package captions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tjfontaine/youtube-reviewer/internal/domain"
	"github.com/tjfontaine/youtube-reviewer/internal/storage"
)

// DefaultTTL is how long a cached transcript stays valid.
const DefaultTTL = 30 * 24 * time.Hour

// Entry is the persisted cache record.
type Entry struct {
	VideoID  string    `json:"video_id"`
	Captions string    `json:"captions"`
	CachedAt time.Time `json:"cached_at"`
}

// storedEntry distinguishes missing fields from empty ones when decoding.
type storedEntry struct {
	VideoID  *string    `json:"video_id"`
	Captions *string    `json:"captions"`
	CachedAt *time.Time `json:"cached_at"`
}

var errCorrupt = errors.New("corrupt cache record")

// Cache is safe for concurrent use.
type Cache struct {
	store  storage.RecordStore
	ttl    time.Duration
	now    func() time.Time
	hot    *lru.Cache[string, Entry]
	logger *slog.Logger

	hotSize int
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMemoryEntries keeps up to n decoded entries in an in-process LRU in
// front of the store. Zero, the default, disables the hot tier. A memory hit
// skips the store, so records rewritten or removed there by another writer
// are not seen until the entry is evicted or expires.
func WithMemoryEntries(n int) Option {
	return func(c *Cache) {
		c.hotSize = n
	}
}

// New creates a cache over store.
func New(store storage.RecordStore, logger *slog.Logger, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, errors.New("captions: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger.With("component", "captions_cache"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.hotSize > 0 {
		hot, err := lru.New[string, Entry](c.hotSize)
		if err != nil {
			return nil, fmt.Errorf("create memory tier: %w", err)
		}
		c.hot = hot
	}

	return c, nil
}

// TTL returns the configured time to live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached transcript for videoID if present and not expired.
func (c *Cache) Get(ctx context.Context, videoID string) (string, bool) {
	if c.hot != nil {
		if entry, ok := c.hot.Get(videoID); ok {
			if !c.expired(entry) {
				c.logger.Debug("cache hit", "video_id", videoID, "tier", "memory")
				return entry.Captions, true
			}
			c.hot.Remove(videoID)
		}
	}

	raw, err := c.store.Load(ctx, videoID)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug("cache miss", "video_id", videoID)
		return "", false
	}
	if err != nil {
		c.logger.Warn("cache read failed", "kind", domain.KindCacheStorage, "video_id", videoID, "error", err)
		return "", false
	}

	entry, err := decodeEntry(raw, videoID)
	if err != nil {
		c.logger.Warn("invalid cache record", "video_id", videoID, "error", err)
		c.remove(ctx, videoID)
		return "", false
	}

	if c.expired(entry) {
		c.logger.Info("cache expired", "video_id", videoID, "cached_at", entry.CachedAt)
		c.remove(ctx, videoID)
		return "", false
	}

	if c.hot != nil {
		c.hot.Add(videoID, entry)
	}
	c.logger.Info("cache hit", "video_id", videoID)
	return entry.Captions, true
}

// Put stores captions for videoID, overwriting any previous entry.
func (c *Cache) Put(ctx context.Context, videoID, captions string) {
	entry := Entry{
		VideoID:  videoID,
		Captions: captions,
		CachedAt: c.now().UTC(),
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("encode cache record", "video_id", videoID, "error", err)
		return
	}

	if c.hot != nil {
		c.hot.Add(videoID, entry)
	}

	if err := c.store.Save(ctx, videoID, raw); err != nil {
		c.logger.Error("cache write failed", "kind", domain.KindCacheStorage, "video_id", videoID, "error", err)
		return
	}
	c.logger.Info("cached captions", "video_id", videoID, "bytes", len(captions))
}

func (c *Cache) expired(e Entry) bool {
	return c.now().Sub(e.CachedAt) > c.ttl
}

func (c *Cache) remove(ctx context.Context, videoID string) {
	if c.hot != nil {
		c.hot.Remove(videoID)
	}
	if err := c.store.Delete(ctx, videoID); err != nil {
		c.logger.Warn("cache delete failed", "kind", domain.KindCacheStorage, "video_id", videoID, "error", err)
	}
}

func decodeEntry(raw []byte, videoID string) (Entry, error) {
	var s storedEntry
	if err := json.Unmarshal(raw, &s); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if s.Captions == nil || s.CachedAt == nil {
		return Entry{}, fmt.Errorf("%w: missing captions or cached_at", errCorrupt)
	}
	if s.VideoID != nil && *s.VideoID != videoID {
		return Entry{}, fmt.Errorf("%w: record belongs to %s", errCorrupt, *s.VideoID)
	}
	return Entry{VideoID: videoID, Captions: *s.Captions, CachedAt: *s.CachedAt}, nil
}
