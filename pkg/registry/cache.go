package registry

import (
	"context"
	"sync"
)

// Cache is a TagFetcher that fetches each repository once and replays the
// answer, failures included. It is safe for concurrent use.
type Cache struct {
	next TagFetcher

	mu      sync.Mutex
	entries map[string]TagList
}

// NewCache wraps next.
func NewCache(next TagFetcher) *Cache {
	return &Cache{next: next, entries: map[string]TagList{}}
}

// Tags returns the cached tags for ref's repository, fetching them on the
// first call. Concurrent first calls for one repository may both fetch.
func (c *Cache) Tags(ctx context.Context, ref Reference) ([]string, error) {
	key := ref.Key()

	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return e.Tags, e.Err
	}

	tags, err := c.next.Tags(ctx, ref)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = TagList{Tags: tags, Err: err}
	c.mu.Unlock()
	return tags, err
}
