package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Patrick2402/image-version-analyzer/pkg/logger"
)

// DefaultConcurrency bounds parallel tag fetches.
const DefaultConcurrency = 4

// TagList is the outcome of fetching one repository.
type TagList struct {
	Tags []string
	Err  error
}

// Prefetch fetches tags once per distinct repository in refs, at most limit
// at a time. Failures are recorded per repository and never returned.
// The result is keyed by Reference.Key.
func Prefetch(ctx context.Context, f TagFetcher, refs []Reference, limit int) map[string]TagList {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var (
		mu  sync.Mutex
		out = make(map[string]TagList, len(refs))
		g   errgroup.Group
	)
	g.SetLimit(limit)

	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		key := ref.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		ref := ref
		g.Go(func() error {
			tags, err := f.Tags(ctx, ref)
			if err != nil {
				logger.Debugf("Registry: %s: %v", key, err)
			} else {
				logger.Debugf("Registry: %s: %d tags", key, len(tags))
			}

			mu.Lock()
			out[key] = TagList{Tags: tags, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return out
}
