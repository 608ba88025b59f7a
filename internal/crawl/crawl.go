// Package crawl walks the whole document library breadth-first.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dyike/vsdocs/internal/library"
)

// DefaultConcurrency bounds parallel listings within one level.
const DefaultConcurrency = 4

// Crawl lists root and every folder below it, each folder exactly once.
// Entries are deduplicated by path and carry ParentPath, the folder they were
// listed from ("/" for the root).
//
// Folders that fail to list are skipped. Their errors are joined and returned
// together with whatever was collected, wrapped in library.ErrFetchFailed.
func Crawl(ctx context.Context, lister library.Lister, root string, concurrency int) ([]library.DocumentEntry, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		out     []library.DocumentEntry
		errs    []error
		seen    = make(map[string]struct{})
		visited = map[string]struct{}{library.CleanPath(root): {}}
	)

	level := []string{library.CleanPath(root)}
	for len(level) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var next []string
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, folder := range level {
			folder := folder
			g.Go(func() error {
				entries, err := lister.ListDocuments(gctx, folder)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", library.DisplayPath(folder), err))
					return nil
				}
				for _, e := range library.NormalizeAll(entries) {
					if _, dup := seen[e.Path]; dup {
						continue
					}
					seen[e.Path] = struct{}{}
					e.ParentPath = library.DisplayPath(folder)
					out = append(out, e)

					if e.IsFolder {
						if _, ok := visited[e.Path]; !ok {
							visited[e.Path] = struct{}{}
							next = append(next, e.Path)
						}
					}
				}
				return nil
			})
		}
		// workers never return errors; failures are collected above
		_ = g.Wait()
		level = next
	}

	if len(errs) > 0 {
		return out, fmt.Errorf("%w: %d folder(s) failed: %w", library.ErrFetchFailed, len(errs), errors.Join(errs...))
	}
	return out, nil
}
