package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/compat"
	"github.com/dyike/vsdocs/internal/crawl"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

// newSession fetches the collection config and members and starts a session over them
func newSession(ctx context.Context, backend library.Backend, collectionID string, logger *zap.Logger) (*reconciler.Session, error) {
	collection, err := backend.CollectionConfig(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", collectionID, err)
	}
	members, err := backend.ListCollectionMembers(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members of %s: %w", collectionID, err)
	}
	return reconciler.New(reconciler.Options{
		Collection: collection,
		Members:    members,
		Checker:    compat.NewRules(),
		Logger:     logger.Named("session"),
	}), nil
}

// fetch runs a ticket to completion outside the TUI
func fetch(ctx context.Context, s *reconciler.Session, backend library.Lister, t reconciler.Ticket) error {
	switch t.Kind {
	case reconciler.TicketCrawl:
		entries, err := crawl.Crawl(ctx, backend, t.Path, cfg.CrawlConcurrency)
		s.ApplyCrawl(t, entries, err)
		return err
	default:
		entries, err := backend.ListDocuments(ctx, t.Path)
		s.ApplyListing(t, entries, err)
		return s.FetchError()
	}
}
