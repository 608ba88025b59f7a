package reconciler

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/library"
)

// NavigateTo makes path the current folder and returns the listing ticket the
// host must fetch. A cached listing for path is shown immediately. Selections
// are not touched.
func (s *Session) NavigateTo(path string) Ticket {
	path = library.CleanPath(path)
	s.currentPath = path
	s.pending = nil
	if _, ok := s.listings[path]; ok {
		s.displayedPath = path
		s.displayed = true
	}
	t := s.nextTicket(TicketListing, path)
	s.latestNav = t.Seq
	s.loading = true
	return t
}

// NavigateToParent moves one level up. At the root it does nothing and
// returns ok=false.
func (s *Session) NavigateToParent() (Ticket, bool) {
	if s.currentPath == "" {
		return Ticket{}, false
	}
	return s.NavigateTo(library.ParentOf(s.currentPath)), true
}

// ApplyListing hands back the result for a listing ticket. It reports whether
// the result was applied; results for superseded tickets, or after Close, are
// dropped without any effect.
//
// A failed fetch records an error and leaves cached entries, the displayed
// folder and all selections as they were.
func (s *Session) ApplyListing(t Ticket, entries []library.DocumentEntry, err error) bool {
	if s.closed || t.Kind != TicketListing || t.Seq != s.latestNav {
		s.logger.Debug("discarding stale listing",
			zap.String("path", t.Path),
			zap.Uint64("seq", t.Seq),
			zap.Uint64("latest", s.latestNav))
		return false
	}
	s.loading = false

	pending := s.pending
	s.pending = nil

	if err != nil {
		s.fetchErr = fmt.Errorf("%w: %s: %v", library.ErrFetchFailed, library.DisplayPath(t.Path), err)
		s.logger.Warn("library listing failed",
			zap.String("path", t.Path),
			zap.Error(err))
		return true
	}

	entries = library.NormalizeAll(entries)
	children := make([]string, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Path]; dup {
			continue
		}
		seen[e.Path] = struct{}{}
		e.ParentPath = ""
		s.entries[e.Path] = e
		children = append(children, e.Path)
	}
	s.listings[t.Path] = children
	s.displayedPath = t.Path
	s.displayed = true
	s.fetchErr = nil

	if pending != nil && pending.seq == t.Seq {
		if _, ok := seen[pending.path]; ok {
			s.toggle(s.entries[pending.path])
		} else {
			s.logger.Info("pending selection not found after navigation",
				zap.String("path", pending.path))
		}
	}
	return true
}

// SetSearchTerm changes the filter. When recursive search is on and the crawl
// has not run yet, it returns the crawl ticket to fetch.
func (s *Session) SetSearchTerm(term string) (Ticket, bool) {
	s.searchTerm = term
	return s.maybeStartCrawl()
}

// ToggleRecursiveSearch flips recursive search. Turning it on with a search
// term and no completed crawl returns the crawl ticket. Turning it off
// reverts to the current folder at once; selections are kept.
func (s *Session) ToggleRecursiveSearch() (Ticket, bool) {
	s.recursive = !s.recursive
	if !s.recursive {
		return Ticket{}, false
	}
	return s.maybeStartCrawl()
}

func (s *Session) maybeStartCrawl() (Ticket, bool) {
	if s.closed || !s.recursive || s.searchTerm == "" || s.crawled || s.crawling {
		return Ticket{}, false
	}
	t := s.nextTicket(TicketCrawl, "")
	s.latestCrawl = t.Seq
	s.crawling = true
	return t, true
}

// ApplyCrawl hands back the result of a crawl ticket. A partial result (some
// folders failed) is kept together with the error; a crawl that produced
// nothing can be retried by toggling recursive search again.
func (s *Session) ApplyCrawl(t Ticket, entries []library.DocumentEntry, err error) bool {
	if s.closed || t.Kind != TicketCrawl || t.Seq != s.latestCrawl {
		return false
	}
	s.crawling = false
	s.crawlErr = err
	if err != nil {
		s.logger.Warn("recursive crawl incomplete",
			zap.Int("entries", len(entries)),
			zap.Error(err))
		if len(entries) == 0 {
			return true
		}
	}

	results := make([]library.DocumentEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		parent := e.ParentPath
		e = library.Normalize(e)
		if e.Path == "" {
			continue
		}
		if _, dup := seen[e.Path]; dup {
			continue
		}
		seen[e.Path] = struct{}{}
		if parent == "" {
			parent = "/"
			if p := e.Folder(); p != "" {
				parent = p
			}
		}
		e.ParentPath = parent

		cached := e
		cached.ParentPath = ""
		if _, ok := s.entries[e.Path]; !ok {
			s.entries[e.Path] = cached
		}
		results = append(results, e)
	}
	s.crawlResults = results
	s.crawled = true
	return true
}

// InvalidateCrawl forgets the crawl so the next recursive search fetches again.
func (s *Session) InvalidateCrawl() {
	s.crawled = false
	s.crawlResults = nil
	s.crawlErr = nil
	if s.crawling {
		// a crawl in flight is now stale
		s.crawling = false
		s.latestCrawl = 0
	}
}

// Visible returns the entries currently on screen with their derived state.
func (s *Session) Visible() []Item {
	var out []Item
	seen := make(map[string]struct{})

	if s.recursive && s.searchTerm != "" && s.crawled {
		for _, e := range s.crawlResults {
			if !containsFold(e.Name, s.searchTerm) {
				continue
			}
			seen[e.Path] = struct{}{}
			out = append(out, s.item(e))
		}
	}

	for _, p := range s.currentListing() {
		if _, dup := seen[p]; dup {
			continue
		}
		e := s.entries[p]
		if s.searchTerm != "" && !containsFold(e.Name, s.searchTerm) {
			continue
		}
		out = append(out, s.item(e))
	}
	return out
}

func (s *Session) currentListing() []string {
	if !s.displayed {
		return nil
	}
	return s.listings[s.displayedPath]
}
