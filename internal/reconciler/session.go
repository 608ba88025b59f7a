// Package reconciler tracks an editing session over a collection: folder
// navigation, search, and the add/remove selections that become one change-set.
//
// A Session does no I/O. Operations that need data hand back a Ticket; the host
// performs the fetch and returns the result with ApplyListing or ApplyCrawl.
// Results for tickets that are no longer current are discarded.
package reconciler

import (
	"strings"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/compat"
	"github.com/dyike/vsdocs/internal/library"
)

// Phase is the browsing state of a session.
type Phase int

const (
	// PhaseIdle: browsing a folder or a filtered view.
	PhaseIdle Phase = iota
	// PhaseSearching: a recursive crawl is in flight and the recursive view is on.
	PhaseSearching
)

func (p Phase) String() string {
	if p == PhaseSearching {
		return "searching"
	}
	return "idle"
}

// TicketKind tells the host which fetch a ticket asks for.
type TicketKind int

const (
	TicketListing TicketKind = iota
	TicketCrawl
)

// Ticket identifies one requested fetch.
type Ticket struct {
	Seq  uint64
	Kind TicketKind
	// Path is the folder to list, or the crawl root.
	Path string
}

// Options configures a new Session.
type Options struct {
	Collection *library.CollectionConfig
	Members    []library.CollectionMember
	Checker    compat.Checker
	Logger     *zap.Logger
}

type pendingSelect struct {
	seq  uint64
	path string
}

// Session is the state of one editing session. It is not safe for concurrent
// use; the host's event loop owns it.
type Session struct {
	collection *library.CollectionConfig
	checker    compat.Checker
	members    library.MemberIndex
	logger     *zap.Logger

	// every entry fetched during the session, keyed by path
	entries map[string]library.DocumentEntry
	// folder path -> child paths in listing order
	listings map[string][]string

	currentPath   string
	displayedPath string
	displayed     bool
	searchTerm    string
	recursive     bool

	crawlResults []library.DocumentEntry
	crawled      bool
	crawling     bool
	crawlErr     error

	toAdd    map[string]struct{}
	toRemove map[string]struct{}

	seq         uint64
	latestNav   uint64
	latestCrawl uint64
	loading     bool
	pending     *pendingSelect
	fetchErr    error
	closed      bool
}

// New starts a fresh session with empty selections.
func New(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		collection: opts.Collection,
		checker:    opts.Checker,
		members:    library.NewMemberIndex(opts.Members),
		logger:     logger,
		entries:    make(map[string]library.DocumentEntry),
		listings:   make(map[string][]string),
		toAdd:      make(map[string]struct{}),
		toRemove:   make(map[string]struct{}),
	}
}

// Close ends the session. Every outstanding ticket becomes stale.
func (s *Session) Close() {
	s.closed = true
	s.pending = nil
	s.loading = false
	s.crawling = false
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.closed }

// Collection returns the collection configuration in use.
func (s *Session) Collection() *library.CollectionConfig { return s.collection }

// SetCollection replaces the collection configuration. Selections that are no
// longer eligible are dropped. A nil config is ignored so that a failed
// config fetch cannot wipe selections.
func (s *Session) SetCollection(cfg *library.CollectionConfig) {
	if cfg == nil {
		return
	}
	s.collection = cfg
	s.revalidate()
}

// SetMembers replaces the membership snapshot, typically after the membership
// source is refetched. Selections that no longer satisfy the session
// invariants are dropped.
func (s *Session) SetMembers(members []library.CollectionMember) {
	s.members = library.NewMemberIndex(members)
	s.revalidate()
}

// Members returns the current membership snapshot.
func (s *Session) Members() []library.CollectionMember { return s.members.Members() }

func (s *Session) revalidate() {
	for p := range s.toAdd {
		e, ok := s.entries[p]
		if !ok {
			continue
		}
		if s.members.Contains(e) || !s.evaluate(e).Compatible {
			delete(s.toAdd, p)
			s.logger.Info("dropped add selection no longer eligible", zap.String("path", p))
		}
	}
	for id := range s.toRemove {
		if !s.members.HasID(id) {
			delete(s.toRemove, id)
			s.logger.Info("dropped remove selection no longer a member", zap.String("document_id", id))
		}
	}
}

// CurrentPath returns the folder the user navigated to last.
func (s *Session) CurrentPath() string { return s.currentPath }

// DisplayedPath returns the folder whose listing is on screen. It lags
// CurrentPath while a fetch is in flight or after a failed fetch.
func (s *Session) DisplayedPath() string { return s.displayedPath }

// SearchTerm returns the active filter.
func (s *Session) SearchTerm() string { return s.searchTerm }

// RecursiveSearch reports whether search spans the whole library.
func (s *Session) RecursiveSearch() bool { return s.recursive }

// Loading reports whether the latest navigation is still in flight.
func (s *Session) Loading() bool { return s.loading }

// Phase returns the browsing state.
func (s *Session) Phase() Phase {
	if s.crawling && s.recursive {
		return PhaseSearching
	}
	return PhaseIdle
}

// FetchError returns the error from the latest failed listing, if it has not
// been superseded by a successful one.
func (s *Session) FetchError() error { return s.fetchErr }

// CrawlError returns the error from the last crawl, which may be partial.
func (s *Session) CrawlError() error { return s.crawlErr }

// Entry returns a previously fetched entry.
func (s *Session) Entry(path string) (library.DocumentEntry, bool) {
	e, ok := s.entries[library.CleanPath(path)]
	return e, ok
}

func (s *Session) nextTicket(kind TicketKind, path string) Ticket {
	s.seq++
	return Ticket{Seq: s.seq, Kind: kind, Path: path}
}

func (s *Session) evaluate(e library.DocumentEntry) compat.Result {
	res := compat.Evaluate(s.checker, e, s.collection)
	if res.Err != nil {
		s.logger.Debug("compatibility unknown",
			zap.String("path", e.Path),
			zap.Error(res.Err))
	}
	return res
}

func containsFold(name, term string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(term))
}
