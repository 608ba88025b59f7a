package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dyike/vsdocs/internal/apply"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

// ListingLoadedMsg carries the result of a listing ticket
type ListingLoadedMsg struct {
	Ticket  reconciler.Ticket
	Entries []library.DocumentEntry
	Err     error
}

// CrawlDoneMsg carries the result of a recursive crawl ticket
type CrawlDoneMsg struct {
	Ticket  reconciler.Ticket
	Entries []library.DocumentEntry
	Err     error
}

// CollectionLoadedMsg carries a fresh collection config and membership snapshot
type CollectionLoadedMsg struct {
	Config  *library.CollectionConfig
	Members []library.CollectionMember
	Err     error
}

// ApplySubmittedMsg indicates the change-set was sent
type ApplySubmittedMsg struct {
	Run *apply.Run
	Err error
}

// JobPolledMsg carries one job status snapshot
type JobPolledMsg struct {
	Status library.JobStatus
	Err    error
}

// ErrorMsg represents an error
type ErrorMsg struct {
	Err error
}

// pollTickMsg schedules the next job status poll
type pollTickMsg struct{}

// Guard wraps cmd so that a panic inside it is reported as an ErrorMsg
// instead of tearing down the program.
func Guard(cmd tea.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				msg = ErrorMsg{Err: fmt.Errorf("panic: %v", r)}
			}
		}()
		return cmd()
	}
}
