package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dyike/vsdocs/internal/apply"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

type fakeBackend struct {
	mu       sync.Mutex
	listings map[string][]library.DocumentEntry
	members  []library.CollectionMember
	jobID    string
	status   library.JobStatus
	changes  []library.ChangeRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		listings: map[string][]library.DocumentEntry{
			"": {
				{Path: "/docs", IsFolder: true},
				{Path: "/a.pdf"},
				{Path: "/setup.exe"},
			},
			"/docs": {
				{Path: "/docs/b.pdf"},
				{Path: "/docs/c.pdf"},
			},
		},
		members: []library.CollectionMember{{DocumentID: "d1", Path: "/docs/b.pdf"}},
	}
}

func (f *fakeBackend) ListDocuments(_ context.Context, p string) ([]library.DocumentEntry, error) {
	entries, ok := f.listings[p]
	if !ok {
		return nil, fmt.Errorf("no such folder %q", p)
	}
	return entries, nil
}

func (f *fakeBackend) ListCollectionMembers(context.Context, string) ([]library.CollectionMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members, nil
}

func (f *fakeBackend) CollectionConfig(_ context.Context, id string) (*library.CollectionConfig, error) {
	return &library.CollectionConfig{ID: id, Name: "Policies", AllowedFileTypes: []string{"pdf"}}, nil
}

func (f *fakeBackend) SubmitChangeSet(_ context.Context, _ string, req library.ChangeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, req)
	return f.jobID, nil
}

func (f *fakeBackend) JobStatus(_ context.Context, jobID string) (*library.JobStatus, error) {
	st := f.status
	st.JobID = jobID
	return &st, nil
}

func newTestModel(t *testing.T, fb *fakeBackend) Model {
	t.Helper()
	m := NewModel(context.Background(), Options{
		Backend:      fb,
		Applier:      apply.New(apply.Options{Applier: fb}),
		CollectionID: "policies",
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, m.loadCollection()())
	m = update(t, m, m.fetch(m.initial)())
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs whatever single command it returns.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	m = next.(Model)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			if _, batch := msg.(tea.BatchMsg); !batch {
				m = update(t, m, msg)
			}
		}
	}
	return m
}

func cursorTo(t *testing.T, m Model, p string) Model {
	t.Helper()
	for i, it := range m.session.Visible() {
		if it.Path == p {
			m.cursor = i
			return m
		}
	}
	t.Fatalf("expected %s to be visible", p)
	return m
}

func TestListingAndToggle(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	if got := len(m.session.Visible()); got != 3 {
		t.Fatalf("expected 3 root entries, got %d", got)
	}

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")
	if !m.session.IsMarkedAdd("/a.pdf") {
		t.Error("expected /a.pdf to be marked for addition")
	}

	m = cursorTo(t, m, "/setup.exe")
	m = press(t, m, "enter")
	if m.session.IsMarkedAdd("/setup.exe") {
		t.Error("expected incompatible file to stay unselected")
	}
	if m.notice == "" {
		t.Error("expected an incompatibility notice")
	}

	view := m.View()
	if !strings.Contains(view, "Pending changes (+1 -0)") {
		t.Errorf("expected pending pane to count one add, got:\n%s", view)
	}
}

func TestFolderNavigationKeepsSelections(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")
	m = cursorTo(t, m, "/docs")
	m = press(t, m, "enter")

	if m.session.DisplayedPath() != "/docs" {
		t.Fatalf("expected /docs displayed, got %q", m.session.DisplayedPath())
	}
	m = cursorTo(t, m, "/docs/b.pdf")
	m = press(t, m, "enter")
	if !m.session.IsMarkedRemove("d1") {
		t.Error("expected member to be marked for removal")
	}

	m = press(t, m, "backspace")
	if m.session.DisplayedPath() != "" {
		t.Errorf("expected root after parent, got %q", m.session.DisplayedPath())
	}
	if !m.session.IsMarkedAdd("/a.pdf") || !m.session.IsMarkedRemove("d1") {
		t.Error("expected selections to survive navigation")
	}
}

func TestStaleListingIgnored(t *testing.T) {
	fb := newFakeBackend()
	m := newTestModel(t, fb)

	first := m.session.NavigateTo("/docs")
	second := m.session.NavigateTo("")
	m = update(t, m, ListingLoadedMsg{Ticket: second, Entries: fb.listings[""]})
	m = update(t, m, ListingLoadedMsg{Ticket: first, Entries: fb.listings["/docs"]})

	if m.session.DisplayedPath() != "" {
		t.Errorf("expected stale /docs listing to be ignored, got %q", m.session.DisplayedPath())
	}
}

func TestFailedListingShowsError(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	tk := m.session.NavigateTo("/missing")
	m = update(t, m, ListingLoadedMsg{Ticket: tk, Err: errors.New("boom")})
	if !errors.Is(m.err, library.ErrFetchFailed) {
		t.Errorf("expected ErrFetchFailed, got %v", m.err)
	}
	if len(m.session.Visible()) != 3 {
		t.Error("expected previous listing to stay on screen")
	}
}

func TestSearchFiltersCurrentFolder(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	// cursor blink commands are not run here
	m = update(t, m, keyMsg("/"))
	if m.focused != FocusSearch {
		t.Fatal("expected search focus")
	}
	m = update(t, m, keyMsg("p"))
	m = update(t, m, keyMsg("d"))
	m = update(t, m, keyMsg("esc"))

	if m.session.SearchTerm() != "pd" {
		t.Errorf("expected search term pd, got %q", m.session.SearchTerm())
	}
	visible := m.session.Visible()
	if len(visible) != 1 || visible[0].Path != "/a.pdf" {
		t.Errorf("expected only /a.pdf, got %+v", visible)
	}
}

func TestApplyResetsOnSuccess(t *testing.T) {
	fb := newFakeBackend()
	m := newTestModel(t, fb)

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")

	next, cmd := m.Update(keyMsg("s"))
	m = next.(Model)
	if !m.applying || cmd == nil {
		t.Fatal("expected apply to start")
	}
	// the fake returns no job id, so the run completes on submit
	next, cmd = m.Update(cmd())
	m = next.(Model)

	if m.applying || m.session.HasPendingChanges() {
		t.Error("expected selections reset after a completed apply")
	}
	if cmd == nil {
		t.Error("expected membership refetch after apply")
	}
	if len(fb.changes) != 1 || fb.changes[0].Add[0] != "/a.pdf" {
		t.Errorf("unexpected submitted change-set: %+v", fb.changes)
	}
}

func TestApplyFailureKeepsSelections(t *testing.T) {
	fb := newFakeBackend()
	fb.jobID = "job-1"
	fb.status = library.JobStatus{Status: library.JobFailed, Error: "index offline"}
	m := newTestModel(t, fb)

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")

	next, cmd := m.Update(keyMsg("s"))
	m = next.(Model)
	m = update(t, m, cmd())
	if !m.applying || m.run == nil {
		t.Fatal("expected a running job")
	}

	m = update(t, m, m.poll()())
	if m.applying {
		t.Error("expected apply to stop on job failure")
	}
	if !errors.Is(m.err, library.ErrJobFailed) || !strings.Contains(m.err.Error(), "index offline") {
		t.Errorf("expected job failure with server message, got %v", m.err)
	}
	if !m.session.IsMarkedAdd("/a.pdf") {
		t.Error("expected selections kept for retry")
	}
}

func TestApplyKeepsSelectionsMadeWhileRunning(t *testing.T) {
	fb := newFakeBackend()
	fb.jobID = "job-1"
	fb.status = library.JobStatus{Status: library.JobRunning, Total: 1}
	m := newTestModel(t, fb)

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")
	next, cmd := m.Update(keyMsg("s"))
	m = next.(Model)
	m = update(t, m, cmd())
	if !m.applying {
		t.Fatal("expected a running job")
	}

	m = cursorTo(t, m, "/docs")
	m = press(t, m, "enter")
	m = cursorTo(t, m, "/docs/c.pdf")
	m = press(t, m, "enter")
	if !m.session.IsMarkedAdd("/docs/c.pdf") {
		t.Fatal("expected selection while the job runs")
	}

	fb.status = library.JobStatus{Status: library.JobCompleted, Processed: 1, Total: 1}
	m = update(t, m, m.poll()())
	if m.applying {
		t.Fatal("expected apply to finish")
	}
	if m.session.IsMarkedAdd("/a.pdf") {
		t.Error("expected the applied item to be cleared")
	}
	if !m.session.IsMarkedAdd("/docs/c.pdf") {
		t.Error("expected the unsubmitted selection to survive the apply")
	}
	if len(fb.changes) != 1 || len(fb.changes[0].Add) != 1 {
		t.Errorf("expected only /a.pdf submitted, got %+v", fb.changes)
	}
}

func TestPendingPaneDeselect(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	m = cursorTo(t, m, "/a.pdf")
	m = press(t, m, "enter")
	m = press(t, m, "tab")
	if m.focused != FocusPending {
		t.Fatal("expected pending pane focus")
	}
	m = press(t, m, "d")
	if m.session.HasPendingChanges() {
		t.Error("expected the pending item to be dropped")
	}
}

func TestSelectAllToggle(t *testing.T) {
	m := newTestModel(t, newFakeBackend())

	m = press(t, m, "a")
	if got := m.session.Counts().AddState(); got != reconciler.CheckAll {
		t.Errorf("expected all eligible selected, got %v", got)
	}
	m = press(t, m, "a")
	if m.session.HasPendingChanges() {
		t.Error("expected second press to clear the visible selections")
	}
}

func TestSelectAllRemoveSkipsMembersWithoutID(t *testing.T) {
	fb := newFakeBackend()
	fb.members = []library.CollectionMember{
		{DocumentID: "d1", Path: "/docs/b.pdf"},
		{Path: "/docs/c.pdf"},
	}
	m := newTestModel(t, fb)
	m = cursorTo(t, m, "/docs")
	m = press(t, m, "enter")

	m = press(t, m, "x")
	if got := m.session.ToRemove(); len(got) != 1 || got[0] != "d1" {
		t.Fatalf("expected d1 marked, got %v", got)
	}
	if got := m.session.Counts().RemoveState(); got != reconciler.CheckAll {
		t.Errorf("expected all removable members checked, got %v", got)
	}
	m = press(t, m, "x")
	if m.session.HasPendingChanges() {
		t.Errorf("expected second press to unmark, got %v", m.session.ToRemove())
	}
}

func TestQuitClosesSession(t *testing.T) {
	m := newTestModel(t, newFakeBackend())
	tk := m.session.NavigateTo("/docs")

	next, cmd := m.Update(keyMsg("q"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !m.session.Closed() {
		t.Error("expected session closed on quit")
	}
	if m.session.ApplyListing(tk, nil, nil) {
		t.Error("expected outstanding ticket to be stale after quit")
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	cmd := Guard(func() tea.Msg { panic("bad listing") })
	msg, ok := cmd().(ErrorMsg)
	if !ok {
		t.Fatal("expected ErrorMsg")
	}
	if !strings.Contains(msg.Err.Error(), "bad listing") {
		t.Errorf("expected panic value in error, got %v", msg.Err)
	}
	if Guard(nil) != nil {
		t.Error("expected nil command to stay nil")
	}
}
