package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/apply"
	"github.com/dyike/vsdocs/internal/compat"
	"github.com/dyike/vsdocs/internal/crawl"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

// FocusedPane represents which pane has focus
type FocusedPane int

const (
	FocusList FocusedPane = iota
	FocusSearch
	FocusPending
)

// maxPollFailures is how many consecutive status polls may fail before the
// apply is reported as lost.
const maxPollFailures = 3

// Options configures the editor
type Options struct {
	Backend      library.Backend
	Applier      *apply.Service
	CollectionID string
	Checker      compat.Checker
	// Root is the folder shown first.
	Root             string
	CrawlConcurrency int
	ListHeight       int
	Logger           *zap.Logger
}

// Model represents the main TUI application state
type Model struct {
	// Components
	search   textinput.Model
	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	pending  viewport.Model
	keys     keyMap

	// State
	width         int
	height        int
	listHeight    int
	focused       FocusedPane
	ready         bool
	cursor        int
	pendingCursor int

	// Editing session
	session      *reconciler.Session
	collectionID string
	initial      reconciler.Ticket

	// Apply state
	applying     bool
	committed    library.ChangeSet
	run          *apply.Run
	job          library.JobStatus
	pollFailures int

	// Dependencies
	backend     library.Backend
	applier     *apply.Service
	concurrency int
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc

	notice string
	err    error
}

// NewModel creates a new TUI model editing one collection
func NewModel(ctx context.Context, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Checker == nil {
		opts.Checker = compat.NewRules()
	}
	if opts.ListHeight <= 0 {
		opts.ListHeight = 20
	}
	ctx, cancel := context.WithCancel(ctx)

	ti := textinput.New()
	ti.Placeholder = "filter by name"
	ti.Prompt = "/ "
	ti.CharLimit = 256

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(SecondaryColor)

	session := reconciler.New(reconciler.Options{
		Checker: opts.Checker,
		Logger:  opts.Logger.Named("session"),
	})

	return Model{
		search:       ti,
		spinner:      sp,
		progress:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:         help.New(),
		pending:      viewport.New(40, opts.ListHeight),
		keys:         defaultKeys(),
		listHeight:   opts.ListHeight,
		focused:      FocusList,
		session:      session,
		collectionID: opts.CollectionID,
		initial:      session.NavigateTo(opts.Root),
		backend:      opts.Backend,
		applier:      opts.Applier,
		concurrency:  opts.CrawlConcurrency,
		logger:       opts.Logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Session exposes the editing session, mainly for tests and the caller's summary.
func (m Model) Session() *reconciler.Session { return m.session }

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.loadCollection(),
		m.fetch(m.initial),
	)
}

// fetch performs the I/O a ticket asks for
func (m Model) fetch(t reconciler.Ticket) tea.Cmd {
	switch t.Kind {
	case reconciler.TicketCrawl:
		return Guard(func() tea.Msg {
			entries, err := crawl.Crawl(m.ctx, m.backend, t.Path, m.concurrency)
			return CrawlDoneMsg{Ticket: t, Entries: entries, Err: err}
		})
	default:
		return Guard(func() tea.Msg {
			entries, err := m.backend.ListDocuments(m.ctx, t.Path)
			return ListingLoadedMsg{Ticket: t, Entries: entries, Err: err}
		})
	}
}

// loadCollection fetches the collection config and its members
func (m Model) loadCollection() tea.Cmd {
	return Guard(func() tea.Msg {
		cfg, err := m.backend.CollectionConfig(m.ctx, m.collectionID)
		if err != nil {
			return CollectionLoadedMsg{Err: fmt.Errorf("failed to load collection %s: %w", m.collectionID, err)}
		}
		members, err := m.backend.ListCollectionMembers(m.ctx, m.collectionID)
		if err != nil {
			return CollectionLoadedMsg{Config: cfg, Err: fmt.Errorf("failed to load members of %s: %w", m.collectionID, err)}
		}
		return CollectionLoadedMsg{Config: cfg, Members: members}
	})
}

func (m Model) submit(cs library.ChangeSet) tea.Cmd {
	return Guard(func() tea.Msg {
		run, err := m.applier.Submit(m.ctx, m.collectionID, cs)
		return ApplySubmittedMsg{Run: run, Err: err}
	})
}

func (m Model) poll() tea.Cmd {
	run := m.run
	return Guard(func() tea.Msg {
		st, err := m.applier.Poll(m.ctx, run)
		return JobPolledMsg{Status: st, Err: err}
	})
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.applier.Interval(), func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.listHeight = max(3, m.height-10)
		m.pending = viewport.New(m.pendingWidth(), m.listHeight)
		m.progress.Width = max(10, m.width/3)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ListingLoadedMsg:
		if !m.session.ApplyListing(msg.Ticket, msg.Entries, msg.Err) {
			return m, nil
		}
		if msg.Err != nil {
			m.err = m.session.FetchError()
		} else {
			m.err = nil
		}
		m.clampCursor()

	case CrawlDoneMsg:
		if !m.session.ApplyCrawl(msg.Ticket, msg.Entries, msg.Err) {
			return m, nil
		}
		if msg.Err != nil {
			m.err = msg.Err
		}
		m.clampCursor()

	case CollectionLoadedMsg:
		// a failed fetch keeps the previous snapshot
		m.session.SetCollection(msg.Config)
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.session.SetMembers(msg.Members)
		m.clampCursor()

	case ApplySubmittedMsg:
		if msg.Err != nil {
			m.applying = false
			m.err = msg.Err
			return m, nil
		}
		m.run = msg.Run
		m.job = msg.Run.Status
		if msg.Run.Done() {
			return m.finishApply()
		}
		return m, m.schedulePoll()

	case pollTickMsg:
		if !m.applying || m.run == nil {
			return m, nil
		}
		return m, m.poll()

	case JobPolledMsg:
		if !m.applying {
			return m, nil
		}
		if msg.Err != nil && !errors.Is(msg.Err, library.ErrJobFailed) {
			m.pollFailures++
			m.logger.Warn("job status poll failed", zap.Int("attempt", m.pollFailures), zap.Error(msg.Err))
			if m.pollFailures >= maxPollFailures {
				m.applying = false
				m.err = fmt.Errorf("lost track of apply job: %w", msg.Err)
				return m, nil
			}
			return m, m.schedulePoll()
		}
		m.pollFailures = 0
		m.job = msg.Status
		if msg.Err != nil {
			// selections stay so the user can retry
			m.applying = false
			m.err = msg.Err
			return m, nil
		}
		if msg.Status.Status.IsTerminal() {
			return m.finishApply()
		}
		return m, m.schedulePoll()

	case ErrorMsg:
		m.err = msg.Err
		m.applying = false
	}

	return m, nil
}

func (m Model) finishApply() (tea.Model, tea.Cmd) {
	m.applying = false
	// selections made while the job ran were not submitted
	m.session.ClearApplied(m.committed)
	m.committed = library.ChangeSet{}
	m.pendingCursor = 0
	m.err = nil
	m.notice = fmt.Sprintf("applied %d change(s)", max(m.job.Total, m.job.Processed))
	m.logger.Info("change-set applied", zap.String("collection_id", m.collectionID), zap.String("job_id", m.job.JobID))
	return m, m.loadCollection()
}

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.focused == FocusSearch {
		switch msg.String() {
		case "esc", "enter", "tab":
			m.focused = FocusList
			m.search.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		before := m.search.Value()
		m.search, cmd = m.search.Update(msg)
		if m.search.Value() != before {
			m.cursor = 0
			if t, ok := m.session.SetSearchTerm(m.search.Value()); ok {
				return m, tea.Batch(cmd, m.fetch(t))
			}
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.SwitchFocus):
		if m.focused == FocusList {
			m.focused = FocusPending
		} else {
			m.focused = FocusList
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.focused = FocusSearch
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Apply):
		return m.startApply()

	case key.Matches(msg, m.keys.Clear):
		m.session.ClearAllSelections()
		m.pendingCursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.session.InvalidateCrawl()
		cmds := []tea.Cmd{m.loadCollection(), m.fetch(m.session.NavigateTo(m.session.CurrentPath()))}
		if t, ok := m.session.SetSearchTerm(m.session.SearchTerm()); ok {
			cmds = append(cmds, m.fetch(t))
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keys.Recursive):
		m.cursor = 0
		if t, ok := m.session.ToggleRecursiveSearch(); ok {
			return m, m.fetch(t)
		}
		return m, nil
	}

	if m.focused == FocusPending {
		return m.handlePendingKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.session.Visible()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(visible)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Parent):
		if t, ok := m.session.NavigateToParent(); ok {
			m.cursor = 0
			return m, m.fetch(t)
		}

	case key.Matches(msg, m.keys.Select):
		if m.cursor >= len(visible) {
			return m, nil
		}
		out := m.session.SelectItem(visible[m.cursor].DocumentEntry)
		m.notice = ""
		switch out.Action {
		case reconciler.ActionNavigate, reconciler.ActionJump:
			m.cursor = 0
			return m, m.fetch(out.Ticket)
		case reconciler.ActionNone:
			if out.Err != nil {
				m.err = out.Err
			} else {
				m.notice = out.Reason
			}
		}

	case key.Matches(msg, m.keys.AllAdd):
		m.session.SelectAllVisibleToAdd(m.session.Counts().AddState() != reconciler.CheckAll)

	case key.Matches(msg, m.keys.AllRemove):
		m.session.SelectAllVisibleToRemove(m.session.Counts().RemoveState() != reconciler.CheckAll)
	}
	return m, nil
}

func (m Model) handlePendingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sum := m.session.Summary()
	total := len(sum.Add) + len(sum.Remove)

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.pendingCursor > 0 {
			m.pendingCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.pendingCursor < total-1 {
			m.pendingCursor++
		}
	case key.Matches(msg, m.keys.Deselect):
		switch {
		case m.pendingCursor < len(sum.Add):
			m.session.DeselectAdd(sum.Add[m.pendingCursor].Path)
		case m.pendingCursor < total:
			m.session.DeselectRemove(sum.Remove[m.pendingCursor-len(sum.Add)].DocumentID)
		}
		if m.pendingCursor >= total-1 && m.pendingCursor > 0 {
			m.pendingCursor--
		}
	}
	return m, nil
}

func (m Model) startApply() (tea.Model, tea.Cmd) {
	if m.applying || !m.session.HasPendingChanges() {
		return m, nil
	}
	if m.applier == nil {
		m.err = errors.New("apply is not available")
		return m, nil
	}
	cs := m.session.Commit()
	m.committed = cs
	m.applying = true
	m.pollFailures = 0
	m.notice = ""
	m.err = nil
	m.job = library.JobStatus{Status: library.JobPending, Total: len(cs.DocumentsToAdd) + len(cs.DocumentsToRemove)}
	return m, m.submit(cs)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.session.Close()
	m.cancel()
	return m, tea.Quit
}

func (m *Model) clampCursor() {
	n := len(m.session.Visible())
	if m.cursor >= n {
		m.cursor = max(0, n-1)
	}
}

func (m Model) pendingWidth() int {
	return max(24, m.width/3)
}

// View implements tea.Model
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderList(),
		m.renderPending(),
	)

	parts := []string{m.renderHeader(), m.renderSearch(), panes}
	if m.applying {
		parts = append(parts, m.renderProgress())
	}
	parts = append(parts, m.renderStatusBar(), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	name := m.collectionID
	if cfg := m.session.Collection(); cfg != nil && cfg.Name != "" {
		name = cfg.Name
	}
	header := TitleStyle.Render("vsdocs: "+name) + " " + PathStyle.Render(library.DisplayPath(m.session.CurrentPath()))
	if m.session.Loading() || m.session.Phase() == reconciler.PhaseSearching {
		header += " " + m.spinner.View()
	}
	return header
}

func (m Model) renderSearch() string {
	style := InputStyle
	if m.focused == FocusSearch {
		style = InputFocusedStyle
	}
	mode := "folder"
	if m.session.RecursiveSearch() {
		mode = "recursive"
	}
	return style.Width(max(20, m.width-m.pendingWidth()-4)).Render(m.search.View() + HelpStyle.Render("  ["+mode+"]"))
}

func (m Model) renderList() string {
	visible := m.session.Visible()
	counts := m.session.Counts()

	var b strings.Builder
	b.WriteString(HelpStyle.Render(fmt.Sprintf("add %s %d/%d   remove %s %d/%d",
		checkbox(counts.AddState()), counts.SelectedToAdd, counts.EligibleToAdd,
		checkbox(counts.RemoveState()), counts.SelectedToRemove, counts.EligibleToRemove)))
	b.WriteString("\n")

	if len(visible) == 0 {
		switch {
		case m.session.Loading():
			b.WriteString(HelpStyle.Render("Loading..."))
		case m.session.Phase() == reconciler.PhaseSearching:
			b.WriteString(HelpStyle.Render("Searching the library..."))
		default:
			b.WriteString(HelpStyle.Render("Nothing here."))
		}
	}

	start := 0
	if m.cursor >= m.listHeight {
		start = m.cursor - m.listHeight + 1
	}
	for i := start; i < len(visible) && i < start+m.listHeight; i++ {
		line := renderItem(visible[i], m.session.RecursiveSearch() && m.session.SearchTerm() != "")
		if i == m.cursor && m.focused == FocusList {
			line = CursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	style := ListStyle
	if m.focused == FocusList {
		style = ListFocusedStyle
	}
	return style.Width(max(20, m.width-m.pendingWidth()-4)).Height(m.listHeight + 1).Render(b.String())
}

func renderItem(it reconciler.Item, showFolder bool) string {
	if it.IsFolder {
		return FolderStyle.Render("▸ " + it.Name + "/")
	}

	var line string
	switch {
	case it.MarkedAdd:
		line = MarkedAddStyle.Render("[+] " + it.Name)
	case it.MarkedRemove:
		line = MarkedRemoveStyle.Render("[-] " + it.Name)
	case it.InCollection:
		line = MemberStyle.Render("[ ] " + it.Name + "  (in collection)")
	case it.Compatible:
		line = "[ ] " + it.Name
	default:
		line = IncompatibleStyle.Render(" ·  " + it.Name + "  " + it.IncompatibleReason)
	}
	if showFolder && it.ParentPath != "" {
		line += HelpStyle.Render("  in " + it.ParentPath)
	}
	return line
}

func checkbox(s reconciler.CheckState) string {
	switch s {
	case reconciler.CheckAll:
		return "[x]"
	case reconciler.CheckSome:
		return "[~]"
	default:
		return "[ ]"
	}
}

func (m Model) renderPending() string {
	sum := m.session.Summary()

	var b strings.Builder
	b.WriteString(PendingTitleStyle.Render(fmt.Sprintf("Pending changes (+%d -%d)", len(sum.Add), len(sum.Remove))))
	b.WriteString("\n")

	row := 0
	line := func(s string) {
		if row == m.pendingCursor && m.focused == FocusPending {
			s = CursorStyle.Render(s)
		}
		b.WriteString(s)
		b.WriteString("\n")
		row++
	}
	for _, item := range sum.Add {
		line(MarkedAddStyle.Render("+ ") + item.Name + HelpStyle.Render(" "+item.Path))
	}
	for _, item := range sum.Remove {
		line(MarkedRemoveStyle.Render("- ") + item.Name)
	}
	if row == 0 {
		b.WriteString(HelpStyle.Render("No changes selected."))
	}

	vp := m.pending
	vp.Width = m.pendingWidth()
	vp.Height = m.listHeight
	vp.SetContent(b.String())
	// keep the cursor row (offset by the title lines) in view
	if off := m.pendingCursor + 2 - vp.Height + 1; off > 0 {
		vp.SetYOffset(off)
	}

	style := PendingStyle
	if m.focused == FocusPending {
		style = PendingFocusedStyle
	}
	return style.Render(vp.View())
}

func (m Model) renderProgress() string {
	label := fmt.Sprintf(" %s %d/%d", m.job.Status, m.job.Processed, m.job.Total)
	return m.progress.ViewAs(m.job.Fraction()) + HelpStyle.Render(label)
}

// renderStatusBar renders the status bar
func (m Model) renderStatusBar() string {
	collection := StatusCollectionStyle.Render(m.collectionID)

	var status string
	switch {
	case m.err != nil:
		status = StatusErrorStyle.Render(m.err.Error())
	case m.applying:
		status = StatusRunningStyle.Render("Applying...")
	case m.notice != "":
		status = HelpStyle.Render(m.notice)
	}

	counts := m.session.Counts()
	totals := HelpStyle.Render(fmt.Sprintf("+%d -%d", counts.TotalToAdd, counts.TotalToRemove))

	left := lipgloss.JoinHorizontal(lipgloss.Left, collection, " ", status)
	gap := strings.Repeat(" ", max(0, m.width-lipgloss.Width(left)-lipgloss.Width(totals)-2))

	return StatusBarStyle.Width(m.width).Render(left + gap + totals)
}
