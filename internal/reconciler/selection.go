package reconciler

import (
	"fmt"
	"path"
	"sort"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/library"
)

// Item is an entry together with its derived state in this session.
type Item struct {
	library.DocumentEntry

	InCollection       bool
	Compatible         bool
	IncompatibleReason string
	// DocumentID is the id that removes the entry from the collection, "" when
	// it is not a member or cannot be resolved.
	DocumentID string

	MarkedAdd    bool
	MarkedRemove bool
}

// EligibleToAdd: a compatible file not already in the collection.
func (it Item) EligibleToAdd() bool {
	return !it.IsFolder && it.Compatible && !it.InCollection
}

// EligibleToRemove: a file already in the collection whose document id is known.
func (it Item) EligibleToRemove() bool {
	return !it.IsFolder && it.InCollection && it.DocumentID != ""
}

func (s *Session) item(e library.DocumentEntry) Item {
	it := Item{DocumentEntry: e}
	if e.IsFolder {
		return it
	}
	it.InCollection = s.members.Contains(e)
	if it.InCollection {
		it.DocumentID = s.members.Resolve(e)
		_, it.MarkedRemove = s.toRemove[it.DocumentID]
		it.MarkedRemove = it.MarkedRemove && it.DocumentID != ""
	} else {
		res := s.evaluate(e)
		it.Compatible = res.Compatible
		it.IncompatibleReason = res.Reason
	}
	_, it.MarkedAdd = s.toAdd[e.Path]
	return it
}

// Action says what SelectItem did.
type Action int

const (
	ActionNone Action = iota
	// ActionNavigate: a folder was opened; fetch Outcome.Ticket.
	ActionNavigate
	// ActionJump: the entry lives in another folder. The session navigated
	// there and selects the entry once Outcome.Ticket's listing is applied.
	ActionJump
	ActionAdded
	ActionDeselected
	ActionMarkedRemove
	ActionUnmarkedRemove
)

func (a Action) String() string {
	switch a {
	case ActionNavigate:
		return "navigate"
	case ActionJump:
		return "jump"
	case ActionAdded:
		return "added"
	case ActionDeselected:
		return "deselected"
	case ActionMarkedRemove:
		return "marked-remove"
	case ActionUnmarkedRemove:
		return "unmarked-remove"
	default:
		return "none"
	}
}

// Outcome is the result of SelectItem.
type Outcome struct {
	Action Action
	// Ticket is set for ActionNavigate and ActionJump.
	Ticket Ticket
	// Reason explains an ActionNone.
	Reason string
	// Err carries ErrUnresolvableRemovalTarget when a member cannot be marked.
	Err error
}

// SelectItem applies the primary action to an entry: open a folder, jump to a
// search hit's folder, or toggle the entry's add/remove selection.
func (s *Session) SelectItem(e library.DocumentEntry) Outcome {
	if s.closed {
		return Outcome{Reason: "session closed"}
	}
	if e.IsFolder {
		return Outcome{Action: ActionNavigate, Ticket: s.NavigateTo(e.Path)}
	}
	if e.ParentPath != "" {
		if folder := library.CleanPath(e.ParentPath); folder != s.currentPath {
			t := s.NavigateTo(folder)
			s.pending = &pendingSelect{seq: t.Seq, path: library.CleanPath(e.Path)}
			return Outcome{Action: ActionJump, Ticket: t}
		}
	}
	if known, ok := s.entries[library.CleanPath(e.Path)]; ok {
		e = known
	} else {
		e = library.Normalize(e)
		e.ParentPath = ""
	}
	return s.toggle(e)
}

func (s *Session) toggle(e library.DocumentEntry) Outcome {
	if _, ok := s.toAdd[e.Path]; ok {
		delete(s.toAdd, e.Path)
		return Outcome{Action: ActionDeselected}
	}

	if s.members.Contains(e) {
		id := s.members.Resolve(e)
		if id == "" {
			err := fmt.Errorf("%w: %s", library.ErrUnresolvableRemovalTarget, e.Path)
			s.logger.Warn("cannot mark member for removal", zap.String("path", e.Path))
			return Outcome{Reason: "no document id for this member", Err: err}
		}
		if _, ok := s.toRemove[id]; ok {
			delete(s.toRemove, id)
			return Outcome{Action: ActionUnmarkedRemove}
		}
		s.toRemove[id] = struct{}{}
		return Outcome{Action: ActionMarkedRemove}
	}

	res := s.evaluate(e)
	if !res.Compatible {
		return Outcome{Reason: res.Reason}
	}
	s.entries[e.Path] = e
	s.toAdd[e.Path] = struct{}{}
	return Outcome{Action: ActionAdded}
}

// SelectAllVisibleToAdd marks (checked) or unmarks every visible entry that is
// eligible to add. Selections outside the view are left alone.
func (s *Session) SelectAllVisibleToAdd(checked bool) {
	for _, it := range s.Visible() {
		if !it.EligibleToAdd() {
			continue
		}
		if checked {
			s.toAdd[it.Path] = struct{}{}
		} else {
			delete(s.toAdd, it.Path)
		}
	}
}

// SelectAllVisibleToRemove marks (checked) or unmarks every visible member
// that has a resolvable document id. Selections outside the view are left alone.
func (s *Session) SelectAllVisibleToRemove(checked bool) {
	for _, it := range s.Visible() {
		if !it.EligibleToRemove() {
			continue
		}
		if checked {
			s.toRemove[it.DocumentID] = struct{}{}
		} else {
			delete(s.toRemove, it.DocumentID)
		}
	}
}

// MarkRemove puts documentID in the remove set without looking the entry up
// in the library. It reports false when no member carries that id.
func (s *Session) MarkRemove(documentID string) bool {
	if s.closed || documentID == "" || !s.members.HasID(documentID) {
		return false
	}
	s.toRemove[documentID] = struct{}{}
	return true
}

// DeselectAdd drops path from the add set.
func (s *Session) DeselectAdd(p string) {
	delete(s.toAdd, library.CleanPath(p))
}

// DeselectRemove drops documentID from the remove set.
func (s *Session) DeselectRemove(documentID string) {
	delete(s.toRemove, documentID)
}

// ClearAllSelections empties both sets.
func (s *Session) ClearAllSelections() {
	s.toAdd = make(map[string]struct{})
	s.toRemove = make(map[string]struct{})
}

// Reset is the host's clear after a change-set was applied successfully.
func (s *Session) Reset() {
	s.ClearAllSelections()
	s.pending = nil
}

// ClearApplied drops the items of an applied change-set. Selections made
// after cs was committed stay.
func (s *Session) ClearApplied(cs library.ChangeSet) {
	for _, a := range cs.DocumentsToAdd {
		s.DeselectAdd(a.Path)
	}
	for _, id := range cs.DocumentsToRemove {
		s.DeselectRemove(id)
	}
}

// HasPendingChanges reports whether anything is selected.
func (s *Session) HasPendingChanges() bool {
	return len(s.toAdd) > 0 || len(s.toRemove) > 0
}

// IsMarkedAdd reports whether path is in the add set.
func (s *Session) IsMarkedAdd(p string) bool {
	_, ok := s.toAdd[library.CleanPath(p)]
	return ok
}

// IsMarkedRemove reports whether documentID is in the remove set.
func (s *Session) IsMarkedRemove(documentID string) bool {
	_, ok := s.toRemove[documentID]
	return ok
}

// ToAdd returns the add set, sorted.
func (s *Session) ToAdd() []string { return sortedKeys(s.toAdd) }

// ToRemove returns the remove set, sorted.
func (s *Session) ToRemove() []string { return sortedKeys(s.toRemove) }

// Commit builds the change-set from the current selections. It does not clear
// them; the host calls Reset once the change-set has been applied.
func (s *Session) Commit() library.ChangeSet {
	cs := library.ChangeSet{
		DocumentsToAdd:    make([]library.AddItem, 0, len(s.toAdd)),
		DocumentsToRemove: s.ToRemove(),
	}
	for _, p := range s.ToAdd() {
		cs.DocumentsToAdd = append(cs.DocumentsToAdd, library.AddItem{Path: p, Name: s.nameOf(p)})
	}
	return cs
}

func (s *Session) nameOf(p string) string {
	if e, ok := s.entries[p]; ok && e.Name != "" {
		return e.Name
	}
	return path.Base(p)
}

// RemoveItem is a queued removal with a display name.
type RemoveItem struct {
	DocumentID string
	Name       string
	Path       string
}

// Summary lists the pending changes with display names, for the host to render.
type Summary struct {
	Add    []library.AddItem
	Remove []RemoveItem
}

// Summary returns the pending changes. Entries selected in folders the user
// has since left are included, resolved from the session-wide entry cache.
func (s *Session) Summary() Summary {
	sum := Summary{Add: s.Commit().DocumentsToAdd}
	for _, id := range s.ToRemove() {
		item := RemoveItem{DocumentID: id, Name: id}
		if m, ok := s.members.Lookup(id); ok {
			item.Path = m.Path
			switch {
			case m.Filename != "":
				item.Name = m.Filename
			case m.Path != "":
				item.Name = path.Base(m.Path)
			}
		}
		sum.Remove = append(sum.Remove, item)
	}
	return sum
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
