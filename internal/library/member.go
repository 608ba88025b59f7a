package library

import (
	"path"
	"strings"
)

// CollectionMember is a document already present in the target collection.
type CollectionMember struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	Path       string `json:"path,omitempty"`
}

// NormalizeMember cleans the member path and derives a filename when absent.
func NormalizeMember(m CollectionMember) CollectionMember {
	if m.Path != "" {
		m.Path = CleanPath(m.Path)
	}
	if m.Filename == "" && m.Path != "" {
		m.Filename = path.Base(m.Path)
	}
	return m
}

// MemberIndex answers "is this entry in the collection" and "which document id
// removes it" for browsed entries.
//
// Matching by filename can pair two files with the same name in different
// folders with the same member. The heuristic is kept for compatibility with
// backends that report only filenames.
type MemberIndex struct {
	members []CollectionMember
	byPath  map[string]int
	byName  map[string]int
	ids     map[string]struct{}
}

// NewMemberIndex builds an index over members. Earlier members win ties.
func NewMemberIndex(members []CollectionMember) MemberIndex {
	idx := MemberIndex{
		members: make([]CollectionMember, 0, len(members)),
		byPath:  make(map[string]int),
		byName:  make(map[string]int),
		ids:     make(map[string]struct{}),
	}
	for _, m := range members {
		m = NormalizeMember(m)
		i := len(idx.members)
		idx.members = append(idx.members, m)
		if m.Path != "" {
			if _, ok := idx.byPath[m.Path]; !ok {
				idx.byPath[m.Path] = i
			}
		}
		if m.Filename != "" {
			if _, ok := idx.byName[m.Filename]; !ok {
				idx.byName[m.Filename] = i
			}
		}
		if m.DocumentID != "" {
			idx.ids[m.DocumentID] = struct{}{}
		}
	}
	return idx
}

// Len returns the number of members.
func (x MemberIndex) Len() int { return len(x.members) }

// Members returns the indexed members.
func (x MemberIndex) Members() []CollectionMember { return x.members }

// HasID reports whether documentID belongs to a current member.
func (x MemberIndex) HasID(documentID string) bool {
	_, ok := x.ids[documentID]
	return ok
}

// Contains reports whether a member matches the entry by path or by name.
func (x MemberIndex) Contains(e DocumentEntry) bool {
	if e.IsFolder {
		return false
	}
	if _, ok := x.byPath[CleanPath(e.Path)]; ok {
		return true
	}
	_, ok := x.byName[entryName(e)]
	return ok
}

// Resolve returns the document id used to remove the entry from the collection,
// or "" when no member with an id can be correlated. An exact path match is
// tried first, then the filename, then a path-suffix match.
func (x MemberIndex) Resolve(e DocumentEntry) string {
	if e.IsFolder {
		return ""
	}
	p := CleanPath(e.Path)
	if i, ok := x.byPath[p]; ok && x.members[i].DocumentID != "" {
		return x.members[i].DocumentID
	}
	if i, ok := x.byName[entryName(e)]; ok && x.members[i].DocumentID != "" {
		return x.members[i].DocumentID
	}
	for _, m := range x.members {
		if m.DocumentID == "" || m.Path == "" {
			continue
		}
		if hasPathSuffix(p, m.Path) || hasPathSuffix(m.Path, p) {
			return m.DocumentID
		}
	}
	return ""
}

// Lookup returns the member carrying documentID.
func (x MemberIndex) Lookup(documentID string) (CollectionMember, bool) {
	for _, m := range x.members {
		if m.DocumentID == documentID {
			return m, true
		}
	}
	return CollectionMember{}, false
}

func entryName(e DocumentEntry) string {
	if e.Name != "" {
		return e.Name
	}
	return path.Base(CleanPath(e.Path))
}

// hasPathSuffix reports whether suffix is a trailing run of whole segments of p.
func hasPathSuffix(p, suffix string) bool {
	if p == "" || suffix == "" {
		return false
	}
	if p == suffix {
		return true
	}
	return strings.HasSuffix(p, suffix) && strings.HasSuffix(p[:len(p)-len(suffix)+1], "/")
}
