// Package library holds the data model shared by the reconciler, the HTTP client
// and the dev backend: library entries, collection members, change-sets and jobs.
package library

import (
	"path"
	"strings"
)

// DefaultClassification is assigned to entries that arrive without one.
const DefaultClassification = "Unclassified"

// DocumentEntry is one item seen while browsing the document library.
type DocumentEntry struct {
	Path                   string `json:"path"`
	Name                   string `json:"name,omitempty"`
	IsFolder               bool   `json:"is_folder"`
	Size                   int64  `json:"size,omitempty"`
	FileType               string `json:"file_type,omitempty"`
	SecurityClassification string `json:"security_classification,omitempty"`

	// ParentPath is set only on entries discovered by a recursive crawl. It holds
	// the folder the entry was listed from ("/" for the root).
	ParentPath string `json:"parent_path,omitempty"`
}

// Folder returns the folder that directly contains the entry.
func (e DocumentEntry) Folder() string {
	return ParentOf(e.Path)
}

// Normalize fills defaults once at the collaborator boundary so that nothing
// downstream has to re-derive them.
func Normalize(e DocumentEntry) DocumentEntry {
	e.Path = CleanPath(e.Path)
	if e.Name == "" {
		e.Name = path.Base(e.Path)
		if e.Path == "" {
			e.Name = "/"
		}
	}
	if strings.TrimSpace(e.SecurityClassification) == "" {
		e.SecurityClassification = DefaultClassification
	}
	if e.IsFolder {
		e.Size = 0
		e.FileType = ""
	} else if e.FileType == "" {
		e.FileType = FileTypeOf(e.Name)
	} else {
		e.FileType = strings.ToLower(strings.TrimPrefix(e.FileType, "."))
	}
	return e
}

// NormalizeAll applies Normalize to every entry and drops entries without a path.
func NormalizeAll(entries []DocumentEntry) []DocumentEntry {
	out := make([]DocumentEntry, 0, len(entries))
	for _, e := range entries {
		n := Normalize(e)
		if n.Path == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// FileTypeOf returns the lower-cased extension of name without the dot.
func FileTypeOf(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// CleanPath converts a library path to its canonical form: a leading slash,
// no trailing slash, and "" for the root.
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" || p == "." {
		return ""
	}
	p = path.Clean("/" + p)
	if p == "/" {
		return ""
	}
	return p
}

// ParentOf strips the last "/"-delimited segment. The parent of a root-level
// path, and of the root itself, is the root.
func ParentOf(p string) string {
	p = CleanPath(p)
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return ""
	}
	return p[:idx]
}

// JoinPath builds a child path under parent.
func JoinPath(parent, name string) string {
	return CleanPath(CleanPath(parent) + "/" + name)
}

// DisplayPath renders a canonical path for humans; the root shows as "/".
func DisplayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
