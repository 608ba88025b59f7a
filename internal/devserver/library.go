package devserver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/dyike/vsdocs/internal/library"
)

// ErrNotFound is returned for library paths that do not exist.
var ErrNotFound = errors.New("not found")

// ErrNotFolder is returned when a listing is asked for a file.
var ErrNotFolder = errors.New("not a folder")

// Classifications is the sidecar file that assigns security markings to
// library paths, e.g.
//
//	default: Unclassified
//	rules:
//	  - pattern: "restricted/**"
//	    classification: Secret
//	  - pattern: "*.cui.pdf"
//	    classification: CUI
type Classifications struct {
	Default string               `yaml:"default"`
	Rules   []ClassificationRule `yaml:"rules"`
}

// ClassificationRule matches a glob against the library path (without the
// leading slash) or the file name. "**" spans folders. The first match wins.
type ClassificationRule struct {
	Pattern        string `yaml:"pattern"`
	Classification string `yaml:"classification"`
}

// LoadClassifications reads a sidecar file. A missing file yields no rules.
func LoadClassifications(file string) (*Classifications, error) {
	c := &Classifications{}
	if file == "" {
		return c, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read classifications: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse classifications: %w", err)
	}
	for _, r := range c.Rules {
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("bad classification pattern %q", r.Pattern)
		}
	}
	return c, nil
}

// Classify returns the marking for a library path.
func (c *Classifications) Classify(p string) string {
	rel := strings.TrimPrefix(library.CleanPath(p), "/")
	base := path.Base(rel)
	for _, r := range c.Rules {
		if ok, _ := doublestar.Match(r.Pattern, rel); ok {
			return r.Classification
		}
		if ok, _ := doublestar.Match(r.Pattern, base); ok {
			return r.Classification
		}
	}
	return c.Default
}

// dirLibrary serves a directory tree as the document library.
type dirLibrary struct {
	root       string
	skip       string
	showHidden bool
	classes    *Classifications
}

func newDirLibrary(root, metaFile string, showHidden bool, classes *Classifications) (*dirLibrary, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}
	if classes == nil {
		classes = &Classifications{}
	}
	skip := ""
	if metaFile != "" {
		if m, err := filepath.Abs(metaFile); err == nil {
			skip = m
		}
	}
	return &dirLibrary{root: abs, skip: skip, showHidden: showHidden, classes: classes}, nil
}

// local maps a library path onto the filesystem. CleanPath removes any ".."
// so the result stays under root.
func (l *dirLibrary) local(p string) string {
	return filepath.Join(l.root, filepath.FromSlash(library.CleanPath(p)))
}

func (l *dirLibrary) list(p string) ([]library.DocumentEntry, error) {
	p = library.CleanPath(p)
	dir := l.local(p)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrNotFolder
	}

	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]library.DocumentEntry, 0, len(des))
	for _, de := range des {
		name := de.Name()
		if !l.showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(dir, name)
		if full == l.skip {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		e := library.DocumentEntry{
			Path:     library.JoinPath(p, name),
			Name:     name,
			IsFolder: fi.IsDir(),
		}
		if !e.IsFolder {
			e.Size = fi.Size()
			e.SecurityClassification = l.classes.Classify(e.Path)
		}
		entries = append(entries, library.Normalize(e))
	}
	// folders first, then by name
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsFolder != entries[j].IsFolder {
			return entries[i].IsFolder
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// stat returns the entry for a single file.
func (l *dirLibrary) stat(p string) (library.DocumentEntry, error) {
	p = library.CleanPath(p)
	if p == "" {
		return library.DocumentEntry{}, ErrNotFound
	}
	fi, err := os.Stat(l.local(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return library.DocumentEntry{}, ErrNotFound
		}
		return library.DocumentEntry{}, err
	}
	e := library.DocumentEntry{Path: p, IsFolder: fi.IsDir()}
	if !e.IsFolder {
		e.Size = fi.Size()
		e.SecurityClassification = l.classes.Classify(p)
	}
	return library.Normalize(e), nil
}
