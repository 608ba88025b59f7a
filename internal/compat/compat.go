// Package compat decides whether a library document may be added to a collection.
package compat

import (
	"fmt"
	"strings"

	"github.com/dyike/vsdocs/internal/library"
)

// DefaultFileTypes are accepted when a collection does not list its own.
var DefaultFileTypes = []string{"pdf", "txt", "md", "doc", "docx", "html", "csv", "json", "pptx", "xlsx"}

// Result is the outcome of a compatibility check.
type Result struct {
	Compatible bool
	Reason     string
	// Err is set when the check could not be evaluated.
	Err error
}

// Checker evaluates a document against a collection configuration. It must not do I/O.
type Checker interface {
	Check(entry library.DocumentEntry, cfg *library.CollectionConfig) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(entry library.DocumentEntry, cfg *library.CollectionConfig) Result

// Check implements Checker.
func (f CheckerFunc) Check(entry library.DocumentEntry, cfg *library.CollectionConfig) Result {
	return f(entry, cfg)
}

// Rules checks file type and security classification.
type Rules struct {
	// FallbackTypes apply when the collection lists no file types.
	FallbackTypes []string
}

// NewRules returns the standard rule set.
func NewRules() *Rules {
	return &Rules{FallbackTypes: DefaultFileTypes}
}

// Check implements Checker.
func (r *Rules) Check(entry library.DocumentEntry, cfg *library.CollectionConfig) Result {
	if cfg == nil {
		return unknown("collection configuration unavailable")
	}
	if entry.IsFolder {
		return Result{Reason: "folders cannot be added"}
	}

	allowed := cfg.AllowedFileTypes
	if len(allowed) == 0 {
		allowed = r.FallbackTypes
	}
	ft := entry.FileType
	if ft == "" {
		ft = library.FileTypeOf(entry.Name)
	}
	if !containsType(allowed, ft) {
		if ft == "" {
			return Result{Reason: "file has no type"}
		}
		return Result{Reason: fmt.Sprintf("unsupported file type .%s", ft)}
	}

	docRank, ok := library.ClassificationRank(entry.SecurityClassification)
	if !ok {
		return unknown(fmt.Sprintf("unknown classification %q", entry.SecurityClassification))
	}
	collRank, ok := library.ClassificationRank(cfg.SecurityClassification)
	if !ok {
		return unknown(fmt.Sprintf("collection has unknown classification %q", cfg.SecurityClassification))
	}
	if docRank > collRank {
		return Result{Reason: fmt.Sprintf("%s exceeds collection classification %s",
			entry.SecurityClassification, displayClassification(cfg.SecurityClassification))}
	}
	return Result{Compatible: true}
}

// Evaluate runs checker and fails closed: a missing checker, or one that could
// not evaluate the entry, makes the entry incompatible.
func Evaluate(checker Checker, entry library.DocumentEntry, cfg *library.CollectionConfig) Result {
	if checker == nil {
		return unknown("no compatibility checker configured")
	}
	res := checker.Check(entry, cfg)
	if res.Err != nil {
		res.Compatible = false
		if res.Reason == "" {
			res.Reason = res.Err.Error()
		}
	}
	return res
}

func unknown(reason string) Result {
	return Result{
		Reason: reason,
		Err:    fmt.Errorf("%w: %s", library.ErrCompatibilityUnknown, reason),
	}
}

func containsType(types []string, ft string) bool {
	if ft == "" {
		return false
	}
	for _, t := range types {
		if strings.EqualFold(strings.TrimPrefix(t, "."), ft) {
			return true
		}
	}
	return false
}

func displayClassification(c string) string {
	if strings.TrimSpace(c) == "" {
		return library.DefaultClassification
	}
	return c
}
