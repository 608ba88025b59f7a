// Package format renders CLI listings as text, JSON, CSV or Markdown.
package format

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
	"github.com/dyike/vsdocs/internal/storage"
)

// Format is an output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatMD   Format = "md"
)

// Parse validates a --format value
func Parse(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatCSV, FormatMD:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, csv or md)", s)
	}
}

// EntryRow is one library entry as seen against a collection
type EntryRow struct {
	Path           string `json:"path"`
	Name           string `json:"name"`
	IsFolder       bool   `json:"is_folder"`
	Size           int64  `json:"size,omitempty"`
	Classification string `json:"security_classification,omitempty"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
	Folder         string `json:"folder,omitempty"`
}

// Rows derives the printable status of each item
func Rows(items []reconciler.Item) []EntryRow {
	rows := make([]EntryRow, 0, len(items))
	for _, it := range items {
		row := EntryRow{
			Path:           it.Path,
			Name:           it.Name,
			IsFolder:       it.IsFolder,
			Size:           it.Size,
			Classification: it.SecurityClassification,
			DocumentID:     it.DocumentID,
			Folder:         it.ParentPath,
		}
		switch {
		case it.IsFolder:
			row.Status = "folder"
			row.Classification = ""
		case it.InCollection:
			row.Status = "member"
		case it.Compatible:
			row.Status = "eligible"
		default:
			row.Status = "incompatible"
			row.Reason = it.IncompatibleReason
		}
		rows = append(rows, row)
	}
	return rows
}

// OutputEntries writes a library listing
func OutputEntries(w io.Writer, items []reconciler.Item, format Format) error {
	rows := Rows(items)
	switch format {
	case FormatJSON:
		return outputJSON(w, rows)
	case FormatCSV:
		return outputCSV(w, []string{"Path", "Folder", "Status", "Reason", "Classification", "Size", "DocumentID"}, len(rows), func(i int) []string {
			r := rows[i]
			return []string{r.Path, strconv.FormatBool(r.IsFolder), r.Status, r.Reason, r.Classification, strconv.FormatInt(r.Size, 10), r.DocumentID}
		})
	case FormatMD:
		fmt.Fprintln(w, "| Path | Status | Classification | Size |")
		fmt.Fprintln(w, "|------|--------|----------------|------|")
		for _, r := range rows {
			status := r.Status
			if r.Reason != "" {
				status += ": " + r.Reason
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n", displayName(r), status, r.Classification, sizeOf(r))
		}
		return nil
	default:
		for _, r := range rows {
			status := r.Status
			if r.Reason != "" {
				status += " (" + r.Reason + ")"
			}
			if r.DocumentID != "" {
				status += " [" + r.DocumentID + "]"
			}
			fmt.Fprintf(w, "%-40s %-9s %-14s %s\n", displayName(r), sizeOf(r), r.Classification, status)
		}
		return nil
	}
}

// OutputCollections writes the collection summaries
func OutputCollections(w io.Writer, collections []library.Collection, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(w, collections)
	case FormatCSV:
		return outputCSV(w, []string{"ID", "Name", "Documents"}, len(collections), func(i int) []string {
			c := collections[i]
			return []string{c.ID, c.Name, strconv.Itoa(c.DocumentCount)}
		})
	case FormatMD:
		fmt.Fprintln(w, "| ID | Name | Docs |")
		fmt.Fprintln(w, "|----|------|------|")
		for _, c := range collections {
			fmt.Fprintf(w, "| %s | %s | %d |\n", c.ID, c.Name, c.DocumentCount)
		}
		return nil
	default:
		for _, c := range collections {
			fmt.Fprintf(w, "%-20s %-30s %d documents\n", c.ID, c.Name, c.DocumentCount)
		}
		return nil
	}
}

type membersView struct {
	Collection *library.CollectionConfig  `json:"collection"`
	Documents  []library.CollectionMember `json:"documents"`
}

// OutputMembers writes a collection's configuration and its documents
func OutputMembers(w io.Writer, cfg *library.CollectionConfig, members []library.CollectionMember, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(w, membersView{Collection: cfg, Documents: members})
	case FormatCSV:
		return outputCSV(w, []string{"DocumentID", "Filename", "Path"}, len(members), func(i int) []string {
			m := members[i]
			return []string{m.DocumentID, m.Filename, m.Path}
		})
	case FormatMD:
		fmt.Fprintf(w, "# %s\n\n", cfg.Name)
		fmt.Fprintf(w, "**Classification:** %s  \n", cfg.SecurityClassification)
		fmt.Fprintf(w, "**File types:** %s\n\n", strings.Join(cfg.AllowedFileTypes, ", "))
		fmt.Fprintln(w, "| DocumentID | Filename | Path |")
		fmt.Fprintln(w, "|------------|----------|------|")
		for _, m := range members {
			fmt.Fprintf(w, "| %s | %s | %s |\n", m.DocumentID, m.Filename, m.Path)
		}
		return nil
	default:
		fmt.Fprintf(w, "Collection: %s (%s)\n", cfg.Name, cfg.ID)
		fmt.Fprintf(w, "  Classification: %s\n", cfg.SecurityClassification)
		types := "default"
		if len(cfg.AllowedFileTypes) > 0 {
			types = strings.Join(cfg.AllowedFileTypes, ", ")
		}
		fmt.Fprintf(w, "  File types: %s\n", types)
		if cfg.EmbeddingModel != "" {
			fmt.Fprintf(w, "  Embedding: %s (chunk %d, overlap %d)\n", cfg.EmbeddingModel, cfg.ChunkSize, cfg.ChunkOverlap)
		}
		fmt.Fprintf(w, "  Documents: %d\n\n", len(members))
		for _, m := range members {
			name := m.Filename
			if m.Path != "" {
				name = m.Path
			}
			fmt.Fprintf(w, "%-38s %s\n", m.DocumentID, name)
		}
		return nil
	}
}

// OutputChangeSets writes change-set history
func OutputChangeSets(w io.Writer, records []*storage.ChangeSetRecord, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(w, records)
	case FormatCSV:
		return outputCSV(w, []string{"ID", "Collection", "Status", "Added", "Removed", "JobID", "Created", "Error"}, len(records), func(i int) []string {
			r := records[i]
			return []string{r.ID, r.CollectionID, r.Status, strconv.Itoa(r.Added), strconv.Itoa(r.Removed),
				deref(r.JobID), r.CreatedAt.Format(time.RFC3339), deref(r.Error)}
		})
	case FormatMD:
		fmt.Fprintln(w, "| ID | Collection | Status | +/- | Created |")
		fmt.Fprintln(w, "|----|------------|--------|-----|---------|")
		for _, r := range records {
			fmt.Fprintf(w, "| %s | %s | %s | +%d/-%d | %s |\n",
				r.ID, r.CollectionID, r.Status, r.Added, r.Removed, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	default:
		for _, r := range records {
			fmt.Fprintf(w, "%s %s\n", r.ID, r.CollectionID)
			fmt.Fprintf(w, "  Status: %s (%d/%d)\n", r.Status, r.Processed, r.Total)
			fmt.Fprintf(w, "  Changes: +%d -%d\n", r.Added, r.Removed)
			if r.JobID != nil {
				fmt.Fprintf(w, "  Job: %s\n", *r.JobID)
			}
			if r.Error != nil {
				fmt.Fprintf(w, "  Error: %s\n", *r.Error)
			}
			fmt.Fprintf(w, "  Created: %s\n", r.CreatedAt.Format(time.RFC3339))
			fmt.Fprintln(w)
		}
		return nil
	}
}

type changeSetView struct {
	*storage.ChangeSetRecord
	Items []*storage.ChangeSetItem `json:"items"`
}

// OutputChangeSet writes one change-set with its items
func OutputChangeSet(w io.Writer, rec *storage.ChangeSetRecord, items []*storage.ChangeSetItem, format Format) error {
	switch format {
	case FormatJSON:
		return outputJSON(w, changeSetView{ChangeSetRecord: rec, Items: items})
	case FormatCSV:
		return outputCSV(w, []string{"Op", "Ref", "Name"}, len(items), func(i int) []string {
			return []string{items[i].Op, items[i].Ref, items[i].Name}
		})
	default:
		if err := OutputChangeSets(w, []*storage.ChangeSetRecord{rec}, format); err != nil {
			return err
		}
		for _, it := range items {
			sign := "+"
			if it.Op == storage.OpRemove {
				sign = "-"
			}
			fmt.Fprintf(w, "%s %s  %s\n", sign, it.Name, it.Ref)
		}
		return nil
	}
}

// OutputChangeSetPlan writes a change-set that has not been applied
func OutputChangeSetPlan(w io.Writer, cs library.ChangeSet, format Format) error {
	if format == FormatJSON {
		return outputJSON(w, cs)
	}
	for _, a := range cs.DocumentsToAdd {
		fmt.Fprintf(w, "+ %s\n", a.Path)
	}
	for _, id := range cs.DocumentsToRemove {
		fmt.Fprintf(w, "- %s\n", id)
	}
	return nil
}

// OutputJob writes the final state of an apply
func OutputJob(w io.Writer, st library.JobStatus, format Format) error {
	if format == FormatJSON {
		return outputJSON(w, st)
	}
	fmt.Fprintf(w, "Job %s: %s (%d/%d)\n", orNone(st.JobID), st.Status, st.Processed, st.Total)
	if st.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", st.Error)
	}
	return nil
}

func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputCSV(w io.Writer, header []string, n int, row func(int) []string) error {
	cw := csv.NewWriter(w)
	cw.Write(header)
	for i := 0; i < n; i++ {
		cw.Write(row(i))
	}
	cw.Flush()
	return cw.Error()
}

func displayName(r EntryRow) string {
	if r.IsFolder {
		return r.Path + "/"
	}
	return r.Path
}

func sizeOf(r EntryRow) string {
	if r.IsFolder {
		return "-"
	}
	switch {
	case r.Size >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(r.Size)/(1<<20))
	case r.Size >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(r.Size)/(1<<10))
	default:
		return fmt.Sprintf("%dB", r.Size)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
