package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
	"github.com/dyike/vsdocs/internal/storage"
)

func testItems() []reconciler.Item {
	return []reconciler.Item{
		{DocumentEntry: library.DocumentEntry{Path: "/docs", Name: "docs", IsFolder: true}},
		{DocumentEntry: library.DocumentEntry{Path: "/a.pdf", Name: "a.pdf", Size: 2048, SecurityClassification: "Unclassified"}, Compatible: true},
		{DocumentEntry: library.DocumentEntry{Path: "/b.pdf", Name: "b.pdf"}, InCollection: true, DocumentID: "d1"},
		{DocumentEntry: library.DocumentEntry{Path: "/setup.exe", Name: "setup.exe"}, IncompatibleReason: "unsupported file type .exe"},
	}
}

func TestParse(t *testing.T) {
	if f, err := Parse(""); err != nil || f != FormatText {
		t.Errorf("expected text default, got %q, %v", f, err)
	}
	if f, err := Parse("JSON"); err != nil || f != FormatJSON {
		t.Errorf("expected json, got %q, %v", f, err)
	}
	if _, err := Parse("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRows(t *testing.T) {
	rows := Rows(testItems())
	want := []string{"folder", "eligible", "member", "incompatible"}
	for i, r := range rows {
		if r.Status != want[i] {
			t.Errorf("row %d: expected %s, got %s", i, want[i], r.Status)
		}
	}
	if rows[3].Reason == "" {
		t.Error("expected incompatible reason")
	}
}

func TestOutputEntriesText(t *testing.T) {
	var buf bytes.Buffer
	if err := OutputEntries(&buf, testItems(), FormatText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"/docs/", "2.0K", "member [d1]", "incompatible (unsupported file type .exe)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestOutputEntriesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := OutputEntries(&buf, testItems(), FormatJSON); err != nil {
		t.Fatal(err)
	}
	var rows []EntryRow
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(rows) != 4 || rows[2].DocumentID != "d1" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestOutputChangeSetCSV(t *testing.T) {
	job := "job-1"
	rec := &storage.ChangeSetRecord{ID: "cs1", CollectionID: "c1", JobID: &job, Status: "completed", Added: 1, CreatedAt: time.Unix(0, 0)}
	items := []*storage.ChangeSetItem{{Op: storage.OpAdd, Ref: "/a.pdf", Name: "a.pdf"}}

	var buf bytes.Buffer
	if err := OutputChangeSet(&buf, rec, items, FormatCSV); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || lines[1] != "add,/a.pdf,a.pdf" {
		t.Errorf("unexpected csv: %q", lines)
	}

	buf.Reset()
	if err := OutputChangeSet(&buf, rec, items, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Job: job-1") || !strings.Contains(buf.String(), "+ a.pdf") {
		t.Errorf("unexpected text output:\n%s", buf.String())
	}
}
