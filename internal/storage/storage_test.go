package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dyike/vsdocs/internal/library"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestChangeSetLifecycle(t *testing.T) {
	db := openTestDB(t)

	cs := library.ChangeSet{
		DocumentsToAdd:    []library.AddItem{{Path: "/a.pdf", Name: "a.pdf"}, {Path: "/docs/c.pdf", Name: "c.pdf"}},
		DocumentsToRemove: []string{"d1"},
	}
	rec, err := db.CreateChangeSet("c1", cs)
	if err != nil {
		t.Fatalf("CreateChangeSet failed: %v", err)
	}
	if rec.Status != StatusSubmitting || rec.Added != 2 || rec.Removed != 1 || rec.Total != 3 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.JobID != nil {
		t.Errorf("expected no job id yet, got %q", *rec.JobID)
	}

	if err := db.SetChangeSetJob(rec.ID, "job-1"); err != nil {
		t.Fatalf("SetChangeSetJob failed: %v", err)
	}
	st := library.JobStatus{JobID: "job-1", Status: library.JobFailed, Processed: 1, Total: 3, Error: "disk full"}
	if err := db.UpdateChangeSetStatus(rec.ID, st); err != nil {
		t.Fatalf("UpdateChangeSetStatus failed: %v", err)
	}

	got, err := db.GetChangeSet(rec.ID)
	if err != nil || got == nil {
		t.Fatalf("GetChangeSet failed: %v", err)
	}
	if got.JobID == nil || *got.JobID != "job-1" {
		t.Errorf("expected job-1, got %v", got.JobID)
	}
	if got.Status != string(library.JobFailed) || got.Error == nil || *got.Error != "disk full" {
		t.Errorf("expected failed with message, got %+v", got)
	}

	items, err := db.GetChangeSetItems(rec.ID)
	if err != nil {
		t.Fatalf("GetChangeSetItems failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Op != OpAdd || items[0].Ref != "/a.pdf" || items[0].Name != "a.pdf" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[2].Op != OpRemove || items[2].Ref != "d1" || items[2].Name != "" {
		t.Errorf("unexpected remove item: %+v", items[2])
	}

	if err := db.DeleteChangeSet(rec.ID); err != nil {
		t.Fatalf("DeleteChangeSet failed: %v", err)
	}
	items, _ = db.GetChangeSetItems(rec.ID)
	if len(items) != 0 {
		t.Errorf("expected items to cascade, got %d", len(items))
	}
}

func TestGetChangeSetMissing(t *testing.T) {
	db := openTestDB(t)
	rec, err := db.GetChangeSet("nope")
	if err != nil || rec != nil {
		t.Errorf("expected nil, nil; got %v, %v", rec, err)
	}
}

func TestListChangeSets(t *testing.T) {
	db := openTestDB(t)
	one := library.ChangeSet{DocumentsToRemove: []string{"x"}}
	for _, col := range []string{"c1", "c2", "c1"} {
		if _, err := db.CreateChangeSet(col, one); err != nil {
			t.Fatal(err)
		}
	}
	last, err := db.CreateChangeSet("c1", one)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.FailChangeSetSubmit(last.ID, errors.New("connection refused")); err != nil {
		t.Fatal(err)
	}

	all, err := db.ListChangeSets("", 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("expected 4 records, got %d (%v)", len(all), err)
	}
	if all[0].ID != last.ID || all[0].Status != StatusSubmitFailed {
		t.Errorf("expected newest first with submit_failed, got %+v", all[0])
	}

	c1, _ := db.ListChangeSets("c1", 2)
	if len(c1) != 2 {
		t.Errorf("expected limit of 2, got %d", len(c1))
	}
	for _, r := range c1 {
		if r.CollectionID != "c1" {
			t.Errorf("expected only c1, got %s", r.CollectionID)
		}
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	if v, err := db.GetSetting(SettingLastCollection); err != nil || v != "" {
		t.Fatalf("expected empty setting, got %q, %v", v, err)
	}
	db.SetSetting(SettingLastCollection, "c1")
	db.SetSetting(SettingLastCollection, "c2")
	if v, _ := db.GetSetting(SettingLastCollection); v != "c2" {
		t.Errorf("expected c2, got %q", v)
	}
}
