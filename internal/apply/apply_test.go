package apply

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/storage"
)

type fakeApplier struct {
	mu        sync.Mutex
	jobID     string
	submitErr error
	statuses  []library.JobStatus
	pollErrs  int
	submitted []library.ChangeRequest
}

func (f *fakeApplier) SubmitChangeSet(_ context.Context, _ string, req library.ChangeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.jobID, f.submitErr
}

func (f *fakeApplier) JobStatus(_ context.Context, jobID string) (*library.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErrs > 0 {
		f.pollErrs--
		return nil, errors.New("temporarily unavailable")
	}
	st := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	st.JobID = jobID
	return &st, nil
}

func testChangeSet() library.ChangeSet {
	return library.ChangeSet{
		DocumentsToAdd:    []library.AddItem{{Path: "/a.pdf", Name: "a.pdf"}},
		DocumentsToRemove: []string{"d1"},
	}
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyPollsUntilCompleted(t *testing.T) {
	db := openDB(t)
	f := &fakeApplier{
		jobID: "job-1",
		statuses: []library.JobStatus{
			{Status: library.JobPending, Total: 2},
			{Status: library.JobRunning, Processed: 1, Total: 2},
			{Status: library.JobCompleted, Processed: 2, Total: 2},
		},
		pollErrs: 1,
	}
	svc := New(Options{Applier: f, Recorder: db, PollInterval: time.Millisecond})

	var seen []float64
	st, err := svc.Apply(context.Background(), "c1", testChangeSet(), func(st library.JobStatus) {
		seen = append(seen, st.Fraction())
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if st.Status != library.JobCompleted {
		t.Errorf("expected completed, got %s", st.Status)
	}
	if len(seen) != 3 || seen[2] != 1 {
		t.Errorf("expected 3 progress updates ending at 1, got %v", seen)
	}
	if got := f.submitted[0]; len(got.Add) != 1 || got.Add[0] != "/a.pdf" || got.Remove[0] != "d1" {
		t.Errorf("unexpected request: %+v", got)
	}

	history, _ := db.ListChangeSets("c1", 0)
	if len(history) != 1 || history[0].Status != string(library.JobCompleted) || *history[0].JobID != "job-1" {
		t.Errorf("expected completed history record, got %+v", history)
	}
}

func TestApplyJobFailed(t *testing.T) {
	f := &fakeApplier{
		jobID:    "job-2",
		statuses: []library.JobStatus{{Status: library.JobFailed, Processed: 1, Total: 2, Error: "embedding model offline"}},
	}
	svc := New(Options{Applier: f, PollInterval: time.Millisecond})

	st, err := svc.Apply(context.Background(), "c1", testChangeSet(), nil)
	if !errors.Is(err, library.ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}
	if st.Error != "embedding model offline" {
		t.Errorf("expected server message, got %q", st.Error)
	}
	t.Logf("job error: %v", err)
}

func TestSubmitFailed(t *testing.T) {
	db := openDB(t)
	f := &fakeApplier{submitErr: errors.New("403 forbidden")}
	svc := New(Options{Applier: f, Recorder: db})

	_, err := svc.Submit(context.Background(), "c1", testChangeSet())
	if !errors.Is(err, library.ErrSubmitFailed) {
		t.Fatalf("expected ErrSubmitFailed, got %v", err)
	}
	history, _ := db.ListChangeSets("", 0)
	if len(history) != 1 || history[0].Status != storage.StatusSubmitFailed {
		t.Errorf("expected submit_failed record, got %+v", history)
	}
}

func TestSubmitWithoutJob(t *testing.T) {
	svc := New(Options{Applier: &fakeApplier{}})

	run, err := svc.Submit(context.Background(), "c1", testChangeSet())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !run.Done() || run.Status.Processed != 2 {
		t.Errorf("expected completed run, got %+v", run.Status)
	}

	run, err = svc.Submit(context.Background(), "c1", library.ChangeSet{})
	if err != nil || !run.Done() {
		t.Errorf("expected empty change-set to complete at once, got %+v, %v", run, err)
	}
}

func TestWaitGivesUpAfterRepeatedPollErrors(t *testing.T) {
	f := &fakeApplier{jobID: "job-3", pollErrs: 10, statuses: []library.JobStatus{{Status: library.JobRunning}}}
	svc := New(Options{Applier: f, PollInterval: time.Millisecond})

	run, err := svc.Submit(context.Background(), "c1", testChangeSet())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Wait(context.Background(), run, nil); err == nil {
		t.Fatal("expected error after repeated poll failures")
	}
}

func TestWaitCancelled(t *testing.T) {
	f := &fakeApplier{jobID: "job-4", statuses: []library.JobStatus{{Status: library.JobRunning}}}
	svc := New(Options{Applier: f, PollInterval: time.Hour})

	run, _ := svc.Submit(context.Background(), "c1", testChangeSet())
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := svc.Wait(ctx, run, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
