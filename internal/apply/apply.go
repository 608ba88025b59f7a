// Package apply submits a change-set to the backend, follows the resulting job
// to a terminal state and records the outcome in local history.
package apply

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/storage"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = time.Second

// maxPollErrors is how many consecutive status fetches may fail before Wait gives up.
const maxPollErrors = 3

// Recorder keeps change-set history. *storage.DB implements it.
type Recorder interface {
	CreateChangeSet(collectionID string, cs library.ChangeSet) (*storage.ChangeSetRecord, error)
	SetChangeSetJob(id, jobID string) error
	UpdateChangeSetStatus(id string, st library.JobStatus) error
	FailChangeSetSubmit(id string, cause error) error
}

// Options configures a Service.
type Options struct {
	Applier      library.Applier
	Recorder     Recorder // optional
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Service applies change-sets.
type Service struct {
	applier  library.Applier
	recorder Recorder
	interval time.Duration
	logger   *zap.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		applier:  opts.Applier,
		recorder: opts.Recorder,
		interval: opts.PollInterval,
		logger:   opts.Logger,
	}
}

// Interval is the delay between status polls.
func (s *Service) Interval() time.Duration { return s.interval }

// Run is a submitted change-set.
type Run struct {
	CollectionID string
	JobID        string
	// RecordID is the local history id, "" when history is not kept.
	RecordID string
	Status   library.JobStatus
}

// Done reports whether the run reached a terminal state.
func (r *Run) Done() bool { return r.Status.Status.IsTerminal() }

// Submit sends the change-set. A backend that returns no job id applied it
// synchronously, and the run is already completed.
func (s *Service) Submit(ctx context.Context, collectionID string, cs library.ChangeSet) (*Run, error) {
	total := len(cs.DocumentsToAdd) + len(cs.DocumentsToRemove)
	run := &Run{CollectionID: collectionID}
	if cs.IsEmpty() {
		run.Status = library.JobStatus{Status: library.JobCompleted}
		return run, nil
	}

	if s.recorder != nil {
		rec, err := s.recorder.CreateChangeSet(collectionID, cs)
		if err != nil {
			s.logger.Warn("failed to record change-set", zap.Error(err))
		} else {
			run.RecordID = rec.ID
		}
	}

	jobID, err := s.applier.SubmitChangeSet(ctx, collectionID, cs.Request())
	if err != nil {
		if !errors.Is(err, library.ErrSubmitFailed) {
			err = fmt.Errorf("%w: %w", library.ErrSubmitFailed, err)
		}
		s.logger.Error("change-set submit failed",
			zap.String("collection_id", collectionID),
			zap.Error(err))
		s.record(run, func(r Recorder) error { return r.FailChangeSetSubmit(run.RecordID, err) })
		return nil, err
	}

	run.JobID = jobID
	if jobID == "" {
		run.Status = library.JobStatus{Status: library.JobCompleted, Processed: total, Total: total}
		s.record(run, func(r Recorder) error { return r.UpdateChangeSetStatus(run.RecordID, run.Status) })
		return run, nil
	}

	run.Status = library.JobStatus{JobID: jobID, Status: library.JobPending, Total: total}
	s.record(run, func(r Recorder) error { return r.SetChangeSetJob(run.RecordID, jobID) })
	s.logger.Info("change-set submitted",
		zap.String("collection_id", collectionID),
		zap.String("job_id", jobID),
		zap.Int("add", len(cs.DocumentsToAdd)),
		zap.Int("remove", len(cs.DocumentsToRemove)))
	return run, nil
}

// Poll fetches the job status once. A failed job returns its status together
// with an error wrapping library.ErrJobFailed and the server's message.
func (s *Service) Poll(ctx context.Context, run *Run) (library.JobStatus, error) {
	if run.Done() {
		return run.Status, jobErr(run.Status)
	}
	st, err := s.applier.JobStatus(ctx, run.JobID)
	if err != nil {
		return run.Status, err
	}
	run.Status = *st
	s.record(run, func(r Recorder) error { return r.UpdateChangeSetStatus(run.RecordID, *st) })
	if st.Status.IsTerminal() {
		s.logger.Info("apply job finished",
			zap.String("job_id", run.JobID),
			zap.String("status", string(st.Status)),
			zap.String("error", st.Error))
	}
	return *st, jobErr(*st)
}

// Wait polls until the job is terminal, reporting every snapshot to onProgress.
func (s *Service) Wait(ctx context.Context, run *Run, onProgress func(library.JobStatus)) (library.JobStatus, error) {
	failures := 0
	for {
		st, err := s.Poll(ctx, run)
		if onProgress != nil && (err == nil || errors.Is(err, library.ErrJobFailed)) {
			onProgress(st)
		}
		if run.Done() {
			return st, err
		}
		if err != nil {
			failures++
			s.logger.Warn("job status poll failed",
				zap.String("job_id", run.JobID),
				zap.Int("attempt", failures),
				zap.Error(err))
			if failures >= maxPollErrors {
				return st, fmt.Errorf("failed to poll job %s: %w", run.JobID, err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// Apply submits the change-set and waits for its job.
func (s *Service) Apply(ctx context.Context, collectionID string, cs library.ChangeSet, onProgress func(library.JobStatus)) (library.JobStatus, error) {
	run, err := s.Submit(ctx, collectionID, cs)
	if err != nil {
		return library.JobStatus{}, err
	}
	return s.Wait(ctx, run, onProgress)
}

func (s *Service) record(run *Run, fn func(Recorder) error) {
	if s.recorder == nil || run.RecordID == "" {
		return
	}
	if err := fn(s.recorder); err != nil {
		s.logger.Warn("failed to update change-set history",
			zap.String("record_id", run.RecordID),
			zap.Error(err))
	}
}

func jobErr(st library.JobStatus) error {
	if st.Status != library.JobFailed {
		return nil
	}
	msg := st.Error
	if msg == "" {
		msg = "no details from server"
	}
	return fmt.Errorf("%w: %s", library.ErrJobFailed, msg)
}
