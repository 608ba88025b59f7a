package devserver

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/library"
)

// Seed is a collection created when the server starts.
type Seed struct {
	library.CollectionConfig
	// Documents are library paths that start out as members.
	Documents []string `json:"documents,omitempty"`
}

var (
	errNoCollection = errors.New("collection not found")
	errNoJob        = errors.New("job not found")
)

type collection struct {
	cfg library.CollectionConfig
	// document id -> member
	members map[string]library.CollectionMember
}

func (c *collection) hasPath(p string) bool {
	for _, m := range c.members {
		if m.Path == p {
			return true
		}
	}
	return false
}

// job fields other than status are fixed at creation. status is guarded by
// store.mu.
type job struct {
	id           string
	status       library.JobStatus
	collectionID string
	add          []library.DocumentEntry
	remove       []string
}

// store holds collections and jobs in memory.
type store struct {
	mu          sync.Mutex
	collections map[string]*collection
	jobs        map[string]*job
}

func newStore(seeds []Seed) *store {
	s := &store{
		collections: make(map[string]*collection),
		jobs:        make(map[string]*job),
	}
	for _, seed := range seeds {
		c := &collection{cfg: seed.CollectionConfig, members: make(map[string]library.CollectionMember)}
		if c.cfg.Name == "" {
			c.cfg.Name = c.cfg.ID
		}
		for _, p := range seed.Documents {
			m := newMember(p)
			c.members[m.DocumentID] = m
		}
		s.collections[c.cfg.ID] = c
	}
	return s
}

func newMember(p string) library.CollectionMember {
	p = library.CleanPath(p)
	return library.CollectionMember{DocumentID: uuid.New().String(), Filename: path.Base(p), Path: p}
}

func (s *store) listCollections() []library.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]library.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, library.Collection{ID: c.cfg.ID, Name: c.cfg.Name, DocumentCount: len(c.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) config(id string) (library.CollectionConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return library.CollectionConfig{}, errNoCollection
	}
	return c.cfg, nil
}

func (s *store) members(id string) ([]library.CollectionMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[id]
	if !ok {
		return nil, errNoCollection
	}
	out := make([]library.CollectionMember, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// createJob validates removals against the current members and queues a job.
func (s *store) createJob(collectionID string, add []library.DocumentEntry, remove []string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collectionID]
	if !ok {
		return nil, errNoCollection
	}
	for _, id := range remove {
		if _, ok := c.members[id]; !ok {
			return nil, fmt.Errorf("unknown document id %s", id)
		}
	}
	for _, e := range add {
		if c.hasPath(e.Path) {
			return nil, fmt.Errorf("%s is already in the collection", e.Path)
		}
	}
	id := uuid.New().String()
	j := &job{
		status: library.JobStatus{
			JobID:  id,
			Status: library.JobPending,
			Total:  len(add) + len(remove),
		},
		id:           id,
		collectionID: collectionID,
		add:          add,
		remove:       remove,
	}
	s.jobs[id] = j
	return j, nil
}

func (s *store) jobStatus(id string) (library.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return library.JobStatus{}, errNoJob
	}
	return j.status, nil
}

func (s *store) update(j *job, fn func(st *library.JobStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&j.status)
}

// runJob processes one item per step and commits the whole job at the end.
// A failed job changes nothing. check is called for every added document
// before the commit.
func (s *store) runJob(ctx context.Context, j *job, step time.Duration, check func(library.DocumentEntry) error, logger *zap.Logger) {
	jobsActive.Inc()
	defer jobsActive.Dec()

	fail := func(msg string) {
		s.update(j, func(st *library.JobStatus) {
			st.Status = library.JobFailed
			st.Error = msg
		})
		recordJob(string(library.JobFailed))
		logger.Warn("apply job failed", zap.String("job_id", j.id), zap.String("error", msg))
	}

	s.update(j, func(st *library.JobStatus) { st.Status = library.JobRunning })

	for _, e := range j.add {
		select {
		case <-ctx.Done():
			fail("server shutting down")
			return
		case <-time.After(step):
		}
		if err := check(e); err != nil {
			fail(fmt.Sprintf("%s: %v", e.Path, err))
			return
		}
		s.update(j, func(st *library.JobStatus) { st.Processed++ })
	}
	for range j.remove {
		select {
		case <-ctx.Done():
			fail("server shutting down")
			return
		case <-time.After(step):
		}
		s.update(j, func(st *library.JobStatus) { st.Processed++ })
	}

	s.mu.Lock()
	c, ok := s.collections[j.collectionID]
	if !ok {
		s.mu.Unlock()
		fail("collection was deleted")
		return
	}
	for _, id := range j.remove {
		delete(c.members, id)
	}
	for _, e := range j.add {
		if !c.hasPath(e.Path) {
			m := newMember(e.Path)
			c.members[m.DocumentID] = m
		}
	}
	j.status.Status = library.JobCompleted
	s.mu.Unlock()

	documentsChanged.WithLabelValues("add").Add(float64(len(j.add)))
	documentsChanged.WithLabelValues("remove").Add(float64(len(j.remove)))
	recordJob(string(library.JobCompleted))
	logger.Info("apply job completed",
		zap.String("job_id", j.id),
		zap.String("collection_id", j.collectionID),
		zap.Int("added", len(j.add)),
		zap.Int("removed", len(j.remove)))
}
