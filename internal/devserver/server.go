// Package devserver is a local reference backend. It serves a directory tree as
// the document library, keeps collections in memory and applies change-sets
// with asynchronous jobs, so the editor can be exercised without the real
// vector store service.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/api"
	"github.com/dyike/vsdocs/internal/compat"
	"github.com/dyike/vsdocs/internal/library"
)

// DefaultJobStep is how long a job spends on each document.
const DefaultJobStep = 50 * time.Millisecond

// Options configures a Server.
type Options struct {
	Root        string
	MetaFile    string
	ShowHidden  bool
	Collections []Seed
	// Token, when set, is required as a bearer token on /api/v1.
	Token   string
	JobStep time.Duration
	Logger  *zap.Logger
}

// Server is the dev backend.
type Server struct {
	opts    Options
	lib     *dirLibrary
	store   *store
	checker compat.Checker
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a server over opts.Root.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.JobStep <= 0 {
		opts.JobStep = DefaultJobStep
	}
	classes, err := LoadClassifications(opts.MetaFile)
	if err != nil {
		return nil, err
	}
	lib, err := newDirLibrary(opts.Root, opts.MetaFile, opts.ShowHidden, classes)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:    opts,
		lib:     lib,
		store:   newStore(opts.Collections),
		checker: compat.NewRules(),
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logRequests)
	r.Use(chimiddleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route(api.Prefix, func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/library", s.listLibrary)
		r.Route("/collections", func(r chi.Router) {
			r.Get("/", s.listCollections)
			r.Get("/{id}", s.getCollection)
			r.Get("/{id}/documents", s.listMembers)
			r.Post("/{id}/changes", s.submitChanges)
		})
		r.Get("/jobs/{id}", s.getJob)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev backend listening", zap.String("addr", addr), zap.String("root", s.lib.root))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close fails running jobs and waits for them.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.opts.Token {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) listLibrary(w http.ResponseWriter, r *http.Request) {
	p := library.CleanPath(r.URL.Query().Get("path"))
	entries, err := s.lib.list(p)
	recordListing(err == nil)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "no such folder: "+library.DisplayPath(p))
		return
	case errors.Is(err, ErrNotFolder):
		writeError(w, http.StatusBadRequest, library.DisplayPath(p)+" is not a folder")
		return
	case err != nil:
		s.logger.Error("library listing failed", zap.String("path", p), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list folder")
		return
	}
	writeJSON(w, http.StatusOK, api.ListingResponse{Path: library.DisplayPath(p), Entries: entries})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.CollectionsResponse{Collections: s.store.listCollections()})
}

func (s *Server) getCollection(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.config(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.members(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.MembersResponse{Documents: members})
}

func (s *Server) submitChanges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req library.ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		writeJSON(w, http.StatusOK, api.SubmitResponse{})
		return
	}

	cfg, err := s.store.config(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	add := make([]library.DocumentEntry, 0, len(req.Add))
	for _, p := range req.Add {
		e, err := s.lib.stat(p)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "document not found: "+p)
			return
		}
		res := compat.Evaluate(s.checker, e, &cfg)
		if !res.Compatible {
			writeError(w, http.StatusUnprocessableEntity, e.Path+": "+res.Reason)
			return
		}
		add = append(add, e)
	}

	j, err := s.store.createJob(id, add, req.Remove)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	jobID := j.id
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.store.runJob(s.ctx, j, s.opts.JobStep, s.recheck, s.logger)
	}()

	s.logger.Info("apply job queued",
		zap.String("job_id", jobID),
		zap.String("collection_id", id),
		zap.Int("add", len(add)),
		zap.Int("remove", len(req.Remove)))
	writeJSON(w, http.StatusAccepted, api.SubmitResponse{JobID: jobID})
}

// recheck fails a job whose document disappeared after it was queued.
func (s *Server) recheck(e library.DocumentEntry) error {
	_, err := s.lib.stat(e.Path)
	return err
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.jobStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Error: msg})
}
