package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dyike/vsdocs/internal/client"
	"github.com/dyike/vsdocs/internal/config"
	"github.com/dyike/vsdocs/internal/devserver"
	"github.com/dyike/vsdocs/internal/library"
	"github.com/dyike/vsdocs/internal/reconciler"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	root := t.TempDir()
	for _, f := range []string{"a.pdf", "setup.exe", "docs/b.pdf", "docs/c.pdf"} {
		full := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(f), 0644); err != nil {
			t.Fatal(err)
		}
	}
	srv, err := devserver.New(devserver.Options{
		Root: root,
		Collections: []devserver.Seed{{
			CollectionConfig: library.CollectionConfig{
				ID:                     "c1",
				Name:                   "Policies",
				AllowedFileTypes:       []string{"pdf"},
				SecurityClassification: "Confidential",
			},
			Documents: []string{"/docs/b.pdf"},
		}},
		JobStep: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("devserver.New failed: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func TestSelectPath(t *testing.T) {
	ts := startBackend(t)
	cfg = config.DefaultConfig()
	ctx := context.Background()
	c := client.New(client.Config{BaseURL: ts.URL})

	s, err := newSession(ctx, c, "c1", zap.NewNop())
	if err != nil {
		t.Fatalf("newSession failed: %v", err)
	}

	if err := selectPath(ctx, s, c, "/a.pdf", reconciler.ActionAdded); err != nil {
		t.Fatalf("expected /a.pdf to be added: %v", err)
	}
	if err := selectPath(ctx, s, c, "/setup.exe", reconciler.ActionAdded); err == nil {
		t.Error("expected incompatible file to be refused")
	}
	if err := selectPath(ctx, s, c, "/missing.pdf", reconciler.ActionAdded); err == nil {
		t.Error("expected missing file to be refused")
	}
	if err := selectPath(ctx, s, c, "/docs/b.pdf", reconciler.ActionAdded); err == nil {
		t.Error("expected member to be refused for addition")
	}

	m, ok := memberByID(s, s.Members()[0].DocumentID)
	if !ok {
		t.Fatal("expected member lookup by id")
	}
	if s.IsMarkedRemove(m.DocumentID) {
		t.Fatal("expected the refused add to leave the member unmarked")
	}
	if err := selectPath(ctx, s, c, m.Path, reconciler.ActionMarkedRemove); err != nil {
		t.Fatalf("expected member to be marked: %v", err)
	}

	cs := s.Commit()
	if len(cs.DocumentsToAdd) != 1 || len(cs.DocumentsToRemove) != 1 {
		t.Errorf("unexpected change-set: %+v", cs)
	}
}

func TestApplyCommand(t *testing.T) {
	ts := startBackend(t)
	home := t.TempDir()
	t.Setenv("VSDOCS_HOME", home)
	t.Setenv("VSDOCS_BASE_URL", ts.URL)
	t.Setenv("VSDOCS_DATABASE_PATH", filepath.Join(home, "vsdocs.db"))
	t.Setenv("VSDOCS_LOG_FILE", filepath.Join(home, "vsdocs.log"))
	t.Setenv("VSDOCS_POLL_INTERVAL_MS", "5")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"apply", "c1", "--add", "/a.pdf", "--add", "/docs/c.pdf"})
	if err := ExecuteContext(context.Background()); err != nil {
		t.Fatalf("apply failed: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "completed (2/2)") {
		t.Errorf("expected completed job, got:\n%s", out.String())
	}

	out.Reset()
	rootCmd.SetArgs([]string{"history", "--collection", "c1"})
	if err := ExecuteContext(context.Background()); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out.String(), "Changes: +2 -0") {
		t.Errorf("expected recorded change-set, got:\n%s", out.String())
	}
	collectionFlag = ""
}

func TestMarkRemovalByID(t *testing.T) {
	ts := startBackend(t)
	ctx := context.Background()
	c := client.New(client.Config{BaseURL: ts.URL})

	// a member reported without a path, whose name is not at the library root
	s := reconciler.New(reconciler.Options{
		Collection: &library.CollectionConfig{ID: "c1", AllowedFileTypes: []string{"pdf"}},
		Members: []library.CollectionMember{
			{DocumentID: "d9", Filename: "b.pdf"},
			{DocumentID: "d10", Filename: "a.pdf"},
		},
	})

	if err := markRemoval(ctx, s, c, "d9"); err != nil {
		t.Fatalf("expected id to be marked: %v", err)
	}
	if err := markRemoval(ctx, s, c, "d9"); err == nil {
		t.Error("expected repeated id to be refused")
	}

	cs := s.Commit()
	if len(cs.DocumentsToRemove) != 1 || cs.DocumentsToRemove[0] != "d9" {
		t.Errorf("expected only d9 to remove, got %v", cs.DocumentsToRemove)
	}
}
