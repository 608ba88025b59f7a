package crawl

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/dyike/vsdocs/internal/library"
)

type fakeLister struct {
	mu     sync.Mutex
	tree   map[string][]library.DocumentEntry
	fail   map[string]bool
	visits map[string]int
}

func (f *fakeLister) ListDocuments(_ context.Context, path string) ([]library.DocumentEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visits == nil {
		f.visits = make(map[string]int)
	}
	f.visits[path]++
	if f.fail[path] {
		return nil, errors.New("boom")
	}
	return f.tree[path], nil
}

func paths(entries []library.DocumentEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	sort.Strings(out)
	return out
}

func TestCrawlVisitsEachFolderOnce(t *testing.T) {
	f := &fakeLister{tree: map[string][]library.DocumentEntry{
		"": {
			{Path: "/a", IsFolder: true},
			{Path: "/b", IsFolder: true},
			{Path: "/root.pdf"},
		},
		"/a": {
			{Path: "/a/x.pdf"},
			// listed again under a: must not be revisited
			{Path: "/b", IsFolder: true},
		},
		"/b": {
			{Path: "/b/y.pdf"},
			{Path: "/a/x.pdf"},
		},
	}}

	entries, err := Crawl(context.Background(), f, "", 2)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	want := []string{"/a", "/a/x.pdf", "/b", "/b/y.pdf", "/root.pdf"}
	got := paths(entries)
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
	for folder, n := range f.visits {
		if n != 1 {
			t.Errorf("expected %q listed once, got %d", folder, n)
		}
	}

	for _, e := range entries {
		if e.Path == "/root.pdf" && e.ParentPath != "/" {
			t.Errorf("expected root parent \"/\", got %q", e.ParentPath)
		}
		if e.Path == "/b/y.pdf" && e.ParentPath != "/b" {
			t.Errorf("expected parent /b, got %q", e.ParentPath)
		}
	}
}

func TestCrawlPartialFailure(t *testing.T) {
	f := &fakeLister{
		tree: map[string][]library.DocumentEntry{
			"": {
				{Path: "/ok", IsFolder: true},
				{Path: "/broken", IsFolder: true},
			},
			"/ok": {{Path: "/ok/a.pdf"}},
		},
		fail: map[string]bool{"/broken": true},
	}

	entries, err := Crawl(context.Background(), f, "", 0)
	if !errors.Is(err, library.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	t.Logf("crawl error: %v", err)
	if len(entries) != 3 {
		t.Errorf("expected 3 entries despite failure, got %v", paths(entries))
	}
}

func TestCrawlCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Crawl(ctx, &fakeLister{}, "", 1)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
