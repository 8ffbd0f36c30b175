package model

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalogue(size int64) []Descriptor {
	return []Descriptor{
		{Variant: "test", FileName: "ggml-test.bin", ExpectedSize: size, Description: "test model"},
	}
}

func newTestManager(t *testing.T, baseURL string, size int64) *Manager {
	t.Helper()
	return NewManager(ManagerConfig{
		Dir:       t.TempDir(),
		BaseURL:   baseURL,
		Timeout:   5 * time.Second,
		Catalogue: testCatalogue(size),
	}, testLogger())
}

func TestResolveDownloads(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-test.bin" {
			t.Errorf("unexpected request path %s", r.URL.Path)
		}
		w.Write(payload)
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", int64(len(payload)))

	path, err := mgr.Resolve(context.Background(), "test")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("downloaded file unreadable: %v", err)
	}
	if len(data) != len(payload) {
		t.Errorf("downloaded %d bytes, want %d", len(data), len(payload))
	}

	stats := mgr.Stats()
	if stats.Downloads != 1 || stats.BytesDownloaded != int64(len(payload)) {
		t.Errorf("stats = %+v, want 1 download of %d bytes", stats, len(payload))
	}
}

func TestResolveCachedFileSkipsDownload(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(make([]byte, 1000))
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", 1000)

	// Pre-seed a file at 95% of the expected size: above the 90% readiness
	// threshold, so no download should happen.
	path, _ := mgr.Path("test")
	os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, make([]byte, 950), 0o644); err != nil {
		t.Fatalf("failed to seed cached model: %v", err)
	}

	got, err := mgr.Resolve(context.Background(), "test")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != path {
		t.Errorf("Resolve returned %s, want cached %s", got, path)
	}
	if requests != 0 {
		t.Errorf("server received %d requests for a ready cached model", requests)
	}
}

func TestReadinessHeuristic(t *testing.T) {
	mgr := newTestManager(t, "http://unused/", 1000)
	path, _ := mgr.Path("test")
	os.MkdirAll(filepath.Dir(path), 0o755)

	tests := []struct {
		name  string
		size  int
		ready bool
	}{
		{"full size", 1000, true},
		{"exactly 90 percent", 900, true},
		{"just under 90 percent", 899, false},
		{"tiny partial", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(path, make([]byte, tt.size), 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}
			if got := mgr.IsReady("test"); got != tt.ready {
				t.Errorf("IsReady with %d/1000 bytes = %v, want %v", tt.size, got, tt.ready)
			}
		})
	}

	os.Remove(path)
	if mgr.IsReady("test") {
		t.Error("IsReady = true for missing file")
	}
}

func TestResolveFollowsOneRedirect(t *testing.T) {
	payload := make([]byte, 256)

	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer target.Close()

	redirecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+r.URL.Path, http.StatusFound)
	}))
	defer redirecting.Close()

	mgr := newTestManager(t, redirecting.URL+"/", int64(len(payload)))
	if _, err := mgr.Resolve(context.Background(), "test"); err != nil {
		t.Fatalf("Resolve through one redirect failed: %v", err)
	}
}

func TestResolveRejectsRedirectChain(t *testing.T) {
	// Each hop redirects again; the client must stop after one redirect.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/next"+r.URL.Path, http.StatusMovedPermanently)
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", 256)
	if _, err := mgr.Resolve(context.Background(), "test"); !errors.Is(err, ErrDownloadFailed) {
		t.Errorf("Resolve error = %v, want ErrDownloadFailed", err)
	}
}

func TestFailedDownloadRemovesPartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Claim more than we send, then cut the connection mid-body.
		w.Header().Set("Content-Length", "4096")
		w.Write(make([]byte, 100))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		conn, _, _ := w.(http.Hijacker).Hijack()
		conn.Close()
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", 4096)

	_, err := mgr.Resolve(context.Background(), "test")
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Resolve error = %v, want ErrDownloadFailed", err)
	}

	path, _ := mgr.Path("test")
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("partial file left on disk after failed download")
	}
}

func TestCancelledDownloadRemovesPartialFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		cancel() // cancel mid-download
		time.Sleep(100 * time.Millisecond)
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", 4096)

	if _, err := mgr.Resolve(ctx, "test"); !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("Resolve error = %v, want ErrDownloadFailed", err)
	}

	path, _ := mgr.Path("test")
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("partial file left on disk after cancelled download")
	}
}

func TestConcurrentDownloadRejected(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	mgr := newTestManager(t, srv.URL+"/", 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mgr.Resolve(context.Background(), "test")
	}()

	// Wait until the first download holds the in-flight flag.
	deadline := time.After(2 * time.Second)
	for !mgr.Stats().InProgress {
		select {
		case <-deadline:
			t.Fatal("first download never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := mgr.Resolve(context.Background(), "test"); !errors.Is(err, ErrDownloadInProgress) {
		t.Errorf("second Resolve error = %v, want ErrDownloadInProgress", err)
	}

	close(release)
	wg.Wait()
}

func TestResolveUnknownVariant(t *testing.T) {
	mgr := newTestManager(t, "http://unused/", 64)
	if _, err := mgr.Resolve(context.Background(), "nonexistent"); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("Resolve error = %v, want ErrUnknownVariant", err)
	}
}

func TestDefaultCatalogue(t *testing.T) {
	mgr := NewManager(ManagerConfig{Dir: t.TempDir()}, testLogger())

	desc, ok := mgr.Lookup("base")
	if !ok {
		t.Fatal("base variant missing from default catalogue")
	}
	if desc.FileName != "ggml-base.bin" {
		t.Errorf("base file name = %q, want ggml-base.bin", desc.FileName)
	}

	seen := map[string]bool{}
	for _, d := range mgr.Catalogue() {
		if seen[d.Variant] {
			t.Errorf("duplicate variant %q in catalogue", d.Variant)
		}
		seen[d.Variant] = true
		if d.ExpectedSize <= 0 {
			t.Errorf("variant %q has non-positive expected size", d.Variant)
		}
	}
}
