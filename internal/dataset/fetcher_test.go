package dataset

import (
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetch_DownloadsAndCaches(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("src,dst,label\n10.0.0.1,10.0.0.2,0\n"))
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), 5*time.Second)

	path, err := f.Fetch(server.URL + "/flows.csv")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "src,dst,label\n10.0.0.1,10.0.0.2,0\n" {
		t.Errorf("unexpected dataset contents: %q", data)
	}

	// Second fetch is served from cache.
	again, err := f.Fetch(server.URL + "/flows.csv")
	if err != nil {
		t.Fatal(err)
	}
	if again != path {
		t.Errorf("cache returned different path: %s vs %s", again, path)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestFetch_DistinctURLsDistinctFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), 5*time.Second)

	a, err := f.Fetch(server.URL + "/a.csv")
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.Fetch(server.URL + "/b.csv")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Errorf("distinct URLs share a cache path: %s", a)
	}
}

func TestFetch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), 5*time.Second)
	if _, err := f.Fetch(server.URL + "/missing.csv"); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestFetch_EmptyURL(t *testing.T) {
	f := NewFetcher(t.TempDir(), time.Second)
	if _, err := f.Fetch(""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestInvalidate(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("data"))
	}))
	defer server.Close()

	f := NewFetcher(t.TempDir(), 5*time.Second)
	url := server.URL + "/flows.csv"

	if _, err := f.Fetch(url); err != nil {
		t.Fatal(err)
	}
	if err := f.Invalidate(url); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Fetch(url); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected redownload after invalidate, got %d hits", hits.Load())
	}

	// Invalidating an uncached URL is a no-op.
	if err := f.Invalidate(server.URL + "/other.csv"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
