package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func newTestCache(t *testing.T, maxSize int64) (*DiskCache, string) {
	t.Helper()
	root := t.TempDir()
	c, err := NewDiskCache(root, "music-cache-v1", maxSize)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	return c, root
}

func TestAdd_RemoteURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("ID3 fake mp3 body"))
	}))
	defer srv.Close()

	c, _ := newTestCache(t, 1<<20)
	url := srv.URL + "/assets/music/anh_den_pho.mp3"

	path, err := c.Add(context.Background(), url)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if filepath.Ext(path) != ".mp3" {
		t.Errorf("cached path %q should keep the .mp3 extension", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached file: %v", err)
	}
	if string(data) != "ID3 fake mp3 body" {
		t.Errorf("got %q", data)
	}

	got, ok := c.Lookup(url)
	if !ok || got != path {
		t.Errorf("Lookup = %q, %v; want %q, true", got, ok, path)
	}

	// Second add is a cache hit
	if _, err := c.Add(context.Background(), url); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestAdd_LocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "rain.mp3")
	if err := os.WriteFile(src, []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}

	c, _ := newTestCache(t, 1<<20)
	path, err := c.Add(context.Background(), src)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if path == src {
		t.Error("cache should hold its own copy")
	}
	if c.Size() != int64(len("local")) {
		t.Errorf("Size() = %d, want %d", c.Size(), len("local"))
	}
}

func TestAdd_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c, _ := newTestCache(t, 1<<20)
	if _, err := c.Add(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, ok := c.Lookup(srv.URL + "/missing.mp3"); ok {
		t.Error("failed download should not be cached")
	}

	entries, _ := os.ReadDir(filepath.Join(c.root, c.bucket))
	if len(entries) != 0 {
		t.Errorf("bucket should be empty, has %d files", len(entries))
	}
}

func TestAdd_ConcurrentSameURL(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	c, _ := newTestCache(t, 1<<20)
	url := srv.URL + "/song.mp3"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Add(context.Background(), url); err != nil {
				t.Errorf("Add failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestEviction(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, size int) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, make([]byte, size), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	a := write("a.mp3", 60)
	b := write("b.mp3", 60)

	c, _ := newTestCache(t, 100)
	ctx := context.Background()

	if _, err := c.Add(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Add(ctx, b); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(a); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Lookup(b); !ok {
		t.Error("newest entry should be cached")
	}
	if c.Size() != 60 {
		t.Errorf("Size() = %d, want 60", c.Size())
	}
}

func TestPersistenceAcrossOpen(t *testing.T) {
	src := filepath.Join(t.TempDir(), "song.mp3")
	os.WriteFile(src, []byte("abc"), 0644)

	c, root := newTestCache(t, 1<<20)
	if _, err := c.Add(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	// Leftover temp file is cleaned up on open
	os.WriteFile(filepath.Join(root, "music-cache-v1", "partial.mp3.tmp"), []byte("x"), 0644)

	reopened, err := NewDiskCache(root, "music-cache-v1", 1<<20)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, ok := reopened.Lookup(src); !ok {
		t.Error("entry should survive reopen")
	}
	if reopened.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reopened.Len())
	}
}

func TestInvalidate(t *testing.T) {
	src := filepath.Join(t.TempDir(), "song.mp3")
	os.WriteFile(src, []byte("abc"), 0644)

	c, _ := newTestCache(t, 1<<20)
	ctx := context.Background()
	path, _ := c.Add(ctx, src)

	if err := c.Invalidate(src); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalidated file should be removed")
	}
	if _, ok := c.Lookup(src); ok {
		t.Error("invalidated entry still found")
	}
	if c.Size() != 0 || c.Len() != 0 {
		t.Errorf("after Invalidate: size %d, len %d", c.Size(), c.Len())
	}
	if err := c.Invalidate(src); err != nil {
		t.Errorf("Invalidate of missing entry failed: %v", err)
	}
	if _, err := c.Add(ctx, src); err != nil {
		t.Errorf("Add after Invalidate failed: %v", err)
	}
}

func TestPruneBuckets(t *testing.T) {
	root := t.TempDir()
	if _, err := NewDiskCache(root, "music-cache-v0", 1<<20); err != nil {
		t.Fatalf("NewDiskCache v0 failed: %v", err)
	}
	c, err := NewDiskCache(root, "music-cache-v1", 1<<20)
	if err != nil {
		t.Fatalf("NewDiskCache v1 failed: %v", err)
	}

	removed, err := c.PruneBuckets()
	if err != nil {
		t.Fatalf("PruneBuckets failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "music-cache-v0" {
		t.Errorf("removed = %v, want [music-cache-v0]", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "music-cache-v1")); err != nil {
		t.Error("current bucket should remain")
	}
}

func TestPruneBuckets_KeepsForeignDirectories(t *testing.T) {
	root := t.TempDir()
	library := filepath.Join(root, "music")
	os.MkdirAll(library, 0755)
	song := filepath.Join(library, "anh_den_pho.mp3")
	os.WriteFile(song, []byte("not ours"), 0644)
	// Same naming scheme, but never created by the cache
	os.MkdirAll(filepath.Join(root, "music-cache-v0"), 0755)

	c, err := NewDiskCache(root, "music-cache-v1", 1<<20)
	if err != nil {
		t.Fatalf("NewDiskCache failed: %v", err)
	}
	removed, err := c.PruneBuckets()
	if err != nil {
		t.Fatalf("PruneBuckets failed: %v", err)
	}
	if len(removed) != 0 {
		t.Errorf("removed = %v, want none", removed)
	}
	if _, err := os.Stat(song); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "music-cache-v0")); err != nil {
		t.Errorf("unmarked directory removed: %v", err)
	}
}

func TestMarkerIsNotAnEntry(t *testing.T) {
	root := t.TempDir()
	if _, err := NewDiskCache(root, "music-cache-v1", 1<<20); err != nil {
		t.Fatal(err)
	}
	reopened, err := NewDiskCache(root, "music-cache-v1", 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != 0 || reopened.Size() != 0 {
		t.Errorf("empty bucket reopened with len %d, size %d", reopened.Len(), reopened.Size())
	}
}

func TestInvalidBucket(t *testing.T) {
	if _, err := NewDiskCache(t.TempDir(), "", 1); err == nil {
		t.Error("empty bucket should fail")
	}
	if _, err := NewDiskCache(t.TempDir(), "a/b", 1); err == nil {
		t.Error("bucket with separator should fail")
	}
}
