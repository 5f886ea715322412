package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/famish99/musicradio/internal/decoder"
)

// bucketMarker tags a directory as a bucket this cache created. Only marked
// directories are ever pruned.
const bucketMarker = ".musicradio-bucket"

// Entry represents a cache entry
type Entry struct {
	Key     string
	Path    string
	Size    int64
	element *list.Element
}

// DiskCache implements an LRU disk-based cache bucket with persistence
// across sessions. Keys are track URLs.
type DiskCache struct {
	mu          sync.Mutex
	root        string
	bucket      string
	cacheDir    string
	maxSize     int64
	currentSize int64
	client      *http.Client

	// LRU tracking
	entries map[string]*Entry
	lru     *list.List

	// Download synchronization - prevents concurrent downloads of same URL
	downloadLocks sync.Map // map[string]*sync.Mutex
}

// NewDiskCache opens the named bucket under root, creating it if needed.
// On startup, it scans the bucket and loads existing cached files.
func NewDiskCache(root, bucket string, maxSizeBytes int64) (*DiskCache, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) {
		return nil, fmt.Errorf("invalid cache bucket name: %q", bucket)
	}

	cacheDir := filepath.Join(root, bucket)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cacheDir, bucketMarker), []byte(bucket+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("failed to mark cache bucket: %w", err)
	}

	c := &DiskCache{
		root:     root,
		bucket:   bucket,
		cacheDir: cacheDir,
		maxSize:  maxSizeBytes,
		client:   http.DefaultClient,
		entries:  make(map[string]*Entry),
		lru:      list.New(),
	}

	// Load existing cache entries from disk (persistence across sessions)
	if err := c.scan(); err != nil {
		return nil, fmt.Errorf("failed to scan cache: %w", err)
	}

	return c, nil
}

// SetHTTPClient replaces the client used to fetch remote URLs
func (c *DiskCache) SetHTTPClient(client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client = client
}

// Bucket returns the bucket name
func (c *DiskCache) Bucket() string {
	return c.bucket
}

// scan loads existing cache entries from disk
func (c *DiskCache) scan() error {
	return filepath.Walk(c.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}

		if info.Name() == bucketMarker {
			return nil
		}

		// Leftovers from an interrupted download
		if filepath.Ext(path) == ".tmp" {
			os.Remove(path)
			return nil
		}

		base := filepath.Base(path)
		key := strings.TrimSuffix(base, filepath.Ext(base))

		entry := &Entry{
			Key:  key,
			Path: path,
			Size: info.Size(),
		}
		entry.element = c.lru.PushBack(entry)
		c.entries[key] = entry
		c.currentSize += info.Size()

		return nil
	})
}

// hashKey creates a consistent hash for a key
func (c *DiskCache) hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// keyToPath converts a URL to its filesystem path, keeping the extension so
// the decoder can pick a format
func (c *DiskCache) keyToPath(url string) string {
	return filepath.Join(c.cacheDir, c.hashKey(url)+decoder.Ext(url))
}

// Lookup returns the cached file for url
func (c *DiskCache) Lookup(url string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.hashKey(url)
	entry, exists := c.entries[hash]
	if !exists {
		return "", false
	}

	if _, err := os.Stat(entry.Path); err != nil {
		// File disappeared, remove from cache
		c.removeEntry(entry)
		return "", false
	}

	// Move to front (most recently used)
	c.lru.MoveToFront(entry.element)
	return entry.Path, true
}

// Add fetches url into the bucket unless it is already cached and returns
// the cached path. Concurrent calls for the same URL share one download.
func (c *DiskCache) Add(ctx context.Context, url string) (string, error) {
	if path, ok := c.Lookup(url); ok {
		return path, nil
	}

	// Get lock for this URL to prevent concurrent downloads
	lock := c.getDownloadLock(url)
	lock.Lock()
	defer lock.Unlock()

	// Check again after acquiring lock (another goroutine may have completed it)
	if path, ok := c.Lookup(url); ok {
		return path, nil
	}

	path := c.keyToPath(url)
	tempPath := path + ".tmp"

	size, err := c.fetch(ctx, url, tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict until there's space
	for c.currentSize+size > c.maxSize && c.lru.Len() > 0 {
		c.evictOldest()
	}

	// Rename temp file to final path (atomic)
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize cache file: %w", err)
	}

	entry := &Entry{
		Key:  c.hashKey(url),
		Path: path,
		Size: size,
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[entry.Key] = entry
	c.currentSize += size

	log.Debug().Msgf("Cached %s (%d bytes)", url, size)
	return path, nil
}

// fetch copies url (remote or local) into dest
func (c *DiskCache) fetch(ctx context.Context, url, dest string) (int64, error) {
	src, err := c.open(ctx, url)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write cache file: %w", err)
	}
	return n, nil
}

func (c *DiskCache) open(ctx context.Context, url string) (io.ReadCloser, error) {
	isRemote := strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
	if !isRemote {
		f, err := os.Open(url)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", url, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch URL: HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// evictOldest removes the least recently used entry
func (c *DiskCache) evictOldest() {
	element := c.lru.Back()
	if element == nil {
		return
	}

	entry := element.Value.(*Entry)
	c.removeEntry(entry)
	os.Remove(entry.Path)
}

// removeEntry drops an entry from tracking; caller holds c.mu
func (c *DiskCache) removeEntry(entry *Entry) {
	c.lru.Remove(entry.element)
	delete(c.entries, entry.Key)
	c.currentSize -= entry.Size
}

// Invalidate removes a cache entry both from memory and disk.
// Use this when a cached file is discovered to be corrupt or invalid.
func (c *DiskCache) Invalidate(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := c.hashKey(url)
	entry, exists := c.entries[hash]
	if !exists {
		return nil
	}

	c.removeEntry(entry)

	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}

	log.Info().Msgf("Invalidated cache entry: %s (hash: %s)", url, hash)
	return nil
}

// PruneBuckets deletes sibling buckets left behind by older releases.
// Directories without the bucket marker are left alone.
func (c *DiskCache) PruneBuckets() ([]string, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache root: %w", err)
	}

	var removed []string
	for _, de := range dirEntries {
		if !de.IsDir() || de.Name() == c.bucket {
			continue
		}
		if _, err := os.Stat(filepath.Join(c.root, de.Name(), bucketMarker)); err != nil {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.root, de.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove bucket %s: %w", de.Name(), err)
		}
		removed = append(removed, de.Name())
	}
	return removed, nil
}

// Size returns current cache size in bytes
func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// Len returns the number of cached entries
func (c *DiskCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// getDownloadLock returns a mutex for the given URL to prevent concurrent downloads
func (c *DiskCache) getDownloadLock(url string) *sync.Mutex {
	lock, _ := c.downloadLocks.LoadOrStore(url, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
