package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// FingerprintKey is the store key holding the last seen version fingerprint
const FingerprintKey = "last-version-fingerprint"

// maxVersionDocument bounds how much of the version document is hashed
const maxVersionDocument = 4 << 20

// FingerprintStore persists the last seen fingerprint
type FingerprintStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// PollingSource detects new versions by fingerprinting a well-known
// document and comparing it with the stored fingerprint
type PollingSource struct {
	url      string
	store    FingerprintStore
	interval time.Duration
	client   *http.Client

	// Serialises compare-and-store so one change is reported once
	mu sync.Mutex
}

// NewPollingSource creates a polling source for url
func NewPollingSource(url string, store FingerprintStore, interval time.Duration) *PollingSource {
	return &PollingSource{
		url:      url,
		store:    store,
		interval: interval,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient replaces the client used to fetch the version document
func (s *PollingSource) SetHTTPClient(client *http.Client) {
	s.client = client
}

func (s *PollingSource) Name() string { return "polling" }

// Watch has nothing to listen to; checks are driven by PollInterval
func (s *PollingSource) Watch(ctx context.Context, ready func(string)) error {
	<-ctx.Done()
	return nil
}

func (s *PollingSource) PollInterval() time.Duration { return s.interval }

// Check fetches the version document. The first fingerprint ever seen is
// stored without reporting an update.
func (s *PollingSource) Check(ctx context.Context) (bool, error) {
	fingerprint, err := s.fingerprint(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.store.Get(ctx, FingerprintKey)
	if err != nil {
		return false, err
	}
	if ok && stored == fingerprint {
		return false, nil
	}
	if err := s.store.Set(ctx, FingerprintKey, fingerprint); err != nil {
		return false, err
	}

	if !ok {
		log.Debug().Msgf("Recorded version fingerprint %s", short(fingerprint))
		return false, nil
	}
	log.Info().Msgf("Version fingerprint changed: %s -> %s", short(stored), short(fingerprint))
	return true, nil
}

// Activate is a no-op: the new version is already deployed and the reload
// picks it up
func (s *PollingSource) Activate(ctx context.Context) error { return nil }

func (s *PollingSource) fingerprint(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch version document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch version document: HTTP %d", resp.StatusCode)
	}

	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(resp.Body, maxVersionDocument)); err != nil {
		return "", fmt.Errorf("failed to read version document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func short(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
