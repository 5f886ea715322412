package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestGetMissing(t *testing.T) {
	s, _ := openTestStore(t)

	value, ok, err := s.Get(context.Background(), "last-version-fingerprint")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok || value != "" {
		t.Errorf("got %q, %v; want empty, false", value, ok)
	}
}

func TestSetGetOverwrite(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	value, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = %q, %v, %v", value, ok, err)
	}
	if value != "v2" {
		t.Errorf("got %q, want v2", value)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "kept"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "k")
	if err != nil || !ok || value != "kept" {
		t.Errorf("got %q, %v, %v; want kept", value, ok, err)
	}
}
