package kvstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Get([]byte("missing")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestBatchWriteIsAtomic(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	batch := s.NewBatch()
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	if err := s.Write(batch); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for k, want := range map[string]string{"a": "1", "b": "2"} {
		got, err := s.Get([]byte(k))
		if err != nil {
			t.Fatalf("Get(%q): %v", k, err)
		}
		if string(got) != want {
			t.Fatalf("Get(%q) = %q, want %q", k, got, want)
		}
	}
}

func TestIteratorWalksPrefix(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "db"), true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Put([]byte("p:1"), []byte("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put([]byte("p:2"), []byte("y")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put([]byte("q:1"), []byte("z")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	it := s.Iterator([]byte("p:"))
	defer it.Release()

	count := 0
	for it.Next() {
		count++
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 2 {
		t.Fatalf("got %d keys under prefix, want 2", count)
	}
}

func TestReopenPreservesData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	s, err := Open(dir, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put([]byte("k"), []byte("persisted")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "persisted" {
		t.Fatalf("got %q, want %q", got, "persisted")
	}
}
