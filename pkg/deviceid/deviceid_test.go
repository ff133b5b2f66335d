package deviceid

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetGeneratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_id")
	id := New("ios", &FileStore{Path: path})

	got := id.Get()
	if !strings.HasPrefix(got, "ios_") {
		t.Fatalf("expected ios_ prefix, got %q", got)
	}

	// A second Identity over the same store resolves the same id.
	again := New("ios", &FileStore{Path: path}).Get()
	if again != got {
		t.Fatalf("expected persisted id %q, got %q", got, again)
	}
}

func TestGetCachesInProcess(t *testing.T) {
	store := &countingStore{}
	id := New("android", store)

	first := id.Get()
	second := id.Get()
	if first != second {
		t.Fatalf("expected cached id, got %q then %q", first, second)
	}
	if store.loads != 1 {
		t.Fatalf("expected a single store load, got %d", store.loads)
	}
}

func TestGetFallsBackToTemporaryID(t *testing.T) {
	id := New("ios", &failingStore{})

	got := id.Get()
	if !IsTemporary(got) {
		t.Fatalf("expected temporary id on persistence failure, got %q", got)
	}

	// The ephemeral id is stable for the rest of the process.
	if again := id.Get(); again != got {
		t.Fatalf("expected stable ephemeral id, got %q then %q", got, again)
	}
}

func TestStoredTemporaryIDIsIgnored(t *testing.T) {
	store := &countingStore{saved: TempPrefix + "leftover"}
	id := New("web", store)

	got := id.Get()
	if IsTemporary(got) {
		t.Fatalf("expected a fresh durable id to replace a stored temp id, got %q", got)
	}
	if !strings.HasPrefix(got, "web_") {
		t.Fatalf("expected web_ prefix, got %q", got)
	}
}

type countingStore struct {
	loads int
	saved string
}

func (s *countingStore) Load() (string, error) {
	s.loads++
	return s.saved, nil
}

func (s *countingStore) Save(id string) error {
	s.saved = id
	return nil
}

type failingStore struct{}

func (s *failingStore) Load() (string, error) { return "", nil }
func (s *failingStore) Save(string) error     { return errors.New("disk full") }
