// Package deviceid produces and persists the stable anonymous identifier
// that keys every ledger call. One identifier per installation; callers
// send it in the x-device-id header.
package deviceid

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TempPrefix marks an ephemeral identifier that could not be persisted.
// Callers must treat it as best-effort identity, not a stable key.
const TempPrefix = "temp_"

const maxStoredIDLength = 128

// Store persists a device identifier between process runs
type Store interface {
	Load() (string, error)
	Save(id string) error
}

// FileStore persists the identifier as a plain file
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (s *FileStore) Save(id string) error {
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.Path, []byte(id+"\n"), 0o600)
}

// Identity resolves and caches the device identifier
type Identity struct {
	platform string
	store    Store

	mu     sync.Mutex
	cached string
}

// New creates an Identity for the given platform tag (e.g. "ios",
// "android", "web"). The tag becomes the identifier prefix.
func New(platform string, store Store) *Identity {
	if platform == "" {
		platform = "web"
	}
	return &Identity{platform: platform, store: store}
}

// Get returns the device identifier, generating and persisting one on
// first call. If persistence fails the returned identifier carries
// TempPrefix and lives only for this process; it is retried from
// scratch on the next process start, never cached across restarts in
// any durable way.
func (d *Identity) Get() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != "" {
		return d.cached
	}

	if existing, err := d.store.Load(); err == nil && validStoredID(existing) {
		d.cached = existing
		return d.cached
	}

	id := d.platform + "_" + uuid.NewString()
	if err := d.store.Save(id); err != nil {
		// Ephemeral fallback; deliberately not cached as durable.
		d.cached = TempPrefix + uuid.NewString()
		return d.cached
	}

	d.cached = id
	return d.cached
}

// IsTemporary reports whether an identifier is an ephemeral fallback
func IsTemporary(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

func validStoredID(id string) bool {
	return id != "" && len(id) <= maxStoredIDLength && !IsTemporary(id)
}
