// Package state caches the last computed schedule on disk so later
// commands can show it without recomputing.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/validate"
)

// DefaultDir is the state directory used when none is configured.
const DefaultDir = ".critpath"

const stateFile = "last.json"

// ErrNoState is returned by Load when nothing has been cached yet.
var ErrNoState = errors.New("no cached schedule")

// Snapshot is the persisted record of one computation. It is replaced
// wholesale on every save.
type Snapshot struct {
	ProjectFile string           `json:"project_file,omitempty"`
	RequestID   string           `json:"request_id,omitempty"`
	ComputedAt  time.Time        `json:"computed_at"`
	Result      *cpm.Result      `json:"result"`
	Issues      []validate.Issue `json:"issues,omitempty"`
}

// Store reads and writes snapshots in a directory. Writes are atomic and
// serialized across processes with a lock file.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFile)
}

// Save persists the snapshot.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(s.Path() + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock state: %w", err)
	}
	defer lock.Unlock()

	return atomicWrite(s.Path(), data)
}

// Load reads the cached snapshot. It returns ErrNoState when there is none.
func (s *Store) Load() (*Snapshot, error) {
	lock := flock.New(s.Path() + ".lock")
	if _, err := os.Stat(s.dir); err == nil {
		if err := lock.RLock(); err != nil {
			return nil, fmt.Errorf("lock state: %w", err)
		}
		defer lock.Unlock()
	}

	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return &snap, nil
}

// Exists checks if a snapshot has been saved.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Clean removes the state directory.
func (s *Store) Clean() error {
	return os.RemoveAll(s.dir)
}

// atomicWrite writes via a temp file in the same directory and a rename,
// so readers never see a partial file.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
