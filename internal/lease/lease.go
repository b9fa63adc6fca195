// Package lease implements the file-durable mutual-exclusion protocol that
// guarantees at most one worker executes a given task at a time. The lease
// table is an explicit keyed map guarded by a mutex in-process and by a
// file lock across processes; acquire, release and force-release are the
// only mutation API.
package lease

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Lease records exclusive ownership of a resource.
type Lease struct {
	Resource   string    `json:"resource"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// ConflictError is returned when a resource is already leased by a different
// holder. Re-acquiring one's own lease is not a conflict.
type ConflictError struct {
	Resource   string
	Holder     string
	AcquiredAt time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %q is leased by %q since %s", e.Resource, e.Holder, e.AcquiredAt.Format(time.RFC3339))
}

// IsConflict reports whether err is a lease conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// Auditor receives lease lifecycle events. Logging failures are the
// auditor's problem; the store never checks them.
type Auditor interface {
	LeaseAcquired(resource, holder string)
	LeaseReleased(resource, holder string)
}

// Store is a file-durable lease table. All operations reload the table from
// disk under an exclusive file lock, mutate it, and write it back with an
// atomic rename, so concurrent workers in separate processes observe a
// consistent table.
type Store struct {
	filePath string
	mu       sync.Mutex
	flk      *flock.Flock
	auditor  Auditor
}

// NewStore creates a lease store backed by the given file. The parent
// directory is created if needed.
func NewStore(filePath string) (*Store, error) {
	dir := filepath.Dir(filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create lease dir %s: %w", dir, err)
		}
	}
	return &Store{
		filePath: filePath,
		flk:      flock.New(filePath + ".lock"),
	}, nil
}

// SetAuditor wires an auditor for acquisition and release events.
func (s *Store) SetAuditor(a Auditor) { s.auditor = a }

// Acquire takes the lease on resource for holder. It fails fast with a
// ConflictError when a different holder owns the lease; it is idempotent for
// the current holder, which lets a worker retry after a partial failure.
func (s *Store) Acquire(resource, holder string) error {
	if resource == "" || holder == "" {
		return fmt.Errorf("resource and holder are required")
	}

	err := s.withTable(func(table map[string]Lease) error {
		if existing, ok := table[resource]; ok {
			if existing.Holder != holder {
				return &ConflictError{Resource: resource, Holder: existing.Holder, AcquiredAt: existing.AcquiredAt}
			}
			// Already ours.
			return nil
		}
		table[resource] = Lease{Resource: resource, Holder: holder, AcquiredAt: time.Now().UTC()}
		return nil
	})
	if err != nil {
		return err
	}
	if s.auditor != nil {
		s.auditor.LeaseAcquired(resource, holder)
	}
	return nil
}

// Release drops the lease on resource if holder owns it. Releasing a lease
// that is not held is a no-op: release sits on every exit path and must not
// introduce new failure modes.
func (s *Store) Release(resource, holder string) error {
	released := false
	err := s.withTable(func(table map[string]Lease) error {
		existing, ok := table[resource]
		if !ok || existing.Holder != holder {
			return nil
		}
		delete(table, resource)
		released = true
		return nil
	})
	if err != nil {
		return err
	}
	if released && s.auditor != nil {
		s.auditor.LeaseReleased(resource, holder)
	}
	return nil
}

// ForceRelease drops the lease on resource regardless of holder. It exists
// for crash recovery, when an external process has determined the holder is
// no longer alive.
func (s *Store) ForceRelease(resource string) error {
	var holder string
	err := s.withTable(func(table map[string]Lease) error {
		if existing, ok := table[resource]; ok {
			holder = existing.Holder
			delete(table, resource)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if holder != "" && s.auditor != nil {
		s.auditor.LeaseReleased(resource, holder)
	}
	return nil
}

// Get returns the current lease on resource, if any.
func (s *Store) Get(resource string) (Lease, bool, error) {
	var out Lease
	var found bool
	err := s.withTable(func(table map[string]Lease) error {
		out, found = table[resource]
		return nil
	})
	return out, found, err
}

// List returns all live leases.
func (s *Store) List() ([]Lease, error) {
	var out []Lease
	err := s.withTable(func(table map[string]Lease) error {
		for _, l := range table {
			out = append(out, l)
		}
		return nil
	})
	return out, err
}

// withTable serializes a read-modify-write cycle on the lease table.
func (s *Store) withTable(fn func(map[string]Lease) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.flk.Lock(); err != nil {
		return fmt.Errorf("lock lease table: %w", err)
	}
	defer func() { _ = s.flk.Unlock() }()

	table, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(table); err != nil {
		return err
	}
	return s.save(table)
}

func (s *Store) load() (map[string]Lease, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]Lease{}, nil
		}
		return nil, fmt.Errorf("read lease table %s: %w", s.filePath, err)
	}
	if len(data) == 0 {
		return map[string]Lease{}, nil
	}
	var table map[string]Lease
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse lease table %s: %w", s.filePath, err)
	}
	if table == nil {
		table = map[string]Lease{}
	}
	return table, nil
}

func (s *Store) save(table map[string]Lease) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lease table: %w", err)
	}
	tmp := s.filePath + ".tmp"
	defer func() { _ = os.Remove(tmp) }()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lease table: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("replace lease table: %w", err)
	}
	return nil
}
