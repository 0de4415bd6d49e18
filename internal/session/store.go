package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"lockin/internal/platform"
)

// Path is the on-disk location of the session file. External readers
// (the status API, the menu-bar indicator) read it; only this package
// writes it.
const Path = "/var/lockin/session.json"

var fileJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Store owns every side effect around the Session Record: deriving
// the signing key from hardware identity, writing/reading the
// immutable-protected session file, and destroying it at teardown.
type Store struct {
	plat platform.Platform
	path string
}

// NewStore returns a Store backed by the real session file and the
// platform's default OS bindings.
func NewStore(plat platform.Platform) *Store {
	return &Store{plat: plat, path: Path}
}

// NewStoreAt returns a Store backed by a caller-supplied path, used
// by tests (and by statusapi's own tests) that must not touch the
// real session file.
func NewStoreAt(plat platform.Platform, path string) *Store {
	return &Store{plat: plat, path: path}
}

// BlocksCreate returns a non-nil error when an existing record
// forbids creating a new session: a verified record that has not
// expired, or any record that is unreadable or fails verification. A
// tampered record's timestamps can't be trusted, so its apparent
// expiry is never grounds to overwrite it — overwriting would let a
// hand-edited record be replaced by a fresh trivial session whose
// legitimate teardown then releases the original blocks early.
func (s *Store) BlocksCreate() error {
	existing, err := s.Load()
	if err != nil {
		return fmt.Errorf("session: refusing to overwrite unreadable session file: %w", err)
	}
	if existing == nil {
		return nil
	}

	uuid, err := s.plat.HardwareUUID()
	if err != nil {
		return fmt.Errorf("session: deriving hardware identity: %w", err)
	}
	if !existing.Verify(uuid) {
		return fmt.Errorf("session: existing session record fails verification, refusing to replace it")
	}
	if !existing.IsExpired(time.Now()) {
		return fmt.Errorf("session: a session for profile %q is already active", existing.ProfileName)
	}
	return nil
}

// Create starts a new session: it derives the signing key from the
// machine's hardware UUID, builds and signs a Record, and persists it
// write-protected. Create refuses to run whenever BlocksCreate
// reports an existing record in the way.
func (s *Store) Create(profileName string, duration time.Duration, domains, apps []string) (Record, error) {
	if err := s.BlocksCreate(); err != nil {
		return Record{}, err
	}

	uuid, err := s.plat.HardwareUUID()
	if err != nil {
		return Record{}, fmt.Errorf("session: deriving hardware identity: %w", err)
	}

	record := New(uuid, profileName, time.Now(), duration, domains, apps)
	if err := s.save(record); err != nil {
		return Record{}, err
	}
	slog.Info("session created", "profile", profileName, "duration_seconds", record.DurationSeconds)
	return record, nil
}

func (s *Store) save(record Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("session: creating state directory: %w", err)
	}

	// Clear immutability before writing; ignore the error if the file
	// doesn't exist yet or the flag was never set.
	_ = s.plat.ClearImmutable(s.path)

	data, err := fileJSON.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encoding record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("session: writing %s: %w", s.path, err)
	}
	if err := s.plat.SetImmutable(s.path); err != nil {
		return fmt.Errorf("session: protecting %s: %w", s.path, err)
	}
	return nil
}

// Load reads the session file, if any. It returns (nil, nil) when no
// session file exists — absence is the legitimate "no session" state,
// not an error. It returns a non-nil error only for I/O or decode
// failures, which the caller should treat as an integrity concern,
// not proceed past silently.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: reading %s: %w", s.path, err)
	}

	var record Record
	if err := fileJSON.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("session: decoding %s: %w", s.path, err)
	}
	return &record, nil
}

// Destroy removes the session file after clearing its immutable
// flag. It is a no-op, not an error, if no session file exists.
func (s *Store) Destroy() error {
	if err := s.plat.ClearImmutable(s.path); err != nil {
		slog.Debug("session: clearing immutable flag before destroy", "error", err)
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: removing %s: %w", s.path, err)
	}
	return nil
}

// HardwareUUID exposes the derived machine identity for callers (the
// watchdog) that need to verify a loaded Record.
func (s *Store) HardwareUUID() (string, error) {
	return s.plat.HardwareUUID()
}

// IsImmutable reports whether the session file currently carries the
// write-immutable flag, checked independently of the file's contents
// so a `chflags noschg` with the bytes left untouched is still
// detected as drift. A missing session file is not immutable by
// definition, not an error.
func (s *Store) IsImmutable() (bool, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("session: stat %s: %w", s.path, err)
	}
	immutable, err := s.plat.IsImmutable(s.path)
	if err != nil {
		return false, fmt.Errorf("session: checking immutable flag on %s: %w", s.path, err)
	}
	return immutable, nil
}

// Protect re-sets the session file's write-immutable flag without
// touching its contents, letting the watchdog re-assert the flag on
// its own once drift is detected, independent of whether the record's
// bytes also need rewriting.
func (s *Store) Protect() error {
	if err := s.plat.SetImmutable(s.path); err != nil {
		return fmt.Errorf("session: protecting %s: %w", s.path, err)
	}
	return nil
}
