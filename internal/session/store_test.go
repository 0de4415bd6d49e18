package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"lockin/internal/platform"
)

func newTestStore(t *testing.T) (*Store, *platform.Fake, string) {
	t.Helper()
	fake := platform.NewFake()
	path := filepath.Join(t.TempDir(), "session.json")
	return NewStoreAt(fake, path), fake, path
}

func TestLoadMissingFileIsNoSession(t *testing.T) {
	store, _, _ := newTestStore(t)

	record, err := store.Load()
	if err != nil {
		t.Fatalf("Load on a missing file: %v", err)
	}
	if record != nil {
		t.Fatalf("expected (nil, nil) for a missing session file, got %+v", record)
	}
}

func TestCreatePersistsVerifiableProtectedRecord(t *testing.T) {
	store, fake, path := newTestStore(t)

	created, err := store.Create("work", time.Hour, []string{"x.com"}, []string{"Discord"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded == nil || loaded.Signature != created.Signature {
		t.Fatalf("loaded record doesn't match created one: %+v", loaded)
	}
	if !loaded.Verify(fake.UUID) {
		t.Fatal("expected freshly persisted record to verify")
	}
	if immutable, _ := fake.IsImmutable(path); !immutable {
		t.Fatal("expected session file to be write-immutable after Create")
	}
}

func TestCreateRefusesWhileSessionActive(t *testing.T) {
	store, _, _ := newTestStore(t)

	if _, err := store.Create("work", time.Hour, []string{"x.com"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("other", time.Minute, []string{"y.com"}, nil); err == nil {
		t.Fatal("expected Create to refuse while a verified non-expired session exists")
	}
}

func TestCreateRefusesOverTamperedRecordEvenIfApparentlyExpired(t *testing.T) {
	store, _, path := newTestStore(t)

	if _, err := store.Create("work", time.Hour, []string{"x.com"}, nil); err != nil {
		t.Fatal(err)
	}

	// Hand-edit the record's timestamps backward so IsExpired reports
	// true. This breaks the signature — and a tampered record's
	// apparent expiry must never be grounds to replace it, or a
	// trivial replacement session's legitimate teardown would release
	// the original blocks early.
	rewindRecordOnDisk(t, path)

	if _, err := store.Create("other", time.Second, []string{"y.com"}, nil); err == nil {
		t.Fatal("expected Create to refuse over a record that fails verification, regardless of its apparent expiry")
	}
}

func TestCreateRefusesOverUnreadableRecord(t *testing.T) {
	store, _, path := newTestStore(t)

	if err := os.WriteFile(path, []byte("not json{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create("work", time.Minute, []string{"x.com"}, nil); err == nil {
		t.Fatal("expected Create to refuse over an unparseable session file")
	}
}

func TestDestroyRemovesFileAndToleratesAbsence(t *testing.T) {
	store, _, path := newTestStore(t)

	if _, err := store.Create("work", time.Hour, []string{"x.com"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := store.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected session file to be gone after Destroy")
	}

	if err := store.Destroy(); err != nil {
		t.Fatalf("Destroy on a missing file should be a no-op, got: %v", err)
	}
}

func TestIsImmutableFalseForMissingFile(t *testing.T) {
	store, _, _ := newTestStore(t)

	immutable, err := store.IsImmutable()
	if err != nil {
		t.Fatal(err)
	}
	if immutable {
		t.Fatal("expected a missing session file to report not-immutable")
	}
}

// rewindRecordOnDisk shifts the persisted record's start/end times a
// day into the past without re-signing, leaving a record whose
// IsExpired is true but whose signature no longer matches.
func rewindRecordOnDisk(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var record Record
	if err := jsoniter.Unmarshal(data, &record); err != nil {
		t.Fatal(err)
	}
	record.StartTime -= 86_400
	record.EndTime -= 86_400

	edited, err := jsoniter.Marshal(record)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, edited, 0o600); err != nil {
		t.Fatal(err)
	}
}
