package blocklayer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lockin/internal/platform"
)

func writeHostsFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApplyBlocksIsIdempotent(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	if err := m.ApplyBlocks([]string{"distracting.example"}, nil); err != nil {
		t.Fatalf("first ApplyBlocks: %v", err)
	}
	applied, err := m.BlocksApplied([]string{"distracting.example"})
	if err != nil {
		t.Fatalf("BlocksApplied: %v", err)
	}
	if !applied {
		t.Fatal("expected blocks to be applied after ApplyBlocks")
	}

	if err := m.ApplyBlocks([]string{"distracting.example"}, nil); err != nil {
		t.Fatalf("second ApplyBlocks: %v", err)
	}

	content, err := os.ReadFile(hostsPath)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(content), blockStart); got != 1 {
		t.Errorf("expected exactly one sentinel region after repeated apply, got %d", got)
	}
}

func TestHostsRegionPurityPreservesRestOfFile(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n255.255.255.255 broadcasthost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	if err := m.ApplyBlocks([]string{"a.example"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := m.RemoveBlocks(); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(hostsPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "127.0.0.1 localhost\n255.255.255.255 broadcasthost\n"
	if string(content) != want {
		t.Errorf("hosts file not restored to original content.\ngot:  %q\nwant: %q", content, want)
	}
}

func TestRemoveBlocksOnCleanFileIsNoOp(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	if err := m.RemoveBlocks(); err != nil {
		t.Fatalf("RemoveBlocks on a hosts file with no region: %v", err)
	}
}

func TestHostsSentinelPresentDetectsOrphanedBlocks(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	present, err := m.HostsSentinelPresent()
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Fatal("expected no sentinel before any block is applied")
	}

	if err := m.ApplyBlocks([]string{"a.example"}, nil); err != nil {
		t.Fatal(err)
	}
	present, err = m.HostsSentinelPresent()
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("expected sentinel to be present after ApplyBlocks")
	}
}

func TestBlocksAppliedDetectsImmutableFlagClearedAlone(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	if err := m.ApplyBlocks([]string{"a.example"}, nil); err != nil {
		t.Fatal(err)
	}
	applied, err := m.BlocksApplied([]string{"a.example"})
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected blocks applied right after ApplyBlocks")
	}

	// An adversary clears the immutable flag without touching the
	// region's content at all.
	if err := fake.ClearImmutable(hostsPath); err != nil {
		t.Fatal(err)
	}

	applied, err = m.BlocksApplied([]string{"a.example"})
	if err != nil {
		t.Fatal(err)
	}
	if applied {
		t.Fatal("expected BlocksApplied to report false when the immutable flag alone has been cleared")
	}
}

func TestBlocksAppliedTrueForAppsOnlySession(t *testing.T) {
	hostsPath := writeHostsFixture(t, "127.0.0.1 localhost\n")
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, hostsPath, t.TempDir())

	// A session may block only applications. With no domains there is
	// no hosts region and no pf anchor, and both layers must count as
	// asserted, or the watchdog would re-apply (and re-flush DNS) on
	// every tick for the session's whole lifetime.
	if err := m.ApplyBlocks(nil, []string{"Discord"}); err != nil {
		t.Fatal(err)
	}
	applied, err := m.BlocksApplied(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !applied {
		t.Fatal("expected BlocksApplied to report true for an apps-only session")
	}
}

func TestSelfProtectRoundTrip(t *testing.T) {
	fake := platform.NewFake()
	m := NewManagerWithPaths(fake, writeHostsFixture(t, ""), t.TempDir())

	if err := m.Protect(); err != nil {
		t.Fatal(err)
	}
	ok, err := m.SelfProtected()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected self paths to be protected")
	}

	if err := m.Unprotect(); err != nil {
		t.Fatal(err)
	}
	ok, err = m.SelfProtected()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected self paths to be unprotected")
	}
}
