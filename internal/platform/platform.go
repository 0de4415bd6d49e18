// Package platform abstracts the host-OS primitives the enforcement core
// depends on: immutable-file flags, packet filter control, DNS cache
// flushing, application termination, hardware identity, and launchd
// service registration. There is exactly one real implementation,
// gated on darwin; every other GOOS gets a stub that reports
// ErrUnsupported so the rest of the module still compiles and links.
package platform

import "errors"

// ErrUnsupported is returned by every Platform method on a GOOS this
// module does not run on.
var ErrUnsupported = errors.New("platform: not supported on this operating system")

// FallbackHardwareUUID is the documented constant used to derive the
// session-signing key when the real hardware UUID can't be read
// (ioreg missing or its output unparseable). Key derivation, and
// therefore session creation, must never simply fail on an otherwise
// healthy machine.
const FallbackHardwareUUID = "fallback-uuid-lockin-key"

// Platform is the single trait the rest of the module depends on for
// any host-privileged or OS-specific side effect.
type Platform interface {
	// HardwareUUID returns a stable per-machine identifier used to
	// derive the session-signing key.
	HardwareUUID() (string, error)

	// SetImmutable and ClearImmutable toggle the filesystem's
	// write-immutable flag on path.
	SetImmutable(path string) error
	ClearImmutable(path string) error
	IsImmutable(path string) (bool, error)

	// ChownRoot makes root the owning user and group of path;
	// IsOwnedByRoot reports whether it currently is.
	ChownRoot(path string) error
	IsOwnedByRoot(path string) (bool, error)

	// FlushDNSCache clears the resolver cache so newly blocked (or
	// unblocked) hostnames take effect immediately.
	FlushDNSCache() error

	// EnablePF enables the packet filter if it is not already
	// running and returns an enable token that must be passed to
	// DisablePF if this call is the one that turned it on. An empty
	// token means pf was already enabled.
	EnablePF() (token string, err error)
	DisablePF(token string) error
	LoadPFAnchorRules(anchor, rulesPath string) error
	FlushPFAnchor(anchor string) error
	PFAnchorHasTable(anchor, table string) (bool, error)

	// QuitAppGraceful asks a running application to quit through its
	// normal UI channel; KillApp sends it a terminating signal.
	// Both return false if no matching process was found.
	QuitAppGraceful(appName string) bool
	KillApp(appName string) bool

	// Bootstrap registers a launchd plist with the system domain;
	// Bootout removes it. IsBootstrapped reports whether the job is
	// currently loaded in the system domain, independent of whether
	// its plist file is still present on disk.
	Bootstrap(plistPath string) error
	Bootout(label string) error
	IsBootstrapped(label string) (bool, error)
}

// Default returns the Platform implementation compiled in for this
// GOOS (see platform_darwin.go / platform_other.go).
func Default() Platform {
	return defaultPlatform{}
}
