// Package install registers the watchdog as a launchd daemon so it
// survives reboots and crashes independent of any user session. The
// plist is root-owned, write-immutable, and re-assertable: Install is
// idempotent, so the watchdog can re-run it whenever the registration
// has drifted.
package install

import (
	"fmt"
	"os"

	"lockin/internal/platform"
)

const (
	// PlistLabel identifies the launchd job.
	PlistLabel = "com.lockin.watchdog"
	PlistPath  = "/Library/LaunchDaemons/" + PlistLabel + ".plist"

	logPath      = "/var/log/lockin.log"
	errorLogPath = "/var/log/lockin_error.log"
)

// renderPlist builds the plist XML by hand; the DTD's
// <key>/typed-value interleaving doesn't map onto encoding/xml struct
// tags, and the document is small and fixed-shape.
func renderPlist(label, binaryPath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>-run</string>
	</array>
	<key>KeepAlive</key>
	<true/>
	<key>RunAtLoad</key>
	<true/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, label, binaryPath, logPath, errorLogPath)
}

// Installer performs the install/uninstall sequence against a
// Platform.
type Installer struct {
	plat       platform.Platform
	binaryPath string
	plistPath  string
	label      string
}

// NewInstaller returns an Installer that registers binaryPath as the
// watchdog's launchd program at the real plist location.
func NewInstaller(plat platform.Platform, binaryPath string) *Installer {
	return &Installer{plat: plat, binaryPath: binaryPath, plistPath: PlistPath, label: PlistLabel}
}

// NewInstallerAt returns an Installer registering binaryPath against a
// caller-supplied plist path and label, used by tests that must not
// touch the real /Library/LaunchDaemons location.
func NewInstallerAt(plat platform.Platform, binaryPath, plistPath, label string) *Installer {
	return &Installer{plat: plat, binaryPath: binaryPath, plistPath: plistPath, label: label}
}

// Install writes and registers the launchd plist: unload any existing
// job, write the new plist, own and protect it, then bootstrap it
// into the system domain.
func (i *Installer) Install() error {
	if _, err := os.Stat(i.plistPath); err == nil {
		_ = i.plat.ClearImmutable(i.plistPath)
		_ = i.plat.Bootout(i.label)
	}

	if err := os.WriteFile(i.plistPath, []byte(renderPlist(i.label, i.binaryPath)), 0o644); err != nil {
		return fmt.Errorf("install: writing %s: %w", i.plistPath, err)
	}
	if err := i.plat.ChownRoot(i.plistPath); err != nil {
		return fmt.Errorf("install: chown %s: %w", i.plistPath, err)
	}
	if err := i.plat.SetImmutable(i.plistPath); err != nil {
		return fmt.Errorf("install: protecting %s: %w", i.plistPath, err)
	}
	if err := i.plat.Bootstrap(i.plistPath); err != nil {
		return fmt.Errorf("install: bootstrapping %s: %w", i.plistPath, err)
	}
	return nil
}

// Uninstall unregisters and removes the launchd plist.
func (i *Installer) Uninstall() error {
	_ = i.plat.ClearImmutable(i.plistPath)
	if err := i.plat.Bootout(i.label); err != nil {
		return fmt.Errorf("install: bootout %s: %w", i.label, err)
	}
	if err := os.Remove(i.plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("install: removing %s: %w", i.plistPath, err)
	}
	return nil
}

// IsInstalled reports whether the plist is present on disk. It is a
// presence-only check — callers that need to know the registration is
// fully asserted (owned, protected, and loaded) must use
// (*Installer).IsAsserted instead.
func IsInstalled() bool {
	_, err := os.Stat(PlistPath)
	return err == nil
}

// IsAsserted diagnoses every independently-driftable condition of the
// service registration: the plist must be present, owned by root,
// write-immutable, and currently bootstrapped into launchd. An
// adversary can strip any one of these without touching the others,
// so each is checked on its own rather than inferring the rest from
// the file's mere presence.
func (i *Installer) IsAsserted() (bool, error) {
	if _, err := os.Stat(i.plistPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("install: stat %s: %w", i.plistPath, err)
	}

	rootOwned, err := i.plat.IsOwnedByRoot(i.plistPath)
	if err != nil {
		return false, fmt.Errorf("install: checking ownership of %s: %w", i.plistPath, err)
	}
	if !rootOwned {
		return false, nil
	}

	immutable, err := i.plat.IsImmutable(i.plistPath)
	if err != nil {
		return false, fmt.Errorf("install: checking immutable flag on %s: %w", i.plistPath, err)
	}
	if !immutable {
		return false, nil
	}

	bootstrapped, err := i.plat.IsBootstrapped(i.label)
	if err != nil {
		return false, fmt.Errorf("install: checking launchd bootstrap state: %w", err)
	}
	return bootstrapped, nil
}
