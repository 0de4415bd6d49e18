// Package blocklayer implements the four enforcement layers (hosts
// file, pf firewall, DNS cache flush, application termination) plus
// self-protection, aggregated behind a Manager that applies, removes,
// and verifies all of them idempotently: re-applying an
// already-applied block, or removing an already-removed one, is
// always a no-op, never an error.
package blocklayer

import (
	"fmt"

	"lockin/internal/platform"
)

// SelfPaths are the artifacts this daemon protects while a session is
// active: its own binary, the launcher, and its registered launchd
// plist.
var SelfPaths = []string{
	"/usr/local/bin/lockind",
	"/usr/local/bin/lockctl",
	"/Library/LaunchDaemons/com.lockin.watchdog.plist",
}

// Manager owns every enforcement layer's state as explicit struct
// fields, no package-level globals, and exposes apply/remove/verify
// over all of them.
type Manager struct {
	hosts    *hostsLayer
	firewall *firewallLayer
	dns      *dnsLayer
	apps     *appLayer
	protect  *protectLayer
}

// NewManager builds a Manager against the real /etc/hosts and a pf
// rules directory under /var/lockin.
func NewManager(plat platform.Platform) *Manager {
	return &Manager{
		hosts:    newHostsLayer(plat, "/etc/hosts"),
		firewall: newFirewallLayer(plat, "/var/lockin/pf"),
		dns:      newDNSLayer(plat),
		apps:     newAppLayer(plat),
		protect:  newProtectLayer(plat),
	}
}

// NewManagerWithPaths builds a Manager against caller-supplied
// hosts/pf-rules paths, used by tests to avoid touching the real
// system files.
func NewManagerWithPaths(plat platform.Platform, hostsPath, pfRulesDir string) *Manager {
	return &Manager{
		hosts:    newHostsLayer(plat, hostsPath),
		firewall: newFirewallLayer(plat, pfRulesDir),
		dns:      newDNSLayer(plat),
		apps:     newAppLayer(plat),
		protect:  newProtectLayer(plat),
	}
}

// ApplyBlocks asserts all four layers for the given session contents:
// hosts-file redirection, pf IP blocking, a DNS flush so both take
// effect immediately, and termination of any already-running blocked
// apps.
func (m *Manager) ApplyBlocks(domains, apps []string) error {
	if err := m.hosts.apply(domains); err != nil {
		return fmt.Errorf("blocklayer: applying hosts block: %w", err)
	}
	if err := m.firewall.apply(domains); err != nil {
		return fmt.Errorf("blocklayer: applying firewall block: %w", err)
	}
	if err := m.dns.flush(); err != nil {
		return fmt.Errorf("blocklayer: flushing dns cache: %w", err)
	}
	m.apps.killBlocked(apps)
	return nil
}

// RemoveBlocks tears down the hosts and pf layers: the hosts region
// is stripped and the DNS cache flushed so unblocked names resolve
// again immediately, then the pf anchor is released. It does not
// attempt to relaunch terminated applications — app termination has
// no persistent state to undo.
func (m *Manager) RemoveBlocks() error {
	if err := m.hosts.remove(); err != nil {
		return fmt.Errorf("blocklayer: removing hosts block: %w", err)
	}
	if err := m.dns.flush(); err != nil {
		return fmt.Errorf("blocklayer: flushing dns cache: %w", err)
	}
	if err := m.firewall.remove(); err != nil {
		return fmt.Errorf("blocklayer: removing firewall block: %w", err)
	}
	return nil
}

// BlocksApplied reports whether both the hosts and pf layers already
// reflect the given domain list, letting the watchdog skip
// re-assertion when nothing has drifted.
func (m *Manager) BlocksApplied(domains []string) (bool, error) {
	hostsOK, err := m.hosts.applied(domains)
	if err != nil {
		return false, err
	}
	if !hostsOK {
		return false, nil
	}
	return m.firewall.applied(domains)
}

// HostsSentinelPresent reports whether the hosts file carries the
// managed region at all, used by the watchdog's "None" classification
// to detect blocks left behind with no governing session.
func (m *Manager) HostsSentinelPresent() (bool, error) {
	return m.hosts.hasSentinel()
}

// KillBlockedApps re-asserts Layer D against the current process
// table, for use on every watchdog tick independent of the file-based
// layers.
func (m *Manager) KillBlockedApps(apps []string) []string {
	return m.apps.killBlocked(apps)
}

// Protect write-protects the daemon's own installed artifacts.
func (m *Manager) Protect() error {
	return m.protect.protect(SelfPaths)
}

// Unprotect clears write-protection from the daemon's own installed
// artifacts, required before uninstalling or upgrading them.
func (m *Manager) Unprotect() error {
	return m.protect.unprotect(SelfPaths)
}

// SelfProtected reports whether every self-path is currently
// write-protected.
func (m *Manager) SelfProtected() (bool, error) {
	return m.protect.allProtected(SelfPaths)
}
