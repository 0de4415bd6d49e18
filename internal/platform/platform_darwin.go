//go:build darwin

package platform

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"syscall"
)

type defaultPlatform struct{}

var hardwareUUIDPattern = regexp.MustCompile(`"IOPlatformUUID"\s*=\s*"([0-9A-F-]+)"`)

// HardwareUUID shells out to ioreg rather than linking IOKit via
// cgo. If ioreg is unavailable or its output can't be parsed, it
// returns FallbackHardwareUUID rather than an error so key
// derivation, and therefore session creation, never simply fails on
// an otherwise-healthy machine.
func (defaultPlatform) HardwareUUID() (string, error) {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		slog.Warn("ioreg failed, using fallback hardware identity", "error", err)
		return FallbackHardwareUUID, nil
	}
	m := hardwareUUIDPattern.FindSubmatch(out)
	if m == nil {
		slog.Warn("IOPlatformUUID not found in ioreg output, using fallback hardware identity")
		return FallbackHardwareUUID, nil
	}
	return string(m[1]), nil
}

func (defaultPlatform) SetImmutable(path string) error {
	return exec.Command("chflags", "schg", path).Run()
}

func (defaultPlatform) ClearImmutable(path string) error {
	return exec.Command("chflags", "noschg", path).Run()
}

func (defaultPlatform) IsImmutable(path string) (bool, error) {
	out, err := exec.Command("ls", "-lO", path).Output()
	if err != nil {
		return false, fmt.Errorf("ls -lO %s: %w", path, err)
	}
	return strings.Contains(string(out), "schg"), nil
}

func (defaultPlatform) ChownRoot(path string) error {
	return os.Chown(path, 0, 0)
}

func (defaultPlatform) IsOwnedByRoot(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false, fmt.Errorf("stat %s: unexpected Sys() type", path)
	}
	return stat.Uid == 0 && stat.Gid == 0, nil
}

func (defaultPlatform) FlushDNSCache() error {
	if err := exec.Command("dscacheutil", "-flushcache").Run(); err != nil {
		return fmt.Errorf("dscacheutil -flushcache: %w", err)
	}
	if err := exec.Command("killall", "-HUP", "mDNSResponder").Run(); err != nil {
		return fmt.Errorf("killall -HUP mDNSResponder: %w", err)
	}
	return nil
}

var pfTokenPattern = regexp.MustCompile(`Token\s*:\s*(\S+)`)

func (defaultPlatform) EnablePF() (string, error) {
	out, err := exec.Command("pfctl", "-E").CombinedOutput()
	if err != nil {
		// pfctl -E fails with "pf already enabled" when it's already on;
		// that is not a failure for our purposes.
		if strings.Contains(string(out), "already enabled") {
			return "", nil
		}
		return "", fmt.Errorf("pfctl -E: %w: %s", err, out)
	}
	m := pfTokenPattern.FindSubmatch(out)
	if m == nil {
		return "", nil
	}
	return string(m[1]), nil
}

func (defaultPlatform) DisablePF(token string) error {
	if token == "" {
		return nil
	}
	if err := exec.Command("pfctl", "-X", token).Run(); err != nil {
		return fmt.Errorf("pfctl -X %s: %w", token, err)
	}
	return nil
}

func (defaultPlatform) LoadPFAnchorRules(anchor, rulesPath string) error {
	if err := exec.Command("pfctl", "-a", anchor, "-f", rulesPath).Run(); err != nil {
		return fmt.Errorf("pfctl -a %s -f %s: %w", anchor, rulesPath, err)
	}
	return nil
}

func (defaultPlatform) FlushPFAnchor(anchor string) error {
	if err := exec.Command("pfctl", "-a", anchor, "-F", "all").Run(); err != nil {
		return fmt.Errorf("pfctl -a %s -F all: %w", anchor, err)
	}
	return nil
}

func (defaultPlatform) PFAnchorHasTable(anchor, table string) (bool, error) {
	out, err := exec.Command("pfctl", "-a", anchor, "-sr").Output()
	if err != nil {
		return false, fmt.Errorf("pfctl -a %s -sr: %w", anchor, err)
	}
	return strings.Contains(string(out), table), nil
}

func (defaultPlatform) QuitAppGraceful(appName string) bool {
	script := fmt.Sprintf(`tell application "%s" to quit`, appName)
	return exec.Command("osascript", "-e", script).Run() == nil
}

func (defaultPlatform) KillApp(appName string) bool {
	return exec.Command("killall", appName).Run() == nil
}

func (defaultPlatform) Bootstrap(plistPath string) error {
	if err := exec.Command("launchctl", "bootstrap", "system", plistPath).Run(); err != nil {
		return fmt.Errorf("launchctl bootstrap system %s: %w", plistPath, err)
	}
	return nil
}

func (defaultPlatform) Bootout(label string) error {
	// bootout on a label that isn't loaded returns a non-zero exit;
	// that's the desired end state, not an error worth surfacing.
	exec.Command("launchctl", "bootout", "system/"+label).Run()
	return nil
}

// IsBootstrapped reports whether label is currently loaded in the
// system domain by asking launchctl directly, rather than inferring
// it from the plist file's presence — an adversary can boot a job out
// of launchd while leaving its plist on disk untouched.
func (defaultPlatform) IsBootstrapped(label string) (bool, error) {
	return exec.Command("launchctl", "print", "system/"+label).Run() == nil, nil
}
