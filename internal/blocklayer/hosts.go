package blocklayer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"lockin/internal/platform"
)

// Sentinel markers delimiting the managed region of /etc/hosts.
// External tooling greps for these exact lines; changing them orphans
// every previously written region.
const (
	blockStart = "# >>> LOCKIN BLOCK START >>>"
	blockEnd   = "# <<< LOCKIN BLOCK END <<<"
)

// hostsLayer redirects blocked domains to a non-routable address via
// /etc/hosts: strip any previously written sentinel region, append a
// fresh one, and hold the file write-immutable between edits.
type hostsLayer struct {
	plat platform.Platform
	path string
}

func newHostsLayer(plat platform.Platform, path string) *hostsLayer {
	return &hostsLayer{plat: plat, path: path}
}

func (h *hostsLayer) apply(domains []string) error {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return nil
	}

	content, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("blocklayer: reading %s: %w", h.path, err)
	}

	body := stripRegion(string(content))
	body = strings.TrimRight(body, "\n") + "\n\n" + renderRegion(domains)

	if err := h.plat.ClearImmutable(h.path); err != nil {
		return fmt.Errorf("blocklayer: clearing immutable flag on %s: %w", h.path, err)
	}
	if err := os.WriteFile(h.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("blocklayer: writing %s: %w", h.path, err)
	}
	if err := h.plat.SetImmutable(h.path); err != nil {
		return fmt.Errorf("blocklayer: protecting %s: %w", h.path, err)
	}
	return nil
}

func (h *hostsLayer) remove() error {
	content, err := os.ReadFile(h.path)
	if err != nil {
		return fmt.Errorf("blocklayer: reading %s: %w", h.path, err)
	}

	body := stripRegion(string(content))

	if err := h.plat.ClearImmutable(h.path); err != nil {
		return fmt.Errorf("blocklayer: clearing immutable flag on %s: %w", h.path, err)
	}
	if err := os.WriteFile(h.path, []byte(body), 0o644); err != nil {
		return fmt.Errorf("blocklayer: writing %s: %w", h.path, err)
	}
	return nil
}

// applied reports whether the managed region is present with the
// given domains *and* the file carries the write-immutable flag.
// These are independent conditions — an adversary can clear the
// immutable flag without touching the region's content — so both must
// hold before this layer is considered asserted.
func (h *hostsLayer) applied(domains []string) (bool, error) {
	domains = normalizeDomains(domains)
	if len(domains) == 0 {
		return true, nil
	}

	content, err := os.ReadFile(h.path)
	if err != nil {
		return false, fmt.Errorf("blocklayer: reading %s: %w", h.path, err)
	}
	region, ok := extractRegion(string(content))
	if !ok {
		return false, nil
	}
	for _, d := range domains {
		if !strings.Contains(region, "0.0.0.0 "+d+"\n") {
			return false, nil
		}
	}

	immutable, err := h.immutable()
	if err != nil {
		return false, err
	}
	return immutable, nil
}

// immutable reports whether the hosts file currently carries the
// write-immutable flag, checked independently of region content so a
// `chflags noschg` with no other edit is still detected as drift.
func (h *hostsLayer) immutable() (bool, error) {
	ok, err := h.plat.IsImmutable(h.path)
	if err != nil {
		return false, fmt.Errorf("blocklayer: checking immutable flag on %s: %w", h.path, err)
	}
	return ok, nil
}

// hasSentinel reports whether the managed region markers are present
// at all, regardless of content — used by the watchdog's None-state
// classification to detect "blocks exist with no governing session".
func (h *hostsLayer) hasSentinel() (bool, error) {
	content, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("blocklayer: reading %s: %w", h.path, err)
	}
	return strings.Contains(string(content), blockStart), nil
}

// normalizeDomains sorts and deduplicates domains (case-sensitively)
// and drops empty strings, the shape the hosts region is emitted in.
func normalizeDomains(domains []string) []string {
	seen := make(map[string]bool, len(domains))
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func renderRegion(domains []string) string {
	var b strings.Builder
	b.WriteString(blockStart + "\n")
	for _, d := range normalizeDomains(domains) {
		fmt.Fprintf(&b, "0.0.0.0 %s\n", d)
	}
	b.WriteString(blockEnd + "\n")
	return b.String()
}

func extractRegion(content string) (string, bool) {
	start := strings.Index(content, blockStart)
	if start < 0 {
		return "", false
	}
	end := strings.Index(content, blockEnd)
	if end < 0 || end < start {
		return "", false
	}
	return content[start : end+len(blockEnd)], true
}

// stripRegion removes a previously written managed region (if any)
// from content, leaving everything else untouched — the hosts-region
// purity property this layer must preserve.
func stripRegion(content string) string {
	start := strings.Index(content, blockStart)
	if start < 0 {
		return content
	}
	end := strings.Index(content, blockEnd)
	if end < 0 || end < start {
		return content
	}
	end += len(blockEnd)

	before := strings.TrimRight(content[:start], "\n \t")
	after := strings.TrimLeft(content[end:], "\n")
	if before == "" {
		return after
	}
	if after == "" {
		return before + "\n"
	}
	return before + "\n\n" + after
}
