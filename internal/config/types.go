// Package config holds the two configuration surfaces the enforcement
// core reads: the daemon's own tuning knobs (WatchdogConfig, YAML) and
// the user's profile/schedule/preset declarations (ProfileStore,
// JSON), produced by the interactive tooling and consumed read-only
// here.
package config

// Paths and locations used throughout the daemon.
const (
	InstallPath        = "/usr/local/bin/lockind"
	LauncherPath       = "/usr/local/bin/lockctl"
	WatchdogConfigFile = "/etc/lockin/watchdog.yaml"
	ProfileStoreFile   = "/etc/lockin/profiles.json"
	HostsPath          = "/etc/hosts"
	StatusSocket       = "/var/lockin/status.sock"
	EmailCooldown      = 15 // minutes between repeat accountability emails for the same event
)

// TimeWindow is a day-scoped HH:MM-HH:MM blocking window.
type TimeWindow struct {
	Start string   `yaml:"start" json:"start"`
	End   string   `yaml:"end" json:"end"`
	Days  []string `yaml:"days" json:"days"`
}

// WatchdogConfig is the daemon's own tuning configuration, loaded
// from YAML.
type WatchdogConfig struct {
	TickSeconds     int                  `yaml:"tick_seconds"`
	ClockSkewFactor int                  `yaml:"clock_skew_factor"`
	KDFIterations   int                  `yaml:"kdf_iterations"`
	LogLevel        string               `yaml:"log_level"`
	Accountability  AccountabilityConfig `yaml:"accountability"`
}

// AccountabilityConfig configures the optional Mailgun alert fired on
// an integrity-failure tick classification (Tampered-signature,
// Tampered-clock, or None-with-sentinel-present).
type AccountabilityConfig struct {
	Enabled      bool   `yaml:"enabled"`
	PartnerEmail string `yaml:"partner_email"`
	FromEmail    string `yaml:"from_email"`
	APIKey       string `yaml:"api_key"`
	Domain       string `yaml:"mailgun_domain"`
}

// DefaultWatchdogConfig is what a fresh install runs with before any
// watchdog.yaml exists.
func DefaultWatchdogConfig() WatchdogConfig {
	return WatchdogConfig{
		TickSeconds:     3,
		ClockSkewFactor: 2,
		KDFIterations:   100_000,
		LogLevel:        "info",
	}
}

// Profile names a reusable bundle of domains/apps to block, resolved
// with AlwaysBlocked at session-start time.
type Profile struct {
	Name    string   `json:"name"`
	Domains []string `json:"domains"`
	Apps    []string `json:"apps"`
	Presets []string `json:"presets,omitempty"`
}

// ResolveDomains expands every named preset's domains plus the
// profile's own custom domains, both subdomain-expanded via
// SubdomainPrefixes, deduplicated.
func (p Profile) ResolveDomains() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, name := range p.Presets {
		if preset, ok := Presets[name]; ok {
			for _, d := range preset.ExpandDomains() {
				add(d)
			}
		}
	}
	for _, site := range p.Domains {
		for _, prefix := range SubdomainPrefixes {
			add(prefix + site)
		}
	}
	return out
}

// ResolveApps expands the profile's own apps plus every named
// preset's apps, deduplicated.
func (p Profile) ResolveApps() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, a := range p.Apps {
		add(a)
	}
	for _, name := range p.Presets {
		if preset, ok := Presets[name]; ok {
			for _, a := range preset.Apps {
				add(a)
			}
		}
	}
	return out
}

// Schedule is a recurring trigger: on the listed days, at StartTime
// in Timezone, a session for Profile runs for DurationMinutes.
type Schedule struct {
	Name            string   `json:"name"`
	Profile         string   `json:"profile"`
	Days            []string `json:"days"`
	StartTime       string   `json:"start_time"` // HH:MM
	DurationMinutes int      `json:"duration_minutes"`
	Timezone        string   `json:"timezone"`
}

// AlwaysBlocked is merged into every session's blocked lists
// regardless of the chosen profile.
type AlwaysBlocked struct {
	Domains []string `json:"domains"`
	Apps    []string `json:"apps"`
}

// ProfileStore is the on-disk set of profiles, schedules, and
// always-blocked entries the user has declared through the
// interactive tooling.
type ProfileStore struct {
	Profiles      map[string]Profile `json:"profiles"`
	Schedules     []Schedule         `json:"schedules"`
	AlwaysBlocked AlwaysBlocked      `json:"always_blocked"`
}

// ResolveBlockedLists merges a named profile's resolved domains/apps
// with AlwaysBlocked, subdomain-expanding the always-blocked domains
// the same way custom profile domains are expanded, and deduplicating
// against what the profile already contributed.
func (s ProfileStore) ResolveBlockedLists(profileName string) (domains, apps []string, err error) {
	profile, ok := s.Profiles[profileName]
	if !ok {
		return nil, nil, &UnknownProfileError{Name: profileName}
	}

	domains = profile.ResolveDomains()
	seenDomains := make(map[string]bool, len(domains))
	for _, d := range domains {
		seenDomains[d] = true
	}
	for _, site := range s.AlwaysBlocked.Domains {
		for _, prefix := range SubdomainPrefixes {
			d := prefix + site
			if !seenDomains[d] {
				seenDomains[d] = true
				domains = append(domains, d)
			}
		}
	}

	apps = profile.ResolveApps()
	seenApps := make(map[string]bool, len(apps))
	for _, a := range apps {
		seenApps[a] = true
	}
	for _, a := range s.AlwaysBlocked.Apps {
		if !seenApps[a] {
			seenApps[a] = true
			apps = append(apps, a)
		}
	}

	return domains, apps, nil
}

// UnknownProfileError is returned when a schedule or CLI invocation
// names a profile the store doesn't have.
type UnknownProfileError struct{ Name string }

func (e *UnknownProfileError) Error() string {
	return "config: unknown profile " + e.Name
}
