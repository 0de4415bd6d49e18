package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWatchdogConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWatchdogConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	want := DefaultWatchdogConfig()
	if cfg != want {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadWatchdogConfigParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchdog.yaml")
	yaml := "tick_seconds: 5\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWatchdogConfig(path)
	if err != nil {
		t.Fatalf("LoadWatchdogConfig: %v", err)
	}
	if cfg.TickSeconds != 5 || cfg.LogLevel != "debug" {
		t.Errorf("got %+v, want tick_seconds=5 log_level=debug", cfg)
	}
}

func TestProfileResolveDomainsExpandsPresets(t *testing.T) {
	p := Profile{Name: "focus", Domains: []string{"example.com"}, Presets: []string{"news"}}
	domains := p.ResolveDomains()

	want := map[string]bool{"www.cnn.com": true, "example.com": true, "www.example.com": true}
	for d := range want {
		found := false
		for _, got := range domains {
			if got == d {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q in resolved domains, got %v", d, domains)
		}
	}
}

func TestResolveBlockedListsUnknownProfile(t *testing.T) {
	store := ProfileStore{Profiles: map[string]Profile{}}
	if _, _, err := store.ResolveBlockedLists("missing"); err == nil {
		t.Fatal("expected an error for an unknown profile")
	}
}

func TestResolveBlockedListsMergesAlwaysBlocked(t *testing.T) {
	store := ProfileStore{
		Profiles: map[string]Profile{
			"focus": {Name: "focus", Domains: []string{"a.com"}},
		},
		AlwaysBlocked: AlwaysBlocked{Domains: []string{"gambling.com"}},
	}

	domains, _, err := store.ResolveBlockedLists("focus")
	if err != nil {
		t.Fatal(err)
	}
	// Both the profile's custom domain and the always-blocked domain
	// are subdomain-expanded via SubdomainPrefixes.
	if len(domains) != 2*len(SubdomainPrefixes) {
		t.Fatalf("got %d domains, want %d (both a.com and gambling.com subdomain-expanded): %v",
			len(domains), 2*len(SubdomainPrefixes), domains)
	}
	for _, want := range []string{"a.com", "www.a.com", "gambling.com", "api.gambling.com"} {
		found := false
		for _, d := range domains {
			if d == want {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %q in resolved domains, got %v", want, domains)
		}
	}
}

func TestSaveAndLoadProfileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json")
	store := ProfileStore{
		Profiles: map[string]Profile{
			"focus": {Name: "focus", Domains: []string{"a.com"}, Apps: []string{"Slack"}},
		},
		Schedules: []Schedule{{Name: "morning", Profile: "focus", Days: []string{"Mon"}, StartTime: "09:00", DurationMinutes: 60}},
	}

	if err := SaveProfileStore(path, store); err != nil {
		t.Fatalf("SaveProfileStore: %v", err)
	}

	loaded, err := LoadProfileStore(path)
	if err != nil {
		t.Fatalf("LoadProfileStore: %v", err)
	}
	if loaded.Profiles["focus"].Domains[0] != "a.com" {
		t.Errorf("round-tripped profile mismatch: %+v", loaded.Profiles["focus"])
	}
	if len(loaded.Schedules) != 1 || loaded.Schedules[0].Name != "morning" {
		t.Errorf("round-tripped schedules mismatch: %+v", loaded.Schedules)
	}
}
