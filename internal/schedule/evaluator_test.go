package schedule

import (
	"path/filepath"
	"testing"
	"time"

	"lockin/internal/config"
)

func storeWithSchedule(sch config.Schedule) config.ProfileStore {
	return config.ProfileStore{
		Profiles: map[string]config.Profile{
			"work": {Name: "work", Domains: []string{"distracting.example"}},
		},
		Schedules: []config.Schedule{sch},
	}
}

func emptyState() TriggerState {
	return TriggerState{FiredOn: map[string]string{}}
}

func TestEvaluateMatchesMidWindow(t *testing.T) {
	// A Monday 09:00, 120-minute schedule observed at 09:30 should
	// still match, with the session duration set to the remainder of
	// the window, not the full declared duration.
	now := time.Date(2026, 8, 3, 9, 30, 0, 0, time.UTC) // a Monday
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Mon"}, StartTime: "09:00", DurationMinutes: 120,
	})

	trigger, updated, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger == nil || trigger.Schedule.Name != "morning-focus" {
		t.Fatalf("expected morning-focus to match, got %+v", trigger)
	}
	wantRemaining := 90 * time.Minute
	if trigger.Duration != wantRemaining {
		t.Errorf("got duration %v, want %v", trigger.Duration, wantRemaining)
	}
	if updated.FiredOn["morning-focus"] != "2026-08-03" {
		t.Errorf("expected today's date to be recorded, got %+v", updated.FiredOn)
	}
}

func TestEvaluateSkipsWrongDay(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC) // Friday
	store := storeWithSchedule(config.Schedule{
		Name: "monday-only", Profile: "work",
		Days: []string{"Mon"}, StartTime: "09:00", DurationMinutes: 60,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatalf("expected no match on the wrong day, got %+v", trigger)
	}
}

func TestEvaluateSkipsBeforeWindow(t *testing.T) {
	now := time.Date(2026, 7, 31, 8, 59, 0, 0, time.UTC) // Friday, one minute early
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match before the window opens")
	}
}

func TestEvaluateSkipsAfterWindow(t *testing.T) {
	now := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC) // Friday, window was 09:00-10:00
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match once the window has closed")
	}
}

func TestEvaluateSkipsLastMinuteOfWindow(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 59, 30, 0, time.UTC) // Friday, window ends 10:00
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match with less than a minute remaining in the window")
	}
}

func TestEvaluateSkipsAlreadyFiredToday(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})
	state := TriggerState{FiredOn: map[string]string{"morning-focus": "2026-07-31"}}

	trigger, _, err := Evaluate(store, state, now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no re-trigger for a schedule already fired today")
	}
}

func TestEvaluateRetriggersOnANewDay(t *testing.T) {
	now := time.Date(2026, 8, 7, 9, 30, 0, 0, time.UTC) // the following Friday
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})
	state := TriggerState{FiredOn: map[string]string{"morning-focus": "2026-07-31"}}

	trigger, _, err := Evaluate(store, state, now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger == nil {
		t.Fatal("expected a match on a new day even though it fired on a previous Friday")
	}
}

func TestEvaluateSkipsUnknownProfile(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	store := storeWithSchedule(config.Schedule{
		Name: "morning-focus", Profile: "nonexistent",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match for a schedule referencing an unknown profile")
	}
}

func TestEvaluateSkipsMalformedDuration(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	store := storeWithSchedule(config.Schedule{
		Name: "broken", Profile: "work",
		Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 0,
	})

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match for a schedule with non-positive duration")
	}
}

func TestEvaluateSkipsProfileResolvingToNothing(t *testing.T) {
	now := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	store := config.ProfileStore{
		Profiles: map[string]config.Profile{"empty": {Name: "empty"}},
		Schedules: []config.Schedule{{
			Name: "morning-focus", Profile: "empty",
			Days: []string{"Fri"}, StartTime: "09:00", DurationMinutes: 60,
		}},
	}

	trigger, _, err := Evaluate(store, emptyState(), now)
	if err != nil {
		t.Fatal(err)
	}
	if trigger != nil {
		t.Fatal("expected no match for a profile with nothing to block")
	}
}

func TestPruneDropsUnknownSchedules(t *testing.T) {
	state := TriggerState{FiredOn: map[string]string{
		"kept":    "2026-07-30",
		"removed": "2026-07-29",
	}}
	pruned := Prune(state, []config.Schedule{{Name: "kept"}})
	if _, ok := pruned.FiredOn["removed"]; ok {
		t.Error("expected removed schedule to be pruned")
	}
	if _, ok := pruned.FiredOn["kept"]; !ok {
		t.Error("expected kept schedule to survive pruning")
	}
}

func TestStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triggers.json")
	s := NewStore(path)

	loaded, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.FiredOn) != 0 {
		t.Fatal("expected empty trigger state before any save")
	}

	want := TriggerState{FiredOn: map[string]string{"morning-focus": "2026-07-31"}}
	if err := s.Save(want); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.FiredOn["morning-focus"] != "2026-07-31" {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
