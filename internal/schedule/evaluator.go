// Package schedule decides whether a recurring schedule should
// trigger a new session right now, and persists per-schedule trigger
// state so a schedule that has already fired today isn't re-fired on
// a later tick the same day.
package schedule

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"lockin/internal/config"
)

var triggerJSON = jsoniter.Config{SortMapKeys: true, IndentionStep: 2}.Froze()

const dateLayout = "2006-01-02"

// TriggerState records, per schedule name, the ISO date string on
// which it last fired a session. It is deliberately not signed:
// corruption of this file can only cause a schedule to be missed or
// to fire twice, never to fabricate a session, so a missing or
// malformed entry is always treated as "not yet fired today."
type TriggerState struct {
	FiredOn map[string]string `json:"fired_on"`
}

// Store persists TriggerState as JSON at path.
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the trigger state, returning an empty, usable state if
// the file doesn't exist yet.
func (s *Store) Load() (TriggerState, error) {
	state := TriggerState{FiredOn: map[string]string{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("schedule: reading %s: %w", s.path, err)
	}
	if err := triggerJSON.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("schedule: parsing %s: %w", s.path, err)
	}
	if state.FiredOn == nil {
		state.FiredOn = map[string]string{}
	}
	return state, nil
}

// Save persists state to path.
func (s *Store) Save(state TriggerState) error {
	data, err := triggerJSON.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("schedule: encoding trigger state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("schedule: writing %s: %w", s.path, err)
	}
	return nil
}

// Prune drops trigger-state entries for schedules that no longer
// exist in the current profile store, so a renamed or deleted
// schedule's stale date doesn't accumulate forever.
func Prune(state TriggerState, schedules []config.Schedule) TriggerState {
	known := make(map[string]bool, len(schedules))
	for _, s := range schedules {
		known[s.Name] = true
	}
	pruned := TriggerState{FiredOn: map[string]string{}}
	for name, date := range state.FiredOn {
		if known[name] {
			pruned.FiredOn[name] = date
		}
	}
	return pruned
}

// Trigger is the result of a schedule matching right now: the
// schedule itself, its resolved domains/apps, and the duration the
// new session should run for — the remainder of the schedule's
// window, not its full declared duration, so a daemon that was down
// at the window's start still ends the session on time.
type Trigger struct {
	Schedule *config.Schedule
	Domains  []string
	Apps     []string
	Duration time.Duration
}

// minRemaining is the floor below which a matching window is
// considered too close to its end to be worth starting a session for.
const minRemaining = 60 * time.Second

// Evaluate walks every schedule and returns the first one that should
// trigger a new session right now. The caller is responsible for
// verifying no session is already active before calling Evaluate, and
// for applying the returned Trigger's blocks and persisting the
// returned state.
func Evaluate(store config.ProfileStore, state TriggerState, now time.Time) (trigger *Trigger, updated TriggerState, err error) {
	updated = state
	for i := range store.Schedules {
		sch := &store.Schedules[i]

		loc, err := resolveLocation(sch.Timezone)
		if err != nil {
			slog.Warn("schedule: unresolvable timezone, skipping", "schedule", sch.Name, "timezone", sch.Timezone, "error", err)
			continue
		}
		localNow := now.In(loc)
		today := localNow.Format(dateLayout)

		if !dayMatches(sch.Days, localNow) {
			continue
		}
		if updated.FiredOn[sch.Name] == today {
			continue
		}

		start, end, ok := todaysWindow(localNow, sch.StartTime, sch.DurationMinutes)
		if !ok {
			slog.Debug("schedule: invalid start time or duration, skipping", "schedule", sch.Name, "start_time", sch.StartTime)
			continue
		}
		if localNow.Before(start) || !localNow.Before(end) {
			continue
		}

		remaining := end.Sub(localNow)
		if remaining < minRemaining {
			slog.Debug("schedule: window too close to end, skipping", "schedule", sch.Name, "remaining_seconds", remaining.Seconds())
			continue
		}

		domains, apps, err := store.ResolveBlockedLists(sch.Profile)
		if err != nil {
			slog.Warn("schedule: referenced profile not found", "schedule", sch.Name, "profile", sch.Profile)
			continue
		}
		if len(domains) == 0 && len(apps) == 0 {
			slog.Debug("schedule: profile resolves to nothing to block, skipping", "schedule", sch.Name, "profile", sch.Profile)
			continue
		}

		updated.FiredOn[sch.Name] = today
		return &Trigger{Schedule: sch, Domains: domains, Apps: apps, Duration: remaining}, updated, nil
	}
	return nil, updated, nil
}

// todaysWindow builds [start, start+duration) for today (in the
// schedule's already-localized "now"), parsing an HH:MM start time.
func todaysWindow(localNow time.Time, hhmm string, durationMinutes int) (start, end time.Time, ok bool) {
	if durationMinutes <= 0 {
		return time.Time{}, time.Time{}, false
	}
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	start = time.Date(localNow.Year(), localNow.Month(), localNow.Day(), parsed.Hour(), parsed.Minute(), 0, 0, localNow.Location())
	end = start.Add(time.Duration(durationMinutes) * time.Minute)
	return start, end, true
}

func dayMatches(days []string, t time.Time) bool {
	current := t.Weekday().String()[:3]
	for _, d := range days {
		if d == current {
			return true
		}
	}
	return false
}

func resolveLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
