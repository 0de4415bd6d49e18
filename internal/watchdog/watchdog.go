// Package watchdog implements the steady-state supervisor: a single
// cooperative goroutine that, every tick, loads the session,
// classifies it, and either re-asserts every protection layer,
// evaluates schedules, or performs the authorized teardown.
package watchdog

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lockin/internal/blocklayer"
	"lockin/internal/config"
	"lockin/internal/install"
	"lockin/internal/notify"
	"lockin/internal/schedule"
	"lockin/internal/session"
)

// State is the five-way tick classification. It is deliberately not
// an error type: a tampered record must not be something a caller can
// `if err != nil` past.
type State int

const (
	StateNone State = iota
	StateTamperedSignature
	StateTamperedClock
	StateActive
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateTamperedSignature:
		return "tampered-signature"
	case StateTamperedClock:
		return "tampered-clock"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Watchdog ticks once every TickInterval, classifying the current
// session state and acting on it. All mutable state it supervises is
// held as explicit fields here, never in package-level globals.
type Watchdog struct {
	Sessions     *session.Store
	Blocks       *blocklayer.Manager
	Notifier     *notify.Notifier
	Installer    *install.Installer
	Schedules    *schedule.Store
	ProfilesPath string
	TickInterval time.Duration

	lastState State
}

// New builds a Watchdog from its collaborators and a tick interval.
// Installer, Schedules, and ProfilesPath may be left zero-valued
// (nil/empty) by callers that only exercise the core session/block
// machinery — the watchdog treats a nil Installer or empty
// ProfilesPath as "nothing to re-assert/evaluate" rather than
// panicking.
func New(sessions *session.Store, blocks *blocklayer.Manager, notifier *notify.Notifier, tick time.Duration) *Watchdog {
	return &Watchdog{Sessions: sessions, Blocks: blocks, Notifier: notifier, TickInterval: tick}
}

// Run blocks until ctx is cancelled or a terminating signal arrives
// while no verified active session exists. SIGINT/SIGTERM are
// swallowed (logged, not honored) while a verified non-expired
// session is in force: the legitimate user cannot undo their own
// commitment early, not even by killing the watchdog.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.TickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	slog.Info("watchdog started", "tick_interval", w.TickInterval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigCh:
			if w.sessionIsActiveAndVerified() {
				slog.Warn("signal received while session active, ignoring", "signal", sig.String())
				continue
			}
			slog.Info("signal received, shutting down", "signal", sig.String())
			return nil
		case <-ticker.C:
			w.Tick(time.Now())
		}
	}
}

func (w *Watchdog) sessionIsActiveAndVerified() bool {
	state, _ := w.classify(time.Now())
	return state == StateActive
}

// Tick runs one classify-then-act cycle. Every failure inside a tick
// is logged and swallowed, panics included, so one bad tick never
// brings enforcement down; the next tick re-derives everything from
// the session record and converges.
func (w *Watchdog) Tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic during tick", "panic", r)
		}
	}()

	state, record := w.classify(now)
	if state != w.lastState {
		slog.Info("tick state transition", "from", w.lastState, "to", state)
	}
	w.lastState = state

	switch state {
	case StateNone:
		w.handleNone(now)
	case StateTamperedSignature:
		w.handleIntegrityFailure("session signature invalid")
	case StateTamperedClock:
		w.handleIntegrityFailure("system clock outside session window")
	case StateActive:
		w.handleActive(record)
	case StateExpired:
		w.handleExpired(record)
	}
}

// classify is the five-way state machine: no session file is None; a
// present session file that fails signature verification is
// Tampered-signature; a verified session whose clock sanity window is
// violated is Tampered-clock; a verified, non-expired session is
// Active; a verified, expired session is Expired.
func (w *Watchdog) classify(now time.Time) (State, *session.Record) {
	record, err := w.Sessions.Load()
	if err != nil {
		slog.Warn("failed to load session file, treating as tampered", "error", err)
		return StateTamperedSignature, nil
	}
	if record == nil {
		return StateNone, nil
	}

	uuid, err := w.Sessions.HardwareUUID()
	if err != nil {
		slog.Warn("failed to derive hardware identity", "error", err)
		return StateTamperedSignature, nil
	}
	if !record.Verify(uuid) {
		return StateTamperedSignature, record
	}
	if record.IsClockTampered(now) {
		return StateTamperedClock, record
	}
	if record.IsExpired(now) {
		return StateExpired, record
	}
	return StateActive, record
}

// handleNone checks for blocks left behind with no governing session
// (a crash between teardown steps, or direct tampering) and logs
// loudly without removing them — integrity failures never cause
// teardown, and this state is deliberately left to an operator to
// resolve. With a clean hosts file it evaluates whether a declared
// schedule should auto-start a session.
func (w *Watchdog) handleNone(now time.Time) {
	present, err := w.Blocks.HostsSentinelPresent()
	if err != nil {
		slog.Warn("checking for orphaned hosts block failed", "error", err)
		return
	}
	if present {
		slog.Warn("no session file but hosts blocks exist, keeping blocks in place")
		w.alert("hosts blocks present with no session record")
		return
	}
	w.evaluateSchedules(now)
}

// evaluateSchedules loads the current profile/schedule declarations
// and trigger state, and starts a session for the first schedule
// whose window matches. No active session exists by construction,
// since this only runs from the None classification.
func (w *Watchdog) evaluateSchedules(now time.Time) {
	if w.Schedules == nil || w.ProfilesPath == "" {
		return
	}

	store, err := config.LoadProfileStore(w.ProfilesPath)
	if err != nil {
		slog.Warn("schedule: loading profile store failed", "error", err)
		return
	}

	state, err := w.Schedules.Load()
	if err != nil {
		slog.Warn("schedule: loading trigger state failed", "error", err)
		return
	}
	state = schedule.Prune(state, store.Schedules)

	trigger, updated, err := schedule.Evaluate(store, state, now)
	if err != nil {
		slog.Warn("schedule: evaluation failed", "error", err)
		return
	}
	if err := w.Schedules.Save(updated); err != nil {
		slog.Warn("schedule: saving trigger state failed", "error", err)
	}
	if trigger == nil {
		return
	}

	slog.Info("schedule triggered, starting session", "schedule", trigger.Schedule.Name, "profile", trigger.Schedule.Profile, "duration_seconds", int64(trigger.Duration.Seconds()))
	if err := w.Blocks.ApplyBlocks(trigger.Domains, trigger.Apps); err != nil {
		slog.Warn("schedule: applying blocks failed", "error", err)
		return
	}
	if _, err := w.Sessions.Create(trigger.Schedule.Profile, trigger.Duration, trigger.Domains, trigger.Apps); err != nil {
		slog.Warn("schedule: creating session failed", "error", err)
	}
}

func (w *Watchdog) handleIntegrityFailure(reason string) {
	slog.Warn("integrity failure detected, refusing to tear down blocks", "reason", reason)
	w.alert(reason)
}

func (w *Watchdog) alert(reason string) {
	if w.Notifier != nil {
		w.Notifier.AlertIntegrityFailure(reason)
	}
}

// handleActive re-asserts every layer if anything has drifted since
// the last tick, so a crash-restarted watchdog converges within one
// tick, and re-kills any blocked app that's been relaunched.
func (w *Watchdog) handleActive(record *session.Record) {
	applied, err := w.Blocks.BlocksApplied(record.BlockedDomains)
	if err != nil {
		slog.Warn("checking block state failed", "error", err)
	} else if !applied {
		slog.Debug("blocks missing, re-applying")
		if err := w.Blocks.ApplyBlocks(record.BlockedDomains, record.BlockedApps); err != nil {
			slog.Warn("re-applying blocks failed", "error", err)
		}
	}

	protected, err := w.Blocks.SelfProtected()
	if err != nil {
		slog.Warn("checking self-protection failed", "error", err)
	} else if !protected {
		slog.Debug("self-protection missing, re-applying")
		if err := w.Blocks.Protect(); err != nil {
			slog.Warn("re-protecting failed", "error", err)
		}
	}

	sessionImmutable, err := w.Sessions.IsImmutable()
	if err != nil {
		slog.Warn("checking session file immutable flag failed", "error", err)
	} else if !sessionImmutable {
		slog.Debug("session file immutable flag missing, re-applying")
		if err := w.Sessions.Protect(); err != nil {
			slog.Warn("re-protecting session file failed", "error", err)
		}
	}

	w.reassertInstall()

	if killed := w.Blocks.KillBlockedApps(record.BlockedApps); len(killed) > 0 {
		slog.Info("killed blocked apps", "apps", killed)
	}
}

// reassertInstall keeps the service registration asserted: the plist
// must exist, root-owned and write-immutable, and the job must be
// bootstrapped with launchd. Each of those four conditions can drift
// independently of the others — an adversary can clear the plist's
// immutable flag, or boot the job out of launchd, while leaving the
// file itself untouched — so this calls IsAsserted rather than
// treating mere file presence as sufficient. Re-running Install is
// idempotent (it unloads and replaces any existing job), so this is
// safe to call every tick once drift is detected.
func (w *Watchdog) reassertInstall() {
	if w.Installer == nil {
		return
	}
	asserted, err := w.Installer.IsAsserted()
	if err != nil {
		slog.Warn("checking service registration state failed", "error", err)
		return
	}
	if asserted {
		return
	}
	slog.Debug("service registration drifted, re-installing")
	if err := w.Installer.Install(); err != nil {
		slog.Warn("re-installing service registration failed", "error", err)
	}
}

// handleExpired performs the authorized teardown: unprotect the
// installed artifacts, destroy the session file, then remove the
// hosts/pf blocks. The order is deliberate — if the watchdog crashes
// between steps, a restart finding blocks without a session record
// lands in the warn-and-keep-blocks state, never in a state where a
// stale record re-enforces a finished session.
func (w *Watchdog) handleExpired(record *session.Record) {
	slog.Info("session expired, tearing down", "profile", record.ProfileName)

	if err := w.Blocks.Unprotect(); err != nil {
		slog.Warn("unprotect during teardown failed", "error", err)
	}
	if err := w.Sessions.Destroy(); err != nil {
		slog.Warn("destroying session file during teardown failed", "error", err)
	}
	if err := w.Blocks.RemoveBlocks(); err != nil {
		slog.Warn("removing blocks during teardown failed", "error", err)
	}
	slog.Info("teardown complete")
}
