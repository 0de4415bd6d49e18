// Package session implements the signed Session Record: the
// tamper-evident commitment a focus session is built on. A Record is
// created once at session start, re-verified on every watchdog tick,
// and is the single source of truth for whether enforcement should be
// active.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// canonicalJSON is configured for deterministic, sorted-key encoding
// so the signature is reproducible regardless of field declaration
// order.
var canonicalJSON = jsoniter.Config{SortMapKeys: true}.Froze()

// Record is the session commitment: what is blocked, for how long,
// and a keyed MAC over all of it. Fields are fixed at creation and
// never mutated.
type Record struct {
	ProfileName     string   `json:"profile_name"`
	StartTime       int64    `json:"start_time"`
	EndTime         int64    `json:"end_time"`
	DurationSeconds int64    `json:"duration_seconds"`
	BlockedDomains  []string `json:"blocked_domains"`
	BlockedApps     []string `json:"blocked_apps"`
	Signature       string   `json:"signature"`
}

// signingView mirrors Record but omits Signature, so the signature
// computation never signs over itself.
type signingView struct {
	ProfileName     string   `json:"profile_name"`
	StartTime       int64    `json:"start_time"`
	EndTime         int64    `json:"end_time"`
	DurationSeconds int64    `json:"duration_seconds"`
	BlockedDomains  []string `json:"blocked_domains"`
	BlockedApps     []string `json:"blocked_apps"`
}

// New builds a Record for a session starting now and running for
// duration, with its signature already computed.
func New(hardwareUUID, profileName string, start time.Time, duration time.Duration, domains, apps []string) Record {
	sortedDomains := append([]string(nil), domains...)
	sortedApps := append([]string(nil), apps...)
	sort.Strings(sortedDomains)
	sort.Strings(sortedApps)

	r := Record{
		ProfileName:     profileName,
		StartTime:       start.Unix(),
		EndTime:         start.Add(duration).Unix(),
		DurationSeconds: int64(duration.Seconds()),
		BlockedDomains:  sortedDomains,
		BlockedApps:     sortedApps,
	}
	r.Signature = r.computeHMAC(hardwareUUID)
	return r
}

func (r Record) computeHMAC(hardwareUUID string) string {
	view := signingView{
		ProfileName:     r.ProfileName,
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationSeconds: r.DurationSeconds,
		BlockedDomains:  r.BlockedDomains,
		BlockedApps:     r.BlockedApps,
	}
	payload, err := canonicalJSON.Marshal(view)
	if err != nil {
		// The view is a fixed struct of primitives and string
		// slices; marshaling it cannot fail.
		panic(err)
	}

	key := deriveSigningKey(hardwareUUID)
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether the record's signature matches its contents
// under the given machine's derived key, using a constant-time
// comparison so a partial-match timing side channel can't leak
// information about the expected signature.
func (r Record) Verify(hardwareUUID string) bool {
	expected := r.computeHMAC(hardwareUUID)
	return hmac.Equal([]byte(expected), []byte(r.Signature))
}

// IsExpired reports whether EndTime has passed as of now.
func (r Record) IsExpired(now time.Time) bool {
	return now.Unix() >= r.EndTime
}

// RemainingSeconds returns the seconds left until EndTime, floored at
// zero.
func (r Record) RemainingSeconds(now time.Time) int64 {
	remaining := r.EndTime - now.Unix()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ElapsedSeconds returns the seconds since StartTime, floored at
// zero.
func (r Record) ElapsedSeconds(now time.Time) int64 {
	elapsed := now.Unix() - r.StartTime
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ClockSkewFactor bounds how far past StartTime "now" may elapse,
// expressed as a multiple of DurationSeconds, before it is treated as
// evidence of system clock tampering rather than ordinary scheduling
// jitter.
const ClockSkewFactor = 2

// IsClockTampered reports whether now falls outside the session's
// clock sanity window: before StartTime (the clock was rewound), or
// more than ClockSkewFactor*DurationSeconds past StartTime (the clock
// jumped far enough forward that the session should have been cleaned
// up long ago). Both are grounds to refuse teardown.
func (r Record) IsClockTampered(now time.Time) bool {
	t := now.Unix()
	if t < r.StartTime {
		return true
	}
	return t-r.StartTime > ClockSkewFactor*r.DurationSeconds
}
