// Command lockctl is the privileged launcher: it performs the
// begin-session transaction (resolve profile, ensure the watchdog is
// installed, apply blocks, kill blocked apps, write-protect the
// installed artifacts, create the signed session), plus read-only
// status queries over the daemon's Unix socket for callers that
// aren't root.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"time"

	"lockin/internal/blocklayer"
	"lockin/internal/config"
	"lockin/internal/install"
	"lockin/internal/platform"
	"lockin/internal/session"
)

// Exit codes scripts can dispatch on.
const (
	exitSuccess         = 0
	exitBadArguments    = 1
	exitPrivilegeNeeded = 2
	exitSessionActive   = 3
	exitProfileNotFound = 4
	exitNothingToBlock  = 5
)

func main() {
	startProfile := flag.String("start", "", "begin a focus session using the named profile")
	duration := flag.String("duration", "1h", "session duration, e.g. 2h, 30m, 1h30m")
	statusFlag := flag.Bool("status", false, "print the active session, if any")
	presetsFlag := flag.Bool("presets", false, "list built-in presets")
	flag.Parse()

	switch {
	case *statusFlag:
		runStatus()
	case *presetsFlag:
		runPresets()
	case *startProfile != "":
		runStart(*startProfile, *duration)
	default:
		flag.Usage()
		os.Exit(exitBadArguments)
	}
}

func runPresets() {
	for _, p := range config.ListPresets() {
		fmt.Printf("%-14s %s\n", p.Name, p.Description)
	}
}

func runStatus() {
	client := unixSocketClient(config.StatusSocket)
	resp, err := client.Get("http://unix/session")
	if err != nil {
		log.Printf("contacting watchdog: %v", err)
		fmt.Println("no active session")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		fmt.Println("no active session")
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("reading status response: %v", err)
	}
	var record struct {
		ProfileName    string   `json:"profile_name"`
		EndTime        int64    `json:"end_time"`
		BlockedDomains []string `json:"blocked_domains"`
		BlockedApps    []string `json:"blocked_apps"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		log.Fatalf("parsing status response: %v", err)
	}
	remaining := time.Until(time.Unix(record.EndTime, 0)).Round(time.Second)
	fmt.Printf("session %q active, %s remaining (%d domains, %d apps blocked)\n",
		record.ProfileName, remaining, len(record.BlockedDomains), len(record.BlockedApps))
}

func unixSocketClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, network, addr string) (net.Conn, error) {
				return net.Dial("unix", socketPath)
			},
		},
	}
}

// runStart performs the begin-session transaction: the only place in
// this module where a session may be created from a user-facing
// command (the watchdog's schedule evaluator is the only other
// caller, and it runs unattended). Requires root.
func runStart(profileName, durationStr string) {
	if os.Geteuid() != 0 {
		log.Println("lockctl -start requires root")
		os.Exit(exitPrivilegeNeeded)
	}

	duration, ok := parseDuration(durationStr)
	if !ok {
		log.Printf("invalid duration %q; use a form like 2h, 30m, 1h30m", durationStr)
		os.Exit(exitBadArguments)
	}

	plat := platform.Default()
	sessions := session.NewStore(plat)
	blocks := blocklayer.NewManager(plat)

	// The same guard Create enforces, checked up front so blocks are
	// never applied for a session that will be refused. A record that
	// fails verification blocks creation too: its timestamps can't be
	// trusted, so apparent expiry is not grounds to replace it.
	if err := sessions.BlocksCreate(); err != nil {
		log.Print(err)
		os.Exit(exitSessionActive)
	}

	store, err := config.LoadProfileStore(config.ProfileStoreFile)
	if err != nil {
		log.Fatalf("loading profile store: %v", err)
	}
	domains, apps, err := store.ResolveBlockedLists(profileName)
	if err != nil {
		log.Printf("profile %q not found", profileName)
		os.Exit(exitProfileNotFound)
	}
	if len(domains) == 0 && len(apps) == 0 {
		log.Println("this profile has nothing to block; add presets or custom sites first")
		os.Exit(exitNothingToBlock)
	}

	if !install.IsInstalled() {
		log.Println("watchdog daemon not installed, installing now")
		installer := install.NewInstaller(plat, config.InstallPath)
		if err := installer.Install(); err != nil {
			log.Fatalf("installing watchdog daemon: %v", err)
		}
	}

	if err := blocks.ApplyBlocks(domains, apps); err != nil {
		log.Fatalf("applying blocks: %v", err)
	}
	if killed := blocks.KillBlockedApps(apps); len(killed) > 0 {
		log.Printf("killed blocked apps: %v", killed)
	}
	if err := blocks.Protect(); err != nil {
		log.Printf("protecting installed artifacts: %v", err)
	}

	record, err := sessions.Create(profileName, duration, domains, apps)
	if err != nil {
		log.Fatalf("creating session: %v", err)
	}
	log.Printf("session %q started, ends at %s", record.ProfileName, time.Unix(record.EndTime, 0).Format(time.RFC3339))
	os.Exit(exitSuccess)
}

var durationPattern = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// parseDuration parses strings like "2h", "30m", "1h30m", "90s".
func parseDuration(s string) (time.Duration, bool) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, false
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if total <= 0 {
		return 0, false
	}
	return total, true
}
