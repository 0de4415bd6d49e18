// Command lockind is the watchdog daemon entry point: -install
// registers it as a launchd service, -uninstall reverses that
// (refused while a session is active or without root), -run is what
// the launchd plist actually invokes, and -status reports whether the
// daemon is installed.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"lockin/internal/blocklayer"
	"lockin/internal/config"
	"lockin/internal/install"
	"lockin/internal/notify"
	"lockin/internal/platform"
	"lockin/internal/schedule"
	"lockin/internal/session"
	"lockin/internal/statusapi"
	"lockin/internal/watchdog"
)

func main() {
	installFlag := flag.Bool("install", false, "register the watchdog as a launchd service (requires root)")
	uninstallFlag := flag.Bool("uninstall", false, "unregister the watchdog (requires root, refused while a session is active)")
	runFlag := flag.Bool("run", false, "run the watchdog loop in the foreground (what the launchd plist invokes)")
	statusFlag := flag.Bool("status", false, "report whether the watchdog is installed")
	flag.Parse()

	plat := platform.Default()

	switch {
	case *installFlag:
		doInstall(plat)
	case *uninstallFlag:
		doUninstall(plat)
	case *statusFlag:
		if install.IsInstalled() {
			log.Println("installed")
		} else {
			log.Println("not installed")
		}
	case *runFlag:
		doRun(plat)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func doInstall(plat platform.Platform) {
	if os.Geteuid() != 0 {
		log.Fatal("lockind -install requires root")
	}
	installer := install.NewInstaller(plat, config.InstallPath)
	if err := installer.Install(); err != nil {
		log.Fatalf("install: %v", err)
	}
	log.Println("watchdog installed")
}

// doUninstall refuses to run without root, and additionally refuses
// while a non-expired session is present — removing the watchdog out
// from under an active session would be exactly the bypass the whole
// system exists to prevent.
func doUninstall(plat platform.Platform) {
	if os.Geteuid() != 0 {
		log.Fatal("lockind -uninstall requires root")
	}

	sessions := session.NewStore(plat)
	if record, err := sessions.Load(); err == nil && record != nil {
		uuid, uerr := sessions.HardwareUUID()
		if uerr == nil && record.Verify(uuid) && !record.IsExpired(time.Now()) {
			log.Fatalf("refusing to uninstall: session %q is still active", record.ProfileName)
		}
	}

	blocks := blocklayer.NewManager(plat)
	if err := blocks.Unprotect(); err != nil {
		slog.Warn("unprotecting installed artifacts before uninstall", "error", err)
	}

	installer := install.NewInstaller(plat, config.InstallPath)
	if err := installer.Uninstall(); err != nil {
		log.Fatalf("uninstall: %v", err)
	}
	log.Println("watchdog uninstalled")
}

// doRun is the watchdog's steady-state entry point: load config, wire
// every collaborator, start the status API, and block in the tick
// loop until a signal or the session-aware shutdown rule in
// watchdog.Run lets it return.
func doRun(plat platform.Platform) {
	cfg, err := config.LoadWatchdogConfig(config.WatchdogConfigFile)
	if err != nil {
		log.Fatalf("loading watchdog config: %v", err)
	}
	config.SetupLogging(cfg)

	sessions := session.NewStore(plat)
	blocks := blocklayer.NewManager(plat)
	notifier := notify.New(cfg.Accountability)
	installer := install.NewInstaller(plat, config.InstallPath)
	schedules := schedule.NewStore("/var/lockin/schedule_triggers.json")

	wd := watchdog.New(sessions, blocks, notifier, time.Duration(cfg.TickSeconds)*time.Second)
	wd.Installer = installer
	wd.Schedules = schedules
	wd.ProfilesPath = config.ProfileStoreFile

	// The status API gets its own context, cancelled once the
	// watchdog loop returns, rather than sharing the watchdog's own
	// session-aware signal handling (signal.Notify in watchdog.Run is
	// the sole authority on when SIGINT/SIGTERM may actually stop the
	// process).
	statusCtx, cancelStatus := context.WithCancel(context.Background())
	defer cancelStatus()

	status := statusapi.New(sessions, config.StatusSocket)
	go func() {
		if err := status.Run(statusCtx); err != nil && err != context.Canceled {
			slog.Warn("status api server stopped", "error", err)
		}
	}()

	if err := wd.Run(context.Background()); err != nil {
		log.Fatalf("watchdog: %v", err)
	}
}
