package blocklayer

import (
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"lockin/internal/platform"
)

// appLayer terminates blocked applications: a graceful quit first,
// then a forceful kill if the process is still running. The process
// table is enumerated via gopsutil before anything is sent a signal,
// so termination is never invoked on absent processes.
type appLayer struct {
	plat platform.Platform
}

func newAppLayer(plat platform.Platform) *appLayer {
	return &appLayer{plat: plat}
}

// killBlocked quits every running app whose process name matches one
// in names, gracefully first, then forcefully if it's still present.
// Returns the names actually terminated.
func (a *appLayer) killBlocked(names []string) []string {
	running, err := runningAppNames()
	if err != nil {
		slog.Debug("blocklayer: enumerating processes", "error", err)
		return nil
	}

	var killed []string
	for _, name := range names {
		if !running[strings.ToLower(name)] {
			continue
		}
		a.plat.QuitAppGraceful(name)
		if isAppRunning(name) && !a.plat.KillApp(name) {
			continue
		}
		killed = append(killed, name)
	}
	return killed
}

// isAppRunning reports whether any process matches name.
func isAppRunning(name string) bool {
	running, err := runningAppNames()
	if err != nil {
		return false
	}
	return running[strings.ToLower(name)]
}

func runningAppNames() (map[string]bool, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool, len(procs))
	for _, p := range procs {
		n, err := p.Name()
		if err != nil || n == "" {
			continue
		}
		names[strings.ToLower(n)] = true
	}
	return names, nil
}
