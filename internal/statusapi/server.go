// Package statusapi exposes the daemon's read-only status surface
// over a local-only Unix domain socket: the active session (if any)
// and whether the watchdog is installed. The menu-bar indicator and
// other local tooling query this instead of parsing the session file
// or launchd plist themselves.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"lockin/internal/install"
	"lockin/internal/session"
)

// sessionView mirrors session.Record minus Signature: external
// readers get everything they need to render status, never the
// signing material itself.
type sessionView struct {
	ProfileName     string   `json:"profile_name"`
	StartTime       int64    `json:"start_time"`
	EndTime         int64    `json:"end_time"`
	DurationSeconds int64    `json:"duration_seconds"`
	BlockedDomains  []string `json:"blocked_domains"`
	BlockedApps     []string `json:"blocked_apps"`
}

// Server serves the read-only status surface. It never mutates
// session state, the hosts file, or anything else the enforcement
// core owns.
type Server struct {
	Sessions   *session.Store
	SocketPath string

	httpServer *http.Server
}

// New builds a Server that will listen on socketPath once Run is
// called.
func New(sessions *session.Store, socketPath string) *Server {
	return &Server{Sessions: sessions, SocketPath: socketPath}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/session", s.handleSession)
	r.Get("/daemon", s.handleDaemon)
	return r
}

// handleSession returns the active session's public fields, or 404
// when no session is active or the session fails verification — an
// unverified session is not "active" from an external reader's point
// of view.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	record, err := s.Sessions.Load()
	if err != nil || record == nil {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}

	uuid, err := s.Sessions.HardwareUUID()
	if err != nil || !record.Verify(uuid) {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}
	if record.IsExpired(time.Now()) {
		http.Error(w, "no session", http.StatusNotFound)
		return
	}

	writeJSON(w, sessionView{
		ProfileName:     record.ProfileName,
		StartTime:       record.StartTime,
		EndTime:         record.EndTime,
		DurationSeconds: record.DurationSeconds,
		BlockedDomains:  record.BlockedDomains,
		BlockedApps:     record.BlockedApps,
	})
}

func (s *Server) handleDaemon(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]bool{"installed": install.IsInstalled()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("statusapi: encoding response failed", "error", err)
	}
}

// Run listens on the Unix socket and serves until ctx is cancelled.
// The socket is removed and recreated on each call so a stale socket
// left behind by a crashed daemon doesn't block startup.
func (s *Server) Run(ctx context.Context) error {
	_ = os.Remove(s.SocketPath)

	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return err
	}
	// World-readable: this surface is read-only and carries no
	// signing material, so any local user may query it.
	_ = os.Chmod(s.SocketPath, 0o666)

	s.httpServer = &http.Server{Handler: s.routes()}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		_ = os.Remove(s.SocketPath)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
