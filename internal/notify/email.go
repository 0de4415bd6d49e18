// Package notify implements the optional accountability alert: a
// Mailgun email to a configured partner address, fired when the
// watchdog classifies a tick as an integrity failure (tampered
// signature, tampered clock, or blocks orphaned with no governing
// session). Off by default.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"lockin/internal/config"
)

// Notifier owns the Mailgun client and the per-event-type rate limit
// state.
type Notifier struct {
	cfg config.AccountabilityConfig
	mg  mailgun.Mailgun

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// New builds a Notifier from the watchdog's accountability config.
// When disabled, every alert call below is a no-op.
func New(cfg config.AccountabilityConfig) *Notifier {
	n := &Notifier{cfg: cfg, lastSent: make(map[string]time.Time)}
	if cfg.Enabled && cfg.Domain != "" {
		n.mg = mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	}
	return n
}

// AlertIntegrityFailure sends a rate-limited email when the watchdog
// detects tampering.
func (n *Notifier) AlertIntegrityFailure(reason string) {
	subject := "lockin integrity alert"
	body := fmt.Sprintf("The lockin watchdog detected a possible tamper attempt at %s:\n\n%s",
		time.Now().Format("2006-01-02 15:04:05"), reason)
	n.send(subject, body)
}

func (n *Notifier) send(subject, body string) {
	if !n.cfg.Enabled || n.mg == nil {
		return
	}

	n.mu.Lock()
	if last, ok := n.lastSent[subject]; ok && time.Since(last) < config.EmailCooldown*time.Minute {
		n.mu.Unlock()
		slog.Debug("email suppressed by rate limit", "subject", subject)
		return
	}
	n.lastSent[subject] = time.Now()
	n.mu.Unlock()

	message := mailgun.NewMessage(n.cfg.FromEmail, subject, body, n.cfg.PartnerEmail)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, _, err := n.mg.Send(ctx, message); err != nil {
		slog.Warn("sending accountability email failed", "error", err)
	}
}
