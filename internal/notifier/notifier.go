// Package notifier emails an event's definer when it permanently stops
// firing, a supplement beyond the logging-only failure path the original
// Event Scheduler implements.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/arjunbhagat/eventsched/internal/email"
)

// Notifier satisfies workerpool.Notifier.
type Notifier struct {
	sender email.Sender
	logger *slog.Logger
}

func New(sender email.Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger.With("component", "notifier")}
}

// NotifyExhausted emails the definer that (schema, name) will not fire
// again, with cause as the human-readable reason. Failures to send are
// logged and otherwise swallowed: a broken notification path must never
// block or fail an event's own completion bookkeeping.
func (n *Notifier) NotifyExhausted(ctx context.Context, e *domain.EventRecord, cause string) {
	to := definerEmail(e.Definer)
	if to == "" {
		return
	}

	subject := fmt.Sprintf("Event %s.%s will no longer run", e.Schema, e.Name)
	body := fmt.Sprintf(
		"Event %s.%s has stopped firing.\n\nReason: %s\nExecutions so far: %d\nOn completion: %s\n",
		e.Schema, e.Name, cause, e.ExecutionCount, e.OnCompletion,
	)

	if err := n.sender.Send(ctx, to, subject, body); err != nil {
		n.logger.Error("failed to send exhaustion notification",
			"schema", e.Schema, "name", e.Name, "error", err)
	}
}

// definerEmail treats a "user@host" style definer as directly usable for
// mail delivery. Definers that are not address-shaped (e.g. a bare
// service account name) have nowhere to send mail, so notification is
// skipped.
func definerEmail(definer string) string {
	for _, c := range definer {
		if c == '@' {
			return definer
		}
	}
	return ""
}
