// Package notify provides the fire-and-forget notification sender.
package notify

import (
	"context"
	"log/slog"

	"github.com/vantage-ops/vantage-ops/internal/jobs"
)

// Notifier delivers user notifications. Implementations must never fail the
// calling operation; delivery problems are logged and swallowed.
type Notifier interface {
	Send(ctx context.Context, userID int64, kind, subject, message string)
}

// QueueNotifier enqueues notifications onto the background job queue.
type QueueNotifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// NewQueueNotifier constructs a QueueNotifier.
func NewQueueNotifier(client *jobs.Client, logger *slog.Logger) *QueueNotifier {
	return &QueueNotifier{client: client, logger: logger}
}

// Send enqueues the notification. Enqueue failures are logged, not returned.
func (n *QueueNotifier) Send(ctx context.Context, userID int64, kind, subject, message string) {
	if n == nil || n.client == nil {
		return
	}
	err := n.client.EnqueueNotify(ctx, jobs.NotifyPayload{
		UserID:  userID,
		Kind:    kind,
		Subject: subject,
		Message: message,
	})
	if err != nil && n.logger != nil {
		n.logger.Warn("enqueue notification",
			slog.Any("error", err),
			slog.Int64("user_id", userID),
			slog.String("kind", kind),
		)
	}
}

// Nop is a Notifier that discards everything. Used in tests and as a safe
// default when the queue is not configured.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(context.Context, int64, string, string, string) {}
