// Package jobs defines background task types and the Asynq worker wiring.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeNotify is the task type for user notifications.
	TaskTypeNotify = "notify:send"
)

// NotifyPayload describes a user notification to deliver.
type NotifyPayload struct {
	UserID  int64  `json:"userId"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// NewNotifyTask constructs an Asynq task carrying a notification.
func NewNotifyTask(payload NotifyPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeNotify, data), nil
}

// HandleNotifyTask processes TaskTypeNotify tasks. Delivery mechanics live
// behind this handler; for now it records the notification in the worker log.
func HandleNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	slog.Default().Info("deliver notification",
		slog.Int64("user_id", payload.UserID),
		slog.String("kind", payload.Kind),
		slog.String("subject", payload.Subject),
	)
	return nil
}
