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
	// TaskRefdataRefresh drops and rewarms a company's cached reference data.
	TaskRefdataRefresh = "refdata:refresh"
	// TaskFxSnapshot copies the latest exchange rate quotes into the cache.
	TaskFxSnapshot = "refdata:fx_snapshot"
)

// RefdataRefreshPayload names the company whose cache entries are refreshed.
type RefdataRefreshPayload struct {
	Company string `json:"company"`
}

// NewRefdataRefreshTask constructs an Asynq task.
func NewRefdataRefreshTask(payload RefdataRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRefdataRefresh, data), nil
}

// RefdataStore is the slice of the refdata service the refresh task needs.
type RefdataStore interface {
	Invalidate(ctx context.Context, company string) error
	Warm(ctx context.Context, company string) error
}

// NewRefdataRefreshHandler processes TaskRefdataRefresh tasks against the
// given store.
func NewRefdataRefreshHandler(store RefdataStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RefdataRefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Company == "" {
			return asynq.SkipRetry
		}
		if err := store.Invalidate(ctx, payload.Company); err != nil {
			return err
		}
		if err := store.Warm(ctx, payload.Company); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("refreshed reference data", slog.String("company", payload.Company))
		}
		return nil
	}
}

// NewFxSnapshotTask constructs the periodic exchange rate snapshot task.
func NewFxSnapshotTask() *asynq.Task {
	return asynq.NewTask(TaskFxSnapshot, nil)
}
