package tasks

import (
	"io"
	"log/slog"

	"github.com/edgard/ion/internal/bot"
	"github.com/edgard/ion/internal/config"
)

// RegisterAllTasks returns the available tasks keyed by the name used in
// the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]bot.TaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tasks := make(map[string]bot.TaskFunc)

	if deps.Status != nil && deps.Notifier != nil {
		tasks[config.TaskStatusHeartbeat] = newStatusHeartbeatTask(deps)
	}
	if deps.Store != nil {
		tasks[config.TaskSQLMaintenance] = newSQLMaintenanceTask(deps)
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
