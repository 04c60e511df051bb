package tasks

import (
	"context"
	"time"

	"github.com/edgard/ion/internal/bot"
)

// newStatusHeartbeatTask pushes the current snapshot to the control
// connection, if one is bound.
func newStatusHeartbeatTask(deps TaskDeps) bot.TaskFunc {
	log := deps.Logger.With("task", "status_heartbeat")

	return func(ctx context.Context) error {
		snap := deps.Status.Snapshot()
		deps.Notifier.Notify(ctx, bot.Notification{
			Kind:     bot.NotifyHeartbeat,
			Snapshot: snap,
			Time:     time.Now(),
		})
		log.DebugContext(ctx, "Heartbeat sent", "status", snap.Status.String())
		return nil
	}
}
