package bot

import (
	"context"
	"time"

	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/protocol"
)

// Status is the lifecycle state of the bot.
type Status int

const (
	// Stopped is the initial state, and the state after Stop or a failed start.
	Stopped Status = iota
	// Running means the bot is authenticated and dispatching events.
	Running
	// Authenticating covers loading the session, connecting and logging in.
	Authenticating
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Authenticating:
		return "authenticating"
	default:
		return "stopped"
	}
}

// MarshalText renders the status as a word in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// FailedModule is a module that could not be registered.
type FailedModule struct {
	Module string `json:"module"`
	Error  string `json:"error"`
}

// Snapshot is a point-in-time copy of the controller state.
type Snapshot struct {
	Status     Status                `json:"status"`
	Configured bool                  `json:"configured"`
	RunID      string                `json:"run_id,omitempty"`
	StartedAt  time.Time             `json:"started_at"`
	Identity   protocol.Identity     `json:"identity"`
	Modules    []module.LoadedModule `json:"modules"`
	Failed     []FailedModule        `json:"failed,omitempty"`
}

// Uptime returns how long the bot has been up at now, or zero when it is
// not running.
func (s Snapshot) Uptime(now time.Time) time.Duration {
	if s.Status != Running || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// NotificationKind names a status notification.
type NotificationKind string

const (
	NotifyStarted   NotificationKind = "started"
	NotifyStopped   NotificationKind = "stopped"
	NotifyHeartbeat NotificationKind = "heartbeat"
)

// Notification is a status push to the control connection.
type Notification struct {
	Kind     NotificationKind
	Snapshot Snapshot
	Time     time.Time
}

// Notifier receives status notifications. Delivery is best-effort; Notify
// must not block on a slow receiver.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Recorder persists module load reports.
type Recorder interface {
	RecordLoadReport(ctx context.Context, runID string, report *dispatch.Report) error
}

// TaskFunc is a scheduled task. The context is cancelled on shutdown.
type TaskFunc func(ctx context.Context) error
