// Package bot implements the bot lifecycle: startup sequencing, shutdown,
// and the runtime state shared read-only with command modules. It also
// runs the transport, control server and scheduler side by side.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/protocol"
	"github.com/edgard/ion/internal/session"
)

// Options holds the controller's collaborators. Sessions, Client and
// Loader are required; the rest are optional.
type Options struct {
	Logger   *slog.Logger
	Sessions session.Provider
	Client   protocol.Client
	Loader   *dispatch.Loader
	Modules  []module.Module
	// Retry bounds Client.Connect. The zero value means DefaultRetryPolicy.
	Retry    protocol.RetryPolicy
	Notifier Notifier
	Recorder Recorder
	Clock    func() time.Time
}

// Controller owns the bot's mutable runtime state. It implements
// module.View.
type Controller struct {
	logger   *slog.Logger
	sessions session.Provider
	client   protocol.Client
	loader   *dispatch.Loader
	modules  []module.Module
	retry    protocol.RetryPolicy
	notifier Notifier
	recorder Recorder
	clock    func() time.Time

	mu         sync.RWMutex
	status     Status
	configured bool
	runID      string
	startedAt  time.Time
	identity   protocol.Identity
	// registered is set before modules are loaded and never cleared; it
	// keeps a Start racing an in-flight load from subscribing again.
	registered bool
	report     *dispatch.Report
}

var _ module.View = (*Controller)(nil)

// NewController creates a stopped controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Sessions == nil {
		return nil, errs.NewConfigError("controller needs a session provider", nil)
	}
	if opts.Client == nil {
		return nil, errs.NewConfigError("controller needs a protocol client", nil)
	}
	if opts.Loader == nil {
		return nil, errs.NewConfigError("controller needs a module loader", nil)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	retry := opts.Retry
	if retry.Attempts == 0 {
		retry = protocol.DefaultRetryPolicy()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Controller{
		logger:   log.With("component", "controller"),
		sessions: opts.Sessions,
		client:   opts.Client,
		loader:   opts.Loader,
		modules:  opts.Modules,
		retry:    retry,
		notifier: opts.Notifier,
		recorder: opts.Recorder,
		clock:    clock,
	}, nil
}

// Start brings the bot up: load the session, connect, authenticate, then
// register the modules. It is a no-op while already starting or running.
//
// After a Stop the bot resumes without reconnecting, as the subscriptions
// are still in place. An incomplete session leaves the bot stopped and
// unconfigured, and is not an error. Any other failure returns a coded
// error and leaves the bot stopped.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.status == Authenticating || c.status == Running:
		status := c.status
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Start ignored", "status", status.String())
		return nil
	case c.registered:
		c.status = Running
		c.mu.Unlock()
		c.logger.InfoContext(ctx, "Bot resumed")
		c.notify(ctx, NotifyStarted)
		return nil
	}
	c.status = Authenticating
	c.runID = uuid.NewString()
	c.startedAt = c.clock()
	runID := c.runID
	c.mu.Unlock()

	log := c.logger.With("run_id", runID)

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		c.abort()
		log.ErrorContext(ctx, "Failed to load session", "error", err)
		return errs.NewConfigError("failed to load session", err)
	}

	if !sess.Complete() {
		c.mu.Lock()
		c.status = Stopped
		c.configured = false
		c.mu.Unlock()
		log.WarnContext(ctx, "Session is incomplete, bot not configured", "missing", sess.Missing())
		return nil
	}

	c.mu.Lock()
	c.configured = true
	c.mu.Unlock()

	log.InfoContext(ctx, "Connecting...", "account_id", sess.AccountID, "max_attempts", c.retry.Attempts)
	if err := c.client.Connect(ctx, sess, c.retry); err != nil {
		c.abort()
		log.ErrorContext(ctx, "Failed to connect", "error", err)
		return authError("failed to connect", err)
	}

	me, err := c.client.Authenticate(ctx)
	if err != nil {
		c.abort()
		log.ErrorContext(ctx, "Failed to authenticate", "error", err)
		return authError("failed to authenticate", err)
	}

	c.mu.Lock()
	if c.status != Authenticating {
		c.mu.Unlock()
		log.InfoContext(ctx, "Stopped during authentication, not loading modules")
		return nil
	}
	c.identity = me
	c.status = Running
	c.registered = true
	c.mu.Unlock()

	log.InfoContext(ctx, fmt.Sprintf("logged in as %s", me.DisplayName()), "bot_id", me.ID, "username", me.Username)

	report := c.loader.Load(ctx, c.client, c, c.modules)

	c.mu.Lock()
	c.report = report
	c.mu.Unlock()

	c.notify(ctx, NotifyStarted)

	if c.recorder != nil {
		if err := c.recorder.RecordLoadReport(ctx, runID, report); err != nil {
			log.WarnContext(ctx, "Failed to record module load report", "error", err)
		}
	}

	return nil
}

// Stop marks the bot stopped. Event dispatch halts but the transport stays
// connected. Calling Stop on a stopped bot does nothing.
func (c *Controller) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.status == Stopped {
		c.mu.Unlock()
		return
	}
	c.status = Stopped
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Bot stopped")
	c.notify(ctx, NotifyStopped)
}

func (c *Controller) abort() {
	c.mu.Lock()
	c.status = Stopped
	c.mu.Unlock()
}

func authError(msg string, err error) error {
	if errs.Is(err, errs.CodeAuthentication) || errs.Is(err, errs.CodeConfigIncomplete) {
		return err
	}
	return errs.NewAuthenticationError(msg, err)
}

func (c *Controller) notify(ctx context.Context, kind NotificationKind) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(ctx, Notification{
		Kind:     kind,
		Snapshot: c.Snapshot(),
		Time:     c.clock(),
	})
}

// Status returns the lifecycle state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Running reports whether events are being dispatched.
func (c *Controller) Running() bool {
	return c.Status() == Running
}

// StartedAt returns when the current run started.
func (c *Controller) StartedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.startedAt
}

// Identity returns the authenticated account, zero before login.
func (c *Controller) Identity() protocol.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// LoadedModules returns a copy of the registered module metadata.
func (c *Controller) LoadedModules() []module.LoadedModule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil {
		return nil
	}
	out := make([]module.LoadedModule, len(c.report.Loaded))
	copy(out, c.report.Loaded)
	return out
}

// Report returns the module load report, nil before modules were loaded.
func (c *Controller) Report() *dispatch.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.report
}

// Snapshot returns a copy of the full state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Status:     c.status,
		Configured: c.configured,
		RunID:      c.runID,
		StartedAt:  c.startedAt,
		Identity:   c.identity,
		Modules:    []module.LoadedModule{},
	}
	if c.report != nil {
		snap.Modules = append(snap.Modules, c.report.Loaded...)
		for _, f := range c.report.Failed {
			snap.Failed = append(snap.Failed, FailedModule{Module: f.Module, Error: f.Err.Error()})
		}
	}
	return snap
}
