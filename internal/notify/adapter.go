// Package notify pushes bot status notifications to a single external
// control connection. Delivery is best-effort: no acknowledgments, a
// message that does not fit the connection's small outbox is dropped, and
// a new connection replaces the previous one.
package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/ion/internal/bot"
)

// MessageConnected is sent to a sink right after it is bound.
const MessageConnected = "connected"

// Message is the JSON document written to a sink.
type Message struct {
	Type     string       `json:"type"`
	Snapshot bot.Snapshot `json:"snapshot"`
	Time     time.Time    `json:"time"`
}

// Sink is an opaque duplex connection that accepts messages.
type Sink interface {
	ID() string
	Send(ctx context.Context, m Message) error
	Close() error
}

// Adapter binds at most one sink at a time. It implements bot.Notifier.
type Adapter struct {
	logger *slog.Logger

	mu   sync.Mutex
	sink Sink
}

var _ bot.Notifier = (*Adapter)(nil)

// NewAdapter creates an adapter with no sink bound.
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Adapter{logger: logger.With("component", "notify")}
}

// OnConnectionOpened binds s, closing the sink it supersedes.
func (a *Adapter) OnConnectionOpened(s Sink) {
	a.mu.Lock()
	old := a.sink
	a.sink = s
	a.mu.Unlock()

	a.logger.Info("Control connection opened", "sink", s.ID())

	if old != nil && old != s {
		a.logger.Debug("Closing superseded control connection", "sink", old.ID())
		if err := old.Close(); err != nil {
			a.logger.Debug("Failed to close superseded sink", "sink", old.ID(), "error", err)
		}
	}
}

// OnConnectionClosed unbinds s if it is still the active sink.
func (a *Adapter) OnConnectionClosed(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sink == s {
		a.sink = nil
		a.logger.Info("Control connection closed", "sink", s.ID())
	}
}

// Active returns the bound sink, or nil.
func (a *Adapter) Active() Sink {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sink
}

// Notify hands n to the bound sink. Sinks must not block; errors are logged
// and dropped.
func (a *Adapter) Notify(ctx context.Context, n bot.Notification) {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	a.send(ctx, Message{Type: string(n.Kind), Snapshot: n.Snapshot, Time: ts})
}

func (a *Adapter) send(ctx context.Context, m Message) {
	s := a.Active()
	if s == nil {
		return
	}
	if err := s.Send(ctx, m); err != nil {
		a.logger.DebugContext(ctx, "Failed to send notification", "sink", s.ID(), "type", m.Type, "error", err)
	}
}

// Close closes and unbinds the active sink.
func (a *Adapter) Close() error {
	a.mu.Lock()
	s := a.sink
	a.sink = nil
	a.mu.Unlock()

	if s == nil {
		return nil
	}
	return s.Close()
}
