// Package module defines the contract between command modules and the
// dispatcher: what a module declares, what it receives when triggered, and
// the read-only view of the bot it may consult.
package module

import (
	"context"
	"strings"
	"time"

	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/protocol"
)

// Direction restricts which traffic a module reacts to.
type Direction int

const (
	// Both reacts to every message. It is the zero value.
	Both Direction = iota
	// Incoming reacts only to messages from other accounts.
	Incoming
	// Outgoing reacts only to messages sent by the bot's own account.
	Outgoing
)

// ParseDirection maps "incoming" and "outgoing" to their directions;
// anything else means no restriction.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "incoming":
		return Incoming
	case "outgoing":
		return Outgoing
	default:
		return Both
	}
}

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return "both"
	}
}

// Allows reports whether an event passes the direction filter.
func (d Direction) Allows(ev *protocol.Event) bool {
	switch d {
	case Incoming:
		return !ev.Outgoing
	case Outgoing:
		return ev.Outgoing
	default:
		return true
	}
}

// MarshalText lets directions appear as words in JSON and YAML.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Meta is the declared metadata of a module.
type Meta struct {
	Name        string
	Description string
	Match       pattern.MatchSpec
	Direction   Direction
}

// Handler runs a triggered module. A returned error is logged by the
// dispatcher and affects no other module.
type Handler func(ctx context.Context, call *Invocation) error

// Module is a command module: metadata plus handler.
type Module struct {
	Meta    Meta
	Handler Handler
}

// View is the read-only view of the bot available to modules.
type View interface {
	Running() bool
	StartedAt() time.Time
	Identity() protocol.Identity
	LoadedModules() []LoadedModule
}

// Invocation is a single triggered call. It must not be retained after the
// handler returns.
type Invocation struct {
	Event *protocol.Event
	// Match holds the trigger submatches; Match[0] is the whole match.
	Match []string
	// Args maps named trigger subexpressions to their values.
	Args   map[string]string
	Sender protocol.Sender
	Bot    View
}

// Reply sends text to the chat the event came from, quoting it.
func (c *Invocation) Reply(ctx context.Context, text string) error {
	return c.Sender.Send(ctx, protocol.Reply{
		ChatID:    c.Event.ChatID,
		Text:      text,
		ReplyToID: c.Event.MessageID,
	})
}

// LoadedModule is the metadata retained for a successfully registered module.
type LoadedModule struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Match       string    `json:"match"`
	Trigger     string    `json:"trigger"`
	Direction   Direction `json:"direction"`
}
