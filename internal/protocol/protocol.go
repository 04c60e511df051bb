// Package protocol defines the chat transport capability the bot core
// depends on. The core never sees the wire format; a transport adapter
// (see internal/telegram) turns its native updates into Events.
package protocol

import (
	"context"
	"time"

	"github.com/edgard/ion/internal/session"
)

// Identity is the authenticated account's profile.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	IsBot     bool   `json:"is_bot"`
}

// DisplayName returns the first name, falling back to the username.
func (i Identity) DisplayName() string {
	if i.FirstName != "" {
		return i.FirstName
	}
	return i.Username
}

// Event is a single incoming message event.
type Event struct {
	UpdateID  int64
	ChatID    int64
	MessageID int
	SenderID  int64
	Text      string
	// Outgoing is set when the message was sent by the bot's own account.
	Outgoing bool
	SentAt   time.Time
}

// Reply is an outbound text message.
type Reply struct {
	ChatID    int64
	Text      string
	ReplyToID int
}

// Predicate decides whether an event is delivered to a subscription.
type Predicate func(ev *Event) bool

// EventHandler receives the events a subscription matched.
type EventHandler func(ctx context.Context, ev *Event)

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, r Reply) error
}

// RetryPolicy bounds connection attempts. Attempts counts the first try.
type RetryPolicy struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy matches the fifteen connection retries the bot has
// always used.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 15,
		Delay:    time.Second,
		MaxDelay: 30 * time.Second,
	}
}

// Client is the transport capability.
//
// Connect establishes the connection, retrying within the policy before
// giving up. Authenticate resolves the logged-in identity. Subscribe adds
// an event handler; it may reject the subscription. Run delivers events
// until ctx is cancelled.
type Client interface {
	Sender
	Connect(ctx context.Context, s session.Session, retry RetryPolicy) error
	Authenticate(ctx context.Context) (Identity, error)
	Subscribe(match Predicate, handler EventHandler) error
	Run(ctx context.Context) error
}
