// Package protocoltest provides an in-memory protocol.Client for tests.
package protocoltest

import (
	"context"
	"sync"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/protocol"
	"github.com/edgard/ion/internal/session"
)

type subscription struct {
	match   protocol.Predicate
	handler protocol.EventHandler
}

// Client records every call made on it and delivers events synchronously.
type Client struct {
	// Me is returned by Authenticate.
	Me protocol.Identity
	// ConnectErr and AuthErr, when set, fail the corresponding call.
	ConnectErr error
	AuthErr    error
	// RejectSubscription, when set, is asked for every Subscribe call with
	// its zero-based index and may reject it.
	RejectSubscription func(index int) error

	mu            sync.Mutex
	connectCalls  int
	authCalls     int
	subscribeHits int
	lastSession   session.Session
	lastRetry     protocol.RetryPolicy
	subs          []subscription
	sent          []protocol.Reply
	connected     bool
}

// New returns a Client authenticating as me.
func New(me protocol.Identity) *Client {
	return &Client{Me: me}
}

func (c *Client) Connect(_ context.Context, s session.Session, retry protocol.RetryPolicy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++
	c.lastSession = s
	c.lastRetry = retry
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	return nil
}

func (c *Client) Authenticate(_ context.Context) (protocol.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authCalls++
	if !c.connected {
		return protocol.Identity{}, errs.ErrNotConnected
	}
	if c.AuthErr != nil {
		return protocol.Identity{}, c.AuthErr
	}
	return c.Me, nil
}

func (c *Client) Subscribe(match protocol.Predicate, handler protocol.EventHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.subscribeHits
	c.subscribeHits++
	if c.RejectSubscription != nil {
		if err := c.RejectSubscription(index); err != nil {
			return err
		}
	}
	c.subs = append(c.subs, subscription{match: match, handler: handler})
	return nil
}

func (c *Client) Send(_ context.Context, r protocol.Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, r)
	return nil
}

// Run blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Deliver passes ev to every matching subscription in registration order
// and returns how many handlers ran.
func (c *Client) Deliver(ctx context.Context, ev *protocol.Event) int {
	c.mu.Lock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	n := 0
	for _, s := range subs {
		if s.match(ev) {
			s.handler(ctx, ev)
			n++
		}
	}
	return n
}

// ConnectCalls returns how many times Connect was called.
func (c *Client) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCalls
}

// AuthenticateCalls returns how many times Authenticate was called.
func (c *Client) AuthenticateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authCalls
}

// Subscriptions returns the number of accepted subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// LastSession returns the session passed to the last Connect.
func (c *Client) LastSession() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSession
}

// LastRetry returns the retry policy passed to the last Connect.
func (c *Client) LastRetry() protocol.RetryPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRetry
}

// Sent returns the replies sent so far.
func (c *Client) Sent() []protocol.Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Reply, len(c.sent))
	copy(out, c.sent)
	return out
}
