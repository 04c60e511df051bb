// Package telegram adapts the Telegram Bot API to protocol.Client.
//
// The session maps onto the Bot API as follows: the bot token is
// "<account_id>:<account_secret>", and the session token guards webhook
// deliveries as the secret token.
//
// The Bot API never delivers a bot's own messages back to it, so every
// event from this transport is incoming and modules restricted to outgoing
// messages never fire here. Event.Outgoing is still set if such an update
// ever arrives, for example from a self-hosted Bot API server.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/logger"
	"github.com/edgard/ion/internal/protocol"
	"github.com/edgard/ion/internal/session"
)

const sendMessageTimeout = 10 * time.Second

// Options configures the client.
type Options struct {
	// ServerURL overrides the Bot API endpoint, e.g. for a local Bot API server.
	ServerURL string
	// PollTimeout is the long polling timeout of getUpdates.
	PollTimeout time.Duration
	Logger      *slog.Logger
}

type subscription struct {
	match   protocol.Predicate
	handler protocol.EventHandler
}

// Client is a protocol.Client backed by go-telegram/bot.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu        sync.RWMutex
	b         *bot.Bot
	accountID int64
	selfID    int64
	subs      []subscription
}

var _ protocol.Client = (*Client)(nil)

// New creates a disconnected client.
func New(opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		opts:   opts,
		logger: log.With("component", "telegram_client"),
	}
}

// Token builds the Bot API token for s.
func Token(s session.Session) string {
	return strconv.FormatInt(s.AccountID, 10) + ":" + s.AccountSecret
}

// Connect creates the Bot API client, which verifies the token with getMe.
// Transient failures are retried within policy; a rejected token is not.
func (c *Client) Connect(ctx context.Context, s session.Session, policy protocol.RetryPolicy) error {
	if !s.Complete() {
		return errs.NewConfigIncompleteError(fmt.Sprintf("session is missing %v", s.Missing()))
	}

	attempts := policy.Attempts
	if attempts == 0 {
		attempts = 1
	}

	token := Token(s)
	opts := c.botOptions(s)

	var b *bot.Bot
	err := retry.Do(
		func() error {
			nb, err := bot.New(token, opts...)
			if err != nil {
				return err
			}
			b = nb
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(policy.Delay),
		retry.MaxDelay(policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, bot.ErrorUnauthorized)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WarnContext(ctx, "Connection attempt failed, retrying", "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, bot.ErrorUnauthorized) {
			return errs.NewAuthenticationError("bot api rejected the credentials", err)
		}
		return errs.NewTransportError("failed to connect to bot api", err)
	}

	c.mu.Lock()
	c.b = b
	c.accountID = s.AccountID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Connected to bot api", "account_id", s.AccountID)
	return nil
}

func (c *Client) botOptions(s session.Session) []bot.Option {
	opts := []bot.Option{
		bot.WithMiddlewares(logger.Middleware(c.logger)),
		bot.WithDefaultHandler(c.handleUpdate),
		bot.WithErrorsHandler(func(err error) {
			c.logger.Warn("Bot api error", "error", err)
		}),
		bot.WithWebhookSecretToken(s.Token),
	}
	if c.opts.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(c.opts.ServerURL))
	}
	if c.opts.PollTimeout > 0 {
		opts = append(opts, bot.WithHTTPClient(c.opts.PollTimeout, &http.Client{
			Timeout: c.opts.PollTimeout + 10*time.Second,
		}))
	}
	return opts
}

// Authenticate resolves the bot identity and checks it belongs to the
// session's account.
func (c *Client) Authenticate(ctx context.Context) (protocol.Identity, error) {
	c.mu.RLock()
	b, accountID := c.b, c.accountID
	c.mu.RUnlock()

	if b == nil {
		return protocol.Identity{}, errs.ErrNotConnected
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return protocol.Identity{}, errs.NewAuthenticationError("failed to get bot identity", err)
	}
	if me.ID != accountID {
		return protocol.Identity{}, errs.NewAuthenticationError(
			fmt.Sprintf("token belongs to account %d, expected %d", me.ID, accountID), nil)
	}

	c.mu.Lock()
	c.selfID = me.ID
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "Authenticated", "bot_id", me.ID, "bot_username", me.Username)
	return identityFromUser(me), nil
}

// Subscribe adds a handler for events accepted by match. Handlers run in
// subscription order for each update.
func (c *Client) Subscribe(match protocol.Predicate, handler protocol.EventHandler) error {
	if match == nil {
		return errors.New("subscription needs a match predicate")
	}
	if handler == nil {
		return errors.New("subscription needs a handler")
	}

	c.mu.Lock()
	c.subs = append(c.subs, subscription{match: match, handler: handler})
	c.mu.Unlock()
	return nil
}

// Send delivers a text message, quoting ReplyToID when set.
func (c *Client) Send(ctx context.Context, r protocol.Reply) error {
	c.mu.RLock()
	b := c.b
	c.mu.RUnlock()

	if b == nil {
		return errs.ErrNotConnected
	}

	params := &bot.SendMessageParams{
		ChatID: r.ChatID,
		Text:   r.Text,
	}
	if r.ReplyToID != 0 {
		params.ReplyParameters = &models.ReplyParameters{MessageID: r.ReplyToID}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendMessageTimeout)
	defer cancel()

	if _, err := b.SendMessage(sendCtx, params); err != nil {
		return errs.NewTransportError("failed to send message", err)
	}
	return nil
}

// Run long-polls for updates until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	c.mu.RLock()
	b := c.b
	c.mu.RUnlock()

	if b == nil {
		return errs.ErrNotConnected
	}

	c.logger.InfoContext(ctx, "Starting Telegram update listener...")
	b.Start(ctx)
	c.logger.InfoContext(ctx, "Telegram update listener stopped.")
	return nil
}

func (c *Client) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	c.mu.RLock()
	selfID := c.selfID
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.RUnlock()

	ev := eventFromUpdate(update, selfID)
	if ev == nil {
		return
	}

	for _, s := range subs {
		if s.match(ev) {
			s.handler(ctx, ev)
		}
	}
}
