// Package session defines the bot's login credentials and the provider
// contract used to load and persist them.
package session

import (
	"context"
	"sync"
)

// Session holds the credentials of the single bot identity.
type Session struct {
	AccountID     int64  `json:"account_id"     yaml:"account_id"`
	AccountSecret string `json:"account_secret" yaml:"account_secret"`
	Token         string `json:"token"          yaml:"token"`
}

// Complete reports whether every field is set. An incomplete session is a
// valid "not configured" state, not an error.
func (s Session) Complete() bool {
	return s.AccountID != 0 && s.AccountSecret != "" && s.Token != ""
}

// Missing returns the names of the unset fields.
func (s Session) Missing() []string {
	var missing []string
	if s.AccountID == 0 {
		missing = append(missing, "account_id")
	}
	if s.AccountSecret == "" {
		missing = append(missing, "account_secret")
	}
	if s.Token == "" {
		missing = append(missing, "token")
	}
	return missing
}

// Redacted returns a copy safe to print.
func (s Session) Redacted() Session {
	s.AccountSecret = redact(s.AccountSecret)
	s.Token = redact(s.Token)
	return s
}

func redact(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return v[:4] + "****"
}

// Provider loads and stores the session. Load returns a zero Session and a
// nil error when nothing has been stored yet.
type Provider interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
}

// Static is an in-memory Provider, used for credentials supplied through
// configuration.
type Static struct {
	mu sync.RWMutex
	s  Session
}

// NewStatic returns a Static provider holding s.
func NewStatic(s Session) *Static {
	return &Static{s: s}
}

func (p *Static) Load(_ context.Context) (Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.s, nil
}

func (p *Static) Save(_ context.Context, s Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
	return nil
}
