// Package secretstore keeps the bot session in an encrypted Badger database.
// Encryption at rest is provided by Badger itself; this package only maps
// the session onto a key.
package secretstore

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/session"
)

// SessionKey is the key the session is stored under.
const SessionKey = "ion/session"

// ErrNotOpened is returned by every operation on a closed or nil Store.
var ErrNotOpened = errors.New("secretstore: not opened")

// Store is a small KV wrapper around Badger. It implements session.Provider.
type Store struct {
	db *badger.DB
}

// OpenOptions configures Open.
type OpenOptions struct {
	Path string
	// EncryptionKey must be 32 bytes; nil opens the store unencrypted.
	EncryptionKey []byte
	ReadOnly      bool
	// InMemory ignores Path and keeps everything in memory.
	InMemory bool
}

// Open opens (or creates) the store.
func Open(opts OpenOptions) (*Store, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" && !opts.InMemory {
		return nil, errors.New("secretstore: path is required")
	}
	if opts.InMemory {
		path = ""
	}

	bopts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithReadOnly(opts.ReadOnly).
		WithInMemory(opts.InMemory)
	if len(opts.EncryptionKey) > 0 {
		// Encrypted workloads need an index cache.
		bopts = bopts.
			WithEncryptionKey(opts.EncryptionKey).
			WithIndexCacheSize(100 << 20)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("secretstore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// GetString returns the value of key and whether it exists.
func (s *Store) GetString(key string) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, ErrNotOpened
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return "", false, errors.New("secretstore: key is empty")
	}

	var (
		out   string
		found bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}
	return out, found, nil
}

// SetString stores val under key.
func (s *Store) SetString(key, val string) error {
	if s == nil || s.db == nil {
		return ErrNotOpened
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 {
		return errors.New("secretstore: key is empty")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, []byte(val))
	})
}

// Load returns the stored session, or a zero session if none was saved.
func (s *Store) Load(_ context.Context) (session.Session, error) {
	raw, ok, err := s.GetString(SessionKey)
	if err != nil {
		return session.Session{}, errs.New(errs.CodeDatabase, "failed to read session from secret store", err)
	}
	if !ok {
		return session.Session{}, nil
	}

	var sess session.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return session.Session{}, errs.New(errs.CodeDatabase, "stored session is corrupt", err)
	}
	return sess, nil
}

// Save replaces the stored session.
func (s *Store) Save(_ context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("secretstore: encode session: %w", err)
	}
	if err := s.SetString(SessionKey, string(data)); err != nil {
		return errs.New(errs.CodeDatabase, "failed to write session to secret store", err)
	}
	return nil
}

// ParseKey decodes a 32 byte key given as hex (optionally 0x-prefixed) or
// base64. An empty input returns nil.
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	// Hex first, so 64 hex chars are never read as base64.
	if b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x")); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}

	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}

	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
