package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/edgard/ion/internal/config"
	"github.com/edgard/ion/internal/database"
	"github.com/edgard/ion/internal/secretstore"
	"github.com/edgard/ion/internal/session"
)

// openSessionProvider returns the provider for the configured backend.
// store serves the sqlite backend.
func openSessionProvider(cfg *config.Config, store database.Store) (session.Provider, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendBadger:
		key, err := secretstore.ParseKey(cfg.SecretStore.EncryptionKey)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid secretstore.encryption_key: %w", err)
		}
		ss, err := secretstore.Open(secretstore.OpenOptions{Path: cfg.SecretStore.Path, EncryptionKey: key})
		if err != nil {
			return nil, nil, err
		}
		return ss, func() { _ = ss.Close() }, nil
	case config.BackendConfig:
		return session.NewStatic(cfg.Session.Inline()), func() {}, nil
	default:
		return store, func() {}, nil
	}
}

// withSessionProvider opens the database and the session provider for the
// duration of fn.
func (a *app) withSessionProvider(ctx context.Context, fn func(p session.Provider) error) error {
	db, err := database.Open(ctx, a.cfg.Database.Path, a.log)
	if err != nil {
		return err
	}
	defer database.Close(db, a.log)

	p, closeFn, err := openSessionProvider(a.cfg, database.NewStore(db, a.log))
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(p)
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show or store the bot credentials",
	}
	cmd.AddCommand(newSessionShowCmd(a), newSessionSetCmd(a))
	return cmd
}

type sessionView struct {
	Backend  string          `yaml:"backend"`
	Complete bool            `yaml:"complete"`
	Missing  []string        `yaml:"missing,omitempty"`
	Session  session.Session `yaml:"session"`
}

func newSessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored session with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSessionProvider(cmd.Context(), func(p session.Provider) error {
				s, err := p.Load(cmd.Context())
				if err != nil {
					return err
				}
				out, err := yaml.Marshal(sessionView{
					Backend:  a.cfg.Session.Backend,
					Complete: s.Complete(),
					Missing:  s.Missing(),
					Session:  s.Redacted(),
				})
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

func newSessionSetCmd(a *app) *cobra.Command {
	var (
		accountID     int64
		accountSecret string
		token         string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store session fields; unset flags keep their stored values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Session.Backend == config.BackendConfig {
				return errors.New("session backend is \"config\": set session.* in the configuration file or ION_SESSION_* variables")
			}
			return a.withSessionProvider(cmd.Context(), func(p session.Provider) error {
				s, err := p.Load(cmd.Context())
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("account-id") {
					s.AccountID = accountID
				}
				if flags.Changed("account-secret") {
					s.AccountSecret = accountSecret
				}
				if flags.Changed("token") {
					s.Token = token
				}
				if err := p.Save(cmd.Context(), s); err != nil {
					return err
				}
				if s.Complete() {
					fmt.Fprintln(cmd.OutOrStdout(), "Session saved.")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Session saved, still missing: %v\n", s.Missing())
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&accountID, "account-id", 0, "bot account id")
	cmd.Flags().StringVar(&accountSecret, "account-secret", "", "bot account secret")
	cmd.Flags().StringVar(&token, "token", "", "session token")
	return cmd
}
