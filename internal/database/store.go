package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/session"
)

// Store defines the database operations. It doubles as the default
// session.Provider.
type Store interface {
	session.Provider

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordLoadReport stores the per-module outcome of a module load.
	RecordLoadReport(ctx context.Context, runID string, report *dispatch.Report) error

	// GetModuleLoads returns the recorded outcomes of a run in load order.
	GetModuleLoads(ctx context.Context, runID string) ([]ModuleLoad, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Load returns the stored session, or a zero session if none was saved.
func (s *sqlxStore) Load(ctx context.Context) (session.Session, error) {
	var row SessionRow
	err := s.db.GetContext(ctx, &row, `SELECT id, account_id, account_secret, token, created_at, updated_at FROM sessions WHERE id = 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.DebugContext(ctx, "No stored session")
			return session.Session{}, nil
		}
		s.logger.ErrorContext(ctx, "Failed to load session", "error", err)
		return session.Session{}, errs.NewDatabaseError("failed to load session", err)
	}

	return session.Session{
		AccountID:     row.AccountID,
		AccountSecret: row.AccountSecret,
		Token:         row.Token,
	}, nil
}

// Save inserts or replaces the stored session.
func (s *sqlxStore) Save(ctx context.Context, sess session.Session) error {
	now := time.Now().UTC()
	row := SessionRow{
		ID:            1,
		AccountID:     sess.AccountID,
		AccountSecret: sess.AccountSecret,
		Token:         sess.Token,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
        INSERT INTO sessions (id, account_id, account_secret, token, created_at, updated_at)
        VALUES (:id, :account_id, :account_secret, :token, :created_at, :updated_at)
        ON CONFLICT(id) DO UPDATE SET
            account_id = excluded.account_id,
            account_secret = excluded.account_secret,
            token = excluded.token,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save session", "account_id", sess.AccountID, "error", err)
		return errs.NewDatabaseError("failed to save session", err)
	}

	s.logger.InfoContext(ctx, "Session saved", "account_id", sess.AccountID)
	return nil
}

func (s *sqlxStore) RecordLoadReport(ctx context.Context, runID string, report *dispatch.Report) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if report == nil {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]ModuleLoad, 0, len(report.Loaded)+len(report.Failed))
	for _, m := range report.Loaded {
		rows = append(rows, ModuleLoad{
			RunID:     runID,
			Module:    m.Name,
			Trigger:   m.Trigger,
			Direction: m.Direction.String(),
			Loaded:    true,
			CreatedAt: now,
		})
	}
	for _, f := range report.Failed {
		rows = append(rows, ModuleLoad{
			RunID:     runID,
			Module:    f.Module,
			Direction: "",
			Loaded:    false,
			Error:     f.Err.Error(),
			CreatedAt: now,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	query := `
        INSERT INTO module_loads (run_id, module, trigger_expr, direction, loaded, error, created_at)
        VALUES (:run_id, :module, :trigger_expr, :direction, :loaded, :error, :created_at);
    `
	for _, row := range rows {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record module load", "run_id", runID, "module", row.Module, "error", err)
			return errs.NewDatabaseError("failed to record module load", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.NewDatabaseError("failed to commit module loads", err)
	}

	s.logger.DebugContext(ctx, "Recorded module load report", "run_id", runID, "rows", len(rows))
	return nil
}

func (s *sqlxStore) GetModuleLoads(ctx context.Context, runID string) ([]ModuleLoad, error) {
	var loads []ModuleLoad
	query := `
        SELECT id, run_id, module, trigger_expr, direction, loaded, error, created_at
        FROM module_loads
        WHERE run_id = ?
        ORDER BY id ASC;
    `
	if err := s.db.SelectContext(ctx, &loads, query, runID); err != nil {
		return nil, errs.NewDatabaseError("failed to get module loads", err)
	}
	return loads, nil
}

// RunSQLMaintenance optimizes the query planner statistics and reclaims space.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	startTime := time.Now()
	for _, stmt := range []string{"PRAGMA optimize;", "VACUUM;"} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.ErrorContext(ctx, "SQL maintenance statement failed", "statement", stmt, "error", err)
			return errs.NewDatabaseError(fmt.Sprintf("maintenance statement %q failed", stmt), err)
		}
	}
	s.logger.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(startTime))
	return nil
}
