// Package tasks implements the scheduled tasks of the bot.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/ion/internal/bot"
)

// StatusSource provides the current bot state.
type StatusSource interface {
	Snapshot() bot.Snapshot
}

// Maintainer runs database maintenance.
type Maintainer interface {
	RunSQLMaintenance(ctx context.Context) error
}

// TaskDeps contains the dependencies of scheduled tasks. A nil dependency
// leaves the tasks that need it out of the registry.
type TaskDeps struct {
	Logger   *slog.Logger
	Status   StatusSource
	Notifier bot.Notifier
	Store    Maintainer
}
