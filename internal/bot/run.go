package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/protocol"
)

// Service is a long running component stopped by cancelling its context.
type Service interface {
	Run(ctx context.Context) error
}

// Runner starts the controller and keeps the transport listener, the
// scheduler and any extra services running until shutdown.
type Runner struct {
	logger     *slog.Logger
	controller *Controller
	client     protocol.Client
	scheduler  *Scheduler
	services   []Service
}

// NewRunner creates a Runner. scheduler may be nil.
func NewRunner(logger *slog.Logger, controller *Controller, client protocol.Client, scheduler *Scheduler, services ...Service) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		logger:     logger.With("component", "runner"),
		controller: controller,
		client:     client,
		scheduler:  scheduler,
		services:   services,
	}
}

// Run blocks until ctx is cancelled or a component fails. A bot that could
// not start, because its session is incomplete or login failed, stays
// stopped while services and the scheduler keep running, so it can be
// inspected over the control socket.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting bot orchestrator...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	for _, svc := range r.services {
		g.Go(func() error {
			return svc.Run(gCtx)
		})
	}

	if err := r.controller.Start(gCtx); err != nil {
		r.logger.Error("Failed to start bot, staying inert", "error", err, "code", errs.Code(err))
	}

	if r.controller.Running() {
		g.Go(func() error {
			if err := r.client.Run(gCtx); err != nil {
				return errs.NewTransportError("transport listener failed", err)
			}
			if gCtx.Err() == nil {
				r.logger.Warn("Transport listener stopped unexpectedly without context cancellation.")
				return errs.NewTransportError("transport listener stopped unexpectedly", nil)
			}
			return nil
		})
	} else {
		r.logger.Warn("Bot is not running, waiting for shutdown", "status", r.controller.Status().String())
		g.Go(func() error {
			<-gCtx.Done()
			return nil
		})
	}

	if r.scheduler != nil {
		g.Go(func() error {
			defer func() {
				if err := r.scheduler.Stop(); err != nil {
					r.logger.Error("Error stopping scheduler", "error", err)
				}
			}()
			if err := r.scheduler.Start(gCtx); err != nil {
				return err
			}
			<-gCtx.Done()
			r.logger.Info("Shutdown signal received, stopping scheduler...")
			return nil
		})
	}

	r.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()
	r.controller.Stop(context.WithoutCancel(ctx))

	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	r.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
