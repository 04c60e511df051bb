// Package dispatch registers command modules with a protocol client. Each
// module is registered on its own: one that fails to compile or is rejected
// by the client is reported and skipped, never blocking the others.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/edgard/ion/internal/errs"
	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/protocol"
)

// RegistrationError records why one module could not be registered.
type RegistrationError struct {
	Module string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// Report is the outcome of a load: the modules now subscribed and the ones
// that were skipped.
type Report struct {
	Loaded []module.LoadedModule
	Failed []*RegistrationError
}

// Names returns the names of the loaded modules in load order.
func (r *Report) Names() []string {
	names := make([]string, 0, len(r.Loaded))
	for _, m := range r.Loaded {
		names = append(names, m.Name)
	}
	return names
}

// Loader subscribes modules on a protocol client.
type Loader struct {
	compiler *pattern.Compiler
	logger   *slog.Logger
}

// NewLoader creates a Loader compiling triggers with c.
func NewLoader(c *pattern.Compiler, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		compiler: c,
		logger:   logger.With("component", "module_loader"),
	}
}

// Load registers every module with client and returns the report. It is not
// idempotent: loading the same modules twice subscribes them twice.
//
// Handlers only run while view reports the bot as running; a nil view
// disables that gate.
func (l *Loader) Load(ctx context.Context, client protocol.Client, view module.View, mods []module.Module) *Report {
	report := &Report{}

	if len(mods) == 0 {
		l.logger.WarnContext(ctx, "No modules provided for registration.")
		return report
	}

	l.logger.InfoContext(ctx, "Registering modules...", "count", len(mods))

	for i, mod := range mods {
		name := moduleName(mod, i)

		loaded, err := l.register(client, view, name, mod)
		if err != nil {
			regErr := &RegistrationError{
				Module: name,
				Err:    errs.NewModuleRegistrationError("registration failed", err),
			}
			report.Failed = append(report.Failed, regErr)
			l.logger.ErrorContext(ctx, "Failed to register module, skipping", "module", name, "error", err)
			continue
		}

		report.Loaded = append(report.Loaded, loaded)
		l.logger.DebugContext(ctx, "Registered module", "module", name, "trigger", loaded.Trigger, "direction", loaded.Direction.String())
	}

	l.logger.InfoContext(ctx, "Module registration finished", "loaded", len(report.Loaded), "failed", len(report.Failed))
	return report
}

func (l *Loader) register(client protocol.Client, view module.View, name string, mod module.Module) (loaded module.LoadedModule, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during registration: %v", r)
		}
	}()

	if mod.Handler == nil {
		return loaded, fmt.Errorf("module has no handler")
	}

	trigger, err := l.compiler.Compile(mod.Meta.Match)
	if err != nil {
		return loaded, fmt.Errorf("compile trigger: %w", err)
	}

	direction := mod.Meta.Direction
	match := func(ev *protocol.Event) bool {
		return direction.Allows(ev) && trigger.MatchString(ev.Text)
	}

	if err := client.Subscribe(match, l.wrap(client, view, name, mod.Handler, trigger)); err != nil {
		return loaded, fmt.Errorf("subscribe: %w", err)
	}

	return module.LoadedModule{
		Name:        name,
		Description: mod.Meta.Description,
		Match:       mod.Meta.Match.String(),
		Trigger:     trigger.String(),
		Direction:   direction,
	}, nil
}

// wrap isolates a module handler: panics are recovered and errors logged
// with the module name.
func (l *Loader) wrap(sender protocol.Sender, view module.View, name string, h module.Handler, trigger *pattern.Trigger) protocol.EventHandler {
	log := l.logger.With("module", name)
	names := trigger.SubexpNames()

	return func(ctx context.Context, ev *protocol.Event) {
		if view != nil && !view.Running() {
			log.DebugContext(ctx, "Bot not running, dropping event", "update_id", ev.UpdateID)
			return
		}

		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(ctx, "Module handler panicked", "panic", r, "chat_id", ev.ChatID, "stack", string(debug.Stack()))
			}
		}()

		match, _ := trigger.Match(ev.Text)
		call := &module.Invocation{
			Event:  ev,
			Match:  match,
			Args:   namedArgs(names, match),
			Sender: sender,
			Bot:    view,
		}

		startTime := time.Now()
		if err := h(ctx, call); err != nil {
			log.WarnContext(ctx, "Module handler failed", "error", err, "chat_id", ev.ChatID, "duration", time.Since(startTime))
			return
		}
		log.DebugContext(ctx, "Module handled event", "chat_id", ev.ChatID, "duration", time.Since(startTime))
	}
}

func namedArgs(names, match []string) map[string]string {
	args := make(map[string]string)
	for i, n := range names {
		if n == "" || i >= len(match) {
			continue
		}
		args[n] = match[i]
	}
	return args
}

func moduleName(mod module.Module, index int) string {
	if mod.Meta.Name != "" {
		return mod.Meta.Name
	}
	if s := mod.Meta.Match.String(); s != "" {
		return s
	}
	return fmt.Sprintf("module#%d", index+1)
}
