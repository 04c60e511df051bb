package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edgard/ion/internal/module"
)

type aliveHandler struct {
	deps Deps
}

func (h aliveHandler) Handle(ctx context.Context, call *module.Invocation) error {
	view := call.Bot

	var sb strings.Builder
	fmt.Fprintf(&sb, "ion %s is alive\n", h.deps.Version)
	if me := view.Identity(); me.ID != 0 {
		fmt.Fprintf(&sb, "Account: %s", me.DisplayName())
		if me.Username != "" {
			fmt.Fprintf(&sb, " (@%s)", me.Username)
		}
		sb.WriteString("\n")
	}
	if started := view.StartedAt(); !started.IsZero() {
		fmt.Fprintf(&sb, "Uptime: %s\n", h.deps.Clock().Sub(started).Round(time.Second))
	}
	fmt.Fprintf(&sb, "Modules: %d", len(view.LoadedModules()))

	return call.Reply(ctx, sb.String())
}
