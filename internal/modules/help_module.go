package modules

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgard/ion/internal/module"
)

type helpHandler struct {
	deps Deps
}

func (h helpHandler) Handle(ctx context.Context, call *module.Invocation) error {
	loaded := call.Bot.LoadedModules()
	if len(loaded) == 0 {
		return call.Reply(ctx, "No commands loaded.")
	}

	var sb strings.Builder
	sb.WriteString("Commands:")
	for _, m := range loaded {
		fmt.Fprintf(&sb, "\n%s", m.Name)
		if m.Description != "" {
			fmt.Fprintf(&sb, " - %s", m.Description)
		}
		if m.Direction != module.Both {
			fmt.Fprintf(&sb, " [%s]", m.Direction)
		}
	}
	return call.Reply(ctx, sb.String())
}
