package modules

import (
	"io"
	"log/slog"
	"time"

	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/sanitize"
)

// All returns the built-in modules in load order.
func All(deps Deps) []module.Module {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	mods := []module.Module{
		{
			Meta: module.Meta{
				Name:        "ping",
				Description: "Replies with pong and the delivery latency.",
				Match:       pattern.Literal("ping"),
			},
			Handler: pingHandler{deps}.Handle,
		},
		{
			Meta: module.Meta{
				Name:        "alive",
				Description: "Shows version, status and uptime.",
				Match:       pattern.Literal("alive"),
			},
			Handler: aliveHandler{deps}.Handle,
		},
		{
			Meta: module.Meta{
				Name:        "help",
				Description: "Lists the loaded commands.",
				Match:       pattern.Literal("help"),
			},
			Handler: helpHandler{deps}.Handle,
		},
	}

	if deps.Gemini != nil {
		mods = append(mods, module.Module{
			Meta: module.Meta{
				Name:        "ask",
				Description: "Answers a question with Gemini.",
				Match:       pattern.Literal(`ask\s+(?P<prompt>(?s:.+))`),
			},
			Handler: askHandler{deps: deps, policy: sanitize.NewPlainTextPolicy()}.Handle,
		})
	}

	return mods
}
