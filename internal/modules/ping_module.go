package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/ion/internal/module"
)

type pingHandler struct {
	deps Deps
}

func (h pingHandler) Handle(ctx context.Context, call *module.Invocation) error {
	text := "pong"
	if sent := call.Event.SentAt; !sent.IsZero() {
		latency := h.deps.Clock().Sub(sent)
		if latency < 0 {
			latency = 0
		}
		text = fmt.Sprintf("pong (%s)", latency.Round(time.Millisecond))
	}
	return call.Reply(ctx, text)
}
