package modules

import (
	"context"
	"fmt"
	"time"

	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/sanitize"
)

const askTimeout = 2 * time.Minute

type askHandler struct {
	deps   Deps
	policy *sanitize.Policy
}

func (h askHandler) Handle(ctx context.Context, call *module.Invocation) error {
	log := h.deps.Logger.With("module", "ask")
	prompt := call.Args["prompt"]

	askCtx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	answer, err := h.deps.Gemini.Ask(askCtx, prompt, call.Bot.Identity())
	if err != nil {
		log.WarnContext(ctx, "Gemini request failed", "error", err, "chat_id", call.Event.ChatID)
		if replyErr := call.Reply(ctx, "Sorry, I could not answer that right now."); replyErr != nil {
			log.WarnContext(ctx, "Failed to send error reply", "error", replyErr)
		}
		return fmt.Errorf("ask: %w", err)
	}

	// Replies are sent as plain text.
	text := h.policy.Text(answer)
	if text == "" {
		text = "I have no answer to that."
	}
	return call.Reply(ctx, text)
}
