package modules_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/ion/internal/dispatch"
	"github.com/edgard/ion/internal/module"
	"github.com/edgard/ion/internal/modules"
	"github.com/edgard/ion/internal/pattern"
	"github.com/edgard/ion/internal/protocol"
	"github.com/edgard/ion/internal/protocol/protocoltest"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeView struct {
	started time.Time
	me      protocol.Identity
	loaded  []module.LoadedModule
}

func (v *fakeView) Running() bool                        { return true }
func (v *fakeView) StartedAt() time.Time                 { return v.started }
func (v *fakeView) Identity() protocol.Identity          { return v.me }
func (v *fakeView) LoadedModules() []module.LoadedModule { return v.loaded }

type fakeGemini struct {
	prompt string
	me     protocol.Identity
	answer string
	err    error
}

func (g *fakeGemini) Ask(_ context.Context, prompt string, me protocol.Identity) (string, error) {
	g.prompt = prompt
	g.me = me
	return g.answer, g.err
}

// load registers mods on a fake client the way the controller does and
// points the view at the result.
func load(t *testing.T, view *fakeView, mods []module.Module) *protocoltest.Client {
	t.Helper()
	client := protocoltest.New(view.me)
	report := dispatch.NewLoader(pattern.New("."), nil).Load(context.Background(), client, view, mods)
	require.Empty(t, report.Failed)
	view.loaded = report.Loaded
	return client
}

func deliver(t *testing.T, client *protocoltest.Client, text string) []protocol.Reply {
	t.Helper()
	client.Deliver(context.Background(), &protocol.Event{ChatID: 5, MessageID: 8, Text: text, SentAt: now.Add(-1500 * time.Millisecond)})
	return client.Sent()
}

func TestAll(t *testing.T) {
	t.Parallel()

	names := func(mods []module.Module) []string {
		out := make([]string, 0, len(mods))
		for _, m := range mods {
			out = append(out, m.Meta.Name)
		}
		return out
	}

	assert.Equal(t, []string{"ping", "alive", "help"}, names(modules.All(modules.Deps{})))
	assert.Equal(t, []string{"ping", "alive", "help", "ask"}, names(modules.All(modules.Deps{Gemini: &fakeGemini{}})))
}

func TestPing(t *testing.T) {
	t.Parallel()

	view := &fakeView{me: protocol.Identity{ID: 1}}
	client := load(t, view, modules.All(modules.Deps{Clock: func() time.Time { return now }}))

	sent := deliver(t, client, ".ping")
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.Reply{ChatID: 5, Text: "pong (1.5s)", ReplyToID: 8}, sent[0])

	assert.Len(t, deliver(t, client, "ping"), 1, "no prefix, no reply")
}

func TestAlive(t *testing.T) {
	t.Parallel()

	view := &fakeView{
		started: now.Add(-90 * time.Minute),
		me:      protocol.Identity{ID: 1, FirstName: "Ion", Username: "ion_bot"},
	}
	client := load(t, view, modules.All(modules.Deps{Version: "1.2.3", Clock: func() time.Time { return now }}))

	sent := deliver(t, client, ".alive")
	require.Len(t, sent, 1)
	assert.Equal(t, "ion 1.2.3 is alive\nAccount: Ion (@ion_bot)\nUptime: 1h30m0s\nModules: 3", sent[0].Text)
}

func TestHelp(t *testing.T) {
	t.Parallel()

	view := &fakeView{me: protocol.Identity{ID: 1}}
	mods := append(modules.All(modules.Deps{}), module.Module{
		Meta: module.Meta{
			Name:      "selfie",
			Match:     pattern.Literal("selfie"),
			Direction: module.Outgoing,
		},
		Handler: func(context.Context, *module.Invocation) error { return nil },
	})
	client := load(t, view, mods)

	sent := deliver(t, client, ".help")
	require.Len(t, sent, 1)
	assert.Equal(t, "Commands:\n"+
		"ping - Replies with pong and the delivery latency.\n"+
		"alive - Shows version, status and uptime.\n"+
		"help - Lists the loaded commands.\n"+
		"selfie [outgoing]", sent[0].Text)
}

func TestHelp_NothingLoaded(t *testing.T) {
	t.Parallel()

	client := protocoltest.New(protocol.Identity{})
	mods := modules.All(modules.Deps{})
	help := mods[2]

	call := &module.Invocation{
		Event:  &protocol.Event{ChatID: 1, MessageID: 2},
		Sender: client,
		Bot:    &fakeView{},
	}
	require.NoError(t, help.Handler(context.Background(), call))
	assert.Equal(t, "No commands loaded.", client.Sent()[0].Text)
}

func TestAsk(t *testing.T) {
	t.Parallel()

	g := &fakeGemini{answer: "Go is a programming language."}
	view := &fakeView{me: protocol.Identity{ID: 1, FirstName: "Ion"}}
	client := load(t, view, modules.All(modules.Deps{Gemini: g}))

	sent := deliver(t, client, ".ask what is\nGo?")
	require.Len(t, sent, 1)
	assert.Equal(t, "what is\nGo?", g.prompt)
	assert.Equal(t, view.me, g.me)
	assert.Equal(t, "Go is a programming language.", sent[0].Text)

	assert.Len(t, deliver(t, client, ".ask"), 1, "ask needs a prompt")
}

func TestAsk_StripsMarkdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{name: "markdown", answer: "**Go** is a `compiled` language.", want: "Go is a compiled language."},
		{name: "empty", answer: "   ", want: "I have no answer to that."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			view := &fakeView{me: protocol.Identity{ID: 1, FirstName: "Ion"}}
			client := load(t, view, modules.All(modules.Deps{Gemini: &fakeGemini{answer: tt.answer}}))

			sent := deliver(t, client, ".ask anything")
			require.Len(t, sent, 1)
			assert.Equal(t, tt.want, sent[0].Text)
		})
	}
}

func TestAsk_ErrorRepliesApology(t *testing.T) {
	t.Parallel()

	g := &fakeGemini{err: errors.New("quota exceeded")}
	client := protocoltest.New(protocol.Identity{})
	mods := modules.All(modules.Deps{Gemini: g})
	ask := mods[3]

	call := &module.Invocation{
		Event:  &protocol.Event{ChatID: 1, MessageID: 2},
		Args:   map[string]string{"prompt": "hi"},
		Sender: client,
		Bot:    &fakeView{},
	}
	err := ask.Handler(context.Background(), call)
	require.Error(t, err)
	assert.ErrorIs(t, err, g.err)
	require.Len(t, client.Sent(), 1)
	assert.Contains(t, client.Sent()[0].Text, "Sorry")
}
