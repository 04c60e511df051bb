package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/edgard/ion/internal/config"
	"github.com/edgard/ion/internal/protocol"
)

var testIdentity = protocol.Identity{ID: 1, FirstName: "Ion", Username: "ion_bot"}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

type scriptedGenerator struct {
	errs    []error
	resp    *genai.GenerateContentResponse
	calls   int
	lastCfg *genai.GenerateContentConfig
}

func (g *scriptedGenerator) generate(_ context.Context, _ string, _ []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.calls++
	g.lastCfg = cfg
	if g.calls <= len(g.errs) {
		return nil, g.errs[g.calls-1]
	}
	return g.resp, nil
}

func newTestClient(g *scriptedGenerator, maxRetries int) *sdkClient {
	return newSDKClient(g.generate, config.GeminiConfig{
		ModelName:         "test-model",
		Temperature:       0.5,
		SystemInstruction: "Be nice.",
		MaxRetries:        maxRetries,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.GeminiConfig{}, nil)
	assert.Error(t, err)
}

func TestAsk(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{resp: textResponse("  forty-two \n")}
	c := newTestClient(g, 2)

	got, err := c.Ask(context.Background(), "meaning of life?", testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", got)
	assert.Equal(t, 1, g.calls)

	require.NotNil(t, g.lastCfg.SystemInstruction)
	instruction := g.lastCfg.SystemInstruction.Parts[0].Text
	assert.Contains(t, instruction, "You are Ion (@ion_bot)")
	assert.Contains(t, instruction, "Be nice.")
	assert.Equal(t, "Be nice.", c.contentConfig.SystemInstruction.Parts[0].Text, "base config is not modified")
}

func TestAsk_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{
		errs: []error{&genai.APIError{Code: 503}, &genai.APIError{Code: 500}},
		resp: textResponse("ok"),
	}
	c := newTestClient(g, 2)

	got, err := c.Ask(context.Background(), "q", testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, g.calls)
}

func TestAsk_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{
		errs: []error{&genai.APIError{Code: 503}, &genai.APIError{Code: 503}, &genai.APIError{Code: 503}},
		resp: textResponse("too late"),
	}
	c := newTestClient(g, 1)

	_, err := c.Ask(context.Background(), "q", testIdentity)
	require.Error(t, err)
	assert.Equal(t, 2, g.calls)
}

func TestAsk_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{errs: []error{errors.New("invalid argument")}}
	c := newTestClient(g, 3)

	_, err := c.Ask(context.Background(), "q", testIdentity)
	require.Error(t, err)
	assert.Equal(t, 1, g.calls)
}

func TestAsk_CircuitBreakerOpensOnOutage(t *testing.T) {
	t.Parallel()

	outage := make([]error, breakerFailures)
	for i := range outage {
		outage[i] = &genai.APIError{Code: 503}
	}
	g := &scriptedGenerator{errs: outage, resp: textResponse("back")}
	c := newTestClient(g, 0)

	for range breakerFailures {
		_, err := c.Ask(context.Background(), "q", testIdentity)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := c.Ask(context.Background(), "q", testIdentity)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, breakerFailures, g.calls, "open breaker does not call the API")
}

func TestAsk_RejectedRequestsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	rejected := make([]error, breakerFailures+1)
	for i := range rejected {
		rejected[i] = &genai.APIError{Code: 400}
	}
	g := &scriptedGenerator{errs: rejected, resp: textResponse("fine")}
	c := newTestClient(g, 0)

	for range rejected {
		_, err := c.Ask(context.Background(), "q", testIdentity)
		require.Error(t, err)
	}

	got, err := c.Ask(context.Background(), "q", testIdentity)
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

func TestIsOutage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "server error", err: &genai.APIError{Code: 503}, want: true},
		{name: "bad request", err: &genai.APIError{Code: 400}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: false},
		{name: "network", err: errors.New("connection reset"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isOutage(tt.err))
		})
	}
}

func TestAsk_EmptyPrompt(t *testing.T) {
	t.Parallel()

	g := &scriptedGenerator{}
	c := newTestClient(g, 0)

	_, err := c.Ask(context.Background(), "   ", testIdentity)
	require.Error(t, err)
	assert.Equal(t, 0, g.calls)
}

func TestExtractTextFromResponse(t *testing.T) {
	t.Parallel()

	c := newTestClient(&scriptedGenerator{}, 0)

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr bool
	}{
		{name: "nil", resp: nil, wantErr: true},
		{name: "text", resp: textResponse("hello"), want: "hello"},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: true},
		{
			name: "blocked",
			resp: &genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
				BlockReason:        genai.BlockedReasonSafety,
				BlockReasonMessage: "unsafe",
			}},
			wantErr: true,
		},
		{name: "blank text", resp: textResponse("   "), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := c.extractTextFromResponse(context.Background(), tt.resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
