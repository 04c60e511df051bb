// Package gemini answers free-form questions with Google's Gemini API. It
// backs the "ask" command module.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/edgard/ion/internal/config"
	"github.com/edgard/ion/internal/protocol"
)

// Client answers prompts.
type Client interface {
	Ask(ctx context.Context, prompt string, me protocol.Identity) (string, error)
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

type sdkClient struct {
	generate         generateFunc
	breaker          *gobreaker.CircuitBreaker
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
}

// NewClient creates a Gemini client. An empty API key is an error; callers
// leave the ask module out instead.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return newSDKClient(gi.Models.GenerateContent, cfg, logger), nil
}

func newSDKClient(generate generateFunc, cfg config.GeminiConfig, log *slog.Logger) *sdkClient {
	temperature := cfg.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	return &sdkClient{
		generate:         generate,
		breaker:          newBreaker(log),
		log:              log,
		contentConfig:    baseCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}
}

func (c *sdkClient) withBotHeader(me protocol.Identity) *genai.GenerateContentConfig {
	copyCfg := *c.contentConfig
	header := fmt.Sprintf(AskSystemInstructionHeader, me.DisplayName(), me.Username)

	var existingText string
	if c.contentConfig.SystemInstruction != nil && len(c.contentConfig.SystemInstruction.Parts) > 0 {
		existingText = c.contentConfig.SystemInstruction.Parts[0].Text
	}

	copyCfg.SystemInstruction = &genai.Content{
		Parts: []*genai.Part{{Text: header + existingText}},
	}
	return &copyCfg
}

// isRetriable reports whether err is a transient API failure.
func isRetriable(err error) bool {
	var apiErr *genai.APIError
	return errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503)
}

func (c *sdkClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse

	err := retry.Do(
		func() error {
			r, err := c.generate(ctx, c.defaultModelName, contents, cfg)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetriable),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Gemini API call failed, retrying", "attempt", n+1, "max_retries", c.maxRetries, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return resp, nil
}

func (c *sdkClient) Ask(ctx context.Context, prompt string, me protocol.Identity) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	c.log.DebugContext(ctx, "Asking Gemini", "prompt_length", len(prompt))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generateContentWithRetries(ctx, contents, c.withBotHeader(me))
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.WarnContext(ctx, "Gemini request rejected by circuit breaker", "state", c.breaker.State().String())
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini answer generation failed", "error", err)
		return "", err
	}

	return c.extractTextFromResponse(ctx, out.(*genai.GenerateContentResponse))
}

func (c *sdkClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("gemini returned no response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("gemini returned no content, finish reason: %s", finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}
