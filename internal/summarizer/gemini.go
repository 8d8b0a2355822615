package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/edgard/tgcollector/internal/config"
	"github.com/edgard/tgcollector/internal/errs"
)

const (
	// breakerFailures consecutive failed generations open the circuit.
	breakerFailures = 3
	breakerCooldown = 5 * time.Minute
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiClient struct {
	genaiClient   *genai.Client
	breaker       *gobreaker.CircuitBreaker
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

// NewGeminiClient creates a Generator backed by the Gemini API. Server
// errors are retried with backoff; repeated failures open a circuit breaker
// so a scheduled pass over many groups fails fast during an outage.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Generator, error) {
	c, err := newGeminiClient(ctx, cfg, log, genai.HTTPOptions{})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func newGeminiClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger, httpOpts genai.HTTPOptions) (*geminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errs.NewConfigError("gemini API key is required", nil)
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	baseCfg := &genai.GenerateContentConfig{
		Temperature: &cfg.Temperature,
	}
	if cfg.SystemInstruction != "" {
		baseCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}}
	}

	logger := log.With("component", "gemini_client")
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		// Only outages count against the breaker; a blocked prompt does not.
		IsSuccessful: func(err error) bool {
			return err == nil || !errs.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &geminiClient{
		genaiClient:   gi,
		breaker:       breaker,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.ModelName,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.generateContentWithRetries(ctx, contents)
		if err != nil {
			return nil, err
		}
		return c.extractText(ctx, resp)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", errs.NewTransientError("gemini unavailable, circuit open", err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// isRetriable reports 500 and 503 responses. genai returns APIError by value.
func isRetriable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusInternalServerError || apiErr.Code == http.StatusServiceUnavailable
}

// generateContentWithRetries retries 500 and 503 responses up to maxRetries times.
func (c *geminiClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	resp, err := retry.DoWithData(
		func() (*genai.GenerateContentResponse, error) {
			return c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetriable),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Gemini API call failed", "attempt", n+1, "max_retries", c.maxRetries, "error", err)
		}),
	)
	switch {
	case err == nil:
		return resp, nil
	case ctx.Err() != nil:
		return nil, errs.NewTransientError("gemini call interrupted", ctx.Err())
	case isRetriable(err):
		return nil, errs.NewTransientError(fmt.Sprintf("gemini API call failed after %d retries", c.maxRetries), err)
	default:
		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
}

func (c *geminiClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("summary blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("gemini returned no content, finish reason: %s", finishReason)
	}

	return resp.Text(), nil
}
