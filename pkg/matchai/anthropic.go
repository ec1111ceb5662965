package matchai

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/trestlehq/bidlevel/internal/resilience"
)

// claudeClient implements Client using the official anthropic-sdk-go.
type claudeClient struct {
	client  sdk.Client
	model   string
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// Option configures the Claude-backed client.
type Option func(*claudeClient)

// WithModel overrides the Claude model.
func WithModel(model string) Option {
	return func(c *claudeClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithRequestsPerMinute sets the client-side rate limit.
func WithRequestsPerMinute(rpm int) Option {
	return func(c *claudeClient) {
		if rpm > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
		}
	}
}

// NewClient creates a matching client backed by the Anthropic SDK.
func NewClient(apiKey string, opts ...Option) Client {
	c := &claudeClient{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Limit(1), 1), // 60 rpm default
		breaker: resilience.NewCircuitBreaker("matchai", resilience.DefaultCircuitBreakerConfig()),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MatchItems sends the candidate sets to Claude and parses the scored
// pairings. Transient API failures are retried; sustained failure trips the
// circuit breaker so callers fall back to heuristic matching quickly.
func (c *claudeClient) MatchItems(ctx context.Context, req MatchRequest) ([]ItemMatch, error) {
	if len(req.SubjectItems) == 0 {
		return nil, nil
	}

	prompt, err := buildUserPrompt(req)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "matchai: rate limit wait")
	}

	msg, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*sdk.Message, error) {
		var m *sdk.Message
		execErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			m, callErr = c.client.Messages.New(ctx, sdk.MessageNewParams{
				Model:     sdk.Model(c.model),
				MaxTokens: maxTokensFor(len(req.SubjectItems)),
				System: []sdk.TextBlockParam{
					{Text: systemPrompt},
				},
				Messages: []sdk.MessageParam{
					sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
				},
			})
			return callErr
		})
		return m, execErr
	})
	if err != nil {
		return nil, eris.Wrap(err, "matchai: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	matches, err := parseMatches(text, req)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("matchai: matched items",
		zap.String("model", c.model),
		zap.String("mode", string(req.Mode)),
		zap.Int("subjects", len(req.SubjectItems)),
		zap.Int("candidates", len(req.CandidateItems)),
		zap.Int("matches", len(matches)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return matches, nil
}
