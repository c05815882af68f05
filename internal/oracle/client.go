// Package oracle wraps the Gemini API as the album categorization oracle: a
// text(+image) prompt in, free-form text out. The wrapper owns the retry
// policy; callers see a single blocking Invoke call.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Retry policy. Rate limiting gets a high attempt ceiling: a failed pass
// wastes the accumulated pending work, so waiting out a throttle is cheaper
// than abandoning the pass. Server errors are retried only a few times.
const (
	maxRateLimitAttempts = 100
	maxServerErrAttempts = 5

	backoffBase = 500 * time.Millisecond
	backoffCap  = 20 * time.Second
)

// Generation parameters for the grouping task: low temperature for stable
// category assignment, enough output budget for large merged structures.
const (
	temperature     = 0.3
	maxOutputTokens = 4096
)

// Client is a Gemini-backed oracle client.
type Client struct {
	genai *genai.Client
	model string
}

// New creates an oracle client using the Gemini API with the given key.
// The model is resolved from the GEMINI_MODEL environment variable.
func New(ctx context.Context, apiKey string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	return &Client{genai: c, model: GetModelName()}, nil
}

// Invoke sends a text prompt and returns the raw response text.
func (c *Client) Invoke(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []*genai.Part{{Text: prompt}})
}

// InvokeWithImage sends a prompt together with inline image bytes.
func (c *Client) InvokeWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return c.generate(ctx, []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		{Text: prompt},
	})
}

func (c *Client) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](temperature),
		MaxOutputTokens: maxOutputTokens,
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var lastErr error
	backoff := backoffBase

	for attempt := 1; ; attempt++ {
		callStart := time.Now()
		resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, config)
		if err == nil {
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("empty response from Gemini API")
			}
			log.Debug().
				Str("model", c.model).
				Int("attempt", attempt).
				Int("responseLength", len(text)).
				Dur("duration", time.Since(callStart)).
				Msg("Oracle call complete")
			return text, nil
		}
		lastErr = err

		limit, retryable := classify(err)
		if !retryable || attempt >= limit {
			return "", fmt.Errorf("generate content (attempt %d): %w", attempt, err)
		}

		log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Oracle call failed; retrying")

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("oracle retry aborted: %w", errors.Join(ctx.Err(), lastErr))
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > backoffCap {
			backoff = backoffCap
		}
	}
}

// classify maps an API error to its retry budget. 429 is throttling and gets
// the high ceiling; 5xx is transient and gets a short one; anything else is
// a permanent failure.
func classify(err error) (attemptLimit int, retryable bool) {
	var apiErr *genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}
	switch apiErr.Code {
	case 429:
		return maxRateLimitAttempts, true
	case 500, 502, 503, 504:
		return maxServerErrAttempts, true
	default:
		return 0, false
	}
}
