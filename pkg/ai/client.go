// Package ai asks a Gemini model to compare a cart against the user's
// purchase history.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dtnitsch/second-look/models"
	"github.com/dtnitsch/second-look/pkg/caching"
	"golang.org/x/time/rate"
)

// ErrNotConfigured means no API key was supplied.
var ErrNotConfigured = errors.New("ai: api key required")

// Client calls the generateContent endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	cache      *caching.Cache
	logger     *slog.Logger

	initialBackoff time.Duration
}

// New creates a client. cache may be nil.
func New(cfg models.AIConfig, cache *caching.Cache, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 15
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		maxRetries:     retries,
		cache:          cache,
		logger:         logger,
		initialBackoff: time.Second,
	}, nil
}

// Analyze returns the duplicate matches and market insights for a cart.
// Transport failures are returned as errors; output that cannot be parsed
// yields an empty Analysis and a nil error.
func (c *Client) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.Analysis, error) {
	key := cacheKey(c.model, req)
	var cached models.Analysis
	if c.cache.GetJSON(key, &cached) {
		c.logger.Debug("ai: cache hit")
		return cached, nil
	}

	text, err := c.Generate(ctx, BuildPrompt(req))
	if err != nil {
		return models.Analysis{}, err
	}

	analysis, err := ParseAnalysis(text)
	if err != nil {
		c.logger.Warn("ai: unusable model output", "error", err, "output", truncate(text, 200))
		return models.Analysis{Duplicates: []models.DuplicateMatch{}, MarketInsights: []models.MarketInsight{}}, nil
	}

	if err := c.cache.SetJSON(key, analysis); err != nil {
		c.logger.Warn("ai: cache write failed", "error", err)
	}
	c.logger.Info("ai: analysis complete", "duplicates", len(analysis.Duplicates), "insights", len(analysis.MarketInsights))
	return analysis, nil
}

// Generate sends prompt and returns the model's text. Rate limiting, 429
// and 5xx responses and network errors are retried with exponential
// backoff, up to the configured number of retries.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			ResponseMIMEType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxElapsedTime = 2 * time.Minute
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	var text string
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limiter error: %w", err))
		}
		out, err := c.doRequest(ctx, body)
		if err != nil {
			if isRetryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("ai: transient failure, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return "", fmt.Errorf("ai: generate after %d attempt(s): %w", attempt, err)
	}
	return text, nil
}

func (c *Client) doRequest(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	case resp.StatusCode >= 500:
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(string(respBody), 200))}
	case resp.StatusCode != http.StatusOK:
		var apiErr errorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 {
		if gen.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", gen.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("empty response from API")
	}

	var sb strings.Builder
	for _, p := range gen.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// cacheKey identifies a request by everything that shapes the answer.
func cacheKey(model string, req models.AnalyzeRequest) string {
	history, _ := json.Marshal(req.PastPurchases)
	return caching.Key("ai", model, req.SemanticHTML, string(history), req.CartTotal.String(), req.Company, req.Language)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
