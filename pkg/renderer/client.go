// Package renderer is a minimal HTTP client for the headless-browser
// rendering service. The service exposes a single capability: fetch the
// fully rendered HTML of a URL. Everything vendor-specific lives in the
// scraper adapters, not here.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const maxAttempts = 3

// Client talks to the rendering service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Config holds renderer connection parameters.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// NewClient constructs a renderer client with request pacing. The limiter
// spaces outbound page fetches so adapters cannot hammer vendor sites even
// inside a single scrape run.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 0.5
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type renderRequest struct {
	URL    string `json:"url"`
	WaitMs int    `json:"waitMs,omitempty"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

// FetchRenderedHTML returns the rendered HTML of a page. Transient
// failures (network errors, 5xx) are retried with a short linear backoff;
// a 4xx is returned immediately since retrying will not help.
func (c *Client) FetchRenderedHTML(ctx context.Context, pageURL string) (string, error) {
	payload, err := json.Marshal(renderRequest{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("failed to encode render request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		html, retryable, err := c.render(ctx, payload)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		log.Warn().
			Err(err).
			Str("url", pageURL).
			Int("attempt", attempt).
			Msg("Render request failed")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return "", fmt.Errorf("render failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) render(ctx context.Context, payload []byte) (html string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode >= 500, fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}

	var out renderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, fmt.Errorf("failed to decode render response: %w", err)
	}
	if out.HTML == "" {
		return "", true, fmt.Errorf("renderer returned empty document")
	}
	return out.HTML, false, nil
}
