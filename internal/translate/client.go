// Package translate calls an external machine-translation HTTP API to
// render Korean diagnosis summaries into English for outbound mail.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"wecar-diagnosis/internal/observability/metrics"
)

// Client posts text to a translation endpoint. A zero-value URL makes
// Translate fail, which callers treat as pass-through.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// NewClient constructs a translation client. timeout <= 0 selects a
// 10s default.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Translate renders Korean text into English. The error path never
// mutates state upstream; callers keep the source text on failure.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveTranslate(result, time.Since(start))
	}()

	translated, err := c.translate(ctx, text)
	if err != nil {
		result = metrics.ResultError
		return "", err
	}
	return translated, nil
}

func (c *Client) translate(ctx context.Context, text string) (string, error) {
	if c == nil || c.url == "" {
		return "", errors.New("translate client: empty url")
	}
	body, err := json.Marshal(translateRequest{Text: text, Source: "ko", Target: "en"})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("translate client: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out translateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("translate client: decode: %w", err)
	}
	if out.TranslatedText == "" {
		return "", errors.New("translate client: empty translation")
	}
	return out.TranslatedText, nil
}
