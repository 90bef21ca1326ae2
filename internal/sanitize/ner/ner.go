// Package ner provides a Classifier that calls one or more token
// classification sidecars over HTTP (POST /classify). The sidecar runs a
// transformer NER model and reports native model labels ("PER", "B-PATIENT",
// "HOSP") which the analyzer maps to canonical entity types.
//
// When several sidecar URLs are configured, requests are spread across them
// round-robin.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

// Client calls the NER sidecars' /classify endpoint.
type Client struct {
	urls    []string
	counter atomic.Uint64
	http    *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout bounds each classify call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the given sidecar base URLs
// (e.g. "http://pii-ner:8001"). At least one URL is required.
func New(baseURLs []string, opts ...Option) (*Client, error) {
	var urls []string
	for _, u := range baseURLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, strings.TrimRight(u, "/")+"/classify")
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("ner: at least one sidecar URL is required")
	}
	c := &Client{
		urls: urls,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	slog.Info("ner: sidecars registered", "count", len(urls))
	return c, nil
}

// next returns the next sidecar URL. Safe for concurrent use.
func (c *Client) next() string {
	idx := c.counter.Add(1) - 1
	return c.urls[idx%uint64(len(c.urls))]
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spans []nerSpan `json:"spans"`
}

type nerSpan struct {
	Start int      `json:"start"`
	End   int      `json:"end"`
	Label string   `json:"label"`
	Text  string   `json:"text"`
	Score *float64 `json:"score"`
}

// Classify sends text to the next sidecar and returns its spans. Offsets in
// the reply are character offsets. Spans without a score count as 1.0.
func (c *Client) Classify(ctx context.Context, text string) ([]sanitize.Span, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("ner: marshal: %w", err)
	}

	url := c.next()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ner: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ner: sidecar %s unreachable: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ner: sidecar %s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ner: decode: %w", err)
	}

	offsets := sanitize.NewRuneOffsets(text)
	spans := make([]sanitize.Span, 0, len(result.Spans))
	for _, s := range result.Spans {
		score := 1.0
		if s.Score != nil {
			score = *s.Score
		}
		spans = append(spans, sanitize.Span{
			Start: offsets.Byte(s.Start),
			End:   offsets.Byte(s.End),
			Label: s.Label,
			Score: score,
		})
	}
	return spans, nil
}
