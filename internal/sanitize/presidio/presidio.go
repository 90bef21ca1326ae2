// Package presidio provides a Classifier backed by a Presidio analyzer
// service (POST /analyze). Presidio reports character offsets; they are
// converted to byte offsets before being handed to the analyzer.
package presidio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

// Client calls a Presidio analyzer.
type Client struct {
	url      string
	language string
	entities []string
	http     *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithLanguage sets the analysis language (default "en").
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

// WithEntities restricts the analyzer to the given entity types. By default
// every canonical type is requested.
func WithEntities(entities []string) Option {
	return func(c *Client) { c.entities = entities }
}

// WithTimeout bounds each analyze call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the analyzer at baseURL, e.g. "http://presidio-analyzer:3000".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		url:      strings.TrimRight(baseURL, "/") + "/analyze",
		language: "en",
		entities: sanitize.CanonicalEntities,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type analyzeRequest struct {
	Text     string   `json:"text"`
	Language string   `json:"language"`
	Entities []string `json:"entities,omitempty"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Classify sends text to the analyzer. Transport failures, non-200 replies
// and undecodable bodies are returned as errors.
func (c *Client) Classify(ctx context.Context, text string) ([]sanitize.Span, error) {
	body, err := json.Marshal(analyzeRequest{Text: text, Language: c.language, Entities: c.entities})
	if err != nil {
		return nil, fmt.Errorf("presidio: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("presidio: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("presidio: analyzer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("presidio: analyzer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var results []analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("presidio: decode: %w", err)
	}

	offsets := sanitize.NewRuneOffsets(text)
	spans := make([]sanitize.Span, 0, len(results))
	for _, r := range results {
		spans = append(spans, sanitize.Span{
			Start: offsets.Byte(r.Start),
			End:   offsets.Byte(r.End),
			Label: r.EntityType,
			Score: r.Score,
		})
	}
	return spans, nil
}
