// Package llmclassifier provides a Classifier that uses a local
// OpenAI-compatible LLM (e.g. Ollama with qwen3:4b) to find personal data
// that pattern and NER engines miss.
//
// The model is asked for the sensitive strings verbatim together with their
// entity type, not for offsets, because small models get offsets wrong. Go
// code locates every occurrence in the original text itself.
package llmclassifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
)

const systemPrompt = `Extract personal data from the text. Return a JSON array of objects {"text": <exact substring>, "entity_type": <type>}. Return [] if nothing is found.

Allowed entity types:
PERSON, LOCATION, NRP, DATE_TIME, EMAIL_ADDRESS, PHONE_NUMBER, URL, IP_ADDRESS,
CREDIT_CARD, IBAN_CODE, US_BANK_NUMBER, US_SSN, US_ITIN, US_PASSPORT,
US_DRIVER_LICENSE, UK_NHS, MEDICAL_LICENSE, CRYPTO

Rules:
- "text" must be copied exactly as it appears in the input.
- Full person names, home or work addresses and cities tied to a person count.
- Do NOT flag placeholders like <PERSON>, common words or generic numbers.

Return ONLY the JSON array. No explanation.

Examples:
Input: "call me at +79997899900, John Smith"
Output: [{"text":"+79997899900","entity_type":"PHONE_NUMBER"},{"text":"John Smith","entity_type":"PERSON"}]

Input: "how are you?"
Output: []`

// Classifier calls a local LLM to detect personal data.
type Classifier struct {
	url   string
	model string
	score float64
	http  *http.Client
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithScore sets the confidence attached to every LLM finding (default 0.8).
func WithScore(s float64) Option {
	return func(c *Classifier) { c.score = s }
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.http.Timeout = d }
}

// New creates a Classifier.
// baseURL is the Ollama (or any OpenAI-compatible) server, e.g. "http://ollama:11434".
func New(baseURL, model string, opts ...Option) *Classifier {
	c := &Classifier{
		url:   strings.TrimRight(baseURL, "/") + "/v1/chat/completions",
		model: model,
		score: 0.8,
		http:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	// Hint to disable chain-of-thought (Qwen3 and some others support this).
	// stripThinkBlock handles models that ignore it.
	Think bool `json:"think"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			Reasoning        string `json:"reasoning"`         // Qwen3 via Ollama
			ReasoningContent string `json:"reasoning_content"` // Qwen3 direct API
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type finding struct {
	Text       string `json:"text"`
	EntityType string `json:"entity_type"`
}

// Classify sends text to the LLM and returns a span for every occurrence of
// each reported value. It is safe for concurrent use.
func (c *Classifier) Classify(ctx context.Context, text string) ([]sanitize.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	reqBody := openAIRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			// /no_think is Qwen3's control token to skip thinking.
			{Role: "user", Content: "Text to analyze:\n" + text + "\n/no_think"},
		},
		Temperature: 0,
		MaxTokens:   4096,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("llmclassifier: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmclassifier: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llmclassifier: LLM unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("llmclassifier: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var oaiResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return nil, fmt.Errorf("llmclassifier: decode response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("llmclassifier: response has no choices")
	}

	choice := oaiResp.Choices[0]
	if choice.FinishReason == "length" {
		slog.Warn("llmclassifier: response truncated by token limit", "model", c.model)
	}

	// Some reasoning models leave content empty and put the answer in the
	// reasoning field.
	raw := strings.TrimSpace(choice.Message.Content)
	if raw == "" {
		raw = strings.TrimSpace(choice.Message.Reasoning)
		if raw == "" {
			raw = strings.TrimSpace(choice.Message.ReasoningContent)
		}
	}
	content := extractJSONArray(stripCodeFence(stripThinkBlock(raw)))

	var found []finding
	if err := json.Unmarshal([]byte(content), &found); err != nil {
		return nil, fmt.Errorf("llmclassifier: could not parse model output %q: %w", truncate(content, 200), err)
	}
	spans := locate(text, found, c.score)
	slog.Debug("llmclassifier: classified", "findings", len(found), "spans", len(spans))
	return spans, nil
}

// locate finds every whole-token occurrence of each finding in text.
func locate(text string, found []finding, score float64) []sanitize.Span {
	var spans []sanitize.Span
	for _, f := range found {
		val := strings.TrimSpace(f.Text)
		label := strings.ToUpper(strings.TrimSpace(f.EntityType))
		if val == "" || label == "" {
			continue
		}
		start := 0
		for {
			idx := strings.Index(text[start:], val)
			if idx < 0 {
				break
			}
			abs := start + idx
			end := abs + len(val)
			start = end
			if isInsideToken(text, abs, end) {
				continue
			}
			spans = append(spans, sanitize.Span{Start: abs, End: end, Label: label, Score: score})
		}
	}
	return spans
}

// isInsideToken reports whether span [start,end) sits inside a larger word.
// For example "sd@yandex.ru" inside "asd@yandex.ru" returns true.
func isInsideToken(text string, start, end int) bool {
	if start > 0 && !isBoundary(text[start-1]) {
		return true
	}
	if end < len(text) && !isBoundary(text[end]) {
		return true
	}
	return false
}

func isBoundary(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '<', '>', ',', ';', ':', '.', '!', '?', '(', ')', '[', ']', '{', '}', '"', '\'', '`':
		return true
	}
	return false
}

// extractJSONArray returns the outermost [...] substring of s, or s itself.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return s
	}
	end := strings.LastIndex(s, "]")
	if end < start {
		return s
	}
	return s[start : end+1]
}

// stripThinkBlock removes a <think>...</think> block emitted before the answer.
func stripThinkBlock(s string) string {
	const open, close = "<think>", "</think>"
	start := strings.Index(s, open)
	if start < 0 {
		return s
	}
	end := strings.Index(s, close)
	if end < 0 {
		return strings.TrimSpace(s[:start])
	}
	return strings.TrimSpace(s[:start] + s[end+len(close):])
}

// stripCodeFence removes ```json ... ``` or ``` ... ``` wrappers.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
