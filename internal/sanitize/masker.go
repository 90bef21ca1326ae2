package sanitize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
	"github.com/gonkalabs/pii-masker-go/internal/metrics"
)

// Masker rewrites conversation payloads so that detected PII is replaced
// either by generic <ENTITY_TYPE> tags or by the policy's fixed literals.
//
// It is created once at startup and shared by all request handlers.
type Masker struct {
	detector Detector
	policy   *Policy
	entities []string
	metrics  *metrics.Metrics
}

// MaskerOption customises a Masker.
type MaskerOption func(*Masker)

// WithEntities restricts detection to the given entity types instead of
// CanonicalEntities.
func WithEntities(entities []string) MaskerOption {
	return func(m *Masker) { m.entities = entities }
}

// WithMetrics records detection counts and latency on mt.
func WithMetrics(mt *metrics.Metrics) MaskerOption {
	return func(m *Masker) { m.metrics = mt }
}

// NewMasker creates a Masker. A nil policy uses DefaultPolicy.
func NewMasker(d Detector, policy *Policy, opts ...MaskerOption) *Masker {
	if policy == nil {
		policy = DefaultPolicy()
	}
	m := &Masker{detector: d, policy: policy, entities: CanonicalEntities}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Mask parses body, masks every message and returns the re-encoded payload.
// Bodies of an unrecognized shape come back byte-for-byte unchanged.
func (m *Masker) Mask(ctx context.Context, body []byte, mode Mode) ([]byte, error) {
	p, err := ParsePayload(body)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "parse_payload", err)
	}
	if p.Shape() == ShapeUnrecognized {
		slog.Debug("sanitize: unrecognized payload shape, passing through")
		return body, nil
	}
	if err := m.MaskPayload(ctx, p, mode); err != nil {
		return nil, err
	}
	out, err := p.Marshal()
	if err != nil {
		return nil, apperr.New(apperr.Internal, "marshal_payload", err)
	}
	return out, nil
}

// MaskPayload rewrites the content of every message in p in place. Either
// every message is processed or an error is returned; callers must not use
// p after a failure.
func (m *Masker) MaskPayload(ctx context.Context, p Payload, mode Mode) error {
	for _, msg := range p.Messages() {
		err := msg.RewriteText(func(text string) (string, error) {
			return m.MaskText(ctx, text, mode)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MaskText masks a single string. Empty and whitespace-only text is returned
// unchanged without consulting the detector.
func (m *Masker) MaskText(ctx context.Context, text string, mode Mode) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	start := time.Now()
	entities, err := m.detector.Analyze(ctx, text, m.entities)
	m.metrics.ObserveDetection(time.Since(start))
	if err != nil {
		return "", apperr.New(apperr.Engine, "analyze", err)
	}
	if len(entities) == 0 {
		return text, nil
	}

	ops := m.policy.Operators(mode, entities)
	for _, e := range entities {
		if _, ok := ops[e.Type]; ok {
			m.metrics.RecordEntity(e.Type, mode.String())
		}
	}
	slog.Debug("sanitize: masked text", "entities", len(entities), "mode", mode.String())
	return Anonymize(text, entities, ops), nil
}

// Entities returns the entity types the masker restricts detection to.
func (m *Masker) Entities() []string { return m.entities }
