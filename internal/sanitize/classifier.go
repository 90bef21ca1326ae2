package sanitize

import (
	"context"
	"unicode/utf8"
)

// Span describes a raw detection reported by a Classifier.
type Span struct {
	Start int     // byte offset of the first character (UTF-8)
	End   int     // byte offset one past the last character
	Label string  // engine-native label, e.g. "PER", "B-PATIENT", "EMAIL_ADDRESS"
	Score float64 // confidence in [0,1]; 1.0 for rule-based detectors
}

// Classifier detects sensitive spans in a text string.
// Implementations must be safe for concurrent use; wrap them with Limit
// when the underlying engine is not.
type Classifier interface {
	Classify(ctx context.Context, text string) ([]Span, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) ([]Span, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// Entity is a detection after label mapping, alignment and aggregation.
type Entity struct {
	Type  string  // canonical entity type, e.g. "PERSON"
	Start int     // byte offset
	End   int     // byte offset, exclusive
	Score float64
}

// Detector finds canonical entities in text. *Analyzer is the production
// implementation.
type Detector interface {
	Analyze(ctx context.Context, text string, entities []string) ([]Entity, error)
}

// RuneOffsets converts character (code point) offsets, as reported by
// Python-based engines, into byte offsets into text.
type RuneOffsets struct {
	bytes []int // bytes[i] is the byte offset of rune i; last entry is len(text)
}

// NewRuneOffsets indexes text for offset conversion.
func NewRuneOffsets(text string) *RuneOffsets {
	idx := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		idx = append(idx, i)
	}
	idx = append(idx, len(text))
	return &RuneOffsets{bytes: idx}
}

// Byte returns the byte offset of character i, clamped to the text bounds.
func (r *RuneOffsets) Byte(i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(r.bytes) {
		return r.bytes[len(r.bytes)-1]
	}
	return r.bytes[i]
}
