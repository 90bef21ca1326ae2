package sanitize

import (
	"context"
	"strings"
)

// literalClassifier reports every occurrence of each key with the mapped
// label. It stands in for a NER engine in tests.
func literalClassifier(values map[string]string, score float64) Classifier {
	return ClassifierFunc(func(_ context.Context, text string) ([]Span, error) {
		var spans []Span
		for val, label := range values {
			from := 0
			for {
				idx := strings.Index(text[from:], val)
				if idx < 0 {
					break
				}
				start := from + idx
				spans = append(spans, Span{Start: start, End: start + len(val), Label: label, Score: score})
				from = start + len(val)
			}
		}
		return spans, nil
	})
}

// staticDetector returns fixed entities regardless of input.
type staticDetector struct {
	entities []Entity
	err      error
	calls    int
}

func (d *staticDetector) Analyze(_ context.Context, _ string, _ []string) ([]Entity, error) {
	d.calls++
	return d.entities, d.err
}
