package sanitize

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Analyzer is the detection adapter. It fans text out to every classifier,
// maps native labels to canonical entity types, widens spans to word
// boundaries and keeps the highest-scoring entity among overlaps.
//
// An Analyzer is immutable after construction and safe for concurrent use
// as long as its classifiers are.
type Analyzer struct {
	classifiers []Classifier
	mapping     *LabelMapping
	minScore    float64
}

// AnalyzerOption customises an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithMinScore drops entities scoring below s.
func WithMinScore(s float64) AnalyzerOption {
	return func(a *Analyzer) { a.minScore = s }
}

// NewAnalyzer creates an Analyzer over an ordered list of classifiers.
// A nil mapping uses DefaultLabelMapping.
func NewAnalyzer(classifiers []Classifier, mapping *LabelMapping, opts ...AnalyzerOption) *Analyzer {
	if mapping == nil {
		mapping = DefaultLabelMapping()
	}
	a := &Analyzer{classifiers: classifiers, mapping: mapping}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze runs all classifiers concurrently and returns non-overlapping
// entities of the requested types, ordered by position. A failure in any
// classifier fails the whole call.
func (a *Analyzer) Analyze(ctx context.Context, text string, entities []string) ([]Entity, error) {
	if len(a.classifiers) == 0 || text == "" {
		return nil, nil
	}

	results := make([][]Span, len(a.classifiers))
	g, gctx := errgroup.WithContext(ctx)
	for i, clf := range a.classifiers {
		g.Go(func() error {
			spans, err := clf.Classify(gctx, text)
			if err != nil {
				return err
			}
			results[i] = spans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(entities))
	for _, e := range entities {
		wanted[e] = true
	}

	var found []Entity
	for _, spans := range results {
		for _, sp := range spans {
			typ, ok := a.mapping.Resolve(sp.Label)
			if !ok || (len(wanted) > 0 && !wanted[typ]) {
				continue
			}
			if sp.Score < a.minScore {
				continue
			}
			e := Entity{Type: typ, Start: sp.Start, End: sp.End, Score: sp.Score}
			if !validEntity(text, e) {
				slog.Debug("sanitize: dropping out-of-range span", "label", sp.Label, "start", sp.Start, "end", sp.End)
				continue
			}
			found = append(found, expandToWords(text, e))
		}
	}
	return aggregateMax(found), nil
}
