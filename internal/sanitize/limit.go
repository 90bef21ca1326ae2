package sanitize

import "context"

type limited struct {
	next Classifier
	sem  chan struct{}
}

// Limit bounds the number of concurrent Classify calls reaching c to n.
// Use n = 1 for engines that are not safe for concurrent invocation.
// n <= 0 returns c unchanged.
func Limit(c Classifier, n int) Classifier {
	if n <= 0 {
		return c
	}
	return &limited{next: c, sem: make(chan struct{}, n)}
}

func (l *limited) Classify(ctx context.Context, text string) ([]Span, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.next.Classify(ctx, text)
}
