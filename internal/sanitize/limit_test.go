package sanitize

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_SerializesCalls(t *testing.T) {
	var active, peak atomic.Int32
	slow := ClassifierFunc(func(context.Context, string) ([]Span, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	})
	c := Limit(slow, 1)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Classify(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}

func TestLimit_HonoursContext(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := ClassifierFunc(func(context.Context, string) ([]Span, error) {
		close(entered)
		<-release
		return nil, nil
	})
	c := Limit(blocking, 1)

	done := make(chan struct{})
	go func() {
		_, _ = c.Classify(context.Background(), "first")
		close(done)
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Classify(ctx, "second")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestLimit_NonPositiveIsPassthrough(t *testing.T) {
	inner := ClassifierFunc(func(context.Context, string) ([]Span, error) { return nil, nil })
	c := Limit(inner, 0)
	_, isLimited := c.(*limited)
	assert.False(t, isLimited)
}
