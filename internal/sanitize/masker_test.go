package sanitize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonkalabs/pii-masker-go/internal/apperr"
	"github.com/gonkalabs/pii-masker-go/internal/metrics"
)

func newTestMasker(values map[string]string, opts ...MaskerOption) *Masker {
	a := NewAnalyzer([]Classifier{literalClassifier(values, 0.9)}, nil)
	return NewMasker(a, nil, opts...)
}

var contactValues = map[string]string{
	"John Smith":       "PER",
	"john@example.com": "EMAIL_ADDRESS",
	"555-123-4567":     "PHONE_NUMBER",
}

func TestMasker_Generic(t *testing.T) {
	m := newTestMasker(contactValues)
	body := `{"messages":[{"role":"user","content":"Hi, I'm John Smith. Email john@example.com, phone 555-123-4567."}]}`

	out, err := m.Mask(context.Background(), []byte(body), ModeGeneric)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"role":"user","content":"Hi, I'm <PERSON>. Email <EMAIL_ADDRESS>, phone <PHONE_NUMBER>."}]}`, string(out))
}

func TestMasker_FixedChoices(t *testing.T) {
	m := newTestMasker(contactValues)
	body := `{"choices":[{"message":{"role":"assistant","content":"Contact john@example.com"}}]}`

	out, err := m.Mask(context.Background(), []byte(body), ModeFixed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"choices":[{"message":{"role":"assistant","content":"Contact example@gmail.com"}}]}`, string(out))
}

func TestMasker_FixedLeavesTypesWithoutRule(t *testing.T) {
	policy := NewPolicy(map[string]Rule{"PERSON": {Kind: RuleFixed, Value: "ABC"}})
	a := NewAnalyzer([]Classifier{literalClassifier(contactValues, 0.9)}, nil)
	m := NewMasker(a, policy)

	got, err := m.MaskText(context.Background(), "John Smith <john@example.com>", ModeFixed)
	require.NoError(t, err)
	assert.Equal(t, "ABC <john@example.com>", got)
}

func TestMasker_WhitespaceSkipsDetector(t *testing.T) {
	d := &staticDetector{entities: []Entity{{Type: "PERSON", Start: 0, End: 1}}}
	m := NewMasker(d, nil)
	body := `{"messages":[{"role":"user","content":"   "},{"role":"user","content":""}]}`

	for _, mode := range []Mode{ModeGeneric, ModeFixed} {
		out, err := m.Mask(context.Background(), []byte(body), mode)
		require.NoError(t, err, mode.String())
		assert.Equal(t, body, string(out), mode.String())
	}
	assert.Zero(t, d.calls)
}

func TestMasker_UnrecognizedPassthrough(t *testing.T) {
	d := &staticDetector{}
	m := NewMasker(d, nil)
	for _, body := range []string{`{"foo":"bar"}`, `{"choices":[]}`, `[1, 2, 3]`, `{"messages": []}`} {
		out, err := m.Mask(context.Background(), []byte(body), ModeGeneric)
		require.NoError(t, err, body)
		assert.Equal(t, body, string(out))
	}
	assert.Zero(t, d.calls)
}

func TestMasker_InvalidJSON(t *testing.T) {
	m := NewMasker(&staticDetector{}, nil)
	_, err := m.Mask(context.Background(), []byte(`{"messages": [`), ModeGeneric)
	require.Error(t, err)
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
}

func TestMasker_EngineFailure(t *testing.T) {
	m := NewMasker(&staticDetector{err: errors.New("engine down")}, nil)
	_, err := m.Mask(context.Background(), []byte(`{"messages":[{"role":"user","content":"hello"}]}`), ModeGeneric)
	require.Error(t, err)
	assert.Equal(t, apperr.Engine, apperr.KindOf(err))
	assert.Equal(t, "analyze", apperr.OpOf(err))
}

func TestMasker_RecordsMetrics(t *testing.T) {
	mt := metrics.New()
	m := newTestMasker(contactValues, WithMetrics(mt))

	_, err := m.MaskText(context.Background(), "John Smith and John Smith", ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, 2.0, counterValue(t, mt, "piimask_entities_masked_total", "PERSON"))
}

// counterValue sums the samples of family whose labels include value.
func counterValue(t *testing.T, mt *metrics.Metrics, family, value string) float64 {
	t.Helper()
	mfs, err := mt.Registry().Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestMasker_WithEntities(t *testing.T) {
	m := newTestMasker(contactValues, WithEntities([]string{"EMAIL_ADDRESS"}))
	got, err := m.MaskText(context.Background(), "John Smith john@example.com", ModeGeneric)
	require.NoError(t, err)
	assert.Equal(t, "John Smith <EMAIL_ADDRESS>", got)
	assert.Equal(t, []string{"EMAIL_ADDRESS"}, m.Entities())
}

func TestMasker_ConcurrentRequestsAreIsolated(t *testing.T) {
	names := map[string]string{}
	for i := range 16 {
		names[fmt.Sprintf("Person%02d", i)] = "PER"
	}
	m := newTestMasker(names)

	var wg sync.WaitGroup
	results := make([]string, 16)
	errs := make([]error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"messages":[{"role":"user","content":"req %d from Person%02d"}]}`, i, i)
			out, err := m.Mask(context.Background(), []byte(body), ModeGeneric)
			results[i], errs[i] = string(out), err
		}()
	}
	wg.Wait()

	for i := range 16 {
		require.NoError(t, errs[i])
		assert.JSONEq(t, fmt.Sprintf(`{"messages":[{"role":"user","content":"req %d from <PERSON>"}]}`, i), results[i])
	}
}
