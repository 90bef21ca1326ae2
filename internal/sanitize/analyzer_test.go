package sanitize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzer_MapsAndFilters(t *testing.T) {
	text := "Dr. Smith at Mercy Hospital met Acme Corp"
	a := NewAnalyzer([]Classifier{
		literalClassifier(map[string]string{
			"Smith":          "B-STAFF",
			"Mercy Hospital": "HOSP",
			"Acme Corp":      "ORG",
			"met":            "O",
		}, 0.9),
	}, nil)

	got, err := a.Analyze(context.Background(), text, CanonicalEntities)
	require.NoError(t, err)
	require.Len(t, got, 2, "ORGANIZATION is outside the canonical set and O is ignored")

	assert.Equal(t, "PERSON", got[0].Type)
	assert.Equal(t, "Smith", text[got[0].Start:got[0].End])
	assert.Equal(t, "LOCATION", got[1].Type)
	assert.Equal(t, "Mercy Hospital", text[got[1].Start:got[1].End])
}

func TestAnalyzer_ExpandsToWordBoundaries(t *testing.T) {
	text := "Patient Johnson arrived"
	a := NewAnalyzer([]Classifier{ClassifierFunc(func(context.Context, string) ([]Span, error) {
		// "hns" sits inside "Johnson"
		return []Span{{Start: 10, End: 13, Label: "PER", Score: 0.8}}, nil
	})}, nil)

	got, err := a.Analyze(context.Background(), text, CanonicalEntities)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Johnson", text[got[0].Start:got[0].End])
}

func TestAnalyzer_MaxAggregationAcrossClassifiers(t *testing.T) {
	text := "call 212-555-0100 now"
	low := literalClassifier(map[string]string{"212-555-0100": "US_BANK_NUMBER"}, 0.05)
	high := literalClassifier(map[string]string{"212-555-0100": "PHONE_NUMBER"}, 0.75)

	got, err := NewAnalyzer([]Classifier{low, high}, nil).Analyze(context.Background(), text, CanonicalEntities)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PHONE_NUMBER", got[0].Type)
}

func TestAnalyzer_PropagatesClassifierError(t *testing.T) {
	boom := errors.New("model crashed")
	a := NewAnalyzer([]Classifier{
		literalClassifier(map[string]string{"x": "PER"}, 1),
		ClassifierFunc(func(context.Context, string) ([]Span, error) { return nil, boom }),
	}, nil)

	got, err := a.Analyze(context.Background(), "x", CanonicalEntities)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}

func TestAnalyzer_DropsInvalidAndLowScoreSpans(t *testing.T) {
	text := "hello world"
	a := NewAnalyzer([]Classifier{ClassifierFunc(func(context.Context, string) ([]Span, error) {
		return []Span{
			{Start: -1, End: 3, Label: "PER", Score: 1},
			{Start: 6, End: 99, Label: "PER", Score: 1},
			{Start: 5, End: 5, Label: "PER", Score: 1},
			{Start: 0, End: 5, Label: "PER", Score: 0.1},
			{Start: 6, End: 11, Label: "LOC", Score: 0.9},
		}, nil
	})}, nil, WithMinScore(0.5))

	got, err := a.Analyze(context.Background(), text, CanonicalEntities)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LOCATION", got[0].Type)
}

func TestAnalyzer_RequestedEntitiesOnly(t *testing.T) {
	a := NewAnalyzer([]Classifier{literalClassifier(map[string]string{
		"Ann":   "PERSON",
		"Paris": "LOCATION",
	}, 1)}, nil)

	got, err := a.Analyze(context.Background(), "Ann lives in Paris", []string{"LOCATION"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LOCATION", got[0].Type)
}

func TestAnalyzer_NoClassifiers(t *testing.T) {
	got, err := NewAnalyzer(nil, nil).Analyze(context.Background(), "Ann", CanonicalEntities)
	require.NoError(t, err)
	assert.Empty(t, got)
}
