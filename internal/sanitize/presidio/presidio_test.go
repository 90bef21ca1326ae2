package presidio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ConvertsCharacterOffsets(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// "Zoë" occupies characters 6..9 of "Hello Zoë!"
		_, _ = w.Write([]byte(`[{"entity_type":"PERSON","start":6,"end":9,"score":0.85}]`))
	}))
	defer srv.Close()

	text := "Hello Zoë!"
	c := New(srv.URL+"/", WithLanguage("de"), WithEntities([]string{"PERSON"}))
	spans, err := c.Classify(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "de", got.Language)
	assert.Equal(t, []string{"PERSON"}, got.Entities)
	assert.Equal(t, text, got.Text)

	require.Len(t, spans, 1)
	assert.Equal(t, "Zoë", text[spans[0].Start:spans[0].End])
	assert.Equal(t, "PERSON", spans[0].Label)
	assert.InDelta(t, 0.85, spans[0].Score, 1e-9)
}

func TestClassify_Errors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := New(srv.URL).Classify(context.Background(), "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
		assert.Contains(t, err.Error(), "model not loaded")
	})

	t.Run("decode", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"}`))
		}))
		defer srv.Close()

		_, err := New(srv.URL).Classify(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := New(url, WithTimeout(time.Second)).Classify(context.Background(), "x")
		assert.Error(t, err)
	})
}
