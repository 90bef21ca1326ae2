package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "PUBLIC_BASE_URL", "MAX_BODY_BYTES", "DETECTORS", "NER_URLS",
	"PRESIDIO_URL", "LLM_URL", "LLM_MODEL", "LANGUAGE", "ENTITY_MAPPING_FILE", "POLICY_FILE",
	"MIN_SCORE", "ENTITIES", "ENGINE_CONCURRENCY", "DETECT_TIMEOUT", "TESSERACT_CMD", "OCR_LANG",
	"OCR_TIMEOUT", "FETCH_TIMEOUT", "OUTPUT_DIR", "MAX_IMAGE_BYTES",
}

// clearEnv blanks every variable Load reads; blank counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir()) // keep a stray .env out of the test
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8000", c.ListenAddr)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.Equal(t, []string{DetectorPattern}, c.Detectors)
	assert.Equal(t, []string{"http://pii-ner:8001"}, c.NERURLs)
	assert.Equal(t, "en", c.Language)
	assert.Equal(t, "output", c.OutputDir)
	assert.Equal(t, "tesseract", c.TesseractCmd)
	assert.Equal(t, "eng", c.OCRLang)
	assert.Equal(t, 30*time.Second, c.DetectTimeout)
	assert.Equal(t, int64(10<<20), c.MaxBodyBytes)
	assert.Zero(t, c.EngineConcurrency)
	assert.Empty(t, c.PublicBaseURL)
	assert.Empty(t, c.Entities)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", " 9090 ")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DETECTORS", "NER, pattern,ner")
	t.Setenv("NER_URLS", "http://a:1, ,http://b:2")
	t.Setenv("PUBLIC_BASE_URL", "https://pii.example.com/")
	t.Setenv("DETECT_TIMEOUT", "5s")
	t.Setenv("ENGINE_CONCURRENCY", "1")
	t.Setenv("MIN_SCORE", "0.35")
	t.Setenv("ENTITIES", "person, email_address")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.ListenAddr)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.Equal(t, []string{DetectorNER, DetectorPattern}, c.Detectors)
	assert.Equal(t, []string{"http://a:1", "http://b:2"}, c.NERURLs)
	assert.Equal(t, "https://pii.example.com", c.PublicBaseURL)
	assert.Equal(t, 5*time.Second, c.DetectTimeout)
	assert.Equal(t, 1, c.EngineConcurrency)
	assert.InDelta(t, 0.35, c.MinScore, 1e-9)
	assert.Equal(t, []string{"PERSON", "EMAIL_ADDRESS"}, c.Entities)
}

func TestLoad_Invalid(t *testing.T) {
	for key, val := range map[string]string{
		"DETECTORS":       "pattern,spacy",
		"LOG_LEVEL":       "chatty",
		"DETECT_TIMEOUT":  "soon",
		"MAX_BODY_BYTES":  "-1",
		"MIN_SCORE":       "high",
		"FETCH_TIMEOUT":   "0s",
		"MAX_IMAGE_BYTES": "lots",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
