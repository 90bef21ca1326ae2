package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Detection engine names accepted in DETECTORS.
const (
	DetectorPattern  = "pattern"
	DetectorNER      = "ner"
	DetectorPresidio = "presidio"
	DetectorLLM      = "llm"
)

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	// Server
	ListenAddr    string // PORT=8000 -> ":8000"
	LogLevel      slog.Level
	PublicBaseURL string // PUBLIC_BASE_URL; empty = derived from each request
	MaxBodyBytes  int64  // MAX_BODY_BYTES, applies to JSON endpoints

	// Detection
	Detectors         []string // DETECTORS=pattern,ner,presidio,llm
	NERURLs           []string // NER_URLS=http://pii-ner:8001,http://pii-ner-2:8001
	PresidioURL       string   // PRESIDIO_URL=http://presidio-analyzer:3000
	LLMURL            string   // LLM_URL=http://ollama:11434
	LLMModel          string   // LLM_MODEL=qwen3:4b
	Language          string   // LANGUAGE=en
	EntityMappingFile string   // ENTITY_MAPPING_FILE, YAML label mapping overrides
	PolicyFile        string   // POLICY_FILE, YAML replacement overrides
	Entities          []string // ENTITIES=PERSON,EMAIL_ADDRESS; empty = every canonical type
	MinScore          float64  // MIN_SCORE=0
	EngineConcurrency int      // ENGINE_CONCURRENCY=0 (0 = unlimited)
	DetectTimeout     time.Duration

	// Images
	TesseractCmd  string // TESSERACT_CMD=tesseract
	OCRLang       string // OCR_LANG=eng
	OCRTimeout    time.Duration
	FetchTimeout  time.Duration
	OutputDir     string // OUTPUT_DIR=output
	MaxImageBytes int64  // MAX_IMAGE_BYTES
}

// Load reads .env (if present) then environment variables and returns Cfg.
func Load() (*Cfg, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	port := env("PORT", "8000")

	level, err := parseLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	detectors, err := parseDetectors(env("DETECTORS", DetectorPattern))
	if err != nil {
		return nil, err
	}

	c := &Cfg{
		ListenAddr:        ":" + port,
		LogLevel:          level,
		PublicBaseURL:     strings.TrimRight(env("PUBLIC_BASE_URL", ""), "/"),
		Detectors:         detectors,
		NERURLs:           splitList(env("NER_URLS", "http://pii-ner:8001")),
		PresidioURL:       env("PRESIDIO_URL", "http://presidio-analyzer:3000"),
		LLMURL:            env("LLM_URL", "http://ollama:11434"),
		LLMModel:          env("LLM_MODEL", "qwen3:4b"),
		Language:          env("LANGUAGE", "en"),
		Entities:          splitList(strings.ToUpper(env("ENTITIES", ""))),
		EntityMappingFile: env("ENTITY_MAPPING_FILE", ""),
		PolicyFile:        env("POLICY_FILE", ""),
		TesseractCmd:      env("TESSERACT_CMD", "tesseract"),
		OCRLang:           env("OCR_LANG", "eng"),
		OutputDir:         env("OUTPUT_DIR", "output"),
	}

	if c.MaxBodyBytes, err = envInt64("MAX_BODY_BYTES", 10<<20); err != nil {
		return nil, err
	}
	if c.MaxImageBytes, err = envInt64("MAX_IMAGE_BYTES", 20<<20); err != nil {
		return nil, err
	}
	concurrency, err := envInt64("ENGINE_CONCURRENCY", 0)
	if err != nil {
		return nil, err
	}
	c.EngineConcurrency = int(concurrency)
	if c.MinScore, err = envFloat("MIN_SCORE", 0); err != nil {
		return nil, err
	}
	if c.DetectTimeout, err = envDuration("DETECT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.OCRTimeout, err = envDuration("OCR_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if c.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	return c, nil
}

// env returns the trimmed value of key, or def when unset or blank.
func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) (int64, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: expected a non-negative integer, got %q", key, raw)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: expected a number, got %q", key, raw)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := env(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: expected a positive duration like 30s, got %q", key, raw)
	}
	return d, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

// parseDetectors validates the DETECTORS list, dropping duplicates.
func parseDetectors(raw string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, d := range splitList(strings.ToLower(raw)) {
		switch d {
		case DetectorPattern, DetectorNER, DetectorPresidio, DetectorLLM:
		default:
			return nil, fmt.Errorf("DETECTORS: unknown detector %q", d)
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("DETECTORS: at least one detector is required")
	}
	return out, nil
}

// splitList splits a comma separated list, trimming blanks.
func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
