package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gonkalabs/pii-masker-go/internal/api"
	"github.com/gonkalabs/pii-masker-go/internal/config"
	"github.com/gonkalabs/pii-masker-go/internal/imageredact"
	"github.com/gonkalabs/pii-masker-go/internal/metrics"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize/llmclassifier"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize/ner"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize/pattern"
	"github.com/gonkalabs/pii-masker-go/internal/sanitize/presidio"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	mapping, err := sanitize.LoadLabelMapping(cfg.EntityMappingFile)
	if err != nil {
		slog.Error("entity mapping error", "err", err)
		os.Exit(1)
	}
	policy, err := sanitize.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		slog.Error("policy error", "err", err)
		os.Exit(1)
	}

	entities, err := resolveEntities(cfg.Entities)
	if err != nil {
		slog.Error("entity list error", "err", err)
		os.Exit(1)
	}

	classifiers, err := buildClassifiers(cfg, entities)
	if err != nil {
		slog.Error("detector error", "err", err)
		os.Exit(1)
	}

	m := metrics.New()
	analyzer := sanitize.NewAnalyzer(classifiers, mapping, sanitize.WithMinScore(cfg.MinScore))
	masker := sanitize.NewMasker(analyzer, policy,
		sanitize.WithEntities(entities),
		sanitize.WithMetrics(m),
	)

	store, err := imageredact.NewStore(cfg.OutputDir)
	if err != nil {
		slog.Error("output directory error", "dir", cfg.OutputDir, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	redactor := imageredact.New(analyzer, imageredact.NewTesseract(cfg.TesseractCmd, cfg.OCRLang), store,
		imageredact.WithFetcher(imageredact.NewFetcher(cfg.FetchTimeout, cfg.MaxImageBytes)),
		imageredact.WithEntities(masker.Entities()),
		imageredact.WithMaxBytes(cfg.MaxImageBytes),
		imageredact.WithOCRTimeout(cfg.OCRTimeout),
		imageredact.WithMetrics(m),
	)

	handler := api.New(masker, redactor, store, m, api.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		MaxImageBytes: cfg.MaxImageBytes,
		DetectTimeout: cfg.DetectTimeout,
		ImageTimeout:  cfg.FetchTimeout + cfg.OCRTimeout + cfg.DetectTimeout,
	})

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler.Middleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()

		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("starting masking server",
		"addr", cfg.ListenAddr,
		"detectors", cfg.Detectors,
		"entities", len(masker.Entities()),
		"images", redactor.String(),
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// buildClassifiers creates one classifier per entry in DETECTORS, in order.
func buildClassifiers(cfg *config.Cfg, entities []string) ([]sanitize.Classifier, error) {
	var classifiers []sanitize.Classifier
	add := func(c sanitize.Classifier) {
		classifiers = append(classifiers, sanitize.Limit(c, cfg.EngineConcurrency))
	}

	for _, name := range cfg.Detectors {
		switch name {
		case config.DetectorPattern:
			add(pattern.New(entities...))
			slog.Info("detector enabled", "name", name)
		case config.DetectorNER:
			c, err := ner.New(cfg.NERURLs, ner.WithTimeout(cfg.DetectTimeout))
			if err != nil {
				return nil, err
			}
			add(c)
			slog.Info("detector enabled", "name", name, "urls", cfg.NERURLs)
		case config.DetectorPresidio:
			add(presidio.New(cfg.PresidioURL,
				presidio.WithLanguage(cfg.Language),
				presidio.WithEntities(entities),
				presidio.WithTimeout(cfg.DetectTimeout),
			))
			slog.Info("detector enabled", "name", name, "url", cfg.PresidioURL)
		case config.DetectorLLM:
			add(llmclassifier.New(cfg.LLMURL, cfg.LLMModel, llmclassifier.WithTimeout(cfg.DetectTimeout)))
			slog.Info("detector enabled", "name", name, "url", cfg.LLMURL, "model", cfg.LLMModel)
		}
	}
	return classifiers, nil
}

// resolveEntities validates ENTITIES against the canonical set. An empty
// list selects every canonical type.
func resolveEntities(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return sanitize.CanonicalEntities, nil
	}
	for _, e := range requested {
		if !slices.Contains(sanitize.CanonicalEntities, e) {
			return nil, fmt.Errorf("ENTITIES: unknown entity type %q", e)
		}
	}
	return requested, nil
}
