package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/youtube-reviewer/internal/analysis"
	"github.com/tjfontaine/youtube-reviewer/internal/captions"
	"github.com/tjfontaine/youtube-reviewer/internal/config"
	"github.com/tjfontaine/youtube-reviewer/internal/phases"
	"github.com/tjfontaine/youtube-reviewer/internal/pkg/safehttp"
	"github.com/tjfontaine/youtube-reviewer/internal/storage"
	"github.com/tjfontaine/youtube-reviewer/internal/storage/memory"
	"github.com/tjfontaine/youtube-reviewer/internal/storage/sqldb"
	"github.com/tjfontaine/youtube-reviewer/internal/youtube"
)

// app is the wired set of components behind both the server and the
// analyze command.
type app struct {
	store    storage.RecordStore
	registry *phases.Registry
}

// appDeps lets tests replace the network-facing pieces.
type appDeps struct {
	transcripts youtube.TranscriptSource
	analyzer    analysis.Analyzer
}

func newApp(cfg *config.Config, logger *slog.Logger, deps appDeps) (*app, error) {
	store, err := openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	cache, err := captions.New(store, logger,
		captions.WithTTL(cfg.Cache.TTL),
		captions.WithMemoryEntries(cfg.Cache.MemoryEntries),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	source := deps.transcripts
	if source == nil {
		source = youtube.NewClient(youtube.WithHTTPClient(&http.Client{
			Transport: otelhttp.NewTransport(safehttp.NewTransport()),
			Timeout:   cfg.Transcript.Timeout,
		}))
	}
	fetcher := phases.NewFetcher(source, cache, phases.FetcherConfig{
		Languages:     cfg.Transcript.Languages,
		Timeout:       cfg.Transcript.Timeout,
		MaxConcurrent: cfg.Transcript.MaxConcurrentFetches,
	}, logger)

	analyzer := deps.analyzer
	if analyzer == nil {
		analyzer, err = analysis.New(analysis.Config{
			Provider:        cfg.Analysis.Provider,
			APIKey:          cfg.Analysis.APIKey,
			BaseURL:         cfg.Analysis.BaseURL,
			Model:           cfg.Analysis.Model,
			Deployment:      cfg.Analysis.Deployment,
			APIVersion:      cfg.Analysis.APIVersion,
			MaxOutputTokens: cfg.Analysis.MaxOutputTokens,
			Timeout:         cfg.Analysis.Timeout,
		}, nil, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	budget, err := analysis.NewBudget(cfg.Analysis.Model, cfg.Analysis.MaxPromptTokens, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("token budget: %w", err)
	}

	registry, err := phases.NewRegistry(phases.Deps{
		Analyzer: analyzer,
		Cache:    cache,
		Fetcher:  fetcher,
		Budget:   budget,
		Logger:   logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{store: store, registry: registry}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(cfg config.StorageConfig) (storage.RecordStore, error) {
	switch cfg.Type {
	case "sqlite":
		store, err := sqldb.NewSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := sqldb.New(sqldb.Config{Driver: "postgres", DSN: cfg.Database.DSN})
		if err != nil {
			return nil, fmt.Errorf("open postgres cache: %w", err)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, errors.New("unknown storage type " + cfg.Type)
	}
}
