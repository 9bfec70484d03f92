package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/somatic-tier-classifier/internal/config"
	"github.com/somatic-tier-classifier/internal/domain"
	"github.com/somatic-tier-classifier/internal/evidence"
	"github.com/somatic-tier-classifier/internal/service"
	"github.com/somatic-tier-classifier/internal/store"
	"github.com/somatic-tier-classifier/internal/tiering"
	"github.com/somatic-tier-classifier/internal/workflow"
	"github.com/somatic-tier-classifier/pkg/external"
)

// app holds the wired components shared by the subcommands.
type app struct {
	config   *domain.Config
	logger   *logrus.Logger
	store    domain.ResultStore
	pipeline *service.Pipeline
	closers  []func() error
}

// loadConfig reads and validates configuration and builds the logger.
func loadConfig(configPath string) (*app, error) {
	manager, err := config.NewManagerFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	cfg := manager.GetConfig()

	logger, logCloser, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	a := &app{config: cfg, logger: logger, closers: []func() error{logCloser.Close}}
	if used := manager.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Debug("Loaded configuration")
	}

	if err := manager.EnsureDataDir(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return a, nil
}

// newApp wires storage, knowledge-base collection and the classification pipeline.
func newApp(ctx context.Context, configPath string) (*app, error) {
	a, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	results, err := store.Open(ctx, a.config.Storage, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open result store: %w", err)
	}
	if results != nil {
		a.store = results
		a.closers = append(a.closers, results.Close)
	}

	opts := service.Options{
		Store:    a.store,
		Defaults: a.config.Analysis,
		Workers:  a.config.Batch.Workers,
	}

	fetchers, err := external.BuildFetchers(a.config.KnowledgeBases)
	if err != nil {
		return fmt.Errorf("failed to configure knowledge bases: %w", err)
	}
	if len(fetchers) > 0 {
		cache, closeCache, err := external.NewPayloadCache(a.config.Cache)
		if err != nil {
			return fmt.Errorf("failed to create payload cache: %w", err)
		}
		a.closers = append(a.closers, closeCache)
		collector := external.NewCollector(fetchers, cache, a.config.KnowledgeBases.Breaker, a.logger)
		opts.Collector = collector
		a.logger.WithField("sources", collector.Sources()).Info("Knowledge base collection enabled")
	}

	router := workflow.NewRouter(a.logger)
	pipeline, err := service.NewPipeline(a.logger, router, evidence.NewAggregator(router, a.logger), tiering.NewEngine(a.logger), opts)
	if err != nil {
		return err
	}
	a.pipeline = pipeline
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Failed to release resource")
		}
	}
	a.closers = nil
}
