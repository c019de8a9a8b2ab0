package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"FlatScanner/internal/config"
	"FlatScanner/internal/filter"
	"FlatScanner/internal/infrastructure/httpapi"
	"FlatScanner/internal/infrastructure/parser"
	"FlatScanner/internal/infrastructure/scheduler"
	"FlatScanner/internal/infrastructure/storage"
	"FlatScanner/internal/infrastructure/telegram"
	"FlatScanner/internal/logging"
	"FlatScanner/internal/ports"
	"FlatScanner/internal/scanner"
	"FlatScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    storage.Store
	pipeline *usecase.Pipeline
	preview  *filter.Chain
}

// New opens the seen-id store and builds the pipeline. Close releases the store.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	chain, err := filter.NewBuilder().
		WithLogger(baseLogger.With("component", "filter")).
		ReadConfig(cfg.Filters).
		WithDeduplication(store).
		Build()
	if err != nil {
		store.Close()
		return nil, err
	}

	preview, err := NewPreviewChain(cfg.Filters, baseLogger)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := scanner.NewRegistry(
		parser.NewKleinanzeigenScanner(nil, baseLogger.With("component", "scanner.kleinanzeigen")),
	)
	source := parser.NewStrategySource(registry, cfg.URLs, baseLogger.With("component", "source"))

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.Enabled() {
		n, err := telegram.NewNotifier(tg.BotToken, tg.ChatID)
		if err != nil {
			store.Close()
			return nil, err
		}
		notifier = n
	} else {
		baseLogger.Warn("telegram is not configured, accepted exposes are only logged")
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:   source,
		Chain:    chain,
		Enricher: source,
		Notifier: notifier,
		Logger:   baseLogger.With("component", "pipeline"),
	})

	baseLogger.Debug("application ready",
		"storage", cfg.Storage.Driver,
		"rules", chain.Len(),
		"crawlers", registry.Names(),
		"urls", len(cfg.URLs),
	)

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		pipeline: pipeline,
		preview:  preview,
	}, nil
}

// NewPreviewChain builds the configured filters without deduplication, so evaluating
// exposes never marks them as processed.
func NewPreviewChain(cfg config.FilterConfig, logger *slog.Logger) (*filter.Chain, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	chain, err := filter.NewBuilder().
		WithLogger(logger.With("component", "preview")).
		ReadConfig(cfg).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build preview chain: %w", err)
	}
	return chain, nil
}

// Run performs a single pipeline pass.
func (a *Application) Run(ctx context.Context) (usecase.Report, error) {
	return a.pipeline.ProcessOnce(ctx)
}

// Serve runs the pipeline on the configured interval and serves the preview API until
// ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sched := usecase.NewScheduler(scheduler.NewIntervalScheduler(a.cfg.Scheduler.Every()), a.pipeline)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "interval", a.cfg.Scheduler.Every().String())

	server := httpapi.NewServer(a.preview, a.logger.With("component", "httpapi"))
	serveErr := server.ListenAndServe(ctx, a.cfg.HTTP.Addr)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	return serveErr
}

// Close releases the seen-id store.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
