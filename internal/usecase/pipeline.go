package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/filter"
	"FlatScanner/internal/logging"
	"FlatScanner/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source   ports.ExposeSource
	Chain    *filter.Chain
	Enricher ports.ExposeEnricher
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// Report summarises one pipeline pass.
type Report struct {
	Fetched  int
	Accepted int
	Notified int
	Exposes  []domain.Expose
}

// Pipeline implements the crawl, filter and notify workflow.
type Pipeline struct {
	source   ports.ExposeSource
	chain    *filter.Chain
	enricher ports.ExposeEnricher
	notifier ports.Notifier
	logger   *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		source:   deps.Source,
		chain:    deps.Chain,
		enricher: deps.Enricher,
		notifier: deps.Notifier,
		logger:   logger,
	}
}

// ProcessOnce fetches exposes, filters them, completes the survivors from their detail
// pages and notifies about them. Partial failures (a crawl, a record, a notification) are
// logged and joined into the returned error while the rest of the batch still goes
// through. A failed detail fetch only logs; the expose is sent as crawled.
func (p *Pipeline) ProcessOnce(ctx context.Context) (Report, error) {
	var report Report
	if p.source == nil {
		return report, nil
	}

	var errs []error

	exposes, err := p.source.Fetch(ctx)
	if err != nil {
		if len(exposes) == 0 {
			return report, fmt.Errorf("fetch exposes: %w", err)
		}
		p.logger.Warn("fetch finished with errors", "error", err)
		errs = append(errs, fmt.Errorf("fetch exposes: %w", err))
	}
	report.Fetched = len(exposes)

	selected := exposes
	if p.chain != nil {
		selected, err = p.chain.Filter(ctx, exposes)
		if err != nil {
			p.logger.Error("filter exposes", "error", err)
			errs = append(errs, fmt.Errorf("filter exposes: %w", err))
		}
	}
	report.Accepted = len(selected)

	if p.enricher != nil {
		for i, expose := range selected {
			enriched, err := p.enricher.Enrich(ctx, expose)
			if err != nil {
				p.logger.Warn("enrich expose", "id", expose.ID, "error", err)
				continue
			}
			selected[i] = enriched
		}
	}
	report.Exposes = selected

	if p.notifier != nil {
		for _, expose := range selected {
			if err := p.notifier.NotifyExpose(ctx, expose); err != nil {
				p.logger.Error("notify expose", "id", expose.ID, "error", err)
				errs = append(errs, err)
				continue
			}
			report.Notified++
		}
	}

	p.logger.Info("pipeline pass done",
		"fetched", report.Fetched,
		"accepted", report.Accepted,
		"notified", report.Notified,
	)

	return report, errors.Join(errs...)
}
