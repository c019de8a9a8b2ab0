package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/ports"
	"FlatScanner/internal/scanner"
)

// StrategySource implements ExposeSource via registered crawlers.
type StrategySource struct {
	registry *scanner.Registry
	urls     []string
	logger   *slog.Logger
}

var (
	_ ports.ExposeSource   = (*StrategySource)(nil)
	_ ports.ExposeEnricher = (*StrategySource)(nil)
)

// NewStrategySource wires the crawler registry with the configured search urls.
func NewStrategySource(reg *scanner.Registry, urls []string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		urls:     urls,
		logger:   log,
	}
}

// Fetch crawls every configured url. A url whose crawl fails is logged and skipped;
// a url no crawler accepts is reported in the returned error.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Expose, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("crawler registry is not configured")
	}

	s.debug("fetch exposes", "urls", len(s.urls))

	var (
		aggregated []domain.Expose
		errs       []error
	)
	for _, url := range s.urls {
		if err := ctx.Err(); err != nil {
			return aggregated, err
		}

		crawler, err := s.registry.Resolve(url)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		results, err := crawler.Crawl(ctx, url)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("crawl failed", "crawler", crawler.Name(), "url", url, "error", err)
			}
			continue
		}

		for i := range results {
			if results[i].Crawler == "" {
				results[i].Crawler = crawler.Name()
			}
		}
		s.debug("url produced exposes", "crawler", crawler.Name(), "url", url, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_exposes", len(aggregated))
	return aggregated, errors.Join(errs...)
}

// Enrich completes the expose through the crawler owning its url. Exposes whose crawler
// has no detail step are returned unchanged.
func (s *StrategySource) Enrich(ctx context.Context, expose domain.Expose) (domain.Expose, error) {
	if s.registry == nil {
		return expose, nil
	}
	crawler, err := s.registry.Resolve(expose.URL)
	if err != nil {
		return expose, nil
	}
	detailed, ok := crawler.(scanner.DetailCrawler)
	if !ok {
		return expose, nil
	}
	enriched, err := detailed.Details(ctx, expose)
	if err != nil {
		return expose, fmt.Errorf("details of expose %d: %w", expose.ID, err)
	}
	return enriched, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
