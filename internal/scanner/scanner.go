package scanner

import (
	"context"
	"fmt"

	"FlatScanner/internal/domain"
)

// Crawler captures a single listing site implementation (Kleinanzeigen, etc.).
type Crawler interface {
	Name() string
	Matches(url string) bool
	Crawl(ctx context.Context, url string) ([]domain.Expose, error)
}

// DetailCrawler is a crawler that can complete an expose from its detail page.
type DetailCrawler interface {
	Crawler
	Details(ctx context.Context, expose domain.Expose) (domain.Expose, error)
}

// Registry keeps crawlers in registration order.
type Registry struct {
	crawlers []Crawler
}

// NewRegistry builds a registry holding the given crawlers.
func NewRegistry(crawlers ...Crawler) *Registry {
	r := &Registry{}
	for _, c := range crawlers {
		r.Register(c)
	}
	return r
}

// Register adds a crawler or replaces the one registered under the same name.
func (r *Registry) Register(crawler Crawler) {
	for i, c := range r.crawlers {
		if c.Name() == crawler.Name() {
			r.crawlers[i] = crawler
			return
		}
	}
	r.crawlers = append(r.crawlers, crawler)
}

// Resolve returns the first crawler that accepts url or an error if none does.
func (r *Registry) Resolve(url string) (Crawler, error) {
	for _, c := range r.crawlers {
		if c.Matches(url) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no crawler registered for %s", url)
}

// Names lists the registered crawler names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.crawlers))
	for _, c := range r.crawlers {
		names = append(names, c.Name())
	}
	return names
}
