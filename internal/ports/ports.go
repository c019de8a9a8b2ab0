package ports

import (
	"context"
	"time"

	"FlatScanner/internal/domain"
)

// ExposeSource pulls fresh exposes from the configured listing pages.
type ExposeSource interface {
	Fetch(ctx context.Context) ([]domain.Expose, error)
}

// ExposeEnricher fills fields that are only available on an expose's own page.
type ExposeEnricher interface {
	Enrich(ctx context.Context, expose domain.Expose) (domain.Expose, error)
}

// SeenStore remembers which expose ids were already processed.
type SeenStore interface {
	IsProcessed(ctx context.Context, id int64) (bool, error)
	MarkProcessed(ctx context.Context, id int64) error
}

// SeenClaimer is implemented by stores that can check-and-mark an id in one atomic step.
// ClaimProcessed reports true when the id was unseen and is now marked.
type SeenClaimer interface {
	ClaimProcessed(ctx context.Context, id int64) (bool, error)
}

// Notifier delivers a selected expose to the user.
type Notifier interface {
	NotifyExpose(ctx context.Context, expose domain.Expose) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
