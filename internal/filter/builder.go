package filter

import (
	"errors"
	"fmt"
	"log/slog"

	"FlatScanner/internal/config"
	"FlatScanner/internal/ports"
)

// Builder accumulates rules in call order. Errors are sticky: the first failing step is
// reported by Build and later steps become no-ops.
type Builder struct {
	rules  []Rule
	logger *slog.Logger
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithLogger sets the logger that receives rejection diagnostics.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithRule appends an arbitrary rule.
func (b *Builder) WithRule(rule Rule) *Builder {
	if b.err != nil {
		return b
	}
	if rule == nil {
		b.err = errors.New("nil rule")
		return b
	}
	b.rules = append(b.rules, rule)
	return b
}

// WithRuleIfPresent appends the bound rule of the given kind when value is set. A nil
// value disables the rule; zero is a valid threshold.
func (b *Builder) WithRuleIfPresent(kind Kind, value *float64) *Builder {
	if b.err != nil || value == nil {
		return b
	}
	rule, err := NewBound(kind, *value)
	if err != nil {
		b.err = err
		return b
	}
	return b.WithRule(rule)
}

// WithExcludedTitles appends a title exclusion unless patterns holds no usable pattern.
func (b *Builder) WithExcludedTitles(patterns []string) *Builder {
	if b.err != nil {
		return b
	}
	rule, err := NewTitleExclusion(patterns)
	if errors.Is(err, ErrNoPatterns) {
		return b
	}
	if err != nil {
		b.err = err
		return b
	}
	return b.WithRule(rule)
}

// WithDeduplication appends the already-seen rule. Call it last so that an expose is
// only marked as seen once it cleared every other rule.
func (b *Builder) WithDeduplication(store ports.SeenStore) *Builder {
	if b.err != nil {
		return b
	}
	rule, err := NewAlreadySeen(store)
	if err != nil {
		b.err = err
		return b
	}
	return b.WithRule(rule)
}

// ReadConfig appends the configured rules in their fixed order: title exclusion, min/max
// price, min/max size, min/max rooms, price per square.
func (b *Builder) ReadConfig(cfg config.FilterConfig) *Builder {
	return b.WithExcludedTitles(cfg.ExcludedTitles).
		WithRuleIfPresent(KindMinPrice, cfg.MinPrice).
		WithRuleIfPresent(KindMaxPrice, cfg.MaxPrice).
		WithRuleIfPresent(KindMinSize, cfg.MinSize).
		WithRuleIfPresent(KindMaxSize, cfg.MaxSize).
		WithRuleIfPresent(KindMinRooms, cfg.MinRooms).
		WithRuleIfPresent(KindMaxRooms, cfg.MaxRooms).
		WithRuleIfPresent(KindMaxPricePerSquare, cfg.MaxPricePerSquare)
}

// Build returns an immutable chain of the rules accumulated so far.
func (b *Builder) Build() (*Chain, error) {
	if b.err != nil {
		return nil, fmt.Errorf("build filter chain: %w", b.err)
	}
	rules := make([]Rule, len(b.rules))
	copy(rules, b.rules)
	return &Chain{rules: rules, logger: b.logger}, nil
}
