package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/ports"
)

// Bound accepts exposes whose extracted value stays on the right side of a threshold.
// Exposes without a parsable value always pass.
type Bound struct {
	kind    Kind
	label   string
	noun    string
	extract func(domain.Expose) (float64, bool)
	limit   float64
	upper   bool
}

var _ Rule = (*Bound)(nil)

// MaxPrice rejects exposes priced above p.
func MaxPrice(p float64) *Bound {
	return &Bound{kind: KindMaxPrice, label: "Price", noun: "price", extract: Price, limit: p, upper: true}
}

// MinPrice rejects exposes priced below p.
func MinPrice(p float64) *Bound {
	return &Bound{kind: KindMinPrice, label: "Price", noun: "price", extract: Price, limit: p}
}

// MaxSize rejects exposes larger than s.
func MaxSize(s float64) *Bound {
	return &Bound{kind: KindMaxSize, label: "Size", noun: "size", extract: Size, limit: s, upper: true}
}

// MinSize rejects exposes smaller than s.
func MinSize(s float64) *Bound {
	return &Bound{kind: KindMinSize, label: "Size", noun: "size", extract: Size, limit: s}
}

// MaxRooms rejects exposes with more than r rooms.
func MaxRooms(r float64) *Bound {
	return &Bound{kind: KindMaxRooms, label: "Rooms", noun: "rooms", extract: Rooms, limit: r, upper: true}
}

// MinRooms rejects exposes with fewer than r rooms.
func MinRooms(r float64) *Bound {
	return &Bound{kind: KindMinRooms, label: "Rooms", noun: "rooms", extract: Rooms, limit: r}
}

// Name returns the configuration kind of the bound.
func (b *Bound) Name() string {
	return string(b.kind)
}

// Limit returns the configured threshold.
func (b *Bound) Limit() float64 {
	return b.limit
}

// Evaluate compares the extracted value against the threshold.
func (b *Bound) Evaluate(_ context.Context, expose domain.Expose) (Verdict, error) {
	v, ok := b.extract(expose)
	if !ok {
		return accept(), nil
	}
	if b.upper && v > b.limit {
		return reject("%s %s is above the max %s %s.", b.label, formatNumber(v), b.noun, formatNumber(b.limit)), nil
	}
	if !b.upper && v < b.limit {
		return reject("%s %s is below the min %s %s.", b.label, formatNumber(v), b.noun, formatNumber(b.limit)), nil
	}
	return accept(), nil
}

// PricePerSquare rejects exposes whose price divided by size exceeds a maximum.
type PricePerSquare struct {
	max float64
}

var _ Rule = (*PricePerSquare)(nil)

// MaxPricePerSquare builds the price-per-area rule.
func MaxPricePerSquare(limit float64) *PricePerSquare {
	return &PricePerSquare{max: limit}
}

// Name implements Rule.
func (p *PricePerSquare) Name() string {
	return string(KindMaxPricePerSquare)
}

// Evaluate passes when price or size is missing, or when size is not positive.
func (p *PricePerSquare) Evaluate(_ context.Context, expose domain.Expose) (Verdict, error) {
	size, ok := Size(expose)
	if !ok || size <= 0 {
		return accept(), nil
	}
	price, ok := Price(expose)
	if !ok {
		return accept(), nil
	}
	pps := price / size
	if pps <= p.max {
		return accept(), nil
	}
	return reject("Price per square %s is above max price per square %s.", formatNumber(pps), formatNumber(p.max)), nil
}

// TitleExclusion rejects exposes whose title matches any of its patterns, ignoring case.
type TitleExclusion struct {
	patterns []string
	expr     *regexp.Regexp
}

var _ Rule = (*TitleExclusion)(nil)

// NewTitleExclusion combines patterns into one case-insensitive alternation. Blank
// patterns are dropped; ErrNoPatterns is returned when nothing is left.
func NewTitleExclusion(patterns []string) (*TitleExclusion, error) {
	kept := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, norm.NFC.String(p))
	}
	if len(kept) == 0 {
		return nil, ErrNoPatterns
	}

	expr, err := regexp.Compile("(?i)(" + strings.Join(kept, ")|(") + ")")
	if err != nil {
		return nil, fmt.Errorf("compile excluded titles: %w", err)
	}

	return &TitleExclusion{patterns: kept, expr: expr}, nil
}

// Name implements Rule.
func (t *TitleExclusion) Name() string {
	return "excluded_titles"
}

// Patterns returns the normalised patterns of the rule.
func (t *TitleExclusion) Patterns() []string {
	return append([]string(nil), t.patterns...)
}

// Evaluate implements Rule.
func (t *TitleExclusion) Evaluate(_ context.Context, expose domain.Expose) (Verdict, error) {
	if !t.expr.MatchString(norm.NFC.String(expose.Title)) {
		return accept(), nil
	}
	return reject("Title '%s' matches filtered titles.", expose.Title), nil
}

// AlreadySeen rejects exposes whose id is already in the store. Evaluate is not
// referentially transparent: a passing evaluation marks the id as processed.
type AlreadySeen struct {
	store ports.SeenStore
}

var _ CommittingRule = (*AlreadySeen)(nil)

// NewAlreadySeen binds the rule to a seen-id store.
func NewAlreadySeen(store ports.SeenStore) (*AlreadySeen, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return &AlreadySeen{store: store}, nil
}

// Name implements Rule.
func (a *AlreadySeen) Name() string {
	return "already_seen"
}

// Evaluate checks and marks the id.
func (a *AlreadySeen) Evaluate(ctx context.Context, expose domain.Expose) (Verdict, error) {
	return a.EvaluateCommit(ctx, expose, true)
}

// EvaluateCommit checks the id and, when commit is set and the id is new, marks it.
// Stores implementing ports.SeenClaimer check and mark in one atomic step.
func (a *AlreadySeen) EvaluateCommit(ctx context.Context, expose domain.Expose, commit bool) (Verdict, error) {
	if claimer, ok := a.store.(ports.SeenClaimer); ok && commit {
		claimed, err := claimer.ClaimProcessed(ctx, expose.ID)
		if err != nil {
			return Verdict{}, fmt.Errorf("claim expose %d: %w", expose.ID, err)
		}
		if !claimed {
			return a.seen(expose), nil
		}
		return accept(), nil
	}

	processed, err := a.store.IsProcessed(ctx, expose.ID)
	if err != nil {
		return Verdict{}, fmt.Errorf("check expose %d: %w", expose.ID, err)
	}
	if processed {
		return a.seen(expose), nil
	}
	if !commit {
		return accept(), nil
	}
	if err := a.store.MarkProcessed(ctx, expose.ID); err != nil {
		return Verdict{}, fmt.Errorf("mark expose %d: %w", expose.ID, err)
	}
	return accept(), nil
}

func (a *AlreadySeen) seen(expose domain.Expose) Verdict {
	return reject("Expose %d has already been processed.", expose.ID)
}
