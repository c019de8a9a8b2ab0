// Package filter decides which exposes are forwarded to the user. Rules are independent
// predicates; a Chain runs all of them and collects the reasons of every rejection.
package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"FlatScanner/internal/domain"
)

var (
	// ErrNoPatterns is returned when a title exclusion is built without any pattern.
	ErrNoPatterns = errors.New("title exclusion needs at least one pattern")
	// ErrNilStore is returned when deduplication is requested without a store.
	ErrNilStore = errors.New("deduplication needs a seen-id store")
	// ErrUnknownKind is returned for bound rule kinds nobody registered.
	ErrUnknownKind = errors.New("unknown rule kind")
)

// Verdict is the outcome of a single rule. Reason is empty iff Accepted.
type Verdict struct {
	Accepted bool
	Reason   string
}

func accept() Verdict {
	return Verdict{Accepted: true}
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// Rule is one predicate over an expose. Pure rules never return an error; rules backed by
// external state report access failures through it.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, expose domain.Expose) (Verdict, error)
}

// CommittingRule is a rule with a side effect. The chain passes commit=true only when
// every earlier rule accepted the expose; with commit=false the rule still reports its
// verdict but leaves external state untouched.
type CommittingRule interface {
	Rule
	EvaluateCommit(ctx context.Context, expose domain.Expose, commit bool) (Verdict, error)
}

// Kind names a numeric bound rule as it appears in configuration.
type Kind string

const (
	KindMinPrice          Kind = "min_price"
	KindMaxPrice          Kind = "max_price"
	KindMinSize           Kind = "min_size"
	KindMaxSize           Kind = "max_size"
	KindMinRooms          Kind = "min_rooms"
	KindMaxRooms          Kind = "max_rooms"
	KindMaxPricePerSquare Kind = "max_price_per_square"
)

// BoundConstructor builds a rule holding a single numeric threshold.
type BoundConstructor func(limit float64) Rule

var (
	registryMu sync.RWMutex
	registry   = map[Kind]BoundConstructor{
		KindMinPrice:          func(v float64) Rule { return MinPrice(v) },
		KindMaxPrice:          func(v float64) Rule { return MaxPrice(v) },
		KindMinSize:           func(v float64) Rule { return MinSize(v) },
		KindMaxSize:           func(v float64) Rule { return MaxSize(v) },
		KindMinRooms:          func(v float64) Rule { return MinRooms(v) },
		KindMaxRooms:          func(v float64) Rule { return MaxRooms(v) },
		KindMaxPricePerSquare: func(v float64) Rule { return MaxPricePerSquare(v) },
	}
)

// RegisterBound adds or replaces the constructor for a bound rule kind.
func RegisterBound(kind Kind, ctor BoundConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = ctor
}

// NewBound builds the registered rule for kind.
func NewBound(kind Kind, limit float64) (Rule, error) {
	registryMu.RLock()
	ctor, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ctor(limit), nil
}

// Kinds lists the registered bound kinds in lexical order.
func Kinds() []Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
