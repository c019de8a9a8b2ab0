package filter

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FlatScanner/internal/domain"
)

func mustChain(t *testing.T, b *Builder) *Chain {
	t.Helper()
	chain, err := b.Build()
	require.NoError(t, err)
	return chain
}

func TestChainEvaluateCollectsAllReasons(t *testing.T) {
	t.Parallel()

	chain := mustChain(t, NewBuilder().
		WithRule(MaxPrice(1000)).
		WithRule(MinSize(40)).
		WithRule(MaxRooms(3)))

	result, err := chain.Evaluate(context.Background(), domain.Expose{Price: "1200 €", Size: "30 m²", Rooms: "2"})
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Equal(t, []string{
		"Price 1200 is above the max price 1000.",
		"Size 30 is below the min size 40.",
	}, result.Reasons)
}

func TestChainEvaluateAccepted(t *testing.T) {
	t.Parallel()

	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)))

	result, err := chain.Evaluate(context.Background(), domain.Expose{Price: "800 €"})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Empty(t, result.Reasons)
}

func TestEmptyChainAcceptsEverything(t *testing.T) {
	t.Parallel()

	chain := mustChain(t, NewBuilder())
	result, err := chain.Evaluate(context.Background(), domain.Expose{})
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Zero(t, chain.Len())
}

func TestChainEvaluateIsIdempotentWithoutDeduplication(t *testing.T) {
	t.Parallel()

	titles, err := NewTitleExclusion([]string{"tausch"})
	require.NoError(t, err)
	chain := mustChain(t, NewBuilder().WithRule(titles).WithRule(MaxPrice(700)).WithRule(MaxPricePerSquare(15)))

	expose := domain.Expose{Title: "Tauschwohnung", Price: "900 €", Size: "50 m²"}
	first, err := chain.Evaluate(context.Background(), expose)
	require.NoError(t, err)
	second, err := chain.Evaluate(context.Background(), expose)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first.Reasons, 3)
}

func TestChainFilterPreservesOrder(t *testing.T) {
	t.Parallel()

	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)))

	a := domain.Expose{ID: 1, Title: "A", Price: "900 €"}
	b := domain.Expose{ID: 2, Title: "B", Price: "1500 €"}
	c := domain.Expose{ID: 3, Title: "C", Price: "700 €"}

	filtered, err := chain.Filter(context.Background(), []domain.Expose{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, []domain.Expose{a, c}, filtered)
}

func TestChainFilterLogsRejections(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	chain := mustChain(t, NewBuilder().WithLogger(logger).WithRule(MaxPrice(1000)))

	_, err := chain.Filter(context.Background(), []domain.Expose{{ID: 5, Title: "Penthouse", Price: "5000 €"}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "excluding expose")
	assert.Contains(t, out, "Penthouse")
	assert.Contains(t, out, "Price 5000 is above the max price 1000.")
}

func TestRuleOrderDoesNotChangeOutcome(t *testing.T) {
	t.Parallel()

	titles, err := NewTitleExclusion([]string{"wg", "tausch"})
	require.NoError(t, err)
	rules := []Rule{titles, MinPrice(300), MaxPrice(1000), MinSize(30), MaxSize(90), MinRooms(1), MaxRooms(4), MaxPricePerSquare(18)}

	forward := NewBuilder()
	backward := NewBuilder()
	for i := range rules {
		forward.WithRule(rules[i])
		backward.WithRule(rules[len(rules)-1-i])
	}
	fc := mustChain(t, forward)
	bc := mustChain(t, backward)

	exposes := []domain.Expose{
		{Title: "Helle 3-Zimmer", Price: "900 €", Size: "70 m²", Rooms: "3"},
		{Title: "WG-Zimmer", Price: "250 €", Size: "15 m²", Rooms: "1"},
		{Title: "Altbau", Price: "1.450 €", Size: "95 m²", Rooms: "5"},
		{Title: "Loft", Price: "", Size: "", Rooms: ""},
		{Title: "Wohnungstausch", Price: "2000", Size: "50", Rooms: "0,5"},
	}

	for _, e := range exposes {
		fr, err := fc.Evaluate(context.Background(), e)
		require.NoError(t, err)
		br, err := bc.Evaluate(context.Background(), e)
		require.NoError(t, err)

		assert.Equal(t, fr.Accepted, br.Accepted, "expose %q", e.Title)

		fReasons := append([]string(nil), fr.Reasons...)
		bReasons := append([]string(nil), br.Reasons...)
		sort.Strings(fReasons)
		sort.Strings(bReasons)
		assert.Equal(t, fReasons, bReasons, "expose %q", e.Title)
	}
}

func TestDeduplicationLastDoesNotMarkRejectedExposes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	expensive := domain.Expose{ID: 10, Price: "1500 €"}

	last := newMemoryStore()
	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)).WithDeduplication(last))
	result, err := chain.Evaluate(ctx, expensive)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.False(t, last.processed(10))
	assert.Zero(t, last.marks)
	assert.Equal(t, 1, last.checks, "the rule still runs its check")

	first := newMemoryStore()
	chain = mustChain(t, NewBuilder().WithDeduplication(first).WithRule(MaxPrice(1000)))
	result, err = chain.Evaluate(ctx, expensive)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.True(t, first.processed(10), "a later rejection does not undo the mark")
	assert.Equal(t, []string{"Price 1500 is above the max price 1000."}, result.Reasons)
}

func TestDeduplicationLastReportsSeenEvenAfterRejection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &claimingStore{memoryStore: newMemoryStore()}
	store.seen[11] = true
	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)).WithDeduplication(store))

	result, err := chain.Evaluate(ctx, domain.Expose{ID: 11, Price: "1500"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Price 1500 is above the max price 1000.",
		"Expose 11 has already been processed.",
	}, result.Reasons)
	assert.Zero(t, store.claims, "no claim without commit")
}

func TestDeduplicationSecondRunRejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore()
	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)).WithDeduplication(store))
	batch := []domain.Expose{{ID: 1, Price: "900"}, {ID: 2, Price: "1900"}}

	filtered, err := chain.Filter(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, batch[:1], filtered)

	filtered, err = chain.Filter(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, filtered)
	assert.Equal(t, 1, store.marks)
}

func TestChainFilterAttributesStoreFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	store := &flakyStore{memoryStore: newMemoryStore(), failOn: 2, err: boom}
	chain := mustChain(t, NewBuilder().WithRule(MaxPrice(1000)).WithDeduplication(store))

	exposes := []domain.Expose{
		{ID: 1, Price: "500"},
		{ID: 2, Price: "600"},
		{ID: 3, Price: "700"},
	}

	filtered, err := chain.Filter(context.Background(), exposes)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, int64(2), recErr.ExposeID)

	assert.Equal(t, []domain.Expose{exposes[0], exposes[2]}, filtered)
}

func TestChainEvaluateReportsFailureAsReason(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.err = errors.New("timeout")
	chain := mustChain(t, NewBuilder().WithDeduplication(store).WithRule(MaxPrice(100)))

	result, err := chain.Evaluate(context.Background(), domain.Expose{ID: 4, Price: "150"})
	require.Error(t, err)
	assert.False(t, result.Accepted)
	require.Len(t, result.Reasons, 2, "the price rule still runs after the store failed")
	assert.Contains(t, result.Reasons[0], "already_seen")
	assert.Equal(t, "Price 150 is above the max price 100.", result.Reasons[1])
}

type flakyStore struct {
	*memoryStore
	failOn int64
	err    error
}

func (s *flakyStore) IsProcessed(ctx context.Context, id int64) (bool, error) {
	if id == s.failOn {
		return false, s.err
	}
	return s.memoryStore.IsProcessed(ctx, id)
}
