// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

// countingExtractor records calls and returns a fixed result.
type countingExtractor struct {
	calls    int
	criteria []types.Criterion
	err      error
}

func (c *countingExtractor) Extract(_ context.Context, _ types.Document) ([]types.Criterion, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return clone(c.criteria), nil
}

func TestCachedHitsOnSameText(t *testing.T) {
	inner := &countingExtractor{criteria: []types.Criterion{{ID: "exc-1", EliminationRate: 0.3, Priority: 1}}}
	cached, err := NewCached(inner, 2)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}

	ctx := context.Background()
	first, err := cached.Extract(ctx, types.Document{ID: "a", Text: "same text"})
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	// A different document ID with identical text still hits.
	second, err := cached.Extract(ctx, types.Document{ID: "b", Text: "same text"})
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}

	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Errorf("second result = %+v, want %+v", second, first)
	}

	// Mutating a returned slice must not leak into the cache.
	second[0].ID = "mutated"
	third, _ := cached.Extract(ctx, types.Document{Text: "same text"})
	if third[0].ID != "exc-1" {
		t.Errorf("cache entry mutated through returned slice: %q", third[0].ID)
	}
	if cached.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cached.Len())
	}
}

func TestCachedMissOnDifferentText(t *testing.T) {
	inner := &countingExtractor{}
	cached, err := NewCached(inner, 0)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	ctx := context.Background()
	_, _ = cached.Extract(ctx, types.Document{Text: "one"})
	_, _ = cached.Extract(ctx, types.Document{Text: "two"})
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	inner := &countingExtractor{err: boom}
	cached, err := NewCached(inner, 4)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cached.Extract(ctx, types.Document{Text: "x"}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	if cached.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cached.Len())
	}
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	inner := &countingExtractor{}
	cached, err := NewCached(inner, 1)
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	ctx := context.Background()
	_, _ = cached.Extract(ctx, types.Document{Text: "one"})
	_, _ = cached.Extract(ctx, types.Document{Text: "two"})
	_, _ = cached.Extract(ctx, types.Document{Text: "one"})
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3", inner.calls)
	}
}
