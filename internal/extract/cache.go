// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/trial-prescreen/pkg/types"
)

const defaultCacheSize = 64

// Cached memoizes another Extractor by document content, so repeated batches
// against the same protocol skip extraction. Errors are not cached.
type Cached struct {
	next  Extractor
	cache *lru.Cache[string, []types.Criterion]
}

// NewCached wraps next with an LRU cache holding up to size documents.
// A size of zero or less uses the default (64).
func NewCached(next Extractor, size int) (*Cached, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []types.Criterion](size)
	if err != nil {
		return nil, fmt.Errorf("creating criteria cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Extract returns cached criteria for identical document text, or delegates
// to the wrapped Extractor. Callers always receive their own copy.
func (c *Cached) Extract(ctx context.Context, doc types.Document) ([]types.Criterion, error) {
	key := contentKey(doc.Text)
	if criteria, ok := c.cache.Get(key); ok {
		return clone(criteria), nil
	}

	criteria, err := c.next.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(criteria))
	return criteria, nil
}

// Len returns the number of cached documents.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// contentKey is the hex SHA-256 of the document text.
func contentKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

func clone(criteria []types.Criterion) []types.Criterion {
	if criteria == nil {
		return nil
	}
	out := make([]types.Criterion, len(criteria))
	copy(out, criteria)
	return out
}
