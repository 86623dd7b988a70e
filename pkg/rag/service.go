package rag

import (
	"context"
	"time"

	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/cache"
)

// Cached answers through a Chain that is built on first use and rebuilt
// once it is older than the TTL.
type Cached struct {
	entry *cache.Entry[*Chain]
}

func NewCached(b *Builder, ttl time.Duration, now func() time.Time) (*Cached, error) {
	entry, err := cache.NewEntry(func(ctx context.Context) (*Chain, error) {
		// the build is shared by every waiting caller, so it must not be
		// cut short when the caller that started it goes away
		return b.Build(context.WithoutCancel(ctx))
	}, cache.EntryConfig{TTL: ttl, Now: now})
	if err != nil {
		return nil, err
	}
	return &Cached{entry: entry}, nil
}

// Chain returns the current chain, building it if needed.
func (c *Cached) Chain(ctx context.Context) (*Chain, error) {
	return c.entry.Get(ctx)
}

func (c *Cached) Answer(ctx context.Context, query string, history []models.Turn) (string, error) {
	chain, err := c.entry.Get(ctx)
	if err != nil {
		return "", err
	}
	return chain.Answer(ctx, query, history)
}

// Invalidate forces a rebuild on the next call.
func (c *Cached) Invalidate() {
	c.entry.Invalidate()
}
