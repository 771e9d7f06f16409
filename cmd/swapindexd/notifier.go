package main

import (
	"context"

	"github.com/goodnatureofminers/swapindex/internal/swap/liveness"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/internal/swap/service/ingester"
)

// coinCacheInvalidator drops cached coin lookups of every changed order and
// hands the events on to next, when set.
type coinCacheInvalidator struct {
	resolver *liveness.Resolver
	next     ingester.Notifier
}

func (c *coinCacheInvalidator) Publish(ctx context.Context, events []model.OrderEvent) error {
	for _, e := range events {
		c.resolver.Forget(e.Order.Outpoint())
	}
	if c.next == nil {
		return nil
	}
	return c.next.Publish(ctx, events)
}
