package liveness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCoinCacheSize = 10_000
	defaultCoinCacheTTL  = 30 * time.Second
)

// State is the read-time classification of an order.
type State uint8

const (
	// Hidden orders are neither open nor history, e.g. an unverified order
	// whose coin the node no longer has.
	Hidden State = iota
	Open
	History
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case History:
		return "history"
	default:
		return "hidden"
	}
}

// Verdict is the classification of one order together with the height
// clients should see.
type Verdict struct {
	State State
	// BlockHeight is zero when unknown: pending ads and mempool-only spends.
	BlockHeight int32
}

// Resolver overlays mempool spends and coin lookups on stored orders.
type Resolver struct {
	mempool MempoolView
	coins   CoinView
	cache   *expirable.LRU[wire.OutPoint, bool]
}

// NewResolver builds a Resolver. Coin lookups are cached for ttl.
func NewResolver(mempool MempoolView, coins CoinView, cacheSize int, ttl time.Duration) (*Resolver, error) {
	if mempool == nil {
		return nil, errors.New("mempool view is required")
	}
	if coins == nil {
		return nil, errors.New("coin view is required")
	}
	if cacheSize <= 0 {
		cacheSize = defaultCoinCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCoinCacheTTL
	}
	return &Resolver{
		mempool: mempool,
		coins:   coins,
		cache:   expirable.NewLRU[wire.OutPoint, bool](cacheSize, nil, ttl),
	}, nil
}

// Classify decides whether o is effectively open or historical right now.
func (r *Resolver) Classify(ctx context.Context, o model.Order) (Verdict, error) {
	if o.Status == model.OrderHistorical {
		return Verdict{State: History, BlockHeight: o.SpentHeight}, nil
	}
	if _, spent := r.mempool.SpentBy(o.Outpoint()); spent {
		return Verdict{State: History}, nil
	}
	if o.Unverified {
		unspent, err := r.isCoinUnspent(ctx, o.Outpoint())
		if err != nil {
			return Verdict{}, err
		}
		if !unspent {
			return Verdict{State: Hidden}, nil
		}
	}
	return Verdict{State: Open, BlockHeight: o.BlockHeight()}, nil
}

// Forget drops any cached lookup for op.
func (r *Resolver) Forget(op wire.OutPoint) {
	r.cache.Remove(op)
}

func (r *Resolver) isCoinUnspent(ctx context.Context, op wire.OutPoint) (bool, error) {
	if unspent, ok := r.cache.Get(op); ok {
		return unspent, nil
	}
	unspent, err := r.coins.IsCoinUnspent(ctx, op)
	if err != nil {
		return false, fmt.Errorf("lookup coin %v: %w", op, err)
	}
	r.cache.Add(op, unspent)
	return unspent, nil
}
