// Package query serves the read side of the swap index: open orders,
// history and counts per token, with mempool-aware liveness.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/liveness"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/internal/swap/store"
	"go.uber.org/zap"
)

// MaxLimit is the largest page size a client may ask for.
const MaxLimit = 1000

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrArchiveDisabled = errors.New("history archive not configured")
)

// Page selects a window of a listing. A zero Limit means all remaining.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) validate() error {
	switch {
	case p.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidArgument)
	case p.Offset < 0:
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidArgument)
	case p.Limit > MaxLimit:
		return fmt.Errorf("%w: limit must not exceed %d", ErrInvalidArgument, MaxLimit)
	}
	return nil
}

// full reports whether n matching orders already cover the page.
func (p Page) full(n int) bool {
	return p.Limit > 0 && n >= p.Offset+p.Limit
}

func (p Page) slice(entries []Entry) []Entry {
	if p.Offset >= len(entries) {
		return []Entry{}
	}
	entries = entries[p.Offset:]
	if p.Limit > 0 && len(entries) > p.Limit {
		entries = entries[:p.Limit]
	}
	return entries
}

type index struct {
	open    store.Partition
	history store.Partition
}

var (
	byToken = index{open: store.OpenByToken, history: store.HistoryByToken}
	byWant  = index{open: store.OpenByWant, history: store.HistoryByWant}
)

// Service answers queries from a consistent snapshot of the order store.
type Service struct {
	store      *store.Store
	classifier Classifier
	metrics    Metrics
	logger     *zap.Logger
	archive    Archive
	network    model.Network
}

func NewService(st *store.Store, classifier Classifier, metrics Metrics, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("order store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if metrics == nil {
		return nil, errors.New("query metrics is required")
	}
	return &Service{
		store:      st,
		classifier: classifier,
		metrics:    metrics,
		logger:     logger.Named("query"),
	}, nil
}

// WithArchive serves ArchivedHistory from archive. It must be called before
// the service is shared.
func (s *Service) WithArchive(network model.Network, archive Archive) *Service {
	s.network = network
	s.archive = archive
	return s
}

// OpenOrders lists effectively open orders offering token, oldest first.
func (s *Service) OpenOrders(ctx context.Context, token chainhash.Hash, page Page) ([]Entry, error) {
	return s.observeList("open_orders", func() ([]Entry, error) { return s.open(ctx, byToken, token, page) })
}

// OpenOrdersByWant lists effectively open orders asking for token.
func (s *Service) OpenOrdersByWant(ctx context.Context, token chainhash.Hash, page Page) ([]Entry, error) {
	return s.observeList("open_orders_by_want", func() ([]Entry, error) { return s.open(ctx, byWant, token, page) })
}

// History lists filled or cancelled orders offering token, including
// orders spent by a mempool transaction.
func (s *Service) History(ctx context.Context, token chainhash.Hash, page Page) ([]Entry, error) {
	return s.observeList("history", func() ([]Entry, error) { return s.history(ctx, byToken, token, page) })
}

func (s *Service) HistoryByWant(ctx context.Context, token chainhash.Hash, page Page) ([]Entry, error) {
	return s.observeList("history_by_want", func() ([]Entry, error) { return s.history(ctx, byWant, token, page) })
}

// Counts returns the sizes of the OpenOrders and History listings.
func (s *Service) Counts(ctx context.Context, token chainhash.Hash) (Counts, error) {
	return s.observeCounts("counts", func() (Counts, error) { return s.counts(ctx, byToken, token) })
}

func (s *Service) CountsByWant(ctx context.Context, token chainhash.Hash) (Counts, error) {
	return s.observeCounts("counts_by_want", func() (Counts, error) { return s.counts(ctx, byWant, token) })
}

// ArchivedHistory lists pruned history of token kept in the archive.
func (s *Service) ArchivedHistory(ctx context.Context, token chainhash.Hash, page Page) ([]Entry, error) {
	return s.observeList("archived_history", func() ([]Entry, error) {
		if err := page.validate(); err != nil {
			return nil, err
		}
		if s.archive == nil {
			return nil, ErrArchiveDisabled
		}
		orders, err := s.archive.ArchivedOrders(ctx, s.network, token, uint64(page.Limit), uint64(page.Offset))
		if err != nil {
			return nil, fmt.Errorf("archived orders: %w", err)
		}
		entries := make([]Entry, 0, len(orders))
		for _, o := range orders {
			entries = append(entries, newEntry(o, o.SpentHeight))
		}
		return entries, nil
	})
}

// Tip returns the last block applied to the index.
func (s *Service) Tip() (model.Tip, bool, error) {
	return s.store.Tip()
}

func (s *Service) open(ctx context.Context, idx index, token chainhash.Hash, page Page) ([]Entry, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	var entries []Entry
	err = s.scan(ctx, snap, idx.open, token, func(o model.Order, v liveness.Verdict) bool {
		if v.State == liveness.Open {
			entries = append(entries, newEntry(o, v.BlockHeight))
		}
		return !page.full(len(entries))
	})
	if err != nil {
		return nil, err
	}
	return page.slice(entries), nil
}

func (s *Service) history(ctx context.Context, idx index, token chainhash.Hash, page Page) ([]Entry, error) {
	if err := page.validate(); err != nil {
		return nil, err
	}
	snap, err := s.store.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	type item struct {
		seq   uint64
		entry Entry
	}
	collect := func(p store.Partition) ([]item, error) {
		var items []item
		err := s.scan(ctx, snap, p, token, func(o model.Order, v liveness.Verdict) bool {
			if v.State == liveness.History {
				items = append(items, item{seq: o.Seq, entry: newEntry(o, v.BlockHeight)})
			}
			return true
		})
		return items, err
	}

	stored, err := collect(idx.history)
	if err != nil {
		return nil, err
	}
	mempoolSpent, err := collect(idx.open)
	if err != nil {
		return nil, err
	}

	// Both partitions are in insertion order; merge them by sequence.
	entries := make([]Entry, 0, len(stored)+len(mempoolSpent))
	i, j := 0, 0
	for i < len(stored) || j < len(mempoolSpent) {
		if j == len(mempoolSpent) || (i < len(stored) && stored[i].seq < mempoolSpent[j].seq) {
			entries = append(entries, stored[i].entry)
			i++
			continue
		}
		entries = append(entries, mempoolSpent[j].entry)
		j++
	}
	return page.slice(entries), nil
}

func (s *Service) counts(ctx context.Context, idx index, token chainhash.Hash) (Counts, error) {
	snap, err := s.store.Snapshot()
	if err != nil {
		return Counts{}, err
	}
	defer snap.Release()

	var c Counts
	tally := func(_ model.Order, v liveness.Verdict) bool {
		switch v.State {
		case liveness.Open:
			c.Open++
		case liveness.History:
			c.History++
		}
		return true
	}
	if err := s.scan(ctx, snap, idx.open, token, tally); err != nil {
		return Counts{}, err
	}
	if err := s.scan(ctx, snap, idx.history, token, tally); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// scan classifies every order of a partition and stops at the first
// classification error or when fn returns false.
func (s *Service) scan(
	ctx context.Context,
	snap *store.Snapshot,
	p store.Partition,
	token chainhash.Hash,
	fn func(model.Order, liveness.Verdict) bool,
) error {
	var classifyErr error
	err := snap.Scan(p, token, func(o model.Order) bool {
		if classifyErr = ctx.Err(); classifyErr != nil {
			return false
		}
		v, err := s.classifier.Classify(ctx, o)
		if err != nil {
			classifyErr = fmt.Errorf("classify order %v: %w", o.Outpoint(), err)
			return false
		}
		return fn(o, v)
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", p, err)
	}
	return classifyErr
}

func (s *Service) observeList(operation string, fn func() ([]Entry, error)) ([]Entry, error) {
	started := time.Now()
	entries, err := fn()
	s.metrics.Observe(operation, len(entries), err, started)
	if err != nil && !errors.Is(err, ErrInvalidArgument) && !errors.Is(err, ErrArchiveDisabled) {
		s.logger.Warn("query failed", zap.String("operation", operation), zap.Error(err))
	}
	return entries, err
}

func (s *Service) observeCounts(operation string, fn func() (Counts, error)) (Counts, error) {
	started := time.Now()
	c, err := fn()
	s.metrics.Observe(operation, int(c.Open+c.History), err, started)
	if err != nil {
		s.logger.Warn("query failed", zap.String("operation", operation), zap.Error(err))
	}
	return c, err
}
