package ingester

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/decoder"
	"github.com/goodnatureofminers/swapindex/internal/swap/liveness"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/internal/swap/store"
	"go.uber.org/zap"
)

// ErrInconsistent means an event does not line up with the index tip. The
// index has to be wiped and rebuilt.
var ErrInconsistent = errors.New("swap index inconsistent")

// Ingester is the only writer of the order store. Events are applied one at
// a time; each event is committed as a single batch.
type Ingester struct {
	mu       sync.Mutex
	store    *store.Store
	tracker  *liveness.MempoolTracker
	notifier Notifier
	metrics  IngesterMetrics
	logger   *zap.Logger
}

// New builds an Ingester. notifier may be nil.
func New(
	st *store.Store,
	tracker *liveness.MempoolTracker,
	notifier Notifier,
	metrics IngesterMetrics,
	logger *zap.Logger,
) (*Ingester, error) {
	if st == nil {
		return nil, errors.New("order store is required")
	}
	if tracker == nil {
		return nil, errors.New("mempool tracker is required")
	}
	if metrics == nil {
		return nil, errors.New("ingester metrics is required")
	}
	return &Ingester{
		store:    st,
		tracker:  tracker,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.Named("ingester"),
	}, nil
}

// Tip returns the last block applied to the index.
func (i *Ingester) Tip() (model.Tip, bool, error) {
	return i.store.Tip()
}

// ConnectBlock applies a block on top of the index tip.
func (i *Ingester) ConnectBlock(ctx context.Context, block model.Block) error {
	return i.connect(ctx, block, false)
}

// CatchUpBlock applies a block while the index is far behind the node.
// Orders it creates are marked unverified and checked against the node's
// coin view at read time.
func (i *Ingester) CatchUpBlock(ctx context.Context, block model.Block) error {
	return i.connect(ctx, block, true)
}

func (i *Ingester) connect(ctx context.Context, block model.Block, unverified bool) (err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("connect_block", err, started) }()
	if err = ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	txn := i.store.Begin()
	defer txn.Discard()

	applied, err := i.checkConnect(txn, block)
	if err != nil || applied {
		return err
	}

	var events []model.OrderEvent
	spentInBlock := make(map[wire.OutPoint]struct{})
	for _, tx := range block.Txs {
		if !tx.Coinbase {
			for _, in := range tx.Inputs {
				spentInBlock[in] = struct{}{}
				o, ok, err := txn.Order(in)
				if err != nil {
					return err
				}
				if !ok || o.Status != model.OrderOpen {
					continue
				}
				if o, err = txn.MarkSpent(in, block.Height); err != nil {
					return err
				}
				events = append(events, model.OrderEvent{Kind: model.EventOrderSpent, Order: o})
			}
		}

		for _, ad := range decoder.DecodeTx(tx) {
			event, ok, err := i.applyConfirmedAd(txn, ad, tx.TxID, block.Height, unverified)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			events = append(events, event)
			if _, spent := spentInBlock[ad.OfferedCoin]; spent {
				o, err := txn.MarkSpent(ad.OfferedCoin, block.Height)
				if err != nil {
					return err
				}
				events = append(events, model.OrderEvent{Kind: model.EventOrderSpent, Order: o})
			}
		}
	}

	journal := store.Journal{Hash: block.Hash, PrevHash: block.PrevHash, Entries: txn.Changes()}
	if err = txn.PutJournal(block.Height, journal); err != nil {
		return err
	}
	txn.ClearUndone(block.Height)
	txn.SetTip(model.Tip{Height: block.Height, Hash: block.Hash})
	if err = txn.Commit(); err != nil {
		return err
	}

	for _, tx := range block.Txs {
		i.tracker.Remove(tx.TxID)
	}
	i.logger.Debug("block connected",
		zap.Int32("height", block.Height),
		zap.Stringer("hash", block.Hash),
		zap.Int("changes", len(events)),
		zap.Bool("unverified", unverified),
	)
	i.committed(ctx, block.Height, events)
	return nil
}

// checkConnect reports whether block is already applied, or fails when it
// does not extend the tip.
func (i *Ingester) checkConnect(txn *store.Txn, block model.Block) (bool, error) {
	tip, ok, err := txn.Tip()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if block.Height <= tip.Height {
		journal, found, err := txn.Journal(block.Height)
		if err != nil {
			return false, err
		}
		if found && journal.Hash == block.Hash {
			return true, nil
		}
		return false, fmt.Errorf("%w: connect %s at height %d, tip is %d", ErrInconsistent, block.Hash, block.Height, tip.Height)
	}
	if block.Height != tip.Height+1 {
		return false, fmt.Errorf("%w: connect height %d leaves a gap after tip %d", ErrInconsistent, block.Height, tip.Height)
	}
	if block.PrevHash != tip.Hash {
		return false, fmt.Errorf("%w: block %s does not extend tip %s", ErrInconsistent, block.Hash, tip.Hash)
	}
	return false, nil
}

func (i *Ingester) applyConfirmedAd(
	txn *store.Txn,
	ad model.Advertisement,
	adTxID chainhash.Hash,
	height int32,
	unverified bool,
) (model.OrderEvent, bool, error) {
	existing, ok, err := txn.Order(ad.OfferedCoin)
	if err != nil {
		return model.OrderEvent{}, false, err
	}
	switch {
	case ok && existing.Pending && existing.AdTxID == adTxID:
		// The coin may already be spent by an earlier block; the order
		// still records where its advertisement was mined.
		o, err := txn.MarkConfirmed(ad.OfferedCoin, height)
		if err != nil {
			return model.OrderEvent{}, false, err
		}
		return model.OrderEvent{Kind: model.EventOrderConfirmed, Order: o}, true, nil
	case ok && existing.Status == model.OrderHistorical:
		i.logger.Debug("ignoring advertisement of a spent coin",
			zap.Stringer("coin", ad.OfferedCoin), zap.Stringer("tx", adTxID))
		return model.OrderEvent{}, false, nil
	}

	o, err := txn.Upsert(ad, adTxID, store.Provenance{Height: height, Unverified: unverified})
	if err != nil {
		return model.OrderEvent{}, false, err
	}
	return model.OrderEvent{Kind: model.EventOrderOpened, Order: o}, true, nil
}

// DisconnectBlock reverts the tip block using its undo journal.
func (i *Ingester) DisconnectBlock(ctx context.Context, hash chainhash.Hash, height int32) (err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("disconnect_block", err, started) }()
	if err = ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	txn := i.store.Begin()
	defer txn.Discard()

	tip, ok, err := txn.Tip()
	if err != nil {
		return err
	}
	if !ok || height > tip.Height {
		undone, err := txn.Undone(height, hash)
		if err != nil || undone {
			return err
		}
		return fmt.Errorf("%w: disconnect %s at height %d before it was connected", ErrInconsistent, hash, height)
	}
	if height < tip.Height || hash != tip.Hash {
		return fmt.Errorf("%w: disconnect %s at height %d, tip is %s at %d", ErrInconsistent, hash, height, tip.Hash, tip.Height)
	}
	journal, found, err := txn.Journal(height)
	if err != nil {
		return err
	}
	if !found || journal.Hash != hash {
		return fmt.Errorf("%w: missing undo journal for %s at height %d", ErrInconsistent, hash, height)
	}

	events, err := i.undo(txn, journal)
	if err != nil {
		return err
	}
	txn.DeleteJournal(height)
	txn.MarkUndone(height, hash)
	txn.SetTip(model.Tip{Height: height - 1, Hash: journal.PrevHash})
	if err = txn.Commit(); err != nil {
		return err
	}

	i.logger.Debug("block disconnected",
		zap.Int32("height", height),
		zap.Stringer("hash", hash),
		zap.Int("changes", len(events)),
	)
	i.committed(ctx, height-1, events)
	return nil
}

func (i *Ingester) undo(txn *store.Txn, journal store.Journal) ([]model.OrderEvent, error) {
	events := make([]model.OrderEvent, 0, len(journal.Entries))
	for idx := len(journal.Entries) - 1; idx >= 0; idx-- {
		entry := journal.Entries[idx]
		current, ok, err := txn.Order(entry.Outpoint)
		if err != nil {
			return nil, err
		}

		if entry.Created && ok && i.tracker.Has(current.AdTxID) {
			pending := current
			pending.Status = model.OrderOpen
			pending.Pending = true
			pending.ConfirmedHeight = 0
			pending.SpentHeight = 0
			if err := txn.Restore(entry.Outpoint, &pending); err != nil {
				return nil, err
			}
			events = append(events, model.OrderEvent{Kind: model.EventOrderRestored, Order: pending})
			continue
		}

		// A pending record whose advertisement is no longer in the mempool
		// is dropped; the mempool poller recreates it if the tx comes back.
		if entry.Prev != nil && entry.Prev.Pending && !i.tracker.Has(entry.Prev.AdTxID) {
			if err := txn.Delete(entry.Outpoint); err != nil {
				return nil, err
			}
			if ok {
				events = append(events, model.OrderEvent{Kind: model.EventOrderRemoved, Order: current})
			}
			continue
		}

		if err := txn.Restore(entry.Outpoint, entry.Prev); err != nil {
			return nil, err
		}
		switch {
		case entry.Prev == nil && ok:
			events = append(events, model.OrderEvent{Kind: model.EventOrderRemoved, Order: current})
		case entry.Prev != nil:
			events = append(events, model.OrderEvent{Kind: model.EventOrderRestored, Order: *entry.Prev})
		}
	}
	return events, nil
}

// AddMempoolTx records the spends of an unconfirmed tx and creates pending
// orders for the advertisements it carries. Existing records always win
// over mempool advertisements.
func (i *Ingester) AddMempoolTx(ctx context.Context, tx model.Tx) (err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("add_mempool_tx", err, started) }()
	if err = ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.tracker.Add(tx) {
		return nil
	}
	ads := decoder.DecodeTx(tx)
	if len(ads) == 0 {
		return nil
	}

	txn := i.store.Begin()
	defer txn.Discard()

	var events []model.OrderEvent
	for _, ad := range ads {
		_, exists, err := txn.Order(ad.OfferedCoin)
		if err != nil {
			i.tracker.Remove(tx.TxID)
			return err
		}
		if exists {
			continue
		}
		o, err := txn.Upsert(ad, tx.TxID, store.Provenance{Pending: true})
		if err != nil {
			i.tracker.Remove(tx.TxID)
			return err
		}
		events = append(events, model.OrderEvent{Kind: model.EventOrderOpened, Order: o})
	}
	if err = txn.Commit(); err != nil {
		i.tracker.Remove(tx.TxID)
		return err
	}
	i.committed(ctx, 0, events)
	return nil
}

// RemoveMempoolTx forgets an unconfirmed tx and drops the pending orders it
// created.
func (i *Ingester) RemoveMempoolTx(ctx context.Context, txid chainhash.Hash) (err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("remove_mempool_tx", err, started) }()
	if err = ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.tracker.Remove(txid)

	txn := i.store.Begin()
	defer txn.Discard()

	ops, err := txn.PendingByTx(txid)
	if err != nil || len(ops) == 0 {
		return err
	}
	var events []model.OrderEvent
	for _, op := range ops {
		o, ok, err := txn.Order(op)
		if err != nil {
			return err
		}
		removed, err := txn.RemoveIfUnconfirmed(op, txid)
		if err != nil {
			return err
		}
		if removed && ok {
			events = append(events, model.OrderEvent{Kind: model.EventOrderRemoved, Order: o})
		}
	}
	if err = txn.Commit(); err != nil {
		return err
	}
	i.committed(ctx, 0, events)
	return nil
}

// Prune deletes history spent more than historyBlocks below the tip and
// undo journals older than journalDepth blocks. It returns the pruned orders.
func (i *Ingester) Prune(ctx context.Context, historyBlocks, journalDepth int32) (pruned []model.Order, err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("prune", err, started) }()
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	txn := i.store.Begin()
	defer txn.Discard()

	tip, ok, err := txn.Tip()
	if err != nil || !ok {
		return nil, err
	}
	if cutoff := tip.Height - historyBlocks; cutoff > 0 {
		if pruned, err = txn.PruneHistory(cutoff); err != nil {
			return nil, err
		}
	}
	journals, err := txn.PruneJournals(tip.Height - journalDepth + 1)
	if err != nil {
		return nil, err
	}
	if err = txn.Commit(); err != nil {
		return nil, err
	}
	if len(pruned) > 0 || journals > 0 {
		i.logger.Info("pruned index",
			zap.Int32("tip", tip.Height),
			zap.Int("history", len(pruned)),
			zap.Int("journals", journals),
		)
	}
	return pruned, nil
}

// Wipe empties the index and the mempool tracker.
func (i *Ingester) Wipe(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { i.metrics.ObserveEvent("wipe", err, started) }()
	if err = ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if err = i.store.Wipe(); err != nil {
		return err
	}
	i.tracker.Reset()
	i.logger.Info("index wiped")
	return nil
}

func (i *Ingester) committed(ctx context.Context, tipHeight int32, events []model.OrderEvent) {
	if tipHeight > 0 {
		i.metrics.SetTip(tipHeight)
	}
	if len(events) == 0 {
		return
	}

	counts := make(map[model.OrderEventKind]int)
	for _, e := range events {
		counts[e.Kind]++
	}
	for kind, n := range counts {
		i.metrics.AddOrderChanges(kind, n)
	}

	if i.notifier == nil {
		return
	}
	if err := i.notifier.Publish(ctx, events); err != nil {
		i.logger.Warn("publish order events failed", zap.Error(err), zap.Int("events", len(events)))
	}
}
