package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/syndtr/goleveldb/leveldb"
)

// Provenance says where an advertisement was seen.
type Provenance struct {
	// Height of the confirming block, ignored for pending orders.
	Height     int32
	Pending    bool
	Unverified bool
}

// Txn buffers mutations and applies them in one atomic batch on Commit.
// Reads through a Txn observe its own uncommitted writes.
type Txn struct {
	store   *Store
	batch   *leveldb.Batch
	orders  map[wire.OutPoint]*model.Order
	changes []JournalEntry
	touched map[wire.OutPoint]struct{}
	tip     *model.Tip
	seq     uint64
	seqRead bool
	done    bool
}

// Order returns the current record for op.
func (t *Txn) Order(op wire.OutPoint) (model.Order, bool, error) {
	if o, ok := t.orders[op]; ok {
		if o == nil {
			return model.Order{}, false, nil
		}
		return *o, true, nil
	}
	return getOrder(t.store.db, op)
}

// Upsert writes a fresh OPEN record for the advertised coin, replacing any
// existing one. The record gets a new insertion sequence.
func (t *Txn) Upsert(ad model.Advertisement, adTxID chainhash.Hash, prov Provenance) (model.Order, error) {
	seq, err := t.nextSeq()
	if err != nil {
		return model.Order{}, err
	}
	o := model.Order{
		Advertisement: ad,
		Status:        model.OrderOpen,
		Pending:       prov.Pending,
		AdTxID:        adTxID,
		Seq:           seq,
		Unverified:    prov.Unverified,
	}
	if !prov.Pending {
		o.ConfirmedHeight = prov.Height
	}
	if err := t.put(o); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// RemoveIfUnconfirmed drops the order on op when it is still pending and
// was advertised by adTxID.
func (t *Txn) RemoveIfUnconfirmed(op wire.OutPoint, adTxID chainhash.Hash) (bool, error) {
	o, ok, err := t.Order(op)
	if err != nil || !ok {
		return false, err
	}
	if !o.Pending || o.AdTxID != adTxID {
		return false, nil
	}
	return true, t.Delete(op)
}

// MarkConfirmed records the block that mined the advertisement.
func (t *Txn) MarkConfirmed(op wire.OutPoint, height int32) (model.Order, error) {
	return t.update(op, func(o *model.Order) {
		o.Pending = false
		o.ConfirmedHeight = height
	})
}

// MarkUnconfirmed moves the order back to pending.
func (t *Txn) MarkUnconfirmed(op wire.OutPoint) (model.Order, error) {
	return t.update(op, func(o *model.Order) {
		o.Pending = true
		o.ConfirmedHeight = 0
	})
}

// MarkSpent moves the order into the historical partition.
func (t *Txn) MarkSpent(op wire.OutPoint, height int32) (model.Order, error) {
	return t.update(op, func(o *model.Order) {
		o.Status = model.OrderHistorical
		o.SpentHeight = height
	})
}

// MarkUnspent moves the order back into the open partition.
func (t *Txn) MarkUnspent(op wire.OutPoint) (model.Order, error) {
	return t.update(op, func(o *model.Order) {
		o.Status = model.OrderOpen
		o.SpentHeight = 0
	})
}

// Restore puts back a journaled record; a nil prev deletes the order.
func (t *Txn) Restore(op wire.OutPoint, prev *model.Order) error {
	if prev == nil {
		return t.Delete(op)
	}
	return t.put(*prev)
}

// Delete removes the order on op together with its index entries.
func (t *Txn) Delete(op wire.OutPoint) error {
	prev, ok, err := t.Order(op)
	if err != nil || !ok {
		return err
	}
	t.touch(op, &prev)
	for _, key := range indexKeys(prev) {
		t.batch.Delete(key)
	}
	t.batch.Delete(orderKey(op))
	t.orders[op] = nil
	return nil
}

// Changes lists every touched outpoint with its record as it was before
// this transaction, in first-touch order.
func (t *Txn) Changes() []JournalEntry {
	out := make([]JournalEntry, len(t.changes))
	copy(out, t.changes)
	return out
}

// PendingByTx lists the committed pending orders advertised by adTxID.
func (t *Txn) PendingByTx(adTxID chainhash.Hash) ([]wire.OutPoint, error) {
	prefix := pendingPrefix(adTxID)
	iter := t.store.db.NewIterator(prefixRange(prefix), nil)
	defer iter.Release()

	var ops []wire.OutPoint
	for iter.Next() {
		key := iter.Key()
		if len(key) != len(prefix)+outpointSize {
			return nil, fmt.Errorf("%w: pending key length %d", ErrCorrupt, len(key))
		}
		ops = append(ops, readOutpoint(key[len(prefix):]))
	}
	return ops, iter.Error()
}

func (t *Txn) PutJournal(height int32, j Journal) error {
	raw, err := encodeJournal(j)
	if err != nil {
		return fmt.Errorf("encode journal %d: %w", height, err)
	}
	t.batch.Put(journalKey(height), raw)
	return nil
}

// Journal reads the committed undo journal of the block at height.
func (t *Txn) Journal(height int32) (Journal, bool, error) {
	raw, err := t.store.db.Get(journalKey(height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return Journal{}, false, nil
	}
	if err != nil {
		return Journal{}, false, fmt.Errorf("get journal %d: %w", height, err)
	}
	j, err := decodeJournal(raw)
	if err != nil {
		return Journal{}, false, fmt.Errorf("%w: journal %d: %v", ErrCorrupt, height, err)
	}
	return j, true, nil
}

func (t *Txn) DeleteJournal(height int32) {
	t.batch.Delete(journalKey(height))
}

// MarkUndone records that the block hash at height was disconnected.
func (t *Txn) MarkUndone(height int32, hash chainhash.Hash) {
	t.batch.Put(undoneKey(height), hash[:])
}

func (t *Txn) ClearUndone(height int32) {
	t.batch.Delete(undoneKey(height))
}

// Undone reports whether hash is the last block disconnected at height.
func (t *Txn) Undone(height int32, hash chainhash.Hash) (bool, error) {
	raw, err := t.store.db.Get(undoneKey(height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get undone marker %d: %w", height, err)
	}
	if len(raw) != chainhash.HashSize {
		return false, fmt.Errorf("%w: undone marker %d has %d bytes", ErrCorrupt, height, len(raw))
	}
	return chainhash.Hash(raw) == hash, nil
}

func (t *Txn) SetTip(tip model.Tip) {
	t.tip = &tip
	t.batch.Put(keyTip, encodeTip(tip))
}

func (t *Txn) Tip() (model.Tip, bool, error) {
	if t.tip != nil {
		return *t.tip, true, nil
	}
	return readTip(t.store.db)
}

// PruneHistory deletes historical orders spent at or below cutoff and
// returns them.
func (t *Txn) PruneHistory(cutoff int32) ([]model.Order, error) {
	iter := t.store.db.NewIterator(prefixRange([]byte{prefixSpent}), nil)
	defer iter.Release()

	var pruned []model.Order
	for iter.Next() {
		key := iter.Key()
		if len(key) != 1+4+outpointSize {
			return nil, fmt.Errorf("%w: spent key length %d", ErrCorrupt, len(key))
		}
		if int32(binary.BigEndian.Uint32(key[1:5])) > cutoff {
			break
		}
		op := readOutpoint(key[5:])
		o, ok, err := t.Order(op)
		if err != nil {
			return nil, err
		}
		if !ok || o.Status != model.OrderHistorical {
			t.batch.Delete(append([]byte(nil), key...))
			continue
		}
		if err := t.Delete(op); err != nil {
			return nil, err
		}
		pruned = append(pruned, o)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate spent index: %w", err)
	}
	return pruned, nil
}

// PruneJournals deletes undo journals and disconnect markers of blocks
// below height. It returns the number of journals deleted.
func (t *Txn) PruneJournals(below int32) (int, error) {
	if _, err := t.pruneHeightKeys(prefixUndone, below); err != nil {
		return 0, err
	}
	return t.pruneHeightKeys(prefixJournal, below)
}

func (t *Txn) pruneHeightKeys(prefix byte, below int32) (int, error) {
	iter := t.store.db.NewIterator(prefixRange([]byte{prefix}), nil)
	defer iter.Release()

	deleted := 0
	for iter.Next() {
		key := iter.Key()
		if len(key) != 5 || int32(binary.BigEndian.Uint32(key[1:])) >= below {
			break
		}
		t.batch.Delete(append([]byte(nil), key...))
		deleted++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("iterate %q keys: %w", prefix, err)
	}
	return deleted, nil
}

// Commit writes every buffered mutation atomically.
func (t *Txn) Commit() (err error) {
	if t.done {
		return errors.New("transaction already finished")
	}
	started := time.Now()
	defer func() { t.store.metrics.Observe("commit", err, started) }()

	t.done = true
	if t.batch.Len() == 0 {
		return nil
	}
	if err = t.store.db.Write(t.batch, nil); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Discard drops every buffered mutation.
func (t *Txn) Discard() {
	t.done = true
	t.batch.Reset()
	t.orders = nil
	t.changes = nil
	t.touched = nil
}

func (t *Txn) update(op wire.OutPoint, mutate func(o *model.Order)) (model.Order, error) {
	o, ok, err := t.Order(op)
	if err != nil {
		return model.Order{}, err
	}
	if !ok {
		return model.Order{}, fmt.Errorf("%w: %v", ErrNotFound, op)
	}
	mutate(&o)
	if err := t.put(o); err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (t *Txn) put(o model.Order) error {
	op := o.Outpoint()
	prev, existed, err := t.Order(op)
	if err != nil {
		return err
	}
	raw, err := encodeOrder(o)
	if err != nil {
		return fmt.Errorf("encode order %v: %w", op, err)
	}

	if existed {
		t.touch(op, &prev)
		for _, key := range indexKeys(prev) {
			t.batch.Delete(key)
		}
	} else {
		t.touch(op, nil)
	}
	t.batch.Put(orderKey(op), raw)
	for _, key := range indexKeys(o) {
		t.batch.Put(key, nil)
	}
	t.orders[op] = &o
	return nil
}

func (t *Txn) touch(op wire.OutPoint, prev *model.Order) {
	if _, ok := t.touched[op]; ok {
		return
	}
	t.touched[op] = struct{}{}
	entry := JournalEntry{Outpoint: op, Created: prev == nil}
	if prev != nil {
		p := *prev
		entry.Prev = &p
	}
	t.changes = append(t.changes, entry)
}

func (t *Txn) nextSeq() (uint64, error) {
	if !t.seqRead {
		raw, err := t.store.db.Get(keySeq, nil)
		switch {
		case errors.Is(err, leveldb.ErrNotFound):
		case err != nil:
			return 0, fmt.Errorf("get sequence: %w", err)
		case len(raw) != 8:
			return 0, fmt.Errorf("%w: sequence has %d bytes", ErrCorrupt, len(raw))
		default:
			t.seq = binary.BigEndian.Uint64(raw)
		}
		t.seqRead = true
	}
	t.seq++
	t.batch.Put(keySeq, binary.BigEndian.AppendUint64(nil, t.seq))
	return t.seq, nil
}
