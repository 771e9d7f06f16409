// Package liveness decides at read time whether a stored order is still open.
package liveness

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/puzpuzpuz/xsync/v4"
)

// MempoolTracker remembers which outpoints unconfirmed transactions spend.
// It is written by the ingester and read concurrently by queries.
type MempoolTracker struct {
	spenders *xsync.Map[wire.OutPoint, chainhash.Hash]
	txs      *xsync.Map[chainhash.Hash, []wire.OutPoint]
}

func NewMempoolTracker() *MempoolTracker {
	return &MempoolTracker{
		spenders: xsync.NewMap[wire.OutPoint, chainhash.Hash](),
		txs:      xsync.NewMap[chainhash.Hash, []wire.OutPoint](),
	}
}

// Add records tx and the outpoints it spends. It reports false when the tx
// was already tracked.
func (t *MempoolTracker) Add(tx model.Tx) bool {
	inputs := make([]wire.OutPoint, len(tx.Inputs))
	copy(inputs, tx.Inputs)
	if _, loaded := t.txs.LoadOrStore(tx.TxID, inputs); loaded {
		return false
	}
	for _, op := range inputs {
		t.spenders.Store(op, tx.TxID)
	}
	return true
}

// Remove forgets txid and returns the outpoints it spent.
func (t *MempoolTracker) Remove(txid chainhash.Hash) []wire.OutPoint {
	inputs, ok := t.txs.LoadAndDelete(txid)
	if !ok {
		return nil
	}
	for _, op := range inputs {
		t.spenders.Compute(op, func(spender chainhash.Hash, loaded bool) (chainhash.Hash, xsync.ComputeOp) {
			if !loaded || spender != txid {
				return spender, xsync.CancelOp
			}
			return spender, xsync.DeleteOp
		})
	}
	return inputs
}

func (t *MempoolTracker) Has(txid chainhash.Hash) bool {
	_, ok := t.txs.Load(txid)
	return ok
}

// SpentBy returns the unconfirmed transaction spending op, if any.
func (t *MempoolTracker) SpentBy(op wire.OutPoint) (chainhash.Hash, bool) {
	return t.spenders.Load(op)
}

// TxIDs lists every tracked transaction.
func (t *MempoolTracker) TxIDs() []chainhash.Hash {
	ids := make([]chainhash.Hash, 0, t.txs.Size())
	t.txs.Range(func(txid chainhash.Hash, _ []wire.OutPoint) bool {
		ids = append(ids, txid)
		return true
	})
	return ids
}

func (t *MempoolTracker) Len() int {
	return t.txs.Size()
}

func (t *MempoolTracker) Reset() {
	t.txs.Clear()
	t.spenders.Clear()
}
