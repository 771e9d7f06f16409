package store

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/syndtr/goleveldb/leveldb"
)

const indexKeySize = 1 + chainhash.HashSize + 8 + outpointSize

// Snapshot is a read-only point-in-time view of the store.
type Snapshot struct {
	snap    *leveldb.Snapshot
	metrics Metrics
}

func (s *Snapshot) Release() {
	s.snap.Release()
}

func (s *Snapshot) Tip() (model.Tip, bool, error) {
	return readTip(s.snap)
}

func (s *Snapshot) Order(op wire.OutPoint) (model.Order, bool, error) {
	return getOrder(s.snap, op)
}

// Scan visits the orders of one partition for token in insertion order
// until fn returns false.
func (s *Snapshot) Scan(p Partition, token chainhash.Hash, fn func(model.Order) bool) (err error) {
	started := time.Now()
	defer func() { s.metrics.Observe("scan_"+p.String(), err, started) }()

	iter := s.snap.NewIterator(prefixRange(partitionPrefix(p, token)), nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		if len(key) != indexKeySize {
			return fmt.Errorf("%w: %s key length %d", ErrCorrupt, p, len(key))
		}
		op := readOutpoint(key[indexKeySize-outpointSize:])
		o, ok, err := getOrder(s.snap, op)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s entry without order %v", ErrCorrupt, p, op)
		}
		if !fn(o) {
			break
		}
	}
	return iter.Error()
}
