package store

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

// SchemaVersion is bumped whenever the key layout or record encoding changes.
const SchemaVersion uint32 = 1

const (
	prefixOrder       byte = 'r'
	prefixOpen        byte = 'o'
	prefixHistory     byte = 'h'
	prefixOpenWant    byte = 'p'
	prefixHistoryWant byte = 'q'
	prefixPending     byte = 'm'
	prefixSpent       byte = 'x'
	prefixJournal     byte = 'j'
	prefixUndone      byte = 'd'
)

var (
	keyTip     = []byte{'T'}
	keySeq     = []byte{'S'}
	keyVersion = []byte{'V'}
)

const outpointSize = chainhash.HashSize + 4

// Partition selects one secondary index.
type Partition byte

const (
	OpenByToken    = Partition(prefixOpen)
	HistoryByToken = Partition(prefixHistory)
	OpenByWant     = Partition(prefixOpenWant)
	HistoryByWant  = Partition(prefixHistoryWant)
)

func (p Partition) String() string {
	switch p {
	case OpenByToken:
		return "open"
	case HistoryByToken:
		return "history"
	case OpenByWant:
		return "open_by_want"
	case HistoryByWant:
		return "history_by_want"
	default:
		return "unknown"
	}
}

func appendOutpoint(b []byte, op wire.OutPoint) []byte {
	b = append(b, op.Hash[:]...)
	return binary.BigEndian.AppendUint32(b, op.Index)
}

func readOutpoint(b []byte) wire.OutPoint {
	var op wire.OutPoint
	copy(op.Hash[:], b[:chainhash.HashSize])
	op.Index = binary.BigEndian.Uint32(b[chainhash.HashSize:outpointSize])
	return op
}

func orderKey(op wire.OutPoint) []byte {
	return appendOutpoint([]byte{prefixOrder}, op)
}

// <prefix><token><seq><outpoint>; seq keeps insertion order within a token.
func indexKey(prefix byte, token chainhash.Hash, seq uint64, op wire.OutPoint) []byte {
	key := make([]byte, 0, 1+chainhash.HashSize+8+outpointSize)
	key = append(key, prefix)
	key = append(key, token[:]...)
	key = binary.BigEndian.AppendUint64(key, seq)
	return appendOutpoint(key, op)
}

func partitionPrefix(p Partition, token chainhash.Hash) []byte {
	return append([]byte{byte(p)}, token[:]...)
}

// <m><ad txid><outpoint> lets a vanished mempool tx find the orders it created.
func pendingKey(adTxID chainhash.Hash, op wire.OutPoint) []byte {
	key := append([]byte{prefixPending}, adTxID[:]...)
	return appendOutpoint(key, op)
}

func pendingPrefix(adTxID chainhash.Hash) []byte {
	return append([]byte{prefixPending}, adTxID[:]...)
}

func spentKey(height int32, op wire.OutPoint) []byte {
	key := binary.BigEndian.AppendUint32([]byte{prefixSpent}, uint32(height))
	return appendOutpoint(key, op)
}

func journalKey(height int32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixJournal}, uint32(height))
}

// undoneKey remembers the hash of the last block disconnected at a height.
func undoneKey(height int32) []byte {
	return binary.BigEndian.AppendUint32([]byte{prefixUndone}, uint32(height))
}

// indexKeys lists every secondary key that must exist for o.
func indexKeys(o model.Order) [][]byte {
	ad := o.Advertisement
	op := ad.OfferedCoin
	keys := make([][]byte, 0, 3)

	if o.Status == model.OrderHistorical {
		keys = append(keys, indexKey(prefixHistory, ad.TokenID, o.Seq, op))
		if ad.HasWant() {
			keys = append(keys, indexKey(prefixHistoryWant, ad.WantTokenID, o.Seq, op))
		}
		keys = append(keys, spentKey(o.SpentHeight, op))
	} else {
		keys = append(keys, indexKey(prefixOpen, ad.TokenID, o.Seq, op))
		if ad.HasWant() {
			keys = append(keys, indexKey(prefixOpenWant, ad.WantTokenID, o.Seq, op))
		}
	}
	if o.Pending {
		keys = append(keys, pendingKey(o.AdTxID, op))
	}
	return keys
}
