package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type Network string

var (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
)

// Tx is the part of a transaction the index cares about.
type Tx struct {
	TxID     chainhash.Hash
	Coinbase bool
	Inputs   []wire.OutPoint
	// Outputs holds the pkScript of every output in order.
	Outputs [][]byte
}

type Block struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Height   int32
	Txs      []Tx
}

// Tip is the last block applied to the index.
type Tip struct {
	Height int32
	Hash   chainhash.Hash
}

type OrderEventKind string

const (
	EventOrderOpened    OrderEventKind = "order.opened"
	EventOrderConfirmed OrderEventKind = "order.confirmed"
	EventOrderSpent     OrderEventKind = "order.spent"
	EventOrderRestored  OrderEventKind = "order.restored"
	EventOrderRemoved   OrderEventKind = "order.removed"
)

// OrderEvent describes a committed change of one order.
type OrderEvent struct {
	Kind  OrderEventKind
	Order Order
}
