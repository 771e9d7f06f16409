package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type OrderStatus uint8

const (
	OrderOpen       OrderStatus = 1
	OrderHistorical OrderStatus = 2
)

func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "open"
	case OrderHistorical:
		return "historical"
	default:
		return "unknown"
	}
}

// Order is the stored record for one offered coin.
type Order struct {
	Advertisement   Advertisement
	Status          OrderStatus
	Pending         bool
	ConfirmedHeight int32
	SpentHeight     int32
	AdTxID          chainhash.Hash
	Seq             uint64
	// Unverified orders were ingested while catching up; their coin is checked against the node.
	Unverified bool
}

func (o Order) Outpoint() wire.OutPoint {
	return o.Advertisement.OfferedCoin
}

// BlockHeight is the height shown to clients, zero when unknown.
func (o Order) BlockHeight() int32 {
	if o.Status == OrderHistorical {
		return o.SpentHeight
	}
	if o.Pending {
		return 0
	}
	return o.ConfirmedHeight
}
