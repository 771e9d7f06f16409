package liveness

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	CoinView interface {
		IsCoinUnspent(ctx context.Context, op wire.OutPoint) (bool, error)
	}
	MempoolView interface {
		SpentBy(op wire.OutPoint) (chainhash.Hash, bool)
	}
)
