package query

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/liveness"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Classifier interface {
		Classify(ctx context.Context, o model.Order) (liveness.Verdict, error)
	}
	Archive interface {
		ArchivedOrders(ctx context.Context, network model.Network, token chainhash.Hash, limit, offset uint64) ([]model.Order, error)
	}
	Metrics interface {
		Observe(operation string, results int, err error, started time.Time)
	}
)
