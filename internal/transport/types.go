package transport

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/internal/swap/service/query"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Querier interface {
		OpenOrders(ctx context.Context, token chainhash.Hash, page query.Page) ([]query.Entry, error)
		OpenOrdersByWant(ctx context.Context, token chainhash.Hash, page query.Page) ([]query.Entry, error)
		History(ctx context.Context, token chainhash.Hash, page query.Page) ([]query.Entry, error)
		HistoryByWant(ctx context.Context, token chainhash.Hash, page query.Page) ([]query.Entry, error)
		ArchivedHistory(ctx context.Context, token chainhash.Hash, page query.Page) ([]query.Entry, error)
		Counts(ctx context.Context, token chainhash.Hash) (query.Counts, error)
		CountsByWant(ctx context.Context, token chainhash.Hash) (query.Counts, error)
		Tip() (model.Tip, bool, error)
	}
)
