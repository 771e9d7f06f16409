package ingester

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	Notifier interface {
		Publish(ctx context.Context, events []model.OrderEvent) error
	}
	IngesterMetrics interface {
		ObserveEvent(event string, err error, started time.Time)
		AddOrderChanges(kind model.OrderEventKind, n int)
		SetTip(height int32)
	}

	ChainIngester interface {
		Tip() (model.Tip, bool, error)
		ConnectBlock(ctx context.Context, block model.Block) error
		CatchUpBlock(ctx context.Context, block model.Block) error
		DisconnectBlock(ctx context.Context, hash chainhash.Hash, height int32) error
		Wipe(ctx context.Context) error
	}
	MempoolIngester interface {
		AddMempoolTx(ctx context.Context, tx model.Tx) error
		RemoveMempoolTx(ctx context.Context, txid chainhash.Hash) error
	}
	HistoryPruner interface {
		Prune(ctx context.Context, historyBlocks, journalDepth int32) ([]model.Order, error)
	}

	BlockSource interface {
		BestTip(ctx context.Context) (model.Tip, error)
		BlockHash(ctx context.Context, height int32) (chainhash.Hash, error)
		FetchBlock(ctx context.Context, height int32) (model.Block, error)
		// PruneHeight is the lowest height the node still has blocks for.
		PruneHeight(ctx context.Context) (int32, error)
	}
	MempoolSource interface {
		MempoolTxIDs(ctx context.Context) ([]chainhash.Hash, error)
		// FetchMempoolTxs skips transactions that left the mempool meanwhile.
		FetchMempoolTxs(ctx context.Context, txids []chainhash.Hash) ([]model.Tx, error)
	}
	MempoolTxTracker interface {
		TxIDs() []chainhash.Hash
		Len() int
	}
	Archiver interface {
		AddAll(ctx context.Context, orders []model.Order) error
	}

	FollowerMetrics interface {
		ObserveSync(err error, blocks int, started time.Time)
		ObserveReorg(depth int)
		IncRebuild()
	}
	MempoolMetrics interface {
		ObservePoll(err error, added, removed int, started time.Time)
		SetTracked(n int)
	}
	PrunerMetrics interface {
		ObservePrune(err error, pruned int, started time.Time)
	}
)
