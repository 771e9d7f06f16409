package bitcoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

// MempoolSource lists and fetches unconfirmed transactions.
type MempoolSource struct {
	rpc  RPCClient
	pool pond.Pool
}

// NewMempoolSource builds a MempoolSource fetching transactions on pool.
func NewMempoolSource(rpc RPCClient, pool pond.Pool) (*MempoolSource, error) {
	if rpc == nil {
		return nil, errors.New("rpc client is required")
	}
	if pool == nil {
		return nil, errors.New("worker pool is required")
	}
	return &MempoolSource{rpc: rpc, pool: pool}, nil
}

func (s *MempoolSource) MempoolTxIDs(ctx context.Context) ([]chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.rpc.GetRawMempool()
	if err != nil {
		return nil, fmt.Errorf("get raw mempool: %w", err)
	}
	txids := make([]chainhash.Hash, 0, len(raw))
	for _, txid := range raw {
		if txid != nil {
			txids = append(txids, *txid)
		}
	}
	return txids, nil
}

// FetchMempoolTxs fetches txids concurrently and returns them in input
// order. Transactions the node no longer knows are skipped.
func (s *MempoolSource) FetchMempoolTxs(ctx context.Context, txids []chainhash.Hash) ([]model.Tx, error) {
	var (
		txs   = make([]*model.Tx, len(txids))
		errs  = make([]error, len(txids))
		group = s.pool.NewGroupContext(ctx)
	)
	groupCtx := group.Context()

	for i := range txids {
		i := i
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				errs[i] = err
				return
			}
			txs[i], errs[i] = s.fetch(txids[i])
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Tx, 0, len(txids))
	for i, tx := range txs {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if tx != nil {
			out = append(out, *tx)
		}
	}
	return out, nil
}

func (s *MempoolSource) fetch(txid chainhash.Hash) (*model.Tx, error) {
	raw, err := s.rpc.GetRawTransactionVerbose(&txid)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mempool tx %s: %w", txid, err)
	}
	if raw.Confirmations > 0 {
		return nil, nil
	}
	tx, err := ConvertTx(*raw)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func isNotFound(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo
}
