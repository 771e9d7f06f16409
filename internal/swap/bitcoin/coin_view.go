package bitcoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// CoinView answers coin lookups from the node's confirmed UTXO set.
type CoinView struct {
	rpc RPCClient
}

func NewCoinView(rpc RPCClient) (*CoinView, error) {
	if rpc == nil {
		return nil, errors.New("rpc client is required")
	}
	return &CoinView{rpc: rpc}, nil
}

// IsCoinUnspent reports whether op is in the confirmed UTXO set. Mempool
// spends are not considered.
func (v *CoinView) IsCoinUnspent(ctx context.Context, op wire.OutPoint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := v.rpc.GetTxOut(&op.Hash, op.Index, false)
	if err != nil {
		return false, fmt.Errorf("get tx out %v: %w", op, err)
	}
	if res == nil {
		return false, nil
	}
	if _, err := btcutil.NewAmount(res.Value); err != nil {
		return false, fmt.Errorf("tx out %v value: %w", op, err)
	}
	return true, nil
}
