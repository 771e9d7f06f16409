// Package bitcoin adapts the node JSON-RPC interface to the swap index.
package bitcoin

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/pkg/safe"
)

// ConvertBlock maps a verbose block into the index block model.
func ConvertBlock(src btcjson.GetBlockVerboseTxResult) (model.Block, error) {
	height, err := safe.Int32(src.Height)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %s height: %w", src.Hash, err)
	}
	hash, err := chainhash.NewHashFromStr(src.Hash)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %d hash: %w", src.Height, err)
	}
	block := model.Block{Hash: *hash, Height: height, Txs: make([]model.Tx, 0, len(src.Tx))}
	if src.PreviousHash != "" {
		prev, err := chainhash.NewHashFromStr(src.PreviousHash)
		if err != nil {
			return model.Block{}, fmt.Errorf("block %d previous hash: %w", src.Height, err)
		}
		block.PrevHash = *prev
	}

	for _, raw := range src.Tx {
		tx, err := ConvertTx(raw)
		if err != nil {
			return model.Block{}, fmt.Errorf("block %d: %w", src.Height, err)
		}
		block.Txs = append(block.Txs, tx)
	}
	return block, nil
}

// ConvertTx maps a verbose transaction into the index tx model.
func ConvertTx(src btcjson.TxRawResult) (model.Tx, error) {
	txid, err := chainhash.NewHashFromStr(src.Txid)
	if err != nil {
		return model.Tx{}, fmt.Errorf("tx %q id: %w", src.Txid, err)
	}
	tx := model.Tx{
		TxID:    *txid,
		Inputs:  make([]wire.OutPoint, 0, len(src.Vin)),
		Outputs: make([][]byte, len(src.Vout)),
	}

	for _, in := range src.Vin {
		if in.IsCoinBase() {
			tx.Coinbase = true
			continue
		}
		prev, err := chainhash.NewHashFromStr(in.Txid)
		if err != nil {
			return model.Tx{}, fmt.Errorf("tx %s input %s: %w", src.Txid, in.Txid, err)
		}
		tx.Inputs = append(tx.Inputs, wire.OutPoint{Hash: *prev, Index: in.Vout})
	}

	for _, out := range src.Vout {
		if int(out.N) >= len(tx.Outputs) {
			return model.Tx{}, fmt.Errorf("tx %s output index %d out of range", src.Txid, out.N)
		}
		if _, err := btcutil.NewAmount(out.Value); err != nil {
			return model.Tx{}, fmt.Errorf("tx %s output %d value: %w", src.Txid, out.N, err)
		}
		script, err := hex.DecodeString(out.ScriptPubKey.Hex)
		if err != nil {
			return model.Tx{}, fmt.Errorf("tx %s output %d script: %w", src.Txid, out.N, err)
		}
		tx.Outputs[out.N] = script
	}
	return tx, nil
}
