package bitcoin

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/pkg/safe"
)

// BlockSource serves blocks of the node's best chain.
type BlockSource struct {
	rpc RPCClient
}

func NewBlockSource(rpc RPCClient) (*BlockSource, error) {
	if rpc == nil {
		return nil, errors.New("rpc client is required")
	}
	return &BlockSource{rpc: rpc}, nil
}

// BestTip returns the node's best block.
func (s *BlockSource) BestTip(ctx context.Context) (model.Tip, error) {
	if err := ctx.Err(); err != nil {
		return model.Tip{}, err
	}
	count, err := s.rpc.GetBlockCount()
	if err != nil {
		return model.Tip{}, err
	}
	height, err := safe.Int32(count)
	if err != nil {
		return model.Tip{}, fmt.Errorf("block count: %w", err)
	}
	hash, err := s.BlockHash(ctx, height)
	if err != nil {
		return model.Tip{}, err
	}
	return model.Tip{Height: height, Hash: hash}, nil
}

func (s *BlockSource) BlockHash(ctx context.Context, height int32) (chainhash.Hash, error) {
	if err := ctx.Err(); err != nil {
		return chainhash.Hash{}, err
	}
	hash, err := s.rpc.GetBlockHash(int64(height))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("get block hash at height %d: %w", height, err)
	}
	return *hash, nil
}

// FetchBlock retrieves the block at height with its transactions.
func (s *BlockSource) FetchBlock(ctx context.Context, height int32) (model.Block, error) {
	hash, err := s.BlockHash(ctx, height)
	if err != nil {
		return model.Block{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Block{}, err
	}
	src, err := s.rpc.GetBlockVerboseTx(&hash)
	if err != nil {
		return model.Block{}, fmt.Errorf("get block %s: %w", hash, err)
	}
	block, err := ConvertBlock(*src)
	if err != nil {
		return model.Block{}, err
	}
	if block.Height != height {
		return model.Block{}, fmt.Errorf("block %s reports height %d, want %d", hash, block.Height, height)
	}
	return block, nil
}

// PruneHeight returns the lowest height the node has block data for, zero
// when the node is not pruned.
func (s *BlockSource) PruneHeight(ctx context.Context) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	info, err := s.rpc.GetBlockChainInfo()
	if err != nil {
		return 0, fmt.Errorf("get blockchain info: %w", err)
	}
	if !info.Pruned {
		return 0, nil
	}
	return info.PruneHeight, nil
}
