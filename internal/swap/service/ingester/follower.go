package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/clock"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/pkg/workerpool"
	"go.uber.org/zap"
)

// ErrBelowPruneHeight means the node no longer has the blocks the index
// would have to start from.
var ErrBelowPruneHeight = errors.New("start height is below the node prune height")

// FollowerOptions tune the chain follower.
type FollowerOptions struct {
	// StartHeight is the first block ingested into an empty index.
	StartHeight int32
	// CatchUpThreshold is how far behind the node tip a block has to be for
	// its orders to be ingested unverified.
	CatchUpThreshold int32
	// FetchBatch is the number of blocks fetched ahead per iteration.
	FetchBatch  int
	WorkerCount int
}

// FollowerService keeps the index on the node's best chain. It connects new
// blocks, disconnects blocks the node reorganized away and rebuilds the
// index when it turns out inconsistent.
type FollowerService struct {
	logger            *zap.Logger
	chain             ChainIngester
	source            BlockSource
	metrics           FollowerMetrics
	opts              FollowerOptions
	sleep             func(context.Context, time.Duration) error
	sleepDuration     time.Duration
	idleSleepDuration time.Duration
	blockSignal       <-chan struct{}
	failures          int
}

// NewFollowerService builds a FollowerService. blockSignal may be nil; when
// set, a value on it wakes the follower before the idle sleep ends.
func NewFollowerService(
	chain ChainIngester,
	source BlockSource,
	metrics FollowerMetrics,
	network model.Network,
	logger *zap.Logger,
	blockSignal <-chan struct{},
	opts FollowerOptions,
) (*FollowerService, error) {
	if chain == nil {
		return nil, errors.New("chain ingester is required")
	}
	if source == nil {
		return nil, errors.New("block source is required")
	}
	if metrics == nil {
		return nil, errors.New("follower metrics is required")
	}
	if opts.StartHeight < 0 {
		return nil, fmt.Errorf("start height must not be negative, got %d", opts.StartHeight)
	}
	if opts.CatchUpThreshold <= 0 {
		opts.CatchUpThreshold = defaultCatchUpThreshold
	}
	if opts.FetchBatch <= 0 {
		opts.FetchBatch = defaultFetchBatch
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}

	return &FollowerService{
		logger:            logger.Named("follower").With(zap.String("network", string(network))),
		chain:             chain,
		source:            source,
		metrics:           metrics,
		opts:              opts,
		sleep:             clock.SleepWithContext,
		sleepDuration:     sleepDuration,
		idleSleepDuration: idleSleepDuration,
		blockSignal:       blockSignal,
	}, nil
}

// Run follows the node until the context is canceled. It only returns early
// when the index cannot be built from the node at all.
func (s *FollowerService) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.run(ctx)
		switch {
		case err == nil:
			s.failures = 0
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrBelowPruneHeight):
			return err
		case errors.Is(err, ErrInconsistent):
			s.logger.Error("index inconsistent with the node", zap.Error(err))
			if err = s.Rebuild(ctx); err == nil {
				continue
			}
		}

		s.failures++
		backoff := clock.Backoff(s.failures, s.sleepDuration, maxBackoffDuration)
		s.logger.Warn("run iteration failed, backing off", zap.Error(err), zap.Duration("sleep", backoff))
		if sleepErr := s.sleep(ctx, backoff); sleepErr != nil {
			return sleepErr
		}
	}
}

// Rebuild wipes the index. The next iteration re-ingests it from the start height.
func (s *FollowerService) Rebuild(ctx context.Context) error {
	if err := s.chain.Wipe(ctx); err != nil {
		return fmt.Errorf("wipe index: %w", err)
	}
	s.metrics.IncRebuild()
	s.logger.Info("index wiped, rebuilding", zap.Int32("start_height", s.opts.StartHeight))
	return nil
}

func (s *FollowerService) run(ctx context.Context) error {
	started := time.Now()
	connected, err := s.sync(ctx)
	s.metrics.ObserveSync(err, connected, started)
	if err != nil {
		return err
	}
	if connected == 0 {
		return s.wait(ctx, s.idleSleepDuration)
	}
	return nil
}

// sync moves the index one step towards the node tip and returns the
// number of blocks connected.
func (s *FollowerService) sync(ctx context.Context) (int, error) {
	best, err := s.source.BestTip(ctx)
	if err != nil {
		return 0, fmt.Errorf("get best tip: %w", err)
	}
	tip, ok, err := s.chain.Tip()
	if err != nil {
		return 0, fmt.Errorf("get index tip: %w", err)
	}

	next := s.opts.StartHeight
	if ok {
		if tip, err = s.reconcile(ctx, tip, best); err != nil {
			return 0, err
		}
		next = tip.Height + 1
	}
	if next > best.Height {
		return 0, nil
	}
	if !ok || best.Height-next > s.opts.CatchUpThreshold {
		if err := s.checkPruneHeight(ctx, next); err != nil {
			return 0, err
		}
	}

	last := min(best.Height, next+int32(s.opts.FetchBatch)-1)
	heights := make([]int32, 0, last-next+1)
	for h := next; h <= last; h++ {
		heights = append(heights, h)
	}
	blocks, err := workerpool.Map(ctx, s.opts.WorkerCount, heights, s.source.FetchBlock)
	if err != nil {
		return 0, fmt.Errorf("fetch blocks %d-%d: %w", next, last, err)
	}

	connected := 0
	prev := tip.Hash
	for idx, block := range blocks {
		if (ok || idx > 0) && block.PrevHash != prev {
			s.logger.Info("chain moved while fetching blocks",
				zap.Int32("height", block.Height),
				zap.Stringer("prev_hash", block.PrevHash),
				zap.Stringer("expected", prev),
			)
			break
		}
		if best.Height-block.Height > s.opts.CatchUpThreshold {
			err = s.chain.CatchUpBlock(ctx, block)
		} else {
			err = s.chain.ConnectBlock(ctx, block)
		}
		if err != nil {
			return connected, fmt.Errorf("connect block %d: %w", block.Height, err)
		}
		prev = block.Hash
		connected++
	}
	if connected > 0 {
		s.logger.Debug("blocks connected",
			zap.Int32("from", next),
			zap.Int32("to", next+int32(connected)-1),
			zap.Int32("best", best.Height),
		)
	}
	return connected, nil
}

// reconcile disconnects index blocks that are no longer on the node's best
// chain and returns the resulting tip.
func (s *FollowerService) reconcile(ctx context.Context, tip, best model.Tip) (model.Tip, error) {
	depth := 0
	for {
		onChain, err := s.onBestChain(ctx, tip, best)
		if err != nil {
			return model.Tip{}, err
		}
		if onChain {
			break
		}
		if err := s.chain.DisconnectBlock(ctx, tip.Hash, tip.Height); err != nil {
			return model.Tip{}, fmt.Errorf("disconnect block %d: %w", tip.Height, err)
		}
		depth++

		var ok bool
		if tip, ok, err = s.chain.Tip(); err != nil {
			return model.Tip{}, fmt.Errorf("get index tip: %w", err)
		} else if !ok {
			return model.Tip{}, fmt.Errorf("%w: tip vanished after disconnect", ErrInconsistent)
		}
	}
	if depth > 0 {
		s.metrics.ObserveReorg(depth)
		s.logger.Info("reorganization handled",
			zap.Int("depth", depth),
			zap.Int32("fork_height", tip.Height),
			zap.Stringer("fork_hash", tip.Hash),
		)
	}
	return tip, nil
}

func (s *FollowerService) onBestChain(ctx context.Context, tip, best model.Tip) (bool, error) {
	if tip.Height < 0 {
		return true, nil
	}
	if tip.Height > best.Height {
		return false, nil
	}
	var (
		hash chainhash.Hash
		err  error
	)
	if tip.Height == best.Height {
		hash = best.Hash
	} else if hash, err = s.source.BlockHash(ctx, tip.Height); err != nil {
		return false, fmt.Errorf("get block hash %d: %w", tip.Height, err)
	}
	return hash == tip.Hash, nil
}

func (s *FollowerService) checkPruneHeight(ctx context.Context, next int32) error {
	pruneHeight, err := s.source.PruneHeight(ctx)
	if err != nil {
		return fmt.Errorf("get prune height: %w", err)
	}
	if next < pruneHeight {
		return fmt.Errorf("%w: next block %d, node keeps blocks from %d", ErrBelowPruneHeight, next, pruneHeight)
	}
	return nil
}

func (s *FollowerService) wait(ctx context.Context, d time.Duration) error {
	if s.blockSignal == nil {
		return s.sleep(ctx, d)
	}
	return clock.SleepOrSignal(ctx, d, s.blockSignal)
}
