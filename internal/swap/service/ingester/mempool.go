package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/clock"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"go.uber.org/zap"
)

// MempoolService mirrors the node mempool into the index by diffing the
// node's transaction set against the tracked one.
type MempoolService struct {
	logger        *zap.Logger
	ingester      MempoolIngester
	source        MempoolSource
	tracker       MempoolTxTracker
	metrics       MempoolMetrics
	sleep         func(context.Context, time.Duration) error
	interval      time.Duration
	sleepDuration time.Duration
}

// NewMempoolService builds a MempoolService polling every interval.
func NewMempoolService(
	ingester MempoolIngester,
	source MempoolSource,
	tracker MempoolTxTracker,
	metrics MempoolMetrics,
	network model.Network,
	logger *zap.Logger,
	interval time.Duration,
) (*MempoolService, error) {
	if ingester == nil {
		return nil, errors.New("mempool ingester is required")
	}
	if source == nil {
		return nil, errors.New("mempool source is required")
	}
	if tracker == nil {
		return nil, errors.New("mempool tracker is required")
	}
	if metrics == nil {
		return nil, errors.New("mempool metrics is required")
	}
	if interval <= 0 {
		interval = mempoolInterval
	}
	return &MempoolService{
		logger:        logger.Named("mempool").With(zap.String("network", string(network))),
		ingester:      ingester,
		source:        source,
		tracker:       tracker,
		metrics:       metrics,
		sleep:         clock.SleepWithContext,
		interval:      interval,
		sleepDuration: sleepDuration,
	}, nil
}

// Run polls the node mempool until the context is canceled.
func (s *MempoolService) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("run iteration failed, backing off", zap.Error(err), zap.Duration("sleep", s.sleepDuration))
			if sleepErr := s.sleep(ctx, s.sleepDuration); sleepErr != nil {
				return sleepErr
			}
		}
	}
}

func (s *MempoolService) run(ctx context.Context) error {
	started := time.Now()
	added, removed, err := s.poll(ctx)
	s.metrics.ObservePoll(err, added, removed, started)
	s.metrics.SetTracked(s.tracker.Len())
	if err != nil {
		return err
	}
	if added > 0 || removed > 0 {
		s.logger.Debug("mempool synced", zap.Int("added", added), zap.Int("removed", removed))
	}
	return s.sleep(ctx, s.interval)
}

func (s *MempoolService) poll(ctx context.Context) (added, removed int, err error) {
	txids, err := s.source.MempoolTxIDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list mempool: %w", err)
	}
	current := make(map[chainhash.Hash]struct{}, len(txids))
	for _, txid := range txids {
		current[txid] = struct{}{}
	}

	known := make(map[chainhash.Hash]struct{})
	for _, txid := range s.tracker.TxIDs() {
		known[txid] = struct{}{}
		if _, ok := current[txid]; ok {
			continue
		}
		if err := s.ingester.RemoveMempoolTx(ctx, txid); err != nil {
			return added, removed, fmt.Errorf("remove mempool tx %s: %w", txid, err)
		}
		removed++
	}

	var missing []chainhash.Hash
	for _, txid := range txids {
		if _, ok := known[txid]; !ok {
			missing = append(missing, txid)
		}
	}
	if len(missing) == 0 {
		return added, removed, nil
	}

	txs, err := s.source.FetchMempoolTxs(ctx, missing)
	if err != nil {
		return added, removed, fmt.Errorf("fetch mempool txs: %w", err)
	}
	for _, tx := range txs {
		if err := s.ingester.AddMempoolTx(ctx, tx); err != nil {
			return added, removed, fmt.Errorf("add mempool tx %s: %w", tx.TxID, err)
		}
		added++
	}
	return added, removed, nil
}
