package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/swapindex/internal/clock"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"go.uber.org/zap"
)

// PrunerOptions bound how much history and undo data the index keeps.
type PrunerOptions struct {
	HistoryBlocks int32
	JournalDepth  int32
	Interval      time.Duration
}

// PrunerService periodically drops old history and undo journals. Pruned
// history is handed to the archiver when one is configured.
type PrunerService struct {
	logger        *zap.Logger
	pruner        HistoryPruner
	archiver      Archiver
	metrics       PrunerMetrics
	sleep         func(context.Context, time.Duration) error
	interval      time.Duration
	historyBlocks int32
	journalDepth  int32
}

// NewPrunerService builds a PrunerService. archiver may be nil.
func NewPrunerService(
	pruner HistoryPruner,
	archiver Archiver,
	metrics PrunerMetrics,
	network model.Network,
	logger *zap.Logger,
	opts PrunerOptions,
) (*PrunerService, error) {
	if pruner == nil {
		return nil, errors.New("history pruner is required")
	}
	if metrics == nil {
		return nil, errors.New("pruner metrics is required")
	}
	if opts.HistoryBlocks <= 0 {
		opts.HistoryBlocks = defaultHistoryBlocks
	}
	if opts.JournalDepth <= 0 {
		opts.JournalDepth = defaultJournalDepth
	}
	if opts.Interval <= 0 {
		opts.Interval = pruneInterval
	}
	if opts.JournalDepth >= opts.HistoryBlocks {
		return nil, fmt.Errorf("journal depth %d must be below history blocks %d", opts.JournalDepth, opts.HistoryBlocks)
	}
	return &PrunerService{
		logger:        logger.Named("pruner").With(zap.String("network", string(network))),
		pruner:        pruner,
		archiver:      archiver,
		metrics:       metrics,
		sleep:         clock.SleepWithContext,
		interval:      opts.Interval,
		historyBlocks: opts.HistoryBlocks,
		journalDepth:  opts.JournalDepth,
	}, nil
}

// Run prunes the index every interval until the context is canceled.
func (s *PrunerService) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.run(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("run iteration failed, backing off", zap.Error(err), zap.Duration("sleep", s.interval))
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			return err
		}
	}
}

func (s *PrunerService) run(ctx context.Context) error {
	started := time.Now()
	pruned, err := s.pruner.Prune(ctx, s.historyBlocks, s.journalDepth)
	s.metrics.ObservePrune(err, len(pruned), started)
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if s.archiver == nil || len(pruned) == 0 {
		return nil
	}
	if err := s.archiver.AddAll(ctx, pruned); err != nil {
		s.logger.Warn("archive pruned history failed", zap.Error(err), zap.Int("orders", len(pruned)))
	}
	return nil
}
