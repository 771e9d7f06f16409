// Command swapindexd follows a node and serves the swap advertisement index.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/goodnatureofminers/swapindex/internal/config"
	"github.com/goodnatureofminers/swapindex/internal/metrics"
	"github.com/goodnatureofminers/swapindex/internal/swap/bitcoin"
	"github.com/goodnatureofminers/swapindex/internal/swap/liveness"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/goodnatureofminers/swapindex/internal/swap/notify"
	"github.com/goodnatureofminers/swapindex/internal/swap/repository/clickhouse"
	"github.com/goodnatureofminers/swapindex/internal/swap/service/ingester"
	"github.com/goodnatureofminers/swapindex/internal/swap/service/query"
	"github.com/goodnatureofminers/swapindex/internal/swap/store"
	"github.com/goodnatureofminers/swapindex/internal/transport"
	"github.com/goodnatureofminers/swapindex/pkg/batcher"
	grpcZap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()
	grpcZap.ReplaceGrpcLoggerV2(logger)

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if config.IsHelp(err) {
			return
		}
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("swapindexd failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	logger = logger.With(zap.String("network", string(cfg.Network)))
	logger.Info("node profile resolved",
		zap.String("profile", string(cfg.Node.Profile)),
		zap.Int("prune", cfg.Node.Prune),
		zap.Bool("txindex", cfg.Node.TxIndex),
	)
	if cfg.Node.Pruned() {
		logger.Info("node is pruned, a rebuild can only start inside its prune window")
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close order store", zap.Error(err))
		}
	}()

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()
	rpc := bitcoin.NewObservedClient(rpcClient, metrics.NewRPCClient(cfg.Network))

	pool := pond.NewPool(cfg.Workers)
	defer pool.StopAndWait()

	blocks, err := bitcoin.NewBlockSource(rpc)
	if err != nil {
		return err
	}
	mempoolSource, err := bitcoin.NewMempoolSource(rpc, pool)
	if err != nil {
		return err
	}
	coins, err := bitcoin.NewCoinView(rpc)
	if err != nil {
		return err
	}

	tracker := liveness.NewMempoolTracker()
	resolver, err := liveness.NewResolver(tracker, coins, cfg.CoinCacheSize, cfg.CoinCacheTTL)
	if err != nil {
		return fmt.Errorf("init liveness resolver: %w", err)
	}

	invalidator := &coinCacheInvalidator{resolver: resolver}
	if cfg.RedisAddr != "" {
		rdb, err := notify.Dial(ctx, notify.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = rdb.Close()
		}()
		publisher, err := notify.NewPublisher(rdb, cfg.RedisStream, cfg.RedisStreamMax, cfg.Network, metrics.NewNotifier(cfg.Network), logger)
		if err != nil {
			return fmt.Errorf("init notifier: %w", err)
		}
		invalidator.next = publisher
	}

	var (
		archiver ingester.Archiver
		archive  *clickhouse.Repository
	)
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, metrics.NewClickhouseRepository())
		if err != nil {
			return fmt.Errorf("init archive repository: %w", err)
		}
		defer func() {
			_ = repo.Close()
		}()

		b := batcher.New(logger.Named("archive"), func(ctx context.Context, orders []model.Order) error {
			return repo.InsertArchivedOrders(ctx, cfg.Network, orders)
		}, batcher.Options{
			Size:     cfg.ArchiveBatchSize,
			Interval: cfg.ArchiveFlushInterval,
		})
		b.Start(ctx)
		defer b.Stop()

		archiver = b
		archive = repo
	}

	ingesterMetrics := metrics.NewIngester(cfg.Network)
	ing, err := ingester.New(st, tracker, invalidator, ingesterMetrics, logger)
	if err != nil {
		return fmt.Errorf("init ingester: %w", err)
	}

	blockSignal, err := startBlockSignal(ctx, cfg.ZMQAddr, logger)
	if err != nil {
		return err
	}
	follower, err := ingester.NewFollowerService(ing, blocks, ingesterMetrics, cfg.Network, logger, blockSignal, ingester.FollowerOptions{
		StartHeight:      cfg.StartHeight,
		CatchUpThreshold: cfg.CatchUpThreshold,
		FetchBatch:       cfg.FetchBatch,
		WorkerCount:      cfg.Workers,
	})
	if err != nil {
		return fmt.Errorf("init follower: %w", err)
	}
	mempool, err := ingester.NewMempoolService(ing, mempoolSource, tracker, metrics.NewMempool(cfg.Network), cfg.Network, logger, cfg.MempoolInterval)
	if err != nil {
		return fmt.Errorf("init mempool poller: %w", err)
	}
	pruner, err := ingester.NewPrunerService(ing, archiver, ingesterMetrics, cfg.Network, logger, ingester.PrunerOptions{
		HistoryBlocks: cfg.HistoryBlocks,
		JournalDepth:  cfg.JournalDepth,
		Interval:      cfg.PruneInterval,
	})
	if err != nil {
		return fmt.Errorf("init pruner: %w", err)
	}

	querySvc, err := query.NewService(st, resolver, metrics.NewQuery(cfg.Network), logger)
	if err != nil {
		return fmt.Errorf("init query service: %w", err)
	}
	if archive != nil {
		querySvc = querySvc.WithArchive(cfg.Network, archive)
	}
	handler, err := transport.NewSwapHandler(querySvc, logger)
	if err != nil {
		return err
	}
	httpHandler, err := transport.NewHTTPHandler(handler)
	if err != nil {
		return fmt.Errorf("init http handler: %w", err)
	}
	grpcServer := transport.NewGRPCServer(handler, logger)

	return runAll(ctx, logger, map[string]func(context.Context) error{
		"follower": follower.Run,
		"mempool":  mempool.Run,
		"pruner":   pruner.Run,
		"grpc": func(ctx context.Context) error {
			return serveGRPC(ctx, grpcServer, cfg.GRPCAddr, logger)
		},
		"http": func(ctx context.Context) error {
			return serveHTTP(ctx, httpHandler, cfg.HTTPAddr, logger)
		},
	})
}

func openStore(cfg config.Config, logger *zap.Logger) (*store.Store, error) {
	path := filepath.Join(cfg.DataDir, string(cfg.Network))
	st, err := store.Open(path, store.Options{CacheSize: cfg.CacheSize}, metrics.NewOrderStore(cfg.Network))
	if err != nil {
		return nil, err
	}

	if cfg.Reindex {
		if err := st.Wipe(); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("wipe order store: %w", err)
		}
		logger.Info("order store wiped, reindexing", zap.Int32("start_height", cfg.StartHeight))
		return st, nil
	}

	wiped, err := st.EnsureVersion()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if wiped {
		logger.Info("order store written by another version was wiped", zap.Uint32("version", store.SchemaVersion))
	}
	return st, nil
}

// runAll runs every service until ctx is canceled or one of them fails.
// A failure cancels the rest.
func runAll(ctx context.Context, logger *zap.Logger, services map[string]func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(services))
	var wg sync.WaitGroup
	for name, fn := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("starting service", zap.String("service", name))
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func serveGRPC(ctx context.Context, server *grpc.Server, addr string, logger *zap.Logger) error {
	socket, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down gRPC server")
		server.GracefulStop()
	}()

	logger.Info("Starting gRPC server", zap.String("addr", addr))
	return server.Serve(socket)
}

func serveHTTP(ctx context.Context, handler http.Handler, addr string, logger *zap.Logger) error {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down the http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown http server", zap.Error(err))
		}
	}()

	logger.Info("Starting HTTP server", zap.String("addr", addr))
	if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	return rpcclient.New(&rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
}
