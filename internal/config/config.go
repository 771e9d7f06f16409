// Package config parses swapindexd settings and resolves the node profile.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/jessevdk/go-flags"
)

// Config holds every swapindexd setting.
type Config struct {
	Profile   Profile `long:"profile" env:"SWAPINDEX_PROFILE" description:"node profile" choice:"archive" choice:"agent" choice:"mining" default:"archive"`
	Prune     *int    `long:"prune" env:"SWAPINDEX_PRUNE" description:"node prune target in MiB, overrides the profile"`
	TxIndex   *int    `long:"txindex" env:"SWAPINDEX_TXINDEX" description:"node transaction index (0 or 1), overrides the profile"`
	SwapIndex int     `long:"swapindex" env:"SWAPINDEX_ENABLED" description:"maintain the swap index (0 or 1)" default:"1"`

	Network model.Network `long:"network" env:"SWAPINDEX_NETWORK" description:"network name" choice:"mainnet" choice:"testnet" choice:"regtest" default:"mainnet"`
	DataDir string        `long:"data-dir" env:"SWAPINDEX_DATA_DIR" description:"order store directory" default:"data/swapindex"`

	RPCURL      string `long:"rpc-url" env:"SWAPINDEX_RPC_URL" description:"node RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser     string `long:"rpc-user" env:"SWAPINDEX_RPC_USER" description:"node RPC username"`
	RPCPassword string `long:"rpc-password" env:"SWAPINDEX_RPC_PASSWORD" description:"node RPC password"`
	ZMQAddr     string `long:"zmq-addr" env:"SWAPINDEX_ZMQ_ADDR" description:"node zmq hashblock endpoint"`

	GRPCAddr string `long:"grpc-addr" env:"SWAPINDEX_GRPC_ADDR" description:"gRPC listen address" default:":8000"`
	HTTPAddr string `long:"http-addr" env:"SWAPINDEX_HTTP_ADDR" description:"HTTP listen address" default:":8001"`

	StartHeight      int32         `long:"start-height" env:"SWAPINDEX_START_HEIGHT" description:"first block to index on an empty store" default:"0"`
	Reindex          bool          `long:"reindex" env:"SWAPINDEX_REINDEX" description:"wipe the order store and index again"`
	CatchUpThreshold int32         `long:"catchup-threshold" env:"SWAPINDEX_CATCHUP_THRESHOLD" description:"blocks behind the node tip that switch to unverified ingestion" default:"144"`
	FetchBatch       int           `long:"fetch-batch" env:"SWAPINDEX_FETCH_BATCH" description:"blocks fetched ahead per follower iteration" default:"32"`
	Workers          int           `long:"workers" env:"SWAPINDEX_WORKERS" description:"concurrent node requests" default:"8"`
	MempoolInterval  time.Duration `long:"mempool-interval" env:"SWAPINDEX_MEMPOOL_INTERVAL" description:"mempool poll interval" default:"2s"`
	HistoryBlocks    int32         `long:"history-blocks" env:"SWAPINDEX_HISTORY_BLOCKS" description:"blocks of history kept in the order store" default:"10000"`
	JournalDepth     int32         `long:"journal-depth" env:"SWAPINDEX_JOURNAL_DEPTH" description:"blocks of undo journals kept" default:"1000"`
	PruneInterval    time.Duration `long:"prune-interval" env:"SWAPINDEX_PRUNE_INTERVAL" description:"history pruning interval" default:"60s"`
	CacheSize        int           `long:"cache-size" env:"SWAPINDEX_CACHE_SIZE" description:"order store cache in bytes" default:"67108864"`
	CoinCacheSize    int           `long:"coin-cache-size" env:"SWAPINDEX_COIN_CACHE_SIZE" description:"cached coin lookups" default:"10000"`
	CoinCacheTTL     time.Duration `long:"coin-cache-ttl" env:"SWAPINDEX_COIN_CACHE_TTL" description:"coin lookup cache ttl" default:"30s"`

	ClickhouseDSN        string        `long:"clickhouse-dsn" env:"SWAPINDEX_CLICKHOUSE_DSN" description:"ClickHouse DSN for the history archive"`
	ArchiveBatchSize     int           `long:"archive-batch-size" env:"SWAPINDEX_ARCHIVE_BATCH_SIZE" description:"archived orders per insert" default:"1000"`
	ArchiveFlushInterval time.Duration `long:"archive-flush-interval" env:"SWAPINDEX_ARCHIVE_FLUSH_INTERVAL" description:"archive flush interval" default:"5s"`

	RedisAddr      string `long:"redis-addr" env:"SWAPINDEX_REDIS_ADDR" description:"Redis address for order events"`
	RedisPassword  string `long:"redis-password" env:"SWAPINDEX_REDIS_PASSWORD" description:"Redis password"`
	RedisDB        int    `long:"redis-db" env:"SWAPINDEX_REDIS_DB" description:"Redis database" default:"0"`
	RedisStream    string `long:"redis-stream" env:"SWAPINDEX_REDIS_STREAM" description:"Redis stream for order events" default:"swapindex:orders"`
	RedisStreamMax int64  `long:"redis-stream-maxlen" env:"SWAPINDEX_REDIS_STREAM_MAXLEN" description:"approximate stream length cap, 0 for none" default:"10000"`

	Node NodeSettings `no-flag:"true"`
}

// Parse reads args and the environment. The help request is returned as a
// *flags.Error of type flags.ErrHelp.
func Parse(args []string) (Config, error) {
	var cfg Config
	if _, err := flags.ParseArgs(&cfg, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsHelp reports whether err is the go-flags help request.
func IsHelp(err error) bool {
	var ferr *flags.Error
	return errors.As(err, &ferr) && ferr.Type == flags.ErrHelp
}

// Validate resolves the node profile and checks the remaining settings.
// Profile conflicts are reported before anything else.
func (c *Config) Validate() error {
	node, err := ResolveProfile(c.Profile, c.Prune, c.TxIndex)
	if err != nil {
		return err
	}
	c.Node = node

	switch c.SwapIndex {
	case 0:
		return ErrSwapIndexDisabled
	case 1:
	default:
		return fmt.Errorf("swapindex must be 0 or 1, got %d", c.SwapIndex)
	}

	switch {
	case c.StartHeight < 0:
		return fmt.Errorf("start height %d must not be negative", c.StartHeight)
	case c.HistoryBlocks <= 0:
		return fmt.Errorf("history blocks %d must be positive", c.HistoryBlocks)
	case c.JournalDepth <= 0 || c.JournalDepth >= c.HistoryBlocks:
		return fmt.Errorf("journal depth %d must be positive and below history blocks %d", c.JournalDepth, c.HistoryBlocks)
	case c.Workers <= 0:
		return fmt.Errorf("workers %d must be positive", c.Workers)
	case c.RedisStreamMax < 0:
		return fmt.Errorf("redis stream max length %d must not be negative", c.RedisStreamMax)
	}
	return nil
}
