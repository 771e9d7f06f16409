// Package notify publishes committed order changes to a Redis stream.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultStreamMaxLen int64 = 10_000

// Options configure the Redis connection and target stream.
type Options struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen caps the stream approximately; 0 keeps every entry.
	MaxLen int64
}

// Publisher appends order events to a Redis stream. Delivery is best
// effort: a failed event is counted and reported but never retried.
type Publisher struct {
	client  StreamClient
	stream  string
	maxLen  int64
	network model.Network
	metrics Metrics
	logger  *zap.Logger
}

func NewPublisher(client StreamClient, stream string, maxLen int64, network model.Network, metrics Metrics, logger *zap.Logger) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if stream == "" {
		return nil, errors.New("stream name is required")
	}
	if metrics == nil {
		return nil, errors.New("notifier metrics is required")
	}
	if maxLen < 0 {
		return nil, fmt.Errorf("stream max length %d must not be negative", maxLen)
	}
	return &Publisher{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		network: network,
		metrics: metrics,
		logger:  logger.Named("notifier").With(zap.String("stream", stream)),
	}, nil
}

// Dial connects to Redis and checks the connection.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// Publish appends events in order. Every event is attempted; the returned
// error joins the individual failures.
func (p *Publisher) Publish(ctx context.Context, events []model.OrderEvent) error {
	var errs []error
	for _, e := range events {
		args := &redis.XAddArgs{
			Stream: p.stream,
			Values: p.values(e),
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}

		id, err := p.client.XAdd(ctx, args).Result()
		p.metrics.Observe(e.Kind, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("xadd %s %v: %w", e.Kind, e.Order.Outpoint(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		p.logger.Debug("order event published", zap.String("kind", string(e.Kind)), zap.String("id", id))
	}
	return errors.Join(errs...)
}

func (p *Publisher) values(e model.OrderEvent) map[string]any {
	o := e.Order
	ad := o.Advertisement
	values := map[string]any{
		"kind":    string(e.Kind),
		"network": string(p.network),
		"tokenid": ad.TokenID.String(),
		"txid":    ad.OfferedCoin.Hash.String(),
		"vout":    strconv.FormatUint(uint64(ad.OfferedCoin.Index), 10),
		"status":  o.Status.String(),
		"pending": strconv.FormatBool(o.Pending),
		"ad_txid": o.AdTxID.String(),
	}
	if ad.HasWant() {
		values["want_tokenid"] = ad.WantTokenID.String()
	}
	if h := o.BlockHeight(); h > 0 {
		values["block_height"] = strconv.FormatInt(int64(h), 10)
	}
	return values
}
