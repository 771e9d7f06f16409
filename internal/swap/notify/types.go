package notify

import (
	"context"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
	"github.com/redis/go-redis/v9"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE

type (
	StreamClient interface {
		XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	}
	Metrics interface {
		Observe(kind model.OrderEventKind, err error)
	}
)
