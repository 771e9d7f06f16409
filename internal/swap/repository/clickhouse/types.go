package clickhouse

import (
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=$GOPACKAGE
//go:generate mockgen -destination=driver_mocks_test.go -package=$GOPACKAGE github.com/ClickHouse/clickhouse-go/v2/lib/driver Conn,Batch,Rows

type (
	Metrics interface {
		Observe(operation string, network model.Network, err error, started time.Time)
	}
)
