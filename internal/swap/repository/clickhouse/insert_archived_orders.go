package clickhouse

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

const insertArchivedOrdersQuery = `
INSERT INTO swap_history (
	network,
	token_id,
	want_token_id,
	version,
	flags,
	type,
	offered_type,
	terms_type,
	coin_txid,
	coin_vout,
	price_terms,
	signature,
	ad_txid,
	confirmed_height,
	spent_height,
	seq
) VALUES`

// InsertArchivedOrders stores pruned historical orders.
func (r *Repository) InsertArchivedOrders(ctx context.Context, network model.Network, orders []model.Order) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_archived_orders", network, err, start)
	}()

	if len(orders) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertArchivedOrdersQuery)
	if err != nil {
		return fmt.Errorf("prepare archived orders batch: %w", err)
	}

	for _, o := range orders {
		if err = batch.Append(archivedRow(network, o)...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append archived order %v: %w", o.Outpoint(), err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert archived orders: %w", err)
	}
	return nil
}

func archivedRow(network model.Network, o model.Order) []any {
	ad := o.Advertisement
	want := ""
	if ad.HasWant() {
		want = ad.WantTokenID.String()
	}
	return []any{
		string(network),
		ad.TokenID.String(),
		want,
		uint8(ad.Version),
		ad.Flags,
		ad.Type,
		ad.OfferedType,
		ad.TermsType,
		ad.OfferedCoin.Hash.String(),
		ad.OfferedCoin.Index,
		hex.EncodeToString(ad.PriceTerms),
		hex.EncodeToString(ad.Signature),
		o.AdTxID.String(),
		o.ConfirmedHeight,
		o.SpentHeight,
		o.Seq,
	}
}
