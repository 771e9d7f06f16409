package clickhouse

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

const archivedOrdersQuery = `
SELECT
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
FROM swap_history FINAL
WHERE network = ? AND token_id = CAST(? AS FixedString(64))
ORDER BY seq ASC
LIMIT ? OFFSET ?`

// ArchivedOrders returns archived history of token in insertion order. A
// zero limit returns every row after offset.
func (r *Repository) ArchivedOrders(ctx context.Context, network model.Network, token chainhash.Hash, limit, offset uint64) (orders []model.Order, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("archived_orders", network, err, start)
	}()

	if limit == 0 {
		limit = maxRows
	}

	rows, err := r.conn.Query(ctx, archivedOrdersQuery, string(network), token.String(), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query archived orders: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", cerr)
		}
	}()

	for rows.Next() {
		var row archivedOrderRow
		if err = rows.Scan(
			&row.WantTokenID,
			&row.Version,
			&row.Flags,
			&row.Type,
			&row.OfferedType,
			&row.TermsType,
			&row.CoinTxID,
			&row.CoinVout,
			&row.PriceTerms,
			&row.Signature,
			&row.AdTxID,
			&row.ConfirmedHeight,
			&row.SpentHeight,
			&row.Seq,
		); err != nil {
			return nil, fmt.Errorf("scan archived order: %w", err)
		}

		var o model.Order
		if o, err = row.order(token); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived orders: %w", err)
	}
	return orders, nil
}

// maxRows stands in for "no limit"; ClickHouse reads LIMIT 0 literally.
const maxRows uint64 = 1<<63 - 1

type archivedOrderRow struct {
	WantTokenID     string
	Version         uint8
	Flags           uint8
	Type            uint8
	OfferedType     uint8
	TermsType       uint8
	CoinTxID        string
	CoinVout        uint32
	PriceTerms      string
	Signature       string
	AdTxID          string
	ConfirmedHeight int32
	SpentHeight     int32
	Seq             uint64
}

func (row archivedOrderRow) order(token chainhash.Hash) (model.Order, error) {
	coin, err := chainhash.NewHashFromStr(row.CoinTxID)
	if err != nil {
		return model.Order{}, fmt.Errorf("archived coin txid %q: %w", row.CoinTxID, err)
	}
	adTxID, err := chainhash.NewHashFromStr(row.AdTxID)
	if err != nil {
		return model.Order{}, fmt.Errorf("archived ad txid %q: %w", row.AdTxID, err)
	}
	priceTerms, err := hex.DecodeString(row.PriceTerms)
	if err != nil {
		return model.Order{}, fmt.Errorf("archived price terms: %w", err)
	}
	signature, err := hex.DecodeString(row.Signature)
	if err != nil {
		return model.Order{}, fmt.Errorf("archived signature: %w", err)
	}

	ad := model.Advertisement{
		Version:     model.Version(row.Version),
		Flags:       row.Flags,
		Type:        row.Type,
		OfferedType: row.OfferedType,
		TermsType:   row.TermsType,
		TokenID:     token,
		OfferedCoin: wire.OutPoint{Hash: *coin, Index: row.CoinVout},
		PriceTerms:  priceTerms,
		Signature:   signature,
	}
	if row.WantTokenID != "" {
		want, err := chainhash.NewHashFromStr(row.WantTokenID)
		if err != nil {
			return model.Order{}, fmt.Errorf("archived want token %q: %w", row.WantTokenID, err)
		}
		ad.WantTokenID = *want
	}

	return model.Order{
		Advertisement:   ad,
		Status:          model.OrderHistorical,
		ConfirmedHeight: row.ConfirmedHeight,
		SpentHeight:     row.SpentHeight,
		AdTxID:          *adTxID,
		Seq:             row.Seq,
	}, nil
}
