package query

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

// UTXO is the offered coin in display form.
type UTXO struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Entry is one order as returned to clients. Hashes are in display
// (reversed) hex as the node RPC prints them.
type Entry struct {
	TokenID     string  `json:"tokenid"`
	WantTokenID *string `json:"want_tokenid,omitempty"`
	Version     uint8   `json:"version"`
	Flags       *uint8  `json:"flags,omitempty"`
	OfferedType *uint8  `json:"offered_type,omitempty"`
	TermsType   *uint8  `json:"terms_type,omitempty"`
	Type        *uint8  `json:"type,omitempty"`
	UTXO        UTXO    `json:"utxo"`
	PriceTerms  string  `json:"price_terms"`
	Signature   string  `json:"signature"`
	BlockHeight *int32  `json:"block_height,omitempty"`
}

// Counts is the number of open and historical orders for one token.
type Counts struct {
	Open    uint64 `json:"open"`
	History uint64 `json:"history"`
}

func newEntry(o model.Order, blockHeight int32) Entry {
	ad := o.Advertisement
	e := Entry{
		TokenID: ad.TokenID.String(),
		Version: uint8(ad.Version),
		UTXO: UTXO{
			TxID: ad.OfferedCoin.Hash.String(),
			Vout: ad.OfferedCoin.Index,
		},
		PriceTerms: hex.EncodeToString(ad.PriceTerms),
		Signature:  hex.EncodeToString(ad.Signature),
	}
	switch ad.Version {
	case model.V1:
		e.Type = ptr(ad.Type)
	case model.V2:
		e.Flags = ptr(ad.Flags)
		e.OfferedType = ptr(ad.OfferedType)
		e.TermsType = ptr(ad.TermsType)
		if ad.HasWant() {
			e.WantTokenID = ptr(ad.WantTokenID.String())
		}
	}
	if blockHeight > 0 {
		e.BlockHeight = ptr(blockHeight)
	}
	return e
}

// ParseToken reads a token id in display hex.
func ParseToken(s string) (chainhash.Hash, error) {
	if len(s) != chainhash.MaxHashStringSize {
		return chainhash.Hash{}, fmt.Errorf("%w: token id must be %d hex characters", ErrInvalidArgument, chainhash.MaxHashStringSize)
	}
	token, err := chainhash.NewHashFromStr(s)
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("%w: token id: %v", ErrInvalidArgument, err)
	}
	return *token, nil
}

func ptr[T any](v T) *T {
	return &v
}
