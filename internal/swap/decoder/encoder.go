package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

// Encode builds the data-carrier script for ad with its price terms in a single push.
func Encode(ad model.Advertisement) ([]byte, error) {
	return EncodeSplit(ad, [][]byte{ad.PriceTerms})
}

// EncodeSplit builds the data-carrier script for ad, writing the price terms
// as the given sequence of pushes. Only v2 allows more than one push.
func EncodeSplit(ad model.Advertisement, priceTerms [][]byte) ([]byte, error) {
	if len(priceTerms) == 0 {
		return nil, errors.New("price terms are required")
	}
	if ad.OfferedCoin.Index > 0xff {
		return nil, fmt.Errorf("offered coin index %d does not fit a byte", ad.OfferedCoin.Index)
	}

	script := []byte{txscript.OP_RETURN}
	script = appendPush(script, []byte(model.ProtocolTag))
	script = appendPush(script, []byte{byte(ad.Version)})

	switch ad.Version {
	case model.V1:
		if len(priceTerms) != 1 {
			return nil, errors.New("v1 carries price terms in one push")
		}
		script = appendPush(script, []byte{ad.Type})
		script = appendPush(script, ad.TokenID[:])
	case model.V2:
		script = appendPush(script, []byte{ad.Flags})
		script = appendPush(script, []byte{ad.OfferedType})
		script = appendPush(script, []byte{ad.TermsType})
		script = appendPush(script, ad.TokenID[:])
		if ad.Flags&model.FlagHasWant != 0 {
			script = appendPush(script, ad.WantTokenID[:])
		}
	default:
		return nil, fmt.Errorf("unsupported version %d", ad.Version)
	}

	script = appendPush(script, ad.OfferedCoin.Hash[:])
	script = appendPush(script, []byte{byte(ad.OfferedCoin.Index)})
	for _, part := range priceTerms {
		script = appendPush(script, part)
	}
	script = appendPush(script, ad.Signature)
	return script, nil
}

// appendPush writes data with an explicit push opcode, never as a small integer.
func appendPush(script, data []byte) []byte {
	n := len(data)
	switch {
	case n <= txscript.OP_DATA_75:
		script = append(script, byte(n))
	case n <= 0xff:
		script = append(script, txscript.OP_PUSHDATA1, byte(n))
	case n <= 0xffff:
		script = append(script, txscript.OP_PUSHDATA2)
		script = binary.LittleEndian.AppendUint16(script, uint16(n))
	default:
		script = append(script, txscript.OP_PUSHDATA4)
		script = binary.LittleEndian.AppendUint32(script, uint32(n))
	}
	return append(script, data...)
}
