// Package decoder parses swap advertisements out of data-carrier output scripts.
package decoder

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

type push struct {
	opcode byte
	data   []byte
}

func (p push) isData() bool {
	return p.opcode <= txscript.OP_PUSHDATA4
}

// Decode parses a single output script. It reports false for any script that
// is not a well-formed advertisement; malformed input is never an error.
func Decode(pkScript []byte) (model.Advertisement, bool) {
	pushes, ok := tokenize(pkScript)
	if !ok || len(pushes) < 2 {
		return model.Advertisement{}, false
	}
	if !pushes[0].isData() || string(pushes[0].data) != model.ProtocolTag {
		return model.Advertisement{}, false
	}
	version, ok := byteField(pushes[1])
	if !ok {
		return model.Advertisement{}, false
	}

	switch model.Version(version) {
	case model.V1:
		return decodeV1(pushes[2:])
	case model.V2:
		return decodeV2(pushes[2:])
	default:
		return model.Advertisement{}, false
	}
}

// DecodeTx returns every advertisement carried by the outputs of tx.
func DecodeTx(tx model.Tx) []model.Advertisement {
	var ads []model.Advertisement
	for _, script := range tx.Outputs {
		if ad, ok := Decode(script); ok {
			ads = append(ads, ad)
		}
	}
	return ads
}

// [type, tokenID, utxoHash, utxoIndex, priceTerms, signature]
func decodeV1(pushes []push) (model.Advertisement, bool) {
	if len(pushes) != 6 {
		return model.Advertisement{}, false
	}
	ad := model.Advertisement{Version: model.V1}

	var ok bool
	if ad.Type, ok = byteField(pushes[0]); !ok {
		return model.Advertisement{}, false
	}
	if ad.TokenID, ok = hashField(pushes[1]); !ok {
		return model.Advertisement{}, false
	}
	if ad.OfferedCoin.Hash, ok = hashField(pushes[2]); !ok {
		return model.Advertisement{}, false
	}
	if ad.OfferedCoin.Index, ok = indexField(pushes[3]); !ok {
		return model.Advertisement{}, false
	}
	if !pushes[4].isData() || !pushes[5].isData() {
		return model.Advertisement{}, false
	}
	ad.PriceTerms = clone(pushes[4].data)
	ad.Signature = clone(pushes[5].data)
	return ad, true
}

// [flags, offeredType, termsType, tokenID, wantTokenID?, utxoHash, utxoIndex, priceTerms..., signature]
func decodeV2(pushes []push) (model.Advertisement, bool) {
	if len(pushes) < 8 {
		return model.Advertisement{}, false
	}
	ad := model.Advertisement{Version: model.V2}

	var ok bool
	if ad.Flags, ok = byteField(pushes[0]); !ok {
		return model.Advertisement{}, false
	}
	if ad.OfferedType, ok = byteField(pushes[1]); !ok {
		return model.Advertisement{}, false
	}
	if ad.TermsType, ok = byteField(pushes[2]); !ok {
		return model.Advertisement{}, false
	}
	if ad.TokenID, ok = hashField(pushes[3]); !ok {
		return model.Advertisement{}, false
	}
	rest := pushes[4:]
	if ad.Flags&model.FlagHasWant != 0 {
		if ad.WantTokenID, ok = hashField(rest[0]); !ok {
			return model.Advertisement{}, false
		}
		rest = rest[1:]
	}
	if len(rest) < 4 {
		return model.Advertisement{}, false
	}
	if ad.OfferedCoin.Hash, ok = hashField(rest[0]); !ok {
		return model.Advertisement{}, false
	}
	if ad.OfferedCoin.Index, ok = indexField(rest[1]); !ok {
		return model.Advertisement{}, false
	}

	tail := rest[2:]
	for _, p := range tail {
		if !p.isData() {
			return model.Advertisement{}, false
		}
	}
	terms := make([]byte, 0)
	for _, p := range tail[:len(tail)-1] {
		terms = append(terms, p.data...)
	}
	ad.PriceTerms = terms
	ad.Signature = clone(tail[len(tail)-1].data)
	return ad, true
}

func tokenize(script []byte) ([]push, bool) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, false
	}
	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	var pushes []push
	for tokenizer.Next() {
		pushes = append(pushes, push{opcode: tokenizer.Opcode(), data: tokenizer.Data()})
	}
	if tokenizer.Err() != nil {
		return nil, false
	}
	return pushes, true
}

func byteField(p push) (uint8, bool) {
	if !p.isData() || len(p.data) != 1 {
		return 0, false
	}
	return p.data[0], true
}

func hashField(p push) (chainhash.Hash, bool) {
	var h chainhash.Hash
	if !p.isData() || len(p.data) != chainhash.HashSize {
		return h, false
	}
	copy(h[:], p.data)
	return h, true
}

// indexField accepts small-integer opcodes, a raw single byte, or a
// non-negative script number of up to four bytes.
func indexField(p push) (uint32, bool) {
	switch {
	case p.opcode == txscript.OP_0:
		return 0, true
	case p.opcode >= txscript.OP_1 && p.opcode <= txscript.OP_16:
		return uint32(p.opcode - (txscript.OP_1 - 1)), true
	case !p.isData():
		return 0, false
	case len(p.data) == 1:
		return uint32(p.data[0]), true
	case len(p.data) > 4:
		return 0, false
	}

	last := p.data[len(p.data)-1]
	if last&0x80 != 0 {
		return 0, false
	}
	var v uint32
	for i, b := range p.data {
		v |= uint32(b) << (8 * i)
	}
	return v, true
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
