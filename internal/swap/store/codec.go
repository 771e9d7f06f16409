package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/goodnatureofminers/swapindex/internal/swap/model"
)

const (
	maxFieldBytes = 100_000

	statePending    uint8 = 1 << 0
	stateUnverified uint8 = 1 << 1
)

type orderHeader struct {
	Version         uint8
	Flags           uint8
	Type            uint8
	OfferedType     uint8
	TermsType       uint8
	TokenID         chainhash.Hash
	WantTokenID     chainhash.Hash
	CoinHash        chainhash.Hash
	CoinIndex       uint32
	Status          uint8
	State           uint8
	ConfirmedHeight int32
	SpentHeight     int32
	AdTxID          chainhash.Hash
	Seq             uint64
}

func encodeOrder(o model.Order) ([]byte, error) {
	ad := o.Advertisement
	header := orderHeader{
		Version:         uint8(ad.Version),
		Flags:           ad.Flags,
		Type:            ad.Type,
		OfferedType:     ad.OfferedType,
		TermsType:       ad.TermsType,
		TokenID:         ad.TokenID,
		WantTokenID:     ad.WantTokenID,
		CoinHash:        ad.OfferedCoin.Hash,
		CoinIndex:       ad.OfferedCoin.Index,
		Status:          uint8(o.Status),
		ConfirmedHeight: o.ConfirmedHeight,
		SpentHeight:     o.SpentHeight,
		AdTxID:          o.AdTxID,
		Seq:             o.Seq,
	}
	if o.Pending {
		header.State |= statePending
	}
	if o.Unverified {
		header.State |= stateUnverified
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, header); err != nil {
		return nil, fmt.Errorf("write order header: %w", err)
	}
	if err := wire.WriteVarBytes(&buf, 0, ad.PriceTerms); err != nil {
		return nil, fmt.Errorf("write price terms: %w", err)
	}
	if err := wire.WriteVarBytes(&buf, 0, ad.Signature); err != nil {
		return nil, fmt.Errorf("write signature: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeOrder(b []byte) (model.Order, error) {
	return readOrder(bytes.NewReader(b))
}

func readOrder(r io.Reader) (model.Order, error) {
	var header orderHeader
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return model.Order{}, fmt.Errorf("read order header: %w", err)
	}
	priceTerms, err := wire.ReadVarBytes(r, 0, maxFieldBytes, "price terms")
	if err != nil {
		return model.Order{}, err
	}
	signature, err := wire.ReadVarBytes(r, 0, maxFieldBytes, "signature")
	if err != nil {
		return model.Order{}, err
	}

	return model.Order{
		Advertisement: model.Advertisement{
			Version:     model.Version(header.Version),
			Flags:       header.Flags,
			Type:        header.Type,
			OfferedType: header.OfferedType,
			TermsType:   header.TermsType,
			TokenID:     header.TokenID,
			WantTokenID: header.WantTokenID,
			OfferedCoin: wire.OutPoint{Hash: header.CoinHash, Index: header.CoinIndex},
			PriceTerms:  priceTerms,
			Signature:   signature,
		},
		Status:          model.OrderStatus(header.Status),
		Pending:         header.State&statePending != 0,
		Unverified:      header.State&stateUnverified != 0,
		ConfirmedHeight: header.ConfirmedHeight,
		SpentHeight:     header.SpentHeight,
		AdTxID:          header.AdTxID,
		Seq:             header.Seq,
	}, nil
}

// Journal records how one connected block changed the store so that
// disconnecting it can restore every touched record.
type Journal struct {
	Hash     chainhash.Hash
	PrevHash chainhash.Hash
	Entries  []JournalEntry
}

// JournalEntry holds the record of Outpoint as it was before the block.
type JournalEntry struct {
	Outpoint wire.OutPoint
	Created  bool
	Prev     *model.Order
}

func encodeJournal(j Journal) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(j.Hash[:])
	buf.Write(j.PrevHash[:])
	if err := wire.WriteVarInt(&buf, 0, uint64(len(j.Entries))); err != nil {
		return nil, err
	}
	for _, e := range j.Entries {
		buf.Write(appendOutpoint(nil, e.Outpoint))
		var flags uint8
		if e.Created {
			flags |= 1
		}
		if e.Prev != nil {
			flags |= 2
		}
		buf.WriteByte(flags)
		if e.Prev == nil {
			continue
		}
		prev, err := encodeOrder(*e.Prev)
		if err != nil {
			return nil, err
		}
		if err := wire.WriteVarBytes(&buf, 0, prev); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeJournal(b []byte) (Journal, error) {
	r := bytes.NewReader(b)
	var j Journal
	if _, err := io.ReadFull(r, j.Hash[:]); err != nil {
		return Journal{}, fmt.Errorf("read journal hash: %w", err)
	}
	if _, err := io.ReadFull(r, j.PrevHash[:]); err != nil {
		return Journal{}, fmt.Errorf("read journal prev hash: %w", err)
	}
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return Journal{}, fmt.Errorf("read journal size: %w", err)
	}
	if count > uint64(r.Len()) {
		return Journal{}, fmt.Errorf("journal size %d exceeds payload", count)
	}

	j.Entries = make([]JournalEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		var raw [outpointSize + 1]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return Journal{}, fmt.Errorf("read journal entry: %w", err)
		}
		entry := JournalEntry{
			Outpoint: readOutpoint(raw[:outpointSize]),
			Created:  raw[outpointSize]&1 != 0,
		}
		if raw[outpointSize]&2 != 0 {
			prevBytes, err := wire.ReadVarBytes(r, 0, maxFieldBytes, "journal record")
			if err != nil {
				return Journal{}, err
			}
			prev, err := decodeOrder(prevBytes)
			if err != nil {
				return Journal{}, err
			}
			entry.Prev = &prev
		}
		j.Entries = append(j.Entries, entry)
	}
	return j, nil
}

func encodeTip(tip model.Tip) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(tip.Height))
	return append(b, tip.Hash[:]...)
}

func decodeTip(b []byte) (model.Tip, error) {
	if len(b) != 4+chainhash.HashSize {
		return model.Tip{}, fmt.Errorf("tip record has %d bytes", len(b))
	}
	tip := model.Tip{Height: int32(binary.BigEndian.Uint32(b[:4]))}
	copy(tip.Hash[:], b[4:])
	return tip, nil
}
