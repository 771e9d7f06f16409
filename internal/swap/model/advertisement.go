// Package model holds the swap index domain types shared between packages.
package model

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ProtocolTag marks a data-carrier output as a swap advertisement.
const ProtocolTag = "RSWP"

// Version is the advertisement wire format version.
type Version uint8

const (
	V1 Version = 1
	V2 Version = 2
)

// FlagHasWant is set on v2 advertisements carrying a wanted token.
const FlagHasWant uint8 = 1

// Advertisement is a decoded swap advertisement. Hashes use internal byte order.
type Advertisement struct {
	Version     Version
	Flags       uint8
	Type        uint8 // v1 only
	OfferedType uint8
	TermsType   uint8
	TokenID     chainhash.Hash
	WantTokenID chainhash.Hash
	OfferedCoin wire.OutPoint
	PriceTerms  []byte
	Signature   []byte
}

// HasWant reports whether the advertisement names a wanted token.
func (a Advertisement) HasWant() bool {
	return a.Version == V2 && a.Flags&FlagHasWant != 0
}
