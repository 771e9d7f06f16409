package config

import (
	"errors"
	"fmt"
)

// Profile names a bundle of node storage defaults.
type Profile string

const (
	ProfileArchive Profile = "archive"
	ProfileAgent   Profile = "agent"
	ProfileMining  Profile = "mining"
)

// MinPruneMiB is the smallest prune target a node accepts.
const MinPruneMiB = 550

var (
	ErrPruneTxIndex      = errors.New("Prune mode is incompatible with -txindex")
	ErrSwapIndexDisabled = errors.New("Swap index not enabled")
	ErrUnknownProfile    = errors.New("unknown node profile")
	ErrInvalidPrune      = errors.New("invalid prune target")
)

// NodeSettings are the storage settings a profile resolves to.
type NodeSettings struct {
	Profile Profile
	// Prune is the block file target in MiB; zero keeps every block.
	Prune   int
	TxIndex bool
}

var profiles = map[Profile]NodeSettings{
	ProfileArchive: {Profile: ProfileArchive, Prune: 0, TxIndex: true},
	ProfileAgent:   {Profile: ProfileAgent, Prune: MinPruneMiB, TxIndex: false},
	ProfileMining:  {Profile: ProfileMining, Prune: 4000, TxIndex: false},
}

// ResolveProfile applies explicit prune and txindex values on top of the
// profile bundle. A nil value keeps the profile's default.
func ResolveProfile(profile Profile, prune *int, txindex *int) (NodeSettings, error) {
	settings, ok := profiles[profile]
	if !ok {
		return NodeSettings{}, fmt.Errorf("%w: %q", ErrUnknownProfile, profile)
	}
	if prune != nil {
		settings.Prune = *prune
	}
	if txindex != nil {
		switch *txindex {
		case 0:
			settings.TxIndex = false
		case 1:
			settings.TxIndex = true
		default:
			return NodeSettings{}, fmt.Errorf("txindex must be 0 or 1, got %d", *txindex)
		}
	}

	if settings.Prune < 0 || (settings.Prune > 0 && settings.Prune < MinPruneMiB) {
		return NodeSettings{}, fmt.Errorf("%w: %d MiB, use 0 or at least %d", ErrInvalidPrune, settings.Prune, MinPruneMiB)
	}
	if settings.Prune > 0 && settings.TxIndex {
		return NodeSettings{}, ErrPruneTxIndex
	}
	return settings, nil
}

// Pruned reports whether the node discards old block data.
func (s NodeSettings) Pruned() bool {
	return s.Prune > 0
}
