// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package oracle

import (
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// PriceFeed provides destination currency price ratios, expressed in RAY
// (10^27) fixed point, and the protocol fee schedule. Ratio refreshes
// feed-side state, CachedRatio is the read-only variant used for off-chain
// quoting.
type PriceFeed interface {
	Ratio(dstWormholeChainId uint16) (*big.Int, error)
	CachedRatio(dstWormholeChainId uint16) (*big.Int, error)
	ProtocolFee(amount *big.Int) (*big.Int, error)
}

// RAY is the fixed point scale shared by ratios, reserves and the protocol
// fee rate.
var RAY = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

type priceEntry struct {
	ratio       *big.Int
	lastUpdated int64
}

// StaticFeed is a configuration seeded price feed. Ratios are set by the
// deployment operator and stamped on every refreshing read.
type StaticFeed struct {
	mu sync.RWMutex

	prices  map[uint16]*priceEntry
	feeRate *big.Int
}

func NewStaticFeed(feeRate *big.Int) *StaticFeed {
	if feeRate == nil {
		feeRate = big.NewInt(0)
	}
	return &StaticFeed{
		prices:  make(map[uint16]*priceEntry),
		feeRate: feeRate,
	}
}

// SetRatio sets the price ratio for a destination chain.
func (f *StaticFeed) SetRatio(dstWormholeChainId uint16, ratio *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[dstWormholeChainId] = &priceEntry{
		ratio:       new(big.Int).Set(ratio),
		lastUpdated: time.Now().Unix(),
	}
	log.Info().Msgf("updated price ratio %s for wormhole chain %d", ratio.String(), dstWormholeChainId)
}

// Ratio returns the current ratio and refreshes its update timestamp.
func (f *StaticFeed) Ratio(dstWormholeChainId uint16) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.prices[dstWormholeChainId]
	if !ok {
		return nil, errors.Errorf("no price ratio for wormhole chain %d", dstWormholeChainId)
	}
	e.lastUpdated = time.Now().Unix()
	return new(big.Int).Set(e.ratio), nil
}

// CachedRatio returns the current ratio without touching feed state.
func (f *StaticFeed) CachedRatio(dstWormholeChainId uint16) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.prices[dstWormholeChainId]
	if !ok {
		return nil, errors.Errorf("no price ratio for wormhole chain %d", dstWormholeChainId)
	}
	return new(big.Int).Set(e.ratio), nil
}

// LastUpdated returns the unix timestamp of the latest refresh for a chain.
func (f *StaticFeed) LastUpdated(dstWormholeChainId uint16) int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.prices[dstWormholeChainId]
	if !ok {
		return 0
	}
	return e.lastUpdated
}

// ProtocolFee returns the settlement fee taken from a delivered amount,
// amount * feeRate / RAY truncated toward zero.
func (f *StaticFeed) ProtocolFee(amount *big.Int) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	fee := new(big.Int).Mul(amount, f.feeRate)
	fee.Div(fee, RAY)
	return fee, nil
}
