// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package fees

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/omnibridge/settlement-core/bridge/events"
)

// GasParams is the destination gas schedule used when estimating the
// completion cost of a transfer.
type GasParams struct {
	BaseGas    *big.Int
	GasPerByte *big.Int
}

// Config is the per-deployment fee configuration. It is set once during
// initialization and mutated only through the privileged setters; every fee
// computation reads it.
type Config struct {
	mu sync.RWMutex

	transport          common.Address
	srcWormholeChainId uint16
	beneficiary        common.Address
	// applied when charging the relayer fee
	actualReserve *big.Int
	// applied when quoting off-chain, may carry a safety margin
	estimateReserve *big.Int
	gas             map[uint16]GasParams
}

func NewConfig(beneficiary common.Address) *Config {
	return &Config{
		beneficiary:     beneficiary,
		actualReserve:   big.NewInt(0),
		estimateReserve: big.NewInt(0),
		gas:             make(map[uint16]GasParams),
	}
}

// SetTransport registers the message transport handle and this chain's own
// wormhole chain id.
func (c *Config) SetTransport(transport common.Address, srcWormholeChainId uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = transport
	c.srcWormholeChainId = srcWormholeChainId
	log.Info().Msgf("registered wormhole transport %s for chain %d", transport.String(), srcWormholeChainId)
	log.Info().Interface("event", events.TransportRegistered{
		Transport:          transport,
		SrcWormholeChainId: srcWormholeChainId,
	}).Msg(string(events.TransportRegisteredSig))
}

// SetReserves updates the RAY scaled reserve ratios.
func (c *Config) SetReserves(actualReserve, estimateReserve *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actualReserve = new(big.Int).Set(actualReserve)
	c.estimateReserve = new(big.Int).Set(estimateReserve)
	log.Info().Interface("event", events.UpdateWormholeReserve{
		ActualReserve:   actualReserve,
		EstimateReserve: estimateReserve,
	}).Msg(string(events.UpdateWormholeReserveSig))
}

// SetGas updates the gas schedule of one destination chain.
func (c *Config) SetGas(dstWormholeChainId uint16, baseGas, gasPerByte *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gas[dstWormholeChainId] = GasParams{
		BaseGas:    new(big.Int).Set(baseGas),
		GasPerByte: new(big.Int).Set(gasPerByte),
	}
	log.Info().Interface("event", events.UpdateWormholeGas{
		DstWormholeChainId: dstWormholeChainId,
		BaseGas:            baseGas,
		GasPerByte:         gasPerByte,
	}).Msg(string(events.UpdateWormholeGasSig))
}

func (c *Config) Transport() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

func (c *Config) SrcWormholeChainId() uint16 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.srcWormholeChainId
}

func (c *Config) Beneficiary() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beneficiary
}

func (c *Config) Reserves() (actual *big.Int, estimate *big.Int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return new(big.Int).Set(c.actualReserve), new(big.Int).Set(c.estimateReserve)
}

func (c *Config) Gas(dstWormholeChainId uint16) (GasParams, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	gp, ok := c.gas[dstWormholeChainId]
	return gp, ok
}
