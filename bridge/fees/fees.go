// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package fees computes the native-currency fee a relayer is owed for
// executing a destination-side completion, and verifies that the user
// prepaid it.
package fees

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/omnibridge/settlement-core/bridge/codec"
	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/oracle"
)

// Calculator derives relayer fees from the deployment fee configuration and
// the oracle price feed.
type Calculator struct {
	cfg  *Config
	feed oracle.PriceFeed
}

func NewCalculator(cfg *Config, feed oracle.PriceFeed) *Calculator {
	return &Calculator{cfg: cfg, feed: feed}
}

// CheckResult carries the outcome of a relayer fee verification.
type CheckResult struct {
	Ok bool
	// Fee charged on the source chain, in source native currency
	SrcFee *big.Int
	// Overpayment returned to the caller, meaningful only when Ok
	Refund *big.Int
	// Total the caller must have attached
	ConsumeValue *big.Int
	// Gas the destination completion is expected to cost
	DstMaxGas *big.Int
}

// EstimateCompletionGas sizes the wire payload for the given transfer and
// returns baseGas + gasPerByte * payload length for the destination chain.
// The payload is built with a zero gas placeholder, so the estimate is
// non-decreasing in every variable field of the transfer.
func (c *Calculator) EstimateCompletionGas(soData *cross.SoData, wormholeData *cross.WormholeData, swapDataDst []cross.SwapData) (*big.Int, error) {
	gp, ok := c.cfg.Gas(wormholeData.DstWormholeChainId)
	if !ok {
		return nil, errors.Errorf("no gas schedule for wormhole chain %d", wormholeData.DstWormholeChainId)
	}
	payload, err := codec.EncodeWormholePayload(wormholeData.DstMaxGasPriceInWeiForRelayer, big.NewInt(0), soData, swapDataDst)
	if err != nil {
		return nil, err
	}
	gas := new(big.Int).Mul(gp.GasPerByte, big.NewInt(int64(len(payload))))
	gas.Add(gas, gp.BaseGas)
	return gas, nil
}

// srcFee converts a destination-currency fee into source native currency.
// The two multiply-divide steps truncate in the written order; reassociating
// them changes rounding and breaks fee reproducibility across deployments.
func srcFee(dstFee, ratio, reserve *big.Int) *big.Int {
	fee := new(big.Int).Mul(dstFee, ratio)
	fee.Div(fee, oracle.RAY)
	fee.Mul(fee, reserve)
	fee.Div(fee, oracle.RAY)
	return fee
}

// CheckRelayerFee verifies the caller attached enough native currency to
// cover the transport message fee, the native user input and the relayer fee.
// It refreshes the oracle ratio and applies the actual reserve.
func (c *Calculator) CheckRelayerFee(soData *cross.SoData, wormholeData *cross.WormholeData, swapDataDst []cross.SwapData, messageFee *big.Int) (*CheckResult, error) {
	ratio, err := c.feed.Ratio(wormholeData.DstWormholeChainId)
	if err != nil {
		return nil, err
	}

	dstMaxGas, err := c.EstimateCompletionGas(soData, wormholeData, swapDataDst)
	if err != nil {
		return nil, err
	}
	dstFee := new(big.Int).Mul(dstMaxGas, wormholeData.DstMaxGasPriceInWeiForRelayer)

	actualReserve, _ := c.cfg.Reserves()
	fee := srcFee(dstFee, ratio, actualReserve)

	userInput := big.NewInt(0)
	if cross.IsNativeAsset(soData.SendingAssetId) {
		userInput = soData.Amount
	}

	consumeValue := new(big.Int).Set(messageFee)
	consumeValue.Add(consumeValue, userInput)
	consumeValue.Add(consumeValue, fee)

	res := &CheckResult{
		SrcFee:       fee,
		ConsumeValue: consumeValue,
		DstMaxGas:    dstMaxGas,
		Refund:       big.NewInt(0),
	}
	if consumeValue.Cmp(wormholeData.WormholeFee) <= 0 {
		res.Ok = true
		res.Refund = new(big.Int).Sub(wormholeData.WormholeFee, consumeValue)
	}
	return res, nil
}

// EstimateRelayerFee is the read-only sibling of CheckRelayerFee used for
// off-chain quoting. It reads the cached ratio and applies the estimate
// reserve, so it may diverge from the fee later charged.
func (c *Calculator) EstimateRelayerFee(soData *cross.SoData, wormholeData *cross.WormholeData, swapDataDst []cross.SwapData) (*big.Int, error) {
	ratio, err := c.feed.CachedRatio(wormholeData.DstWormholeChainId)
	if err != nil {
		return nil, err
	}
	dstMaxGas, err := c.EstimateCompletionGas(soData, wormholeData, swapDataDst)
	if err != nil {
		return nil, err
	}
	dstFee := new(big.Int).Mul(dstMaxGas, wormholeData.DstMaxGasPriceInWeiForRelayer)
	_, estimateReserve := c.cfg.Reserves()
	return srcFee(dstFee, ratio, estimateReserve), nil
}
