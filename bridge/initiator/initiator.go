// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package initiator executes the source-chain half of a transfer: fee
// verification, optional local swap, payload construction and dispatch to
// the message transport. The whole operation is atomic; any failure aborts
// before funds leave the caller's control.
package initiator

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/omnibridge/settlement-core/assets"
	"github.com/omnibridge/settlement-core/bridge/codec"
	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/bridge/events"
	"github.com/omnibridge/settlement-core/bridge/fees"
	"github.com/omnibridge/settlement-core/metrics"
	"github.com/omnibridge/settlement-core/store"
	"github.com/omnibridge/settlement-core/swap"
	"github.com/omnibridge/settlement-core/wormhole"
)

var (
	ErrPaymentMismatch = errors.New("attached payment does not equal the declared wormhole fee")
	ErrFeeCheck        = errors.New("attached payment does not cover the relayer fee")
	ErrAmountMismatch  = errors.New("first swap leg amount does not equal the transfer amount")
)

// TransferHandle identifies a dispatched transfer.
type TransferHandle struct {
	TransactionId []byte
	Sequence      uint64
}

type Initiator struct {
	cfg       *fees.Config
	calc      *fees.Calculator
	transport wormhole.Transport
	ledger    assets.Ledger
	swapper   *swap.Executor
	transfers *store.TransferStore
	metrics   *metrics.SettlementMetrics
}

func NewInitiator(
	cfg *fees.Config,
	calc *fees.Calculator,
	transport wormhole.Transport,
	ledger assets.Ledger,
	swapper *swap.Executor,
	transfers *store.TransferStore,
	m *metrics.SettlementMetrics,
) *Initiator {
	return &Initiator{
		cfg:       cfg,
		calc:      calc,
		transport: transport,
		ledger:    ledger,
		swapper:   swapper,
		transfers: transfers,
		metrics:   m,
	}
}

// InitiateTransfer validates and executes the source side of a transfer.
// attachedValue is the native payment the caller attached and must equal
// wormholeData.WormholeFee exactly.
func (i *Initiator) InitiateTransfer(
	ctx context.Context,
	caller common.Address,
	soData *cross.SoData,
	swapDataSrc []cross.SwapData,
	wormholeData *cross.WormholeData,
	swapDataDst []cross.SwapData,
	attachedValue *big.Int,
) (*TransferHandle, error) {
	if attachedValue == nil || attachedValue.Cmp(wormholeData.WormholeFee) != 0 {
		return nil, ErrPaymentMismatch
	}

	messageFee, err := i.transport.MessageFee()
	if err != nil {
		return nil, err
	}
	check, err := i.calc.CheckRelayerFee(soData, wormholeData, swapDataDst, messageFee)
	if err != nil {
		return nil, err
	}
	if !check.Ok {
		i.metrics.TrackFeeCheckFailure(ctx)
		return nil, errors.Wrapf(ErrFeeCheck, "need %s, attached %s", check.ConsumeValue.String(), wormholeData.WormholeFee.String())
	}

	if err := i.transfers.StoreTransferStatus(soData.Key(), cross.TransferInitiated); err != nil {
		return nil, err
	}

	if check.Refund.Sign() > 0 {
		if err := i.ledger.TransferNative(caller, check.Refund); err != nil {
			return nil, err
		}
	}
	if check.SrcFee.Sign() > 0 {
		if err := i.ledger.TransferNative(i.cfg.Beneficiary(), check.SrcFee); err != nil {
			return nil, err
		}
	}

	nativeSource := cross.IsNativeAsset(soData.SendingAssetId)
	if !nativeSource {
		if err := i.ledger.PullFrom(cross.AssetAddress(soData.SendingAssetId), caller, soData.Amount); err != nil {
			return nil, err
		}
	}

	bridgeAsset, bridgeAmount, err := i.resolveBridgeLeg(ctx, soData, swapDataSrc, nativeSource)
	if err != nil {
		return nil, err
	}

	payload, err := codec.EncodeWormholePayload(wormholeData.DstMaxGasPriceInWeiForRelayer, check.DstMaxGas, soData, swapDataDst)
	if err != nil {
		return nil, err
	}
	sequence, err := i.transport.Send(ctx, bridgeAsset, bridgeAmount, wormholeData.DstWormholeChainId, wormholeData.DstSoDiamond, 0, payload)
	if err != nil {
		return nil, err
	}

	if err := i.transfers.StoreTransferStatus(soData.Key(), cross.TransferDispatched); err != nil {
		log.Warn().Err(err).Msgf("failed storing dispatched status for transfer %s", soData.Key())
	}

	started := events.SoTransferStarted{
		TransactionId: soData.TransactionId,
		Route:         "Wormhole",
		HasSourceSwap: len(swapDataSrc) > 0,
		HasDestSwap:   len(swapDataDst) > 0,
		SoData:        soData,
		Sequence:      sequence,
	}
	log.Info().Interface("event", started).Msgf("transfer %s dispatched with sequence %d", soData.Key(), sequence)
	i.metrics.TrackInitiated(ctx, len(payload))

	return &TransferHandle{TransactionId: soData.TransactionId, Sequence: sequence}, nil
}

// resolveBridgeLeg takes custody of the source asset and, when a source swap
// plan is present, executes it atomically. It returns the asset and amount
// actually handed to the transport. Native holdings are wrapped before
// dispatch since the transport locks tokens only.
func (i *Initiator) resolveBridgeLeg(ctx context.Context, soData *cross.SoData, swapDataSrc []cross.SwapData, nativeSource bool) (common.Address, *big.Int, error) {
	if len(swapDataSrc) == 0 {
		if nativeSource {
			if err := i.ledger.WrapNative(soData.Amount); err != nil {
				return common.Address{}, nil, err
			}
			return i.ledger.WrappedNative(), soData.Amount, nil
		}
		return cross.AssetAddress(soData.SendingAssetId), soData.Amount, nil
	}

	if swapDataSrc[0].FromAmount.Cmp(soData.Amount) != 0 {
		return common.Address{}, nil, errors.Wrapf(ErrAmountMismatch, "leg %s, transfer %s", swapDataSrc[0].FromAmount.String(), soData.Amount.String())
	}
	out, err := i.swapper.ExecuteChain(ctx, swapDataSrc)
	if err != nil {
		return common.Address{}, nil, err
	}

	last := swapDataSrc[len(swapDataSrc)-1]
	if cross.IsNativeAsset(last.ReceivingAssetId) {
		if err := i.ledger.WrapNative(out); err != nil {
			return common.Address{}, nil, err
		}
		return i.ledger.WrappedNative(), out, nil
	}
	return cross.AssetAddress(last.ReceivingAssetId), out, nil
}

// EstimateRelayerFee quotes the relayer fee for an intended transfer without
// touching any state. The quote uses the estimate reserve and may diverge
// from the fee charged at initiation.
func (i *Initiator) EstimateRelayerFee(soData *cross.SoData, wormholeData *cross.WormholeData, swapDataDst []cross.SwapData) (*big.Int, error) {
	return i.calc.EstimateRelayerFee(soData, wormholeData, swapDataDst)
}
