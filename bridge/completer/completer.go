// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package completer executes the destination-chain half of a transfer:
// receiving the transport message, deducting the protocol fee and delivering
// funds to the final receiver. A failed destination swap never aborts the
// completion; the receiver is compensated in the originally received asset.
package completer

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/omnibridge/settlement-core/assets"
	"github.com/omnibridge/settlement-core/bridge/codec"
	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/bridge/events"
	"github.com/omnibridge/settlement-core/bridge/fees"
	"github.com/omnibridge/settlement-core/metrics"
	"github.com/omnibridge/settlement-core/oracle"
	"github.com/omnibridge/settlement-core/store"
	"github.com/omnibridge/settlement-core/swap"
	"github.com/omnibridge/settlement-core/wormhole"
)

var (
	ErrZeroDelivery  = errors.New("transport delivered a zero amount")
	ErrTokenMismatch = errors.New("delivered asset does not match the transfer record")
)

// CallDataCorrector recomputes a swap leg's router call data for a new input
// amount, for chains whose call data embeds the amount.
type CallDataCorrector interface {
	Correct(leg cross.SwapData, newAmount *big.Int) ([]byte, error)
}

type Completer struct {
	cfg       *fees.Config
	transport wormhole.Transport
	ledger    assets.Ledger
	swapper   *swap.Executor
	feed      oracle.PriceFeed
	corrector CallDataCorrector
	transfers *store.TransferStore
	metrics   *metrics.SettlementMetrics
}

func NewCompleter(
	cfg *fees.Config,
	transport wormhole.Transport,
	ledger assets.Ledger,
	swapper *swap.Executor,
	feed oracle.PriceFeed,
	corrector CallDataCorrector,
	transfers *store.TransferStore,
	m *metrics.SettlementMetrics,
) *Completer {
	return &Completer{
		cfg:       cfg,
		transport: transport,
		ledger:    ledger,
		swapper:   swapper,
		feed:      feed,
		corrector: corrector,
		transfers: transfers,
		metrics:   m,
	}
}

// CompleteTransfer verifies and unwraps a raw transport message and settles
// it towards the final receiver. Callable by anyone; replay protection is
// the transport's concern.
func (c *Completer) CompleteTransfer(ctx context.Context, raw []byte) error {
	msg, err := c.transport.ReceiveAndUnwrap(ctx, raw)
	if err != nil {
		return err
	}
	payload, err := codec.DecodeWormholePayload(msg.Payload)
	if err != nil {
		return err
	}
	soData := payload.SoData

	if err := c.transfers.StoreTransferStatus(soData.Key(), cross.TransferReceived); err != nil {
		return err
	}

	asset, err := c.resolveAsset(msg)
	if err != nil {
		return err
	}
	amount, err := c.ledger.Balance(asset)
	if err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return errors.Wrapf(ErrZeroDelivery, "asset %s", asset.String())
	}

	native := false
	if asset == c.ledger.WrappedNative() {
		if err := c.ledger.UnwrapNative(amount); err != nil {
			return err
		}
		native = true
	}

	remainder, soFee, err := c.deductProtocolFee(amount)
	if err != nil {
		return err
	}

	if len(payload.SwapDataDst) == 0 {
		return c.deliverDirect(ctx, soData, asset, native, remainder, soFee)
	}
	return c.deliverSwapped(ctx, soData, payload.SwapDataDst, asset, native, remainder, soFee)
}

// resolveAsset maps the bridged token onto a local asset: tokens that
// originate on this chain arrive under their literal address, foreign tokens
// under their wrapped representation.
func (c *Completer) resolveAsset(msg *wormhole.ReceivedMessage) (common.Address, error) {
	if msg.TokenChain == c.cfg.SrcWormholeChainId() {
		return cross.AssetAddress(msg.TokenAddress), nil
	}
	return c.transport.WrappedAsset(msg.TokenChain, msg.TokenAddress)
}

// deductProtocolFee applies the fee schedule. The deduction is clamped so it
// never consumes the full delivered amount: outside 0 < fee < amount nothing
// is deducted.
func (c *Completer) deductProtocolFee(amount *big.Int) (remainder *big.Int, soFee *big.Int, err error) {
	soFee, err = c.feed.ProtocolFee(amount)
	if err != nil {
		return nil, nil, err
	}
	if soFee.Sign() > 0 && soFee.Cmp(amount) < 0 {
		return new(big.Int).Sub(amount, soFee), soFee, nil
	}
	return new(big.Int).Set(amount), big.NewInt(0), nil
}

// payOut moves funds out of the contract's holdings, using the native path
// for unwrapped holdings.
func (c *Completer) payOut(asset common.Address, native bool, to common.Address, amount *big.Int) error {
	if native {
		return c.ledger.TransferNative(to, amount)
	}
	return c.ledger.Transfer(asset, to, amount)
}

// assetMatches compares the delivered asset against a wire asset identifier,
// honoring the native-asset convention for unwrapped deliveries.
func assetMatches(asset common.Address, native bool, assetId []byte) bool {
	if native {
		return cross.IsNativeAsset(assetId)
	}
	return asset == cross.AssetAddress(assetId) && !cross.IsNativeAsset(assetId)
}

func (c *Completer) deliverDirect(ctx context.Context, soData *cross.SoData, asset common.Address, native bool, remainder, soFee *big.Int) error {
	if !assetMatches(asset, native, soData.ReceivingAssetId) {
		return errors.Wrapf(ErrTokenMismatch, "delivered %s, expected 0x%x", asset.String(), soData.ReceivingAssetId)
	}
	if err := c.payFee(asset, native, soFee); err != nil {
		return err
	}
	receiver := common.BytesToAddress(soData.Receiver)
	if err := c.payOut(asset, native, receiver, remainder); err != nil {
		return err
	}
	c.finishCompleted(ctx, soData, asset, receiver, remainder)
	return nil
}

func (c *Completer) deliverSwapped(ctx context.Context, soData *cross.SoData, legs []cross.SwapData, asset common.Address, native bool, remainder, soFee *big.Int) error {
	if !assetMatches(asset, native, legs[0].SendingAssetId) {
		return errors.Wrapf(ErrTokenMismatch, "delivered %s, first leg expects 0x%x", asset.String(), legs[0].SendingAssetId)
	}
	if err := c.payFee(asset, native, soFee); err != nil {
		return err
	}
	receiver := common.BytesToAddress(soData.Receiver)

	// The received amount replaces whatever amount the source side planned
	// with; call data embedding the old amount is recomputed when a
	// corrector is wired.
	legs[0].FromAmount = new(big.Int).Set(remainder)
	out, err := c.runDestinationSwap(ctx, legs)
	if err != nil {
		// Compensation path: the receiver gets the pre-swap remainder of
		// the originally received asset. The remainder captured at receipt
		// is authoritative; holdings are not re-read here.
		if payErr := c.payOut(asset, native, receiver, remainder); payErr != nil {
			return payErr
		}
		failed := events.SoTransferFailed{
			TransactionId: soData.TransactionId,
			SoData:        soData,
		}
		var swapErr *swap.Error
		if errors.As(err, &swapErr) && swapErr.Reason != "" {
			failed.Reason = swapErr.Reason
		} else if errors.As(err, &swapErr) {
			failed.RawReason = swapErr.Raw
		} else {
			failed.Reason = err.Error()
		}
		log.Warn().Err(err).Interface("event", failed).Msgf("transfer %s compensated in original asset", soData.Key())
		c.metrics.TrackCompensated(ctx)
		if err := c.transfers.StoreTransferStatus(soData.Key(), cross.TransferRefunded); err != nil {
			log.Warn().Err(err).Msgf("failed storing refunded status for transfer %s", soData.Key())
		}
		return nil
	}

	outAsset := cross.AssetAddress(legs[len(legs)-1].ReceivingAssetId)
	outNative := cross.IsNativeAsset(legs[len(legs)-1].ReceivingAssetId)
	if err := c.payOut(outAsset, outNative, receiver, out); err != nil {
		return err
	}
	c.finishCompleted(ctx, soData, outAsset, receiver, out)
	return nil
}

func (c *Completer) runDestinationSwap(ctx context.Context, legs []cross.SwapData) (*big.Int, error) {
	if c.corrector != nil {
		corrected, err := c.corrector.Correct(legs[0], legs[0].FromAmount)
		if err != nil {
			return nil, err
		}
		legs[0].CallData = corrected
	}
	return c.swapper.ExecuteChain(ctx, legs)
}

func (c *Completer) payFee(asset common.Address, native bool, soFee *big.Int) error {
	if soFee.Sign() == 0 {
		return nil
	}
	return c.payOut(asset, native, c.cfg.Beneficiary(), soFee)
}

func (c *Completer) finishCompleted(ctx context.Context, soData *cross.SoData, asset common.Address, receiver common.Address, amount *big.Int) {
	completed := events.SoTransferCompleted{
		TransactionId: soData.TransactionId,
		Asset:         asset,
		Receiver:      receiver,
		Amount:        amount,
		Timestamp:     time.Now().Unix(),
		SoData:        soData,
	}
	log.Info().Interface("event", completed).Msgf("transfer %s completed, delivered %s of %s", soData.Key(), amount.String(), asset.String())
	c.metrics.TrackCompleted(ctx)
	if err := c.transfers.StoreTransferStatus(soData.Key(), cross.TransferCompleted); err != nil {
		log.Warn().Err(err).Msgf("failed storing completed status for transfer %s", soData.Key())
	}
}
