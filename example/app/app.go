// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package app

import (
	"context"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/omnibridge/settlement-core/app"
	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/config"
	"github.com/omnibridge/settlement-core/example/memchain"
	"github.com/omnibridge/settlement-core/health"
	"github.com/omnibridge/settlement-core/swap"
)

var (
	wrappedNative = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	usdToken      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	caller        = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	receiver      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

// Run wires the settlement services against the in-memory chain and settles
// one loopback transfer end to end, then serves the health endpoint until
// interrupted.
func Run() error {
	cfg, err := config.GetConfigFromFile(viper.GetString(config.ConfigFlagName))
	if err != nil {
		return err
	}

	ledger := memchain.NewLedger(wrappedNative)
	transport := memchain.NewTransport(cfg.Fee.SrcWormholeChainId, big.NewInt(0), ledger)
	adapter := memchain.NewRateAdapter(ledger)
	// the destination swap consumes the unwrapped delivery, so the pair is
	// registered under the native convention
	adapter.SetRate(common.Address{}, usdToken, 2000, 1)

	services, err := app.NewServices(cfg, app.Capabilities{
		Transport: transport,
		Ledger:    ledger,
		Adapters: map[swap.RouterKind]swap.Adapter{
			swap.RouterUniswapV2: adapter,
		},
	})
	if err != nil {
		return err
	}
	defer services.Close()

	if err := settleLoopbackTransfer(cfg, services, transport, ledger); err != nil {
		return err
	}

	go health.StartHealthEndpoint(cfg.HealthPort)

	sysErr := make(chan os.Signal, 1)
	signal.Notify(sysErr, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sysErr
	log.Info().Msgf("terminating got [%v] signal", sig)
	return nil
}

// settleLoopbackTransfer bridges native currency to the local usd token
// through the loopback transport.
func settleLoopbackTransfer(cfg *config.Config, services *app.Services, transport *memchain.Transport, ledger *memchain.Ledger) error {
	ctx := context.Background()

	amount := big.NewInt(1_000_000)
	soData := &cross.SoData{
		TransactionId:      common.HexToHash("0x01").Bytes(),
		Receiver:           receiver.Bytes(),
		SourceChainId:      cfg.Fee.SrcWormholeChainId,
		SendingAssetId:     []byte{},
		DestinationChainId: cfg.Fee.SrcWormholeChainId,
		ReceivingAssetId:   usdToken.Bytes(),
		Amount:             amount,
	}
	var router common.Address
	if len(cfg.Routers) > 0 {
		router = cfg.Routers[0].Address
	}
	swapDataDst := []cross.SwapData{{
		CallTo:           router.Bytes(),
		ApproveTo:        router.Bytes(),
		SendingAssetId:   []byte{},
		ReceivingAssetId: usdToken.Bytes(),
		FromAmount:       amount,
		CallData:         []byte{},
	}}
	wormholeData := &cross.WormholeData{
		DstWormholeChainId:            cfg.Fee.SrcWormholeChainId,
		DstMaxGasPriceInWeiForRelayer: big.NewInt(1),
		DstSoDiamond:                  common.HexToAddress("0x02").Bytes(),
	}

	fee, err := services.Initiator.EstimateRelayerFee(soData, wormholeData, swapDataDst)
	if err != nil {
		return err
	}
	// fund the caller with input + quoted fee, with headroom for the
	// actual-reserve charge
	attached := new(big.Int).Add(amount, fee)
	attached.Add(attached, fee)
	ledger.MintNative(caller, new(big.Int).Add(attached, amount))
	if err := ledger.AttachValue(caller, attached); err != nil {
		return err
	}
	wormholeData.WormholeFee = attached

	handle, err := services.Initiator.InitiateTransfer(ctx, caller, soData, nil, wormholeData, swapDataDst, attached)
	if err != nil {
		return err
	}
	log.Info().Msgf("example transfer dispatched with sequence %d", handle.Sequence)

	if err := services.Completer.CompleteTransfer(ctx, transport.LastDispatch()); err != nil {
		return err
	}
	log.Info().Msgf("receiver settled with %s usd", ledger.HolderBalance(usdToken, receiver).String())
	return nil
}
