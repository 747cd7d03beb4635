// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package app assembles the settlement services from configuration and the
// injected chain capabilities.
package app

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/omnibridge/settlement-core/assets"
	"github.com/omnibridge/settlement-core/bridge/completer"
	"github.com/omnibridge/settlement-core/bridge/fees"
	"github.com/omnibridge/settlement-core/bridge/initiator"
	"github.com/omnibridge/settlement-core/config"
	"github.com/omnibridge/settlement-core/lvldb"
	"github.com/omnibridge/settlement-core/metrics"
	"github.com/omnibridge/settlement-core/oracle"
	"github.com/omnibridge/settlement-core/store"
	"github.com/omnibridge/settlement-core/swap"
	"github.com/omnibridge/settlement-core/wormhole"
)

// Capabilities are the external collaborators a deployment plugs in: the
// message transport, the asset custody surface and the swap routers.
type Capabilities struct {
	Transport wormhole.Transport
	Ledger    assets.Ledger
	Adapters  map[swap.RouterKind]swap.Adapter
	// Optional call-data corrector for chains whose swap call data embeds
	// the input amount
	Corrector completer.CallDataCorrector
}

type Services struct {
	FeeConfig  *fees.Config
	Feed       *oracle.StaticFeed
	Calculator *fees.Calculator
	Initiator  *initiator.Initiator
	Completer  *completer.Completer
	Transfers  *store.TransferStore

	db *lvldb.LVLDB
}

// NewServices wires the settlement core for one deployment.
func NewServices(cfg *config.Config, caps Capabilities) (*Services, error) {
	if caps.Transport == nil || caps.Ledger == nil {
		return nil, errors.New("transport and ledger capabilities are required")
	}

	logLevel := cfg.LogLevel
	zerolog.SetGlobalLevel(logLevel)
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		log.Logger = log.Output(zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: os.Stderr}, logFile))
	}

	blockstorePath := viper.GetString(config.BlockstoreFlagName)
	if blockstorePath == "" {
		blockstorePath = cfg.BlockstorePath
	}
	db, err := lvldb.NewLvlDB(blockstorePath)
	if err != nil {
		return nil, err
	}
	transfers := store.NewTransferStore(db)

	meter := otel.GetMeterProvider().Meter("github.com/omnibridge/settlement-core")
	settlementMetrics, err := metrics.NewSettlementMetrics(meter, cfg.Env, cfg.InstanceId)
	if err != nil {
		return nil, err
	}

	feeConfig := fees.NewConfig(cfg.Fee.Beneficiary)
	feeConfig.SetTransport(cfg.Fee.Transport, cfg.Fee.SrcWormholeChainId)
	feeConfig.SetReserves(cfg.Fee.ActualReserve, cfg.Fee.EstimateReserve)
	for dstChainId, gt := range cfg.Fee.GasTables {
		feeConfig.SetGas(dstChainId, gt.BaseGas, gt.GasPerByte)
	}

	feed := oracle.NewStaticFeed(cfg.Oracle.ProtocolFeeRate)
	for dstChainId, ratio := range cfg.Oracle.Ratios {
		feed.SetRatio(dstChainId, ratio)
	}

	registry := swap.NewRegistry()
	for _, router := range cfg.Routers {
		kind, err := swap.KindFromString(router.Kind)
		if err != nil {
			return nil, err
		}
		registry.RegisterRouter(router.Address, kind)
	}
	for kind, adapter := range caps.Adapters {
		registry.RegisterAdapter(kind, adapter)
	}
	swapper := swap.NewExecutor(registry, caps.Ledger)

	calculator := fees.NewCalculator(feeConfig, feed)

	return &Services{
		FeeConfig:  feeConfig,
		Feed:       feed,
		Calculator: calculator,
		Initiator:  initiator.NewInitiator(feeConfig, calculator, caps.Transport, caps.Ledger, swapper, transfers, settlementMetrics),
		Completer:  completer.NewCompleter(feeConfig, caps.Transport, caps.Ledger, swapper, feed, caps.Corrector, transfers, settlementMetrics),
		Transfers:  transfers,
		db:         db,
	}, nil
}

func (s *Services) Close() error {
	return s.db.Close()
}
