// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package initiator_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
	"github.com/syndtr/goleveldb/leveldb"
	"go.opentelemetry.io/otel"

	"github.com/omnibridge/settlement-core/bridge/codec"
	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/bridge/fees"
	"github.com/omnibridge/settlement-core/bridge/initiator"
	"github.com/omnibridge/settlement-core/example/memchain"
	"github.com/omnibridge/settlement-core/metrics"
	"github.com/omnibridge/settlement-core/oracle"
	"github.com/omnibridge/settlement-core/store"
	"github.com/omnibridge/settlement-core/swap"
)

const chainId = uint16(2)

var (
	caller        = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	receiver      = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	beneficiary   = common.HexToAddress("0x00000000000000000000000000000000000000fe")
	routerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	wrappedNative = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	srcToken      = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	usdToken      = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) GetByKey(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, leveldb.ErrNotFound
	}
	return v, nil
}

func (m *memKV) SetByKey(key []byte, value []byte) error {
	m.data[string(key)] = value
	return nil
}

// rayFraction returns num/den scaled to RAY fixed point.
func rayFraction(num, den int64) *big.Int {
	r := new(big.Int).Mul(oracle.RAY, big.NewInt(num))
	return r.Div(r, big.NewInt(den))
}

type InitiatorTestSuite struct {
	suite.Suite
	ledger    *memchain.Ledger
	transport *memchain.Transport
	adapter   *memchain.RateAdapter
	calc      *fees.Calculator
	transfers *store.TransferStore
	initiator *initiator.Initiator

	soData       *cross.SoData
	wormholeData *cross.WormholeData
}

func TestRunInitiatorTestSuite(t *testing.T) {
	suite.Run(t, new(InitiatorTestSuite))
}

func (s *InitiatorTestSuite) SetupTest() {
	cfg := fees.NewConfig(beneficiary)
	cfg.SetTransport(common.HexToAddress("0x10"), chainId)
	cfg.SetReserves(rayFraction(11, 10), rayFraction(12, 10))
	cfg.SetGas(chainId, big.NewInt(700000), big.NewInt(68))

	feed := oracle.NewStaticFeed(big.NewInt(0))
	feed.SetRatio(chainId, new(big.Int).Set(oracle.RAY))
	s.calc = fees.NewCalculator(cfg, feed)

	s.ledger = memchain.NewLedger(wrappedNative)
	s.transport = memchain.NewTransport(chainId, big.NewInt(0), s.ledger)

	s.adapter = memchain.NewRateAdapter(s.ledger)
	registry := swap.NewRegistry()
	registry.RegisterRouter(routerAddr, swap.RouterUniswapV2)
	registry.RegisterAdapter(swap.RouterUniswapV2, s.adapter)

	s.transfers = store.NewTransferStore(newMemKV())
	m, err := metrics.NewSettlementMetrics(otel.GetMeterProvider().Meter("test"), "test", "test")
	s.Require().Nil(err)

	s.initiator = initiator.NewInitiator(cfg, s.calc, s.transport, s.ledger, swap.NewExecutor(registry, s.ledger), s.transfers, m)

	s.soData = &cross.SoData{
		TransactionId:      common.HexToHash("0x01").Bytes(),
		Receiver:           receiver.Bytes(),
		SourceChainId:      chainId,
		SendingAssetId:     srcToken.Bytes(),
		DestinationChainId: chainId,
		ReceivingAssetId:   usdToken.Bytes(),
		Amount:             big.NewInt(1000000),
	}
	s.wormholeData = &cross.WormholeData{
		DstWormholeChainId:            chainId,
		DstMaxGasPriceInWeiForRelayer: big.NewInt(100),
		WormholeFee:                   big.NewInt(0),
		DstSoDiamond:                  common.HexToAddress("0x02").Bytes(),
	}
}

// fund quotes the exact consume value for the pending transfer, attaches it
// plus extra to the contract and records it as the declared wormhole fee.
func (s *InitiatorTestSuite) fund(extra int64, swapDataDst []cross.SwapData) *fees.CheckResult {
	res, err := s.calc.CheckRelayerFee(s.soData, s.wormholeData, swapDataDst, big.NewInt(0))
	s.Require().Nil(err)

	attached := new(big.Int).Add(res.ConsumeValue, big.NewInt(extra))
	s.wormholeData.WormholeFee = attached
	s.ledger.MintNative(caller, attached)
	s.Require().Nil(s.ledger.AttachValue(caller, attached))
	return res
}

func (s *InitiatorTestSuite) status() cross.TransferStatus {
	status, err := s.transfers.TransferStatus(s.soData.Key())
	s.Require().Nil(err)
	return status
}

func (s *InitiatorTestSuite) Test_PaymentMismatchRejected() {
	s.wormholeData.WormholeFee = big.NewInt(100)

	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, big.NewInt(99))

	s.ErrorIs(err, initiator.ErrPaymentMismatch)
	s.Equal(cross.MissingTransfer, s.status())
}

func (s *InitiatorTestSuite) Test_NilPaymentRejected() {
	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, nil)

	s.ErrorIs(err, initiator.ErrPaymentMismatch)
}

func (s *InitiatorTestSuite) Test_InsufficientFeeRejected() {
	res := s.fund(0, nil)
	short := new(big.Int).Sub(res.ConsumeValue, big.NewInt(1))
	s.wormholeData.WormholeFee = short

	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, short)

	s.ErrorIs(err, initiator.ErrFeeCheck)
	s.Equal(cross.MissingTransfer, s.status())
	s.Nil(s.transport.LastDispatch())
}

func (s *InitiatorTestSuite) Test_NativeTransferRefundsOverpayment() {
	s.soData.SendingAssetId = []byte{}
	res := s.fund(500, nil)

	handle, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, s.wormholeData.WormholeFee)

	s.Nil(err)
	s.Equal(uint64(1), handle.Sequence)
	s.Equal(s.soData.TransactionId, handle.TransactionId)
	s.Equal(big.NewInt(500), s.ledger.HolderNative(caller))
	s.Equal(res.SrcFee, s.ledger.HolderNative(beneficiary))
	// custody fully handed to the transport
	s.Equal(big.NewInt(0), s.ledger.HolderBalance(wrappedNative, common.Address{}))
	s.Equal(big.NewInt(0), s.ledger.HolderNative(common.Address{}))
	s.Equal(cross.TransferDispatched, s.status())
}

func (s *InitiatorTestSuite) Test_DispatchedPayloadDecodes() {
	s.soData.SendingAssetId = []byte{}
	res := s.fund(0, nil)

	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, s.wormholeData.WormholeFee)
	s.Nil(err)

	raw := s.transport.LastDispatch()
	s.Require().NotNil(raw)
	// strip the loopback envelope: chain id, address length, address
	payload, err := codec.DecodeWormholePayload(raw[2+8+common.AddressLength:])

	s.Nil(err)
	s.Equal(s.soData, payload.SoData)
	s.Equal(res.DstMaxGas, payload.DstMaxGas)
	s.Equal(s.wormholeData.DstMaxGasPriceInWeiForRelayer, payload.DstMaxGasPrice)
	s.Empty(payload.SwapDataDst)
}

func (s *InitiatorTestSuite) Test_TokenTransferPullsCustody() {
	s.fund(0, nil)
	s.ledger.Mint(srcToken, caller, s.soData.Amount)

	handle, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, nil, s.wormholeData, nil, s.wormholeData.WormholeFee)

	s.Nil(err)
	s.Equal(uint64(1), handle.Sequence)
	s.Equal(big.NewInt(0), s.ledger.HolderBalance(srcToken, caller))
	// pulled custody was locked by the transport
	s.Equal(big.NewInt(0), s.ledger.HolderBalance(srcToken, common.Address{}))
	s.Equal(cross.TransferDispatched, s.status())
}

func (s *InitiatorTestSuite) Test_SourceSwapAmountMismatchAborts() {
	swapDataSrc := []cross.SwapData{{
		CallTo:           routerAddr.Bytes(),
		ApproveTo:        routerAddr.Bytes(),
		SendingAssetId:   srcToken.Bytes(),
		ReceivingAssetId: usdToken.Bytes(),
		FromAmount:       new(big.Int).Add(s.soData.Amount, big.NewInt(1)),
		CallData:         []byte{},
	}}
	s.fund(0, nil)
	s.ledger.Mint(srcToken, caller, s.soData.Amount)

	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, swapDataSrc, s.wormholeData, nil, s.wormholeData.WormholeFee)

	s.ErrorIs(err, initiator.ErrAmountMismatch)
	s.Nil(s.transport.LastDispatch())
}

func (s *InitiatorTestSuite) Test_SourceSwapExecutesBeforeDispatch() {
	s.adapter.SetRate(srcToken, usdToken, 3, 1)
	swapDataSrc := []cross.SwapData{{
		CallTo:           routerAddr.Bytes(),
		ApproveTo:        routerAddr.Bytes(),
		SendingAssetId:   srcToken.Bytes(),
		ReceivingAssetId: usdToken.Bytes(),
		FromAmount:       new(big.Int).Set(s.soData.Amount),
		CallData:         []byte{},
	}}
	s.fund(0, nil)
	s.ledger.Mint(srcToken, caller, s.soData.Amount)

	handle, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, swapDataSrc, s.wormholeData, nil, s.wormholeData.WormholeFee)

	s.Nil(err)
	s.Equal(uint64(1), handle.Sequence)
	// the swap output, not the input, was handed to the transport
	s.Equal(big.NewInt(0), s.ledger.HolderBalance(srcToken, common.Address{}))
	s.Equal(big.NewInt(0), s.ledger.HolderBalance(usdToken, common.Address{}))
	s.Equal(cross.TransferDispatched, s.status())
}

func (s *InitiatorTestSuite) Test_SourceSwapFailureAborts() {
	// no rate registered for the pair
	swapDataSrc := []cross.SwapData{{
		CallTo:           routerAddr.Bytes(),
		ApproveTo:        routerAddr.Bytes(),
		SendingAssetId:   srcToken.Bytes(),
		ReceivingAssetId: usdToken.Bytes(),
		FromAmount:       new(big.Int).Set(s.soData.Amount),
		CallData:         []byte{},
	}}
	s.fund(0, nil)
	s.ledger.Mint(srcToken, caller, s.soData.Amount)

	_, err := s.initiator.InitiateTransfer(context.Background(), caller, s.soData, swapDataSrc, s.wormholeData, nil, s.wormholeData.WormholeFee)

	var swapErr *swap.Error
	s.ErrorAs(err, &swapErr)
	s.Nil(s.transport.LastDispatch())
	s.Equal(cross.TransferInitiated, s.status())
}

func (s *InitiatorTestSuite) Test_EstimateRelayerFee_QuotesAboveActual() {
	res := s.fund(0, nil)

	quote, err := s.initiator.EstimateRelayerFee(s.soData, s.wormholeData, nil)

	s.Nil(err)
	s.Equal(1, quote.Cmp(res.SrcFee))
}
