// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/omnibridge/settlement-core/bridge/cross"
)

type EventSig string

func (es EventSig) GetTopic() common.Hash {
	return crypto.Keccak256Hash([]byte(es))
}

const (
	SoTransferStartedSig     EventSig = "SoTransferStarted(bytes32)"
	SoTransferCompletedSig   EventSig = "SoTransferCompleted(bytes32,address,address,uint256)"
	SoTransferFailedSig      EventSig = "SoTransferFailed(bytes32,string)"
	TransportRegisteredSig   EventSig = "TransportRegistered(address,uint16)"
	UpdateWormholeReserveSig EventSig = "UpdateWormholeReserve(uint256,uint256)"
	UpdateWormholeGasSig     EventSig = "UpdateWormholeGas(uint16,uint256,uint256)"
)

// SoTransferStarted is emitted once a transfer is dispatched to the
// message transport.
type SoTransferStarted struct {
	TransactionId []byte
	// Transport route, always "Wormhole" for this deployment
	Route         string
	HasSourceSwap bool
	HasDestSwap   bool
	SoData        *cross.SoData
	// Transport sequence assigned to the dispatched message
	Sequence uint64
}

// SoTransferCompleted is emitted when funds reach the final receiver,
// whether swapped or compensated in the original asset.
type SoTransferCompleted struct {
	TransactionId []byte
	Asset         common.Address
	Receiver      common.Address
	Amount        *big.Int
	Timestamp     int64
	SoData        *cross.SoData
}

// SoTransferFailed is emitted when a planned destination swap could not be
// executed and the receiver was compensated instead. Reason carries the
// structured failure message when one exists, RawReason the opaque payload
// otherwise.
type SoTransferFailed struct {
	TransactionId []byte
	Reason        string
	RawReason     []byte
	SoData        *cross.SoData
}

type TransportRegistered struct {
	Transport          common.Address
	SrcWormholeChainId uint16
}

type UpdateWormholeReserve struct {
	ActualReserve   *big.Int
	EstimateReserve *big.Int
}

type UpdateWormholeGas struct {
	DstWormholeChainId uint16
	BaseGas            *big.Int
	GasPerByte         *big.Int
}
