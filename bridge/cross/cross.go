// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

package cross

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SoData describes a single cross-chain transfer end to end. It is created
// once per user request, carried inside the wire payload and consumed by both
// the initiating and the completing side.
type SoData struct {
	// Globally unique identifier of the transfer
	TransactionId []byte
	// Final recipient on the destination chain
	Receiver      []byte
	SourceChainId uint16
	// Asset the user pays in on the source chain
	SendingAssetId     []byte
	DestinationChainId uint16
	// Asset the user receives on the destination chain
	ReceivingAssetId []byte
	// Amount of the sending asset
	Amount *big.Int
}

// Key returns the identifier under which transfer state is tracked.
func (d *SoData) Key() string {
	return hexutil.Encode(d.TransactionId)
}

// SwapData is one ordered step of a swap plan. Plans chain output to input,
// so the receiving asset of leg n is the sending asset of leg n+1.
type SwapData struct {
	// Router the leg executes against
	CallTo []byte
	// Address approved to spend the input asset
	ApproveTo        []byte
	SendingAssetId   []byte
	ReceivingAssetId []byte
	FromAmount       *big.Int
	// Opaque router call data
	CallData []byte
}

// WormholeData carries the parameters of the message-transport leg.
type WormholeData struct {
	DstWormholeChainId uint16
	// Maximum gas price the user funds for the destination relayer
	DstMaxGasPriceInWeiForRelayer *big.Int
	// Prepaid native amount attached by the caller
	WormholeFee *big.Int
	// Destination settlement contract, 20 byte or 32 byte form
	DstSoDiamond []byte
}

type TransferStatus string

const (
	TransferInitiated  TransferStatus = "initiated"
	TransferDispatched TransferStatus = "dispatched"
	TransferReceived   TransferStatus = "received"
	TransferCompleted  TransferStatus = "completed"
	TransferRefunded   TransferStatus = "refunded"
	MissingTransfer    TransferStatus = "missing"
)

// IsNativeAsset reports whether an asset identifier denotes the chain-native
// currency. The zero address and the empty identifier are both native.
func IsNativeAsset(assetId []byte) bool {
	if len(assetId) == 0 {
		return true
	}
	return bytes.Equal(common.TrimLeftZeroes(assetId), []byte{})
}

// AssetAddress converts a wire asset identifier into a local address.
// Identifiers may arrive in the 32 byte padded form.
func AssetAddress(assetId []byte) common.Address {
	return common.BytesToAddress(assetId)
}
