// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package wormhole declares the message transport consumed by the settlement
// core. Message authenticity, replay protection and custody of bridged funds
// are the transport's concern.
package wormhole

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReceivedMessage is a validated, unwrapped transport message.
type ReceivedMessage struct {
	// Chain the bridged token originates from
	TokenChain uint16
	// Token address on its origin chain, possibly in 32 byte form
	TokenAddress []byte
	Payload      []byte
}

type Transport interface {
	// MessageFee returns the native amount the transport charges per message.
	MessageFee() (*big.Int, error)
	// Send locks the asset with the transport and publishes the payload
	// towards the destination contract, returning the assigned sequence.
	Send(ctx context.Context, asset common.Address, amount *big.Int, dstWormholeChainId uint16, dstContract []byte, nonce uint32, payload []byte) (uint64, error)
	// ReceiveAndUnwrap verifies a raw message and releases the bridged
	// funds to the caller.
	ReceiveAndUnwrap(ctx context.Context, raw []byte) (*ReceivedMessage, error)
	// WrappedAsset resolves the local wrapped representation of a foreign
	// token.
	WrappedAsset(tokenChain uint16, tokenAddress []byte) (common.Address, error)
}
