// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package assets declares the custody surface the settlement core drives.
package assets

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger moves assets on behalf of the settlement contract. Balance reads
// report the contract's own holdings.
type Ledger interface {
	Balance(asset common.Address) (*big.Int, error)
	// Transfer sends tokens out of the contract's holdings.
	Transfer(asset common.Address, to common.Address, amount *big.Int) error
	// PullFrom takes custody of tokens from an external holder.
	PullFrom(asset common.Address, from common.Address, amount *big.Int) error
	// TransferNative sends native currency out of the contract's holdings.
	TransferNative(to common.Address, amount *big.Int) error
	// WrappedNative returns the wrapped representation of the native asset.
	WrappedNative() common.Address
	// WrapNative converts held native currency into the wrapped asset.
	WrapNative(amount *big.Int) error
	// UnwrapNative converts held wrapped-native tokens back to native.
	UnwrapNative(amount *big.Int) error
	// Snapshot marks the current custody state.
	Snapshot() int
	// RevertToSnapshot restores custody to an earlier snapshot, discarding
	// any later ones.
	RevertToSnapshot(id int) error
}
