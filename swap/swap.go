// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package swap executes local swap plans against a closed set of known
// router variants. A leg's target address is resolved to its variant once,
// before anything executes.
package swap

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/omnibridge/settlement-core/bridge/cross"
)

// RouterKind enumerates the supported router variants.
type RouterKind string

const (
	RouterUniswapV2 RouterKind = "uniswapV2"
	RouterUniswapV3 RouterKind = "uniswapV3"
	RouterCurve     RouterKind = "curve"
)

var ErrUnknownRouter = errors.New("swap router not registered")

// KindFromString parses a configured router kind.
func KindFromString(s string) (RouterKind, error) {
	switch RouterKind(s) {
	case RouterUniswapV2, RouterUniswapV3, RouterCurve:
		return RouterKind(s), nil
	default:
		return "", errors.Errorf("unknown router kind %q", s)
	}
}

// Error is a failed swap execution. Reason carries the router's structured
// failure message when it produced one, Raw the opaque revert payload
// otherwise.
type Error struct {
	Reason string
	Raw    []byte
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("swap execution failed: %s", e.Reason)
	}
	return fmt.Sprintf("swap execution failed: 0x%x", e.Raw)
}

// Adapter executes one leg against a concrete router variant.
type Adapter interface {
	Execute(ctx context.Context, leg cross.SwapData) (*big.Int, error)
}

// Registry maps router addresses to their variant and variants to their
// adapter implementation.
type Registry struct {
	kinds    map[common.Address]RouterKind
	adapters map[RouterKind]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		kinds:    make(map[common.Address]RouterKind),
		adapters: make(map[RouterKind]Adapter),
	}
}

func (r *Registry) RegisterRouter(addr common.Address, kind RouterKind) {
	r.kinds[addr] = kind
	log.Debug().Msgf("registered %s router %s", kind, addr.String())
}

func (r *Registry) RegisterAdapter(kind RouterKind, adapter Adapter) {
	r.adapters[kind] = adapter
}

// Resolve returns the adapter for a leg's target router.
func (r *Registry) Resolve(callTo []byte) (Adapter, error) {
	kind, ok := r.kinds[common.BytesToAddress(callTo)]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRouter, "router 0x%x", callTo)
	}
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRouter, "no adapter for %s", kind)
	}
	return adapter, nil
}

// Custody is the revertible custody surface swap plans execute against.
type Custody interface {
	Snapshot() int
	RevertToSnapshot(id int) error
}

// Executor runs whole swap plans.
type Executor struct {
	registry *Registry
	custody  Custody
}

func NewExecutor(registry *Registry, custody Custody) *Executor {
	return &Executor{registry: registry, custody: custody}
}

// ExecuteChain runs an ordered swap plan, feeding each leg's output amount
// into the next leg. Every router is resolved before the first leg executes,
// and custody is snapshotted before the first leg and restored when any leg
// fails, so a failed plan leaves holdings untouched.
func (e *Executor) ExecuteChain(ctx context.Context, legs []cross.SwapData) (*big.Int, error) {
	if len(legs) == 0 {
		return nil, errors.New("empty swap plan")
	}

	adapters := make([]Adapter, len(legs))
	for i, leg := range legs {
		adapter, err := e.registry.Resolve(leg.CallTo)
		if err != nil {
			return nil, err
		}
		if i > 0 && !bytes.Equal(legs[i-1].ReceivingAssetId, leg.SendingAssetId) {
			return nil, errors.Errorf("swap plan broken at leg %d: input asset does not chain from previous output", i)
		}
		adapters[i] = adapter
	}

	snap := e.custody.Snapshot()
	amount := new(big.Int).Set(legs[0].FromAmount)
	for i, leg := range legs {
		leg.FromAmount = amount
		out, err := adapters[i].Execute(ctx, leg)
		if err != nil {
			if rerr := e.custody.RevertToSnapshot(snap); rerr != nil {
				return nil, errors.Wrapf(rerr, "reverting swap plan failed at leg %d", i)
			}
			return nil, err
		}
		amount = out
	}
	return amount, nil
}
