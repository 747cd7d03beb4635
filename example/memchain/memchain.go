// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package memchain provides in-memory implementations of the chain
// capabilities, used by the example app and the integration style tests.
package memchain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/omnibridge/settlement-core/bridge/cross"
	"github.com/omnibridge/settlement-core/swap"
	"github.com/omnibridge/settlement-core/wormhole"
)

// Ledger keeps asset balances in memory. The settlement contract's own
// holdings live under the zero holder.
type Ledger struct {
	mu sync.Mutex

	wrappedNative common.Address
	// asset -> holder -> balance
	balances map[common.Address]map[common.Address]*big.Int
	// holder -> native balance
	native    map[common.Address]*big.Int
	snapshots []custodyState
}

type custodyState struct {
	balances map[common.Address]map[common.Address]*big.Int
	native   map[common.Address]*big.Int
}

// self is the holder under which the settlement contract's custody is kept.
var self = common.Address{}

func NewLedger(wrappedNative common.Address) *Ledger {
	return &Ledger{
		wrappedNative: wrappedNative,
		balances:      make(map[common.Address]map[common.Address]*big.Int),
		native:        make(map[common.Address]*big.Int),
	}
}

func (l *Ledger) holderBalance(asset, holder common.Address) *big.Int {
	holders, ok := l.balances[asset]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		l.balances[asset] = holders
	}
	b, ok := holders[holder]
	if !ok {
		b = big.NewInt(0)
		holders[holder] = b
	}
	return b
}

func (l *Ledger) nativeBalance(holder common.Address) *big.Int {
	b, ok := l.native[holder]
	if !ok {
		b = big.NewInt(0)
		l.native[holder] = b
	}
	return b
}

// Mint credits tokens to a holder, zero holder being the contract itself.
func (l *Ledger) Mint(asset, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holderBalance(asset, holder).Add(l.holderBalance(asset, holder), amount)
}

// MintNative credits native currency to a holder.
func (l *Ledger) MintNative(holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nativeBalance(holder).Add(l.nativeBalance(holder), amount)
}

// HolderBalance reads any holder's token balance, for assertions.
func (l *Ledger) HolderBalance(asset, holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.holderBalance(asset, holder))
}

// HolderNative reads any holder's native balance, for assertions.
func (l *Ledger) HolderNative(holder common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.nativeBalance(holder))
}

func (l *Ledger) Balance(asset common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.holderBalance(asset, self)), nil
}

func move(from, to, amount *big.Int) error {
	if from.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	from.Sub(from, amount)
	to.Add(to, amount)
	return nil
}

func (l *Ledger) Transfer(asset, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.holderBalance(asset, self), l.holderBalance(asset, to), amount)
}

func (l *Ledger) PullFrom(asset, from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.holderBalance(asset, from), l.holderBalance(asset, self), amount)
}

func (l *Ledger) TransferNative(to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.nativeBalance(self), l.nativeBalance(to), amount)
}

func (l *Ledger) WrappedNative() common.Address {
	return l.wrappedNative
}

func (l *Ledger) WrapNative(amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.nativeBalance(self), l.holderBalance(l.wrappedNative, self), amount)
}

func (l *Ledger) UnwrapNative(amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.holderBalance(l.wrappedNative, self), l.nativeBalance(self), amount)
}

// AttachValue moves native currency from a caller into the contract's
// custody, the way an attached payment arrives before settlement runs.
func (l *Ledger) AttachValue(from common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return move(l.nativeBalance(from), l.nativeBalance(self), amount)
}

func (l *Ledger) debitSelf(asset common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.holderBalance(asset, self)
	if b.Cmp(amount) < 0 {
		return errors.New("insufficient custody")
	}
	b.Sub(b, amount)
	return nil
}

func (l *Ledger) creditSelf(asset common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.holderBalance(asset, self)
	b.Add(b, amount)
}

func (l *Ledger) debitSelfNative(amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.nativeBalance(self)
	if b.Cmp(amount) < 0 {
		return errors.New("insufficient custody")
	}
	b.Sub(b, amount)
	return nil
}

func (l *Ledger) creditSelfNative(amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.nativeBalance(self)
	b.Add(b, amount)
}

// caller must hold l.mu
func (l *Ledger) copyState() custodyState {
	s := custodyState{
		balances: make(map[common.Address]map[common.Address]*big.Int, len(l.balances)),
		native:   make(map[common.Address]*big.Int, len(l.native)),
	}
	for asset, holders := range l.balances {
		hs := make(map[common.Address]*big.Int, len(holders))
		for holder, b := range holders {
			hs[holder] = new(big.Int).Set(b)
		}
		s.balances[asset] = hs
	}
	for holder, b := range l.native {
		s.native[holder] = new(big.Int).Set(b)
	}
	return s
}

// Snapshot copies the custody state and returns its identifier.
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, l.copyState())
	return len(l.snapshots) - 1
}

// RevertToSnapshot restores custody to the given snapshot and drops it along
// with any later ones.
func (l *Ledger) RevertToSnapshot(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id < 0 || id >= len(l.snapshots) {
		return errors.Errorf("unknown custody snapshot %d", id)
	}
	s := l.snapshots[id]
	l.balances = s.balances
	l.native = s.native
	l.snapshots = l.snapshots[:id]
	return nil
}

// Transport is a loopback message transport. Sent messages release their
// funds back into the ledger when received, so a single deployment can
// settle its own dispatches.
type Transport struct {
	mu sync.Mutex

	chainId    uint16
	messageFee *big.Int
	ledger     *Ledger
	sequence   uint64
	wrapped    map[string]common.Address

	lastRaw    []byte
	lastAmount *big.Int
}

func NewTransport(chainId uint16, messageFee *big.Int, ledger *Ledger) *Transport {
	return &Transport{
		chainId:    chainId,
		messageFee: messageFee,
		ledger:     ledger,
		wrapped:    make(map[string]common.Address),
	}
}

// RegisterWrapped maps a foreign token onto its local representation.
func (t *Transport) RegisterWrapped(tokenChain uint16, tokenAddress []byte, local common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wrapped[wrappedKey(tokenChain, tokenAddress)] = local
}

func wrappedKey(tokenChain uint16, tokenAddress []byte) string {
	return fmt.Sprintf("%d:%x", tokenChain, common.BytesToAddress(tokenAddress))
}

func (t *Transport) MessageFee() (*big.Int, error) {
	return new(big.Int).Set(t.messageFee), nil
}

// Send locks the asset out of the contract's holdings and returns the raw
// message bytes encoded as the sequence's envelope. The raw form is
// chainId:2 | len(tokenAddress):8 | tokenAddress | payload.
func (t *Transport) Send(ctx context.Context, asset common.Address, amount *big.Int, dstWormholeChainId uint16, dstContract []byte, nonce uint32, payload []byte) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ledger.debitSelf(asset, amount); err != nil {
		return 0, errors.Wrap(err, "transport lock")
	}

	t.sequence++
	t.lastRaw = t.envelope(asset, payload)
	t.lastAmount = new(big.Int).Set(amount)
	return t.sequence, nil
}

func (t *Transport) envelope(asset common.Address, payload []byte) []byte {
	raw := make([]byte, 0, 2+8+common.AddressLength+len(payload))
	var chain [2]byte
	binary.BigEndian.PutUint16(chain[:], t.chainId)
	raw = append(raw, chain[:]...)
	var l [8]byte
	binary.BigEndian.PutUint64(l[:], uint64(common.AddressLength))
	raw = append(raw, l[:]...)
	raw = append(raw, asset.Bytes()...)
	raw = append(raw, payload...)
	return raw
}

// LastDispatch returns the raw bytes of the most recent message, as a
// relayer would observe them.
func (t *Transport) LastDispatch() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRaw
}

func (t *Transport) ReceiveAndUnwrap(ctx context.Context, raw []byte) (*wormhole.ReceivedMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(raw) < 10 {
		return nil, errors.New("transport: malformed raw message")
	}
	tokenChain := binary.BigEndian.Uint16(raw[:2])
	addrLen := binary.BigEndian.Uint64(raw[2:10])
	if uint64(len(raw)-10) < addrLen {
		return nil, errors.New("transport: malformed raw message")
	}
	tokenAddress := raw[10 : 10+addrLen]
	payload := raw[10+addrLen:]

	// Release the locked funds into the contract's custody, the way the
	// real transport credits the completing contract before settlement.
	if t.lastAmount != nil {
		local := cross.AssetAddress(tokenAddress)
		if tokenChain != t.chainId {
			var ok bool
			local, ok = t.wrapped[wrappedKey(tokenChain, tokenAddress)]
			if !ok {
				return nil, errors.New("transport: unknown wrapped asset")
			}
		}
		t.ledger.Mint(local, self, t.lastAmount)
		t.lastAmount = nil
	}

	return &wormhole.ReceivedMessage{
		TokenChain:   tokenChain,
		TokenAddress: tokenAddress,
		Payload:      payload,
	}, nil
}

func (t *Transport) WrappedAsset(tokenChain uint16, tokenAddress []byte) (common.Address, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	local, ok := t.wrapped[wrappedKey(tokenChain, tokenAddress)]
	if !ok {
		return common.Address{}, errors.Errorf("no wrapped asset for chain %d token %x", tokenChain, tokenAddress)
	}
	return local, nil
}

// RateAdapter swaps at fixed rates between registered asset pairs, minting
// and burning against the ledger the way an on-chain router settles into the
// calling contract.
type RateAdapter struct {
	mu     sync.Mutex
	ledger *Ledger
	// pair key -> numerator/denominator
	rates map[string][2]*big.Int
}

func NewRateAdapter(ledger *Ledger) *RateAdapter {
	return &RateAdapter{
		ledger: ledger,
		rates:  make(map[string][2]*big.Int),
	}
}

func pairKey(from, to []byte) string {
	return fmt.Sprintf("%x:%x", common.BytesToAddress(from), common.BytesToAddress(to))
}

func (a *RateAdapter) SetRate(from, to common.Address, num, den int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rates[pairKey(from.Bytes(), to.Bytes())] = [2]*big.Int{big.NewInt(num), big.NewInt(den)}
}

// Execute settles one leg against the contract's custody. Native input and
// output use the native asset convention, the way a router takes attached
// value.
func (a *RateAdapter) Execute(ctx context.Context, leg cross.SwapData) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rate, ok := a.rates[pairKey(leg.SendingAssetId, leg.ReceivingAssetId)]
	if !ok {
		return nil, &swap.Error{Reason: "no liquidity for pair"}
	}
	out := new(big.Int).Mul(leg.FromAmount, rate[0])
	out.Div(out, rate[1])

	if cross.IsNativeAsset(leg.SendingAssetId) {
		if err := a.ledger.debitSelfNative(leg.FromAmount); err != nil {
			return nil, &swap.Error{Reason: "insufficient input custody"}
		}
	} else if err := a.ledger.debitSelf(cross.AssetAddress(leg.SendingAssetId), leg.FromAmount); err != nil {
		return nil, &swap.Error{Reason: "insufficient input custody"}
	}
	if cross.IsNativeAsset(leg.ReceivingAssetId) {
		a.ledger.creditSelfNative(out)
	} else {
		a.ledger.creditSelf(cross.AssetAddress(leg.ReceivingAssetId), out)
	}
	return out, nil
}
