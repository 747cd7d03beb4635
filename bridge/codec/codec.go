// The Licensed Work is (c) 2023 OmniBridge
// SPDX-License-Identifier: LGPL-3.0-only

// Package codec implements the byte-exact wire format carried between the
// initiating and the completing side of a transfer. All integers are
// big-endian, variable fields carry an 8 byte length prefix and decoding
// always verifies that the input is consumed exactly.
package codec

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/omnibridge/settlement-core/bridge/cross"
)

var (
	ErrLengthMismatch = errors.New("codec: declared length does not match data")
	ErrAmountOverflow = errors.New("codec: amount does not fit the 32 byte field")
)

const amountSize = 32

// WormholePayload is the decoded form of the top level wire payload.
type WormholePayload struct {
	DstMaxGasPrice *big.Int
	DstMaxGas      *big.Int
	SoData         *cross.SoData
	SwapDataDst    []cross.SwapData
}

func appendU16(data []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(data, b[:]...)
}

func appendU64(data []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(data, b[:]...)
}

func appendAmount(data []byte, v *big.Int) ([]byte, error) {
	if v == nil {
		v = big.NewInt(0)
	}
	if v.Sign() < 0 || v.BitLen() > amountSize*8 {
		return nil, ErrAmountOverflow
	}
	return append(data, math.PaddedBigBytes(v, amountSize)...), nil
}

func appendBytes(data []byte, b []byte) []byte {
	data = appendU64(data, uint64(len(b)))
	return append(data, b...)
}

// EncodeSoData serializes a transfer record.
func EncodeSoData(d *cross.SoData) ([]byte, error) {
	var data []byte
	data = appendBytes(data, d.TransactionId)
	data = appendBytes(data, d.Receiver)
	data = appendU16(data, d.SourceChainId)
	data = appendBytes(data, d.SendingAssetId)
	data = appendU16(data, d.DestinationChainId)
	data = appendBytes(data, d.ReceivingAssetId)
	return appendAmount(data, d.Amount)
}

// EncodeSwapData serializes a swap plan as a leg count followed by the legs.
func EncodeSwapData(legs []cross.SwapData) ([]byte, error) {
	var data []byte
	var err error
	data = appendU64(data, uint64(len(legs)))
	for _, leg := range legs {
		data = appendBytes(data, leg.CallTo)
		data = appendBytes(data, leg.ApproveTo)
		data = appendBytes(data, leg.SendingAssetId)
		data = appendBytes(data, leg.ReceivingAssetId)
		if data, err = appendAmount(data, leg.FromAmount); err != nil {
			return nil, err
		}
		data = appendBytes(data, leg.CallData)
	}
	return data, nil
}

// EncodeWormholeData serializes the transport parameters.
func EncodeWormholeData(d *cross.WormholeData) ([]byte, error) {
	var data []byte
	var err error
	data = appendU16(data, d.DstWormholeChainId)
	if data, err = appendAmount(data, d.DstMaxGasPriceInWeiForRelayer); err != nil {
		return nil, err
	}
	if data, err = appendAmount(data, d.WormholeFee); err != nil {
		return nil, err
	}
	data = appendBytes(data, d.DstSoDiamond)
	return data, nil
}

// EncodeWormholePayload builds the top level payload dispatched through the
// message transport. The destination swap section is omitted for plans with
// no legs.
func EncodeWormholePayload(dstMaxGasPrice, dstMaxGas *big.Int, soData *cross.SoData, swapDataDst []cross.SwapData) ([]byte, error) {
	var data []byte
	var err error
	if data, err = appendAmount(data, dstMaxGasPrice); err != nil {
		return nil, err
	}
	if data, err = appendAmount(data, dstMaxGas); err != nil {
		return nil, err
	}
	so, err := EncodeSoData(soData)
	if err != nil {
		return nil, err
	}
	data = appendBytes(data, so)
	if len(swapDataDst) > 0 {
		sd, err := EncodeSwapData(swapDataDst)
		if err != nil {
			return nil, err
		}
		data = appendBytes(data, sd)
	}
	return data, nil
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, ErrLengthMismatch
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) amount() (*big.Int, error) {
	b, err := r.take(amountSize)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (r *reader) lenPrefixed() ([]byte, error) {
	l, err := r.u64()
	if err != nil {
		return nil, err
	}
	if l > uint64(len(r.data)-r.pos) {
		return nil, ErrLengthMismatch
	}
	b, err := r.take(int(l))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (r *reader) done() bool {
	return r.pos == len(r.data)
}

// finish fails when parsing left trailing bytes behind.
func (r *reader) finish() error {
	if !r.done() {
		return ErrLengthMismatch
	}
	return nil
}

func decodeSoData(r *reader) (*cross.SoData, error) {
	d := &cross.SoData{}
	var err error
	if d.TransactionId, err = r.lenPrefixed(); err != nil {
		return nil, err
	}
	if d.Receiver, err = r.lenPrefixed(); err != nil {
		return nil, err
	}
	if d.SourceChainId, err = r.u16(); err != nil {
		return nil, err
	}
	if d.SendingAssetId, err = r.lenPrefixed(); err != nil {
		return nil, err
	}
	if d.DestinationChainId, err = r.u16(); err != nil {
		return nil, err
	}
	if d.ReceivingAssetId, err = r.lenPrefixed(); err != nil {
		return nil, err
	}
	if d.Amount, err = r.amount(); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeSoData parses a transfer record, requiring exact consumption.
func DecodeSoData(data []byte) (*cross.SoData, error) {
	r := &reader{data: data}
	d, err := decodeSoData(r)
	if err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return d, nil
}

func decodeSwapData(r *reader) ([]cross.SwapData, error) {
	count, err := r.u64()
	if err != nil {
		return nil, err
	}
	legs := make([]cross.SwapData, 0, count)
	for i := uint64(0); i < count; i++ {
		leg := cross.SwapData{}
		if leg.CallTo, err = r.lenPrefixed(); err != nil {
			return nil, err
		}
		if leg.ApproveTo, err = r.lenPrefixed(); err != nil {
			return nil, err
		}
		if leg.SendingAssetId, err = r.lenPrefixed(); err != nil {
			return nil, err
		}
		if leg.ReceivingAssetId, err = r.lenPrefixed(); err != nil {
			return nil, err
		}
		if leg.FromAmount, err = r.amount(); err != nil {
			return nil, err
		}
		if leg.CallData, err = r.lenPrefixed(); err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// DecodeSwapData parses a swap plan, requiring exact consumption.
func DecodeSwapData(data []byte) ([]cross.SwapData, error) {
	r := &reader{data: data}
	legs, err := decodeSwapData(r)
	if err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return legs, nil
}

// DecodeWormholeData parses transport parameters, requiring exact consumption.
func DecodeWormholeData(data []byte) (*cross.WormholeData, error) {
	r := &reader{data: data}
	d := &cross.WormholeData{}
	var err error
	if d.DstWormholeChainId, err = r.u16(); err != nil {
		return nil, err
	}
	if d.DstMaxGasPriceInWeiForRelayer, err = r.amount(); err != nil {
		return nil, err
	}
	if d.WormholeFee, err = r.amount(); err != nil {
		return nil, err
	}
	if d.DstSoDiamond, err = r.lenPrefixed(); err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return d, nil
}

// DecodeWormholePayload parses the top level payload. A payload that ends
// after the transfer record decodes to an empty destination swap plan.
func DecodeWormholePayload(data []byte) (*WormholePayload, error) {
	r := &reader{data: data}
	p := &WormholePayload{}
	var err error
	if p.DstMaxGasPrice, err = r.amount(); err != nil {
		return nil, err
	}
	if p.DstMaxGas, err = r.amount(); err != nil {
		return nil, err
	}
	soBytes, err := r.lenPrefixed()
	if err != nil {
		return nil, err
	}
	if p.SoData, err = DecodeSoData(soBytes); err != nil {
		return nil, err
	}
	p.SwapDataDst = []cross.SwapData{}
	if !r.done() {
		swapBytes, err := r.lenPrefixed()
		if err != nil {
			return nil, err
		}
		if p.SwapDataDst, err = DecodeSwapData(swapBytes); err != nil {
			return nil, err
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return p, nil
}
