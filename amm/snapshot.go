// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package amm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/luxfi/geth/common"
)

// Binary snapshot format, versioned. All integers big-endian; big.Int
// fields are fixed-width two's-complement-free magnitudes with a sign byte
// where the value can be negative.

const snapshotVersion = 1

var ErrBadSnapshot = errors.New("malformed pool snapshot")

func appendUint256(buf []byte, v *big.Int) []byte {
	var b [32]byte
	v.FillBytes(b[:])
	return append(buf, b[:]...)
}

func appendUint128(buf []byte, v *big.Int) []byte {
	var b [16]byte
	v.FillBytes(b[:])
	return append(buf, b[:]...)
}

func appendInt128(buf []byte, v *big.Int) []byte {
	if v.Sign() < 0 {
		buf = append(buf, 1)
		return appendUint128(buf, new(big.Int).Neg(v))
	}
	buf = append(buf, 0)
	return appendUint128(buf, v)
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

type snapshotReader struct {
	data []byte
	off  int
}

func (r *snapshotReader) take(n int) ([]byte, error) {
	if r.off+n > len(r.data) {
		return nil, ErrBadSnapshot
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *snapshotReader) uint256() (*big.Int, error) {
	b, err := r.take(32)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (r *snapshotReader) uint128() (*big.Int, error) {
	b, err := r.take(16)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

func (r *snapshotReader) int128() (*big.Int, error) {
	sign, err := r.take(1)
	if err != nil {
		return nil, err
	}
	v, err := r.uint128()
	if err != nil {
		return nil, err
	}
	if sign[0] == 1 {
		v.Neg(v)
	}
	return v, nil
}

func (r *snapshotReader) int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *snapshotReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// MarshalBinary encodes the full pool state, ticks and positions included.
// Tick and position order is deterministic so equal pools encode equally.
func (p *Pool) MarshalBinary() ([]byte, error) {
	buf := []byte{snapshotVersion}

	buf = append(buf, p.Key.Currency0.ToBytes()...)
	buf = append(buf, p.Key.Currency1.ToBytes()...)
	var fee [4]byte
	binary.BigEndian.PutUint32(fee[:], uint32(p.Key.Fee))
	buf = append(buf, fee[:]...)
	buf = appendInt32(buf, p.Key.TickSpacing)
	buf = append(buf, p.Key.Hooks.Bytes()...)

	if p.Slot0.Initialized {
		buf = append(buf, 1)
		buf = appendUint256(buf, p.Slot0.SqrtPriceX96)
		buf = appendInt32(buf, p.Slot0.Tick)
	} else {
		buf = append(buf, 0)
	}

	buf = appendUint128(buf, p.Liquidity)
	buf = appendUint256(buf, p.FeeGrowthGlobal0X128)
	buf = appendUint256(buf, p.FeeGrowthGlobal1X128)

	tickList := make([]int24, 0, len(p.ticks))
	for tick := range p.ticks {
		tickList = append(tickList, tick)
	}
	sort.Slice(tickList, func(i, j int) bool { return tickList[i] < tickList[j] })

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(tickList)))
	buf = append(buf, count[:]...)
	for _, tick := range tickList {
		info := p.ticks[tick]
		buf = appendInt32(buf, tick)
		buf = appendUint128(buf, info.LiquidityGross)
		buf = appendInt128(buf, info.LiquidityNet)
		buf = appendUint256(buf, info.FeeGrowthOutside0X128)
		buf = appendUint256(buf, info.FeeGrowthOutside1X128)
	}

	posIDs := make([][32]byte, 0, len(p.positions))
	for id := range p.positions {
		posIDs = append(posIDs, id)
	}
	sort.Slice(posIDs, func(i, j int) bool {
		return bytesCompare(posIDs[i], posIDs[j]) < 0
	})

	binary.BigEndian.PutUint32(count[:], uint32(len(posIDs)))
	buf = append(buf, count[:]...)
	for _, id := range posIDs {
		pos := p.positions[id]
		buf = append(buf, pos.Owner.Bytes()...)
		buf = appendInt32(buf, pos.TickLower)
		buf = appendInt32(buf, pos.TickUpper)
		buf = append(buf, pos.Salt[:]...)
		buf = appendUint128(buf, pos.Liquidity)
		buf = appendUint256(buf, pos.FeeGrowthInside0LastX128)
		buf = appendUint256(buf, pos.FeeGrowthInside1LastX128)
		buf = appendUint256(buf, pos.TokensOwed0)
		buf = appendUint256(buf, pos.TokensOwed1)
	}
	return buf, nil
}

func bytesCompare(a, b [32]byte) int {
	for i := 0; i < 32; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// UnmarshalBinary decodes a pool snapshot, rebuilding the tick bitmap from
// the tick set.
func (p *Pool) UnmarshalBinary(data []byte) error {
	r := &snapshotReader{data: data}

	version, err := r.take(1)
	if err != nil {
		return err
	}
	if version[0] != snapshotVersion {
		return fmt.Errorf("%w: version %d", ErrBadSnapshot, version[0])
	}

	var key PoolKey
	b, err := r.take(20)
	if err != nil {
		return err
	}
	key.Currency0 = CurrencyFromBytes(b)
	if b, err = r.take(20); err != nil {
		return err
	}
	key.Currency1 = CurrencyFromBytes(b)
	feeRaw, err := r.uint32()
	if err != nil {
		return err
	}
	key.Fee = feeRaw
	if key.TickSpacing, err = r.int32(); err != nil {
		return err
	}
	if b, err = r.take(20); err != nil {
		return err
	}
	key.Hooks = common.BytesToAddress(b)

	if key.TickSpacing <= 0 || key.TickSpacing > MaxTick {
		return fmt.Errorf("%w: tick spacing %d", ErrBadSnapshot, key.TickSpacing)
	}
	if key.Fee > FeeMax {
		return fmt.Errorf("%w: fee %d", ErrBadSnapshot, key.Fee)
	}

	*p = *NewPool(key)

	initFlag, err := r.take(1)
	if err != nil {
		return err
	}
	if initFlag[0] == 1 {
		if p.Slot0.SqrtPriceX96, err = r.uint256(); err != nil {
			return err
		}
		if p.Slot0.Tick, err = r.int32(); err != nil {
			return err
		}
		p.Slot0.Initialized = true
	}

	if p.Liquidity, err = r.uint128(); err != nil {
		return err
	}
	if p.FeeGrowthGlobal0X128, err = r.uint256(); err != nil {
		return err
	}
	if p.FeeGrowthGlobal1X128, err = r.uint256(); err != nil {
		return err
	}

	tickCount, err := r.uint32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < tickCount; i++ {
		info := newTickInfo()
		tick, err := r.int32()
		if err != nil {
			return err
		}
		if info.LiquidityGross, err = r.uint128(); err != nil {
			return err
		}
		if info.LiquidityNet, err = r.int128(); err != nil {
			return err
		}
		if info.FeeGrowthOutside0X128, err = r.uint256(); err != nil {
			return err
		}
		if info.FeeGrowthOutside1X128, err = r.uint256(); err != nil {
			return err
		}
		info.Initialized = true
		p.ticks[tick] = info
		if tick%key.TickSpacing == 0 {
			p.bitmap.flipTick(tick, key.TickSpacing)
		}
	}

	posCount, err := r.uint32()
	if err != nil {
		return err
	}
	poolID := key.ID()
	for i := uint32(0); i < posCount; i++ {
		if b, err = r.take(20); err != nil {
			return err
		}
		owner := common.BytesToAddress(b)
		tickLower, err := r.int32()
		if err != nil {
			return err
		}
		tickUpper, err := r.int32()
		if err != nil {
			return err
		}
		var salt [32]byte
		if b, err = r.take(32); err != nil {
			return err
		}
		copy(salt[:], b)

		pos := newPosition(owner, tickLower, tickUpper, salt)
		if pos.Liquidity, err = r.uint128(); err != nil {
			return err
		}
		if pos.FeeGrowthInside0LastX128, err = r.uint256(); err != nil {
			return err
		}
		if pos.FeeGrowthInside1LastX128, err = r.uint256(); err != nil {
			return err
		}
		if pos.TokensOwed0, err = r.uint256(); err != nil {
			return err
		}
		if pos.TokensOwed1, err = r.uint256(); err != nil {
			return err
		}
		p.positions[PositionID(poolID, owner, tickLower, tickUpper, salt)] = pos
	}

	if r.off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrBadSnapshot, len(data)-r.off)
	}
	return nil
}
