// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package core 提供輪盤物理模擬使用的亂數核心。
//
// 每一個輪盤（wheel.Engine）持有自己的一顆 Core，不共用全域亂數來源；
// 同一個 seed 必須得到同一串亂數，模擬與測試才能重現。
package core

import (
	"crypto/rand"
	"math"
	"math/big"
	"strings"
)

type PRNG interface {
	RAND
	Restorable
}

type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

type RAND interface {
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

type PRNGFactory interface {
	// New 以指定 seed 建立新的 PRNG。
	//
	// 合約：在同一個實作與同一個版本下，New(seed) 必須是決定性的，
	// 相同的 seed 產生相同的初始內部狀態與輸出序列。
	New(int64) PRNG
}

// DefaultPRNG 以 PCG64（math/rand/v2）作為預設亂數。
type DefaultPRNG struct{}

func (d *DefaultPRNG) New(seed int64) PRNG {
	return newPCG64WithSeed(seed)
}

func Default() *DefaultPRNG {
	return &DefaultPRNG{}
}

// PCG32PRNG 以 32-bit 輸出的 PCG 建立亂數，主要給需要對齊舊版序列的模擬使用。
type PCG32PRNG struct{}

func (p *PCG32PRNG) New(seed int64) PRNG {
	return newPCG32WithSeed(seed)
}

// FactoryByName 依名稱挑選 PRNGFactory：pcg64（預設）或 pcg32。
func FactoryByName(name string) (PRNGFactory, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "pcg64":
		return Default(), true
	case "pcg32":
		return &PCG32PRNG{}, true
	default:
		return nil, false
	}
}

// NewSeed 以 crypto/rand 產生非負 seed。
func NewSeed() int64 {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 1
	}
	return seed.Int64()
}

type Core struct {
	PRNG
}

func New(rng PRNG) *Core {
	return &Core{rng}
}

// Uniform 回傳 [lo, hi) 的均勻亂數；lo > hi 時自動交換。
func (c *Core) Uniform(lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + (hi-lo)*c.Float64()
}

// Jitter 回傳 base + U(-variance, +variance)。
func (c *Core) Jitter(base, variance float64) float64 {
	return c.Uniform(base-variance, base+variance)
}

// DeriveSeed 由同一個 base seed 展開出第 n 條互不相關的子 seed（非負）。
func DeriveSeed(base int64, n int) int64 {
	x := uint64(base) + uint64(n+1)*0x9e3779b97f4a7c15
	return int64(splitmix64(x) >> 1)
}
