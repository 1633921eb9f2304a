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

// Package constraint 把「目前選中的規則」換算成每個物品要帶的數量。
//
// Resolve 是純函式：不過濾 Active、不保存狀態，呼叫端負責只傳入生效中的規則。
package constraint

import (
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

// Class 清單上的顯示分類。
type Class uint8

const (
	TakeMax      Class = iota // 帶滿
	TakeLess                  // 少於上限
	TakeNone                  // 不帶（數量等於下限）
	ForcedUnused              // 遊戲強制帶下限數量，但規則要求不使用
)

var classNames = map[Class]string{
	TakeMax:      "max",
	TakeLess:     "less",
	TakeNone:     "none",
	ForcedUnused: "under",
}

func (c Class) String() string {
	if s, ok := classNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(b []byte) error {
	for k, name := range classNames {
		if name == string(b) {
			*c = k
			return nil
		}
	}
	return errs.Warnf("unknown item class %q", b)
}

// ResolvedItem 單一物品的計算結果。Quantity 不會被夾回 Max：require 可以刻意超過上限。
type ResolvedItem struct {
	ID       spec.ItemID `json:"id"       yaml:"id"`
	Name     string      `json:"name"     yaml:"name"`
	Quantity int         `json:"quantity" yaml:"quantity"`
	Min      int         `json:"min"      yaml:"min"`
	Max      int         `json:"max"      yaml:"max"`
}

// Class 依 Quantity 與 Min/Max 的關係分類。
func (r ResolvedItem) Class() Class {
	switch {
	case r.Quantity < r.Min && r.Min > 0:
		return ForcedUnused
	case r.Quantity == r.Min:
		return TakeNone
	case r.Quantity > r.Min && r.Quantity < r.Max:
		return TakeLess
	default:
		return TakeMax
	}
}

// Display 清單上顯示的數量：至少是遊戲強制的 Min。
func (r ResolvedItem) Display() int {
	return max(r.Min, r.Quantity)
}

// Resolve 逐一計算 items 的數量：
//
//	restrictCap  = min(rule.Restrict[id]，沒有時為 item.Max)
//	reduceTotal  = Σ rule.Reduce[id]
//	requireFloor = max(rule.Require[id]，沒有時為 0)
//	quantity     = max(0, max(requireFloor, min(restrictCap, item.Max-reduceTotal)))
//
// rules 為空時每個物品都是 Max；items 為空時回傳空 slice。
func Resolve(items []spec.Item, rules []spec.Rule) []ResolvedItem {
	out := make([]ResolvedItem, 0, len(items))
	for _, it := range items {
		restrictCap := it.Max
		reduceTotal := 0
		requireFloor := 0
		for i := range rules {
			r := &rules[i]
			if q, ok := r.Restrict[it.ID]; ok {
				restrictCap = min(restrictCap, q)
			}
			reduceTotal += r.Reduce[it.ID]
			if q, ok := r.Require[it.ID]; ok {
				requireFloor = max(requireFloor, q)
			}
		}
		out = append(out, ResolvedItem{
			ID:       it.ID,
			Name:     it.Name,
			Quantity: max(0, requireFloor, min(restrictCap, it.Max-reduceTotal)),
			Min:      it.Min,
			Max:      it.Max,
		})
	}
	return out
}
