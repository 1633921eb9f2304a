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

package wheel

import (
	"math"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

const TwoPi = 2 * math.Pi

var (
	ErrEmptyWheel = errs.NewWarn("wheel has no rule with positive weight")
	ErrBadWeight  = errs.NewWarn("rule weight must be a finite number >= 0")
)

// TotalWeight 依規則順序加總權重。
//
// Lookup 的最後一格邊界依賴「同樣順序的加總」才會剛好等於 total，所以一律走這裡。
func TotalWeight(rules []spec.Rule) float64 {
	total := 0.0
	for i := range rules {
		total += rules[i].Weight
	}
	return total
}

// checkWeights 空清單、負權重、NaN/Inf、總和為 0 都是呼叫端違反前置條件。
func checkWeights(rules []spec.Rule) (float64, error) {
	if len(rules) == 0 {
		return 0, ErrEmptyWheel
	}
	for i := range rules {
		w := rules[i].Weight
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, ErrBadWeight
		}
	}
	total := TotalWeight(rules)
	if !(total > 0) || math.IsInf(total, 0) {
		return 0, ErrEmptyWheel
	}
	return total, nil
}

// Normalize 把角度折回 [0, 2π)。
func Normalize(rotation float64) float64 {
	r := math.Mod(rotation, TwoPi)
	if r < 0 {
		r += TwoPi
	}
	// r+2π 可能因為捨入剛好等於 2π
	if r >= TwoPi {
		r = 0
	}
	return r
}

// Lookup 回傳指標（pointer）下方那一格的索引。
//
// 扇區依規則順序排成連續的弧，寬度 2π*w/W，從參考角 2π 往回掃：
// 逐格把累積寬度從 2π 扣掉，第一個讓角度 <= rotation 的格子就是答案。
// 因此規則 k 佔據 [2π-2π*(pre+w)/W, 2π-2π*pre/W)，剛好落在邊界時由先掃到的（索引較小的）勝出。
//
// 角度以 2π*(cum/W) 計算而非逐格相減，最後一格的 cum/W 恰為 1，邊界精確落在 0。
// 掃描最多 len(rules) 圈；超過（只有 rotation 為 NaN 才會發生）時回傳最後掃到的格子，recovered=true。
func Lookup(rotation float64, rules []spec.Rule) (idx int, recovered bool, err error) {
	total, err := checkWeights(rules)
	if err != nil {
		return -1, false, err
	}
	rotation = Normalize(rotation)

	angle := TwoPi
	idx = len(rules) - 1
	for pass := 0; pass < len(rules); pass++ {
		cum := 0.0
		for i := range rules {
			cum += rules[i].Weight
			idx = i
			if angle-TwoPi*(cum/total) <= rotation {
				return i, pass > 0, nil
			}
		}
		angle -= TwoPi
	}
	return idx, true, nil
}

// RotationFor 回傳讓指標正對 rules[idx] 中線的角度：2π*(-(pre) - w/2)/W，折回 [0, 2π)。
func RotationFor(rules []spec.Rule, idx int) (float64, error) {
	total, err := checkWeights(rules)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(rules) {
		return 0, errs.Warnf("rule index %d out of range", idx)
	}
	pre := 0.0
	for i := 0; i < idx; i++ {
		pre += rules[i].Weight
	}
	return Normalize(TwoPi * ((-pre - rules[idx].Weight/2) / total)), nil
}

// SectorWidths 各格的弧寬，畫面或報表使用。
func SectorWidths(rules []spec.Rule) ([]float64, error) {
	total, err := checkWeights(rules)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(rules))
	for i := range rules {
		out[i] = TwoPi * (rules[i].Weight / total)
	}
	return out, nil
}
