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

package recorder

import (
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/spec"
	"github.com/zintix-labs/rulewheel/stats"
)

// SpinRecorder 模擬紀錄員
//
// SpinRecorder 負責紀錄每次 spin 停在哪一格、花了幾個 tick，並透過 Done 輸出統計報表。
// 一個 SpinRecorder 只給一個 goroutine 使用；平行模擬時每個 worker 一個，最後 Merge。
type SpinRecorder struct {
	Kind  spec.RuleKind
	Rules []spec.Rule
	Basic *BasicRecord
	Dist  *DistRecord
}

// BasicRecord 基本紀錄
type BasicRecord struct {
	Spins  int
	Misses int // index 超出範圍（理論上不會發生）
}

// DistRecord 每格命中次數與停轉 tick
type DistRecord struct {
	Hits  []int
	Ticks []float64
}

// NewSpinRecorder rules 是輪盤上（已過濾 active）的規則，順序要與輪盤一致。
func NewSpinRecorder(kind spec.RuleKind, rules []spec.Rule, capHint int) (*SpinRecorder, error) {
	if len(rules) == 0 {
		return nil, errs.NewWarn("spin recorder needs at least one rule")
	}
	return &SpinRecorder{
		Kind:  kind,
		Rules: append([]spec.Rule(nil), rules...),
		Basic: &BasicRecord{},
		Dist: &DistRecord{
			Hits:  make([]int, len(rules)),
			Ticks: make([]float64, 0, max(capHint, 0)),
		},
	}, nil
}

func MergeSpinRecorder(r []*SpinRecorder) (*SpinRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge spin record err : nothing to merge")
	}
	r0 := r[0]
	total := 0
	for _, v := range r {
		total += len(v.Dist.Ticks)
	}
	s, err := NewSpinRecorder(r0.Kind, r0.Rules, total)
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if v.Kind != r0.Kind {
			return nil, errs.NewFatal("merge spin record err : different wheel kind")
		}
		if len(v.Rules) != len(r0.Rules) {
			return nil, errs.NewFatal("merge spin record err : different rule count")
		}
		for i := range v.Rules {
			if v.Rules[i].ID != r0.Rules[i].ID {
				return nil, errs.NewFatal("merge spin record err : different rule order")
			}
		}
		s.Basic.Spins += v.Basic.Spins
		s.Basic.Misses += v.Basic.Misses
		for i, h := range v.Dist.Hits {
			s.Dist.Hits[i] += h
		}
		s.Dist.Ticks = append(s.Dist.Ticks, v.Dist.Ticks...)
	}
	return s, nil
}

// Record 以單次停轉結果更新統計
func (s *SpinRecorder) Record(o wheel.Outcome) {
	s.Basic.Spins++
	if o.Index < 0 || o.Index >= len(s.Dist.Hits) {
		s.Basic.Misses++
		return
	}
	s.Dist.Hits[o.Index]++
	s.Dist.Ticks = append(s.Dist.Ticks, float64(o.Ticks))
}

// Done 產出報表（尚未呼叫 SpinReport.Done）。
func (s *SpinRecorder) Done(sum stats.SummaryReport) *stats.SpinReport {
	sum.Kind = s.Kind
	return stats.NewSpinReport(sum, s.Rules, s.Dist.Hits, s.Dist.Ticks)
}
