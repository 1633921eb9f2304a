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
	"time"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

// DefaultMaxTicks 離線模擬的 tick 上限；預設物理下一次 spin 大約 1,500 tick。
const DefaultMaxTicks = 1 << 20

var ErrNoRest = errs.NewFatal("wheel did not come to rest within tick limit")

// Outcome 一次離線 spin 的結果。
type Outcome struct {
	Rule     spec.Rule     `json:"rule"`
	Index    int           `json:"index"`
	Ticks    int           `json:"ticks"`
	Duration time.Duration `json:"duration"`
	Rotation float64       `json:"rotation"`
}

// RunToRest 以固定步長在虛擬時鐘上跑完一次 spin，不等待真實時間。
//
// step <= 0 時使用 Physics 的 TickInterval；maxTicks <= 0 時使用 DefaultMaxTicks。
// engine 已經在轉（別人起的 spin）時回傳 ErrSpinning，不接手那次 spin。
func RunToRest(e *Engine, start time.Time, step time.Duration, maxTicks int) (Outcome, error) {
	if step <= 0 {
		step = e.phys.TickInterval()
	}
	if maxTicks <= 0 {
		maxTicks = DefaultMaxTicks
	}
	started, err := e.Start(start)
	if err != nil {
		return Outcome{}, err
	}
	if !started {
		return Outcome{}, ErrSpinning
	}
	now := start
	for i := 0; i < maxTicks; i++ {
		now = now.Add(step)
		if !e.Tick(now) {
			r, ok := e.CurrentRule()
			if !ok {
				return Outcome{}, ErrEmptyWheel
			}
			return Outcome{
				Rule:     r,
				Index:    e.current,
				Ticks:    e.ticks,
				Duration: now.Sub(start),
				Rotation: e.state.Rotation,
			}, nil
		}
	}
	e.Halt()
	return Outcome{}, ErrNoRest
}
