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

// Package wheel 實作加權規則輪盤：起轉、逐 tick 物理積分、停轉，以及「指標下是哪一格」的查詢。
//
// Engine 本身不碰時鐘也不開 goroutine，所有時間都由呼叫端傳入；
// 即時驅動交給 Driver，離線模擬使用 RunToRest。
// Engine 不是 concurrency-safe，多 goroutine 共用時由外層（Driver）加鎖。
package wheel

import (
	"time"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/spec"
)

// State 輪盤的運動狀態。Rotation 永遠在 [0, 2π)，Velocity 與 Acceleration 永遠 >= 0。
type State struct {
	Rotation     float64 `json:"rotation"`
	Velocity     float64 `json:"velocity"`
	Acceleration float64 `json:"acceleration"`
	Spinning     bool    `json:"spinning"`
}

// RuleListener 在 tick 之後指標換到另一格時被呼叫。
type RuleListener func(spec.Rule)

type Engine struct {
	phys  Physics
	core  *core.Core
	rules []spec.Rule
	state State

	lastTick time.Time
	current  int // 指標下的規則索引，-1 表示沒有規則
	ticks    int

	listeners map[int]RuleListener
	nextID    int
}

func NewEngine(c *core.Core, phys Physics) (*Engine, error) {
	if c == nil {
		return nil, errs.NewFatal("wheel engine needs a core")
	}
	if err := phys.Valid(); err != nil {
		return nil, err
	}
	return &Engine{
		phys:      phys,
		core:      c,
		current:   -1,
		listeners: make(map[int]RuleListener),
	}, nil
}

// SetRules 換掉整份規則清單（copy-on-write，Engine 保存自己的副本）。
//
// 旋轉角不變，只重算指標下的格子，不觸發 listener；
// 空清單合法，只是之後 Start 會回傳 ErrEmptyWheel。
func (e *Engine) SetRules(rules []spec.Rule) error {
	if len(rules) > 0 {
		if _, err := checkWeights(rules); err != nil {
			return err
		}
	}
	e.rules = append([]spec.Rule(nil), rules...)
	e.current = e.lookup()
	return nil
}

func (e *Engine) Rules() []spec.Rule {
	return append([]spec.Rule(nil), e.rules...)
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) Physics() Physics {
	return e.phys
}

// Ticks 本次 spin（或最後一次 spin）累計的 tick 數。
func (e *Engine) Ticks() int {
	return e.ticks
}

// Start 起轉：速度歸零，加速度 = base ± variance（夾在 >= 0）。
//
// 已經在轉時回傳 false 不做任何事；沒有規則時回傳 ErrEmptyWheel。
func (e *Engine) Start(now time.Time) (bool, error) {
	if e.state.Spinning {
		return false, nil
	}
	if len(e.rules) == 0 {
		return false, ErrEmptyWheel
	}
	e.state.Velocity = 0
	e.state.Acceleration = max(0, e.core.Jitter(e.phys.BaseAcceleration, e.phys.AccelerationVariance))
	e.state.Spinning = true
	e.lastTick = now
	e.ticks = 0
	return true, nil
}

// Tick 往前積分一步，回傳是否還需要下一個 tick。
//
// 順序固定：v += a*dt，rot += v*dt，接著兩個衰減各自夾在 0。
// dt 以毫秒為單位先夾在 Epsilon，now 早於上一次 tick（時鐘倒退）時同樣視為 Epsilon。
func (e *Engine) Tick(now time.Time) bool {
	if !e.state.Spinning {
		return false
	}
	before := e.current

	ms := float64(now.Sub(e.lastTick)) / float64(time.Millisecond)
	dt := max(ms, e.phys.Epsilon) / 1000
	e.lastTick = now

	s := &e.state
	s.Velocity += s.Acceleration * dt
	s.Rotation = Normalize(s.Rotation + s.Velocity*dt)
	s.Velocity = max(0, s.Velocity-e.phys.VelocityDecay*dt)
	s.Acceleration = max(0, s.Acceleration-e.phys.AccelerationDecay*dt)
	e.ticks++

	e.current = e.lookup()
	if e.current != before && e.current >= 0 {
		e.notify(e.rules[e.current])
	}

	if s.Velocity > 0 || s.Acceleration > 0 {
		return true
	}
	s.Spinning = false
	return false
}

// Halt 立刻停下（Driver 關閉時使用），不觸發 listener。
func (e *Engine) Halt() {
	e.state.Velocity = 0
	e.state.Acceleration = 0
	e.state.Spinning = false
}

// CurrentRule 回傳指標下的規則。
func (e *Engine) CurrentRule() (spec.Rule, bool) {
	if e.current < 0 || e.current >= len(e.rules) {
		return spec.Rule{}, false
	}
	return e.rules[e.current], true
}

// CurrentRuleAt 查詢任意角度下的規則，不改變狀態。
func (e *Engine) CurrentRuleAt(rotation float64) (spec.Rule, error) {
	idx, _, err := Lookup(rotation, e.rules)
	if err != nil {
		return spec.Rule{}, err
	}
	return e.rules[idx], nil
}

// RotateToRule 把指標對到指定規則的中線（settle）。
//
// 轉動中或 id 不在清單上時回傳 false 且不改變任何狀態；不觸發 listener。
func (e *Engine) RotateToRule(id spec.RuleID) bool {
	if e.state.Spinning {
		return false
	}
	idx := spec.IndexOf(e.rules, id)
	if idx < 0 {
		return false
	}
	rot, err := RotationFor(e.rules, idx)
	if err != nil {
		return false
	}
	e.state.Rotation = rot
	e.current = e.lookup()
	return true
}

// Subscribe 註冊 listener，回傳取消函式。
func (e *Engine) Subscribe(fn RuleListener) (cancel func()) {
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return func() { delete(e.listeners, id) }
}

func (e *Engine) notify(r spec.Rule) {
	for _, fn := range e.listeners {
		fn(r)
	}
}

func (e *Engine) lookup() int {
	if len(e.rules) == 0 {
		return -1
	}
	idx, _, err := Lookup(e.state.Rotation, e.rules)
	if err != nil {
		return -1
	}
	return idx
}
