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
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

var (
	ErrDriverClosed = errs.NewWarn("wheel driver closed")
	ErrSpinning     = errs.NewWarn("wheel is spinning")
)

// Driver 以真實時間驅動一個 Engine。
//
// 同一時間只會有一條 tick 鏈：每次排程前都先停掉前一個 timer，settle 前也一樣。
// mu 串行化 timer callback 與外部呼叫；Engine 本身維持無鎖。
//
// 規則變更通知不在 mu 內呼叫，而是排進 pending 由專屬 goroutine 依序派送，
// listener 因此可以安全地回頭呼叫 Driver（或持有自己的鎖）。
// 「停轉」也是一個排隊事件：Wait 返回時，停轉前的所有規則通知都已送達。
type Driver struct {
	mu       sync.Mutex
	eng      *Engine
	now      func() time.Time
	interval time.Duration
	timer    *time.Timer
	idle     chan struct{}
	closed   bool
	log      *slog.Logger

	pending   []driverEvent
	wake      chan struct{}
	done      chan struct{}
	listeners map[int]RuleListener
	onRest    []RuleListener
	nextID    int
}

type driverEvent struct {
	rule  *spec.Rule
	rest  chan struct{}
	final *spec.Rule // 停下時指標所在的規則；Close 中斷時為 nil
}

type DriverOption func(*Driver)

// WithClock 替換時間來源（測試用虛擬時鐘）。
func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithInterval 替換真實 timer 的間隔；預設為 Physics.TickInterval。
func WithInterval(iv time.Duration) DriverOption {
	return func(d *Driver) {
		if iv > 0 {
			d.interval = iv
		}
	}
}

func WithLogger(log *slog.Logger) DriverOption {
	return func(d *Driver) {
		if log != nil {
			d.log = log
		}
	}
}

func NewDriver(eng *Engine, opts ...DriverOption) *Driver {
	idle := make(chan struct{})
	close(idle)
	d := &Driver{
		eng:       eng,
		now:       time.Now,
		interval:  eng.phys.TickInterval(),
		idle:      idle,
		log:       slog.New(slog.DiscardHandler),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		listeners: make(map[int]RuleListener),
	}
	for _, opt := range opts {
		opt(d)
	}
	eng.Subscribe(func(r spec.Rule) {
		// 只會在 tick 內（持有 mu）被呼叫
		d.pending = append(d.pending, driverEvent{rule: &r})
	})
	go d.dispatch()
	return d
}

// Spin 起轉並排程第一個 tick。已在轉動時回傳 false。
func (d *Driver) Spin() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, ErrDriverClosed
	}
	started, err := d.eng.Start(d.now())
	if err != nil || !started {
		return false, err
	}
	d.idle = make(chan struct{})
	d.schedule()
	d.log.Debug("wheel.spin", slog.Float64("acceleration", d.eng.state.Acceleration))
	return true, nil
}

// Settle 把指標對到指定規則。轉動中或 id 不存在時回傳 false。
//
// 成功時丟掉還沒派送的規則通知，並清掉排隊中停轉事件的 final，
// 之前那次 spin 的結果不會在 settle 之後才送到 listener；rest channel 照常關閉。
func (d *Driver) Settle(id spec.RuleID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.eng.state.Spinning {
		return false
	}
	d.stopTimer()
	if !d.eng.RotateToRule(id) {
		return false
	}
	kept := d.pending[:0]
	for _, ev := range d.pending {
		if ev.rest == nil {
			continue
		}
		ev.final = nil
		kept = append(kept, ev)
	}
	d.pending = kept
	return true
}

// SetRules 換掉規則清單；轉動中也允許，指標下的格子依新清單重算。
func (d *Driver) SetRules(rules []spec.Rule) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDriverClosed
	}
	return d.eng.SetRules(rules)
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.State()
}

func (d *Driver) CurrentRule() (spec.Rule, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.CurrentRule()
}

func (d *Driver) Rules() []spec.Rule {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.Rules()
}

// Subscribe 註冊規則變更 listener（在派送 goroutine 上呼叫）。
func (d *Driver) Subscribe(fn RuleListener) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// OnRest 註冊「停下時」的回呼，帶著最後指到的規則；即使整個 spin 都沒換格也會呼叫。
// 回呼在 Wait 返回之前完成。
func (d *Driver) OnRest(fn RuleListener) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.onRest = append(d.onRest, fn)
	d.mu.Unlock()
}

// Wait 等到輪盤停下（且停下前的通知都已派送）或 ctx 結束。
func (d *Driver) Wait(ctx context.Context) error {
	d.mu.Lock()
	ch := d.idle
	d.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停掉 tick 鏈與派送 goroutine；重複呼叫安全。
func (d *Driver) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.stopTimer()
	if d.eng.state.Spinning {
		d.eng.Halt()
		d.pending = append(d.pending, driverEvent{rest: d.idle})
	}
	d.mu.Unlock()
	d.signal()
	close(d.done)
}

func (d *Driver) tick() {
	d.mu.Lock()
	// 已被停掉但 callback 早一步開始跑的 timer
	if d.closed || !d.eng.state.Spinning {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	if d.eng.Tick(d.now()) {
		d.schedule()
	} else {
		ev := driverEvent{rest: d.idle}
		if r, ok := d.eng.CurrentRule(); ok {
			ev.final = &r
			d.log.Debug("wheel.rest", slog.Int("rule", int(r.ID)), slog.Int("ticks", d.eng.Ticks()))
		}
		d.pending = append(d.pending, ev)
	}
	d.mu.Unlock()
	d.signal()
}

// schedule 呼叫前必須持有 mu。
func (d *Driver) schedule() {
	d.stopTimer()
	d.timer = time.AfterFunc(d.interval, d.tick)
}

func (d *Driver) stopTimer() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Driver) dispatch() {
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Driver) drain() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		fns := make([]RuleListener, 0, len(d.listeners))
		for _, fn := range d.listeners {
			fns = append(fns, fn)
		}
		onRest := d.onRest
		d.mu.Unlock()

		for _, ev := range batch {
			if ev.rest != nil {
				if ev.final != nil {
					for _, fn := range onRest {
						fn(*ev.final)
					}
				}
				close(ev.rest)
				continue
			}
			for _, fn := range fns {
				fn(*ev.rule)
			}
		}
	}
}
