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
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/spec"
)

func rulesOf(weights ...float64) []spec.Rule {
	out := make([]spec.Rule, len(weights))
	for i, w := range weights {
		out[i] = spec.Rule{ID: spec.RuleID(i + 1), Name: "r", Weight: w, Active: true}
	}
	return out
}

func newEngine(t *testing.T, seed int64, rules []spec.Rule) *Engine {
	t.Helper()
	e, err := NewEngine(core.New(core.Default().New(seed)), DefaultPhysics())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.SetRules(rules); err != nil {
		t.Fatalf("set rules: %v", err)
	}
	return e
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestLookupSweepMatchesWeights(t *testing.T) {
	rules := rulesOf(1, 2, 3, 4, 0.5)
	total := TotalWeight(rules)
	const n = 200_000
	count := make([]int, len(rules))
	for i := 0; i < n; i++ {
		rot := TwoPi * (float64(i) + 0.5) / n
		idx, recovered, err := Lookup(rot, rules)
		if err != nil || recovered {
			t.Fatalf("lookup(%v): idx=%d recovered=%v err=%v", rot, idx, recovered, err)
		}
		count[idx]++
	}
	for i, r := range rules {
		got := float64(count[i]) / n
		want := r.Weight / total
		if math.Abs(got-want) > 1e-4 {
			t.Errorf("rule %d share=%.6f want %.6f", i, got, want)
		}
	}
}

func TestSectorWidthsAndBoundaryTie(t *testing.T) {
	rules := rulesOf(1, 1, 2)
	widths, err := SectorWidths(rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{math.Pi / 2, math.Pi / 2, math.Pi}
	for i := range want {
		if math.Abs(widths[i]-want[i]) > 1e-12 {
			t.Fatalf("widths=%v want %v", widths, want)
		}
	}

	// 剛好落在第 0 / 1 格的交界：先掃到的第 0 格勝出
	b01 := TwoPi - TwoPi*(1.0/4.0)
	if idx, _, _ := Lookup(b01, rules); idx != 0 {
		t.Fatalf("boundary 0/1 resolved to %d", idx)
	}
	b12 := TwoPi - TwoPi*(2.0/4.0)
	if idx, _, _ := Lookup(b12, rules); idx != 1 {
		t.Fatalf("boundary 1/2 resolved to %d", idx)
	}
	if idx, _, _ := Lookup(0, rules); idx != 2 {
		t.Fatalf("rotation 0 should be the last sector, got %d", idx)
	}
	if idx, _, _ := Lookup(math.Nextafter(TwoPi, 0), rules); idx != 0 {
		t.Fatalf("rotation just below 2π should be the first sector, got %d", idx)
	}
	// 超出 [0, 2π) 的角度先折回
	if idx, _, _ := Lookup(-math.Pi/4, rules); idx != 0 {
		t.Fatalf("negative rotation should wrap, got %d", idx)
	}
}

func TestLookupErrorsAndRecovery(t *testing.T) {
	if _, _, err := Lookup(1, nil); !errors.Is(err, ErrEmptyWheel) {
		t.Fatalf("expected ErrEmptyWheel, got %v", err)
	}
	if _, _, err := Lookup(1, rulesOf(0, 0)); !errors.Is(err, ErrEmptyWheel) {
		t.Fatalf("expected ErrEmptyWheel for zero weights, got %v", err)
	}
	if _, _, err := Lookup(1, rulesOf(1, -1)); !errors.Is(err, ErrBadWeight) {
		t.Fatalf("expected ErrBadWeight, got %v", err)
	}
	idx, recovered, err := Lookup(math.NaN(), rulesOf(1, 2, 3))
	if err != nil || !recovered || idx != 2 {
		t.Fatalf("NaN rotation: idx=%d recovered=%v err=%v", idx, recovered, err)
	}
	// 權重為 0 的格子永遠不會被選到
	for i := 0; i < 1000; i++ {
		if idx, _, _ := Lookup(TwoPi*float64(i)/1000, rulesOf(1, 0, 1)); idx == 1 {
			t.Fatalf("zero-weight sector selected")
		}
	}
}

func TestRotateToRuleRoundTrip(t *testing.T) {
	c := core.New(core.Default().New(7))
	for trial := 0; trial < 50; trial++ {
		n := 1 + c.IntN(12)
		weights := make([]float64, n)
		for i := range weights {
			weights[i] = c.Uniform(0.1, 5)
		}
		e := newEngine(t, int64(trial), rulesOf(weights...))
		for _, r := range e.Rules() {
			if !e.RotateToRule(r.ID) {
				t.Fatalf("rotate to %d failed", r.ID)
			}
			got, ok := e.CurrentRule()
			if !ok || got.ID != r.ID {
				t.Fatalf("trial %d: settled on %d, want %d", trial, got.ID, r.ID)
			}
			at, err := e.CurrentRuleAt(e.State().Rotation)
			if err != nil || at.ID != r.ID {
				t.Fatalf("CurrentRuleAt disagrees: %v %v", at.ID, err)
			}
			if rot := e.State().Rotation; rot < 0 || rot >= TwoPi {
				t.Fatalf("rotation out of range: %v", rot)
			}
		}
	}
	e := newEngine(t, 1, rulesOf(1, 1))
	if e.RotateToRule(99) {
		t.Fatalf("unknown id should be ignored")
	}
}

func TestTickNeverNegative(t *testing.T) {
	e := newEngine(t, 3, rulesOf(1, 2, 3))
	if ok, err := e.Start(epoch); !ok || err != nil {
		t.Fatalf("start: %v %v", ok, err)
	}
	now := epoch
	steps := []time.Duration{0, -time.Second, 8 * time.Millisecond, -time.Hour, 0, time.Second, 3 * time.Second}
	for i := 0; i < 2000; i++ {
		now = now.Add(steps[i%len(steps)])
		more := e.Tick(now)
		s := e.State()
		if s.Velocity < 0 || s.Acceleration < 0 {
			t.Fatalf("negative state at tick %d: %+v", i, s)
		}
		if s.Rotation < 0 || s.Rotation >= TwoPi {
			t.Fatalf("rotation out of range: %v", s.Rotation)
		}
		if !more {
			break
		}
	}
}

func TestEverySpinReachesRest(t *testing.T) {
	rules := rulesOf(1, 1, 2, 0.5, 3)
	for seed := int64(0); seed < 64; seed++ {
		e := newEngine(t, seed, rules)
		out, err := RunToRest(e, epoch, 0, 0)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if e.State().Spinning || out.Ticks <= 0 {
			t.Fatalf("seed %d: not at rest: %+v", seed, e.State())
		}
		if cur, _ := e.CurrentRule(); cur.ID != out.Rule.ID {
			t.Fatalf("outcome disagrees with current rule")
		}
	}
}

func TestRunToRestCap(t *testing.T) {
	e := newEngine(t, 1, rulesOf(1))
	if _, err := RunToRest(e, epoch, time.Millisecond, 3); !errors.Is(err, ErrNoRest) {
		t.Fatalf("expected ErrNoRest, got %v", err)
	}
	if e.State().Spinning {
		t.Fatalf("engine should be halted after hitting the cap")
	}
}

func TestRunToRestRefusesRunningSpin(t *testing.T) {
	e := newEngine(t, 3, rulesOf(1, 1))
	if ok, _ := e.Start(epoch); !ok {
		t.Fatalf("start failed")
	}
	e.Tick(epoch.Add(10 * time.Millisecond))
	before := e.State()
	ticks := e.Ticks()
	if _, err := RunToRest(e, epoch.Add(time.Hour), 0, 0); !errors.Is(err, ErrSpinning) {
		t.Fatalf("expected ErrSpinning, got %v", err)
	}
	if e.State() != before || e.Ticks() != ticks {
		t.Fatalf("running spin was advanced: %+v ticks=%d", e.State(), e.Ticks())
	}
}

func TestSameSeedSameOutcome(t *testing.T) {
	rules := rulesOf(1, 2, 3, 4)
	a, errA := RunToRest(newEngine(t, 42, rules), epoch, 0, 0)
	b, errB := RunToRest(newEngine(t, 42, rules), epoch, 0, 0)
	if errA != nil || errB != nil {
		t.Fatalf("errors: %v %v", errA, errB)
	}
	if a.Rule.ID != b.Rule.ID || a.Ticks != b.Ticks || a.Rotation != b.Rotation || a.Duration != b.Duration {
		t.Fatalf("same seed diverged: %+v vs %+v", a, b)
	}
}

func TestStartRules(t *testing.T) {
	e := newEngine(t, 1, nil)
	if ok, err := e.Start(epoch); ok || !errors.Is(err, ErrEmptyWheel) {
		t.Fatalf("empty wheel start: %v %v", ok, err)
	}

	e = newEngine(t, 1, rulesOf(1, 1))
	if ok, _ := e.Start(epoch); !ok {
		t.Fatalf("first start should succeed")
	}
	acc := e.State().Acceleration
	if acc < 7 || acc > 13 {
		t.Fatalf("acceleration %v outside base±variance", acc)
	}
	if ok, _ := e.Start(epoch.Add(time.Second)); ok {
		t.Fatalf("re-entrant start must be ignored")
	}
	if e.State().Acceleration != acc {
		t.Fatalf("re-entrant start changed state")
	}
	if e.RotateToRule(1) {
		t.Fatalf("settle must be ignored while spinning")
	}
}

func TestTickNotifiesOnlyOnChange(t *testing.T) {
	e := newEngine(t, 9, rulesOf(1, 1, 1, 1, 1, 1))
	var seen []spec.RuleID
	cancel := e.Subscribe(func(r spec.Rule) { seen = append(seen, r.ID) })
	if _, err := RunToRest(e, epoch, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) == 0 {
		t.Fatalf("a full spin should cross at least one sector")
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] == seen[i-1] {
			t.Fatalf("duplicate notification for %d", seen[i])
		}
	}
	if cur, _ := e.CurrentRule(); cur.ID != seen[len(seen)-1] {
		t.Fatalf("last notification %d != resting rule %d", seen[len(seen)-1], cur.ID)
	}

	cancel()
	n := len(seen)
	if _, err := RunToRest(e, epoch, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != n {
		t.Fatalf("cancelled listener still called")
	}
}

func TestPhysicsValid(t *testing.T) {
	if err := DefaultPhysics().Valid(); err != nil {
		t.Fatalf("default physics invalid: %v", err)
	}
	p := DefaultPhysics()
	p.VelocityDecay = 0
	if err := p.Valid(); err == nil {
		t.Fatalf("zero decay should be rejected")
	}
	p = DefaultPhysics()
	p.AccelerationVariance = math.NaN()
	if err := p.Valid(); err == nil {
		t.Fatalf("NaN variance should be rejected")
	}
	if iv := DefaultPhysics().TickInterval(); iv < 8*time.Millisecond || iv > 9*time.Millisecond {
		t.Fatalf("unexpected tick interval %v", iv)
	}
}

// fakeClock 每次讀取都往前推 step。
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func TestDriverSpinWaitNotify(t *testing.T) {
	e := newEngine(t, 5, rulesOf(1, 1, 1, 1))
	clk := &fakeClock{now: epoch, step: 25 * time.Millisecond}
	d := NewDriver(e, WithClock(clk.Now), WithInterval(time.Millisecond))
	defer d.Close()

	var (
		mu   sync.Mutex
		seen []spec.RuleID
	)
	d.Subscribe(func(r spec.Rule) {
		mu.Lock()
		seen = append(seen, r.ID)
		mu.Unlock()
	})

	if ok, err := d.Spin(); !ok || err != nil {
		t.Fatalf("spin: %v %v", ok, err)
	}
	if ok, _ := d.Spin(); ok {
		t.Fatalf("second spin should be ignored")
	}
	if d.Settle(1) {
		t.Fatalf("settle while spinning should be ignored")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if d.State().Spinning {
		t.Fatalf("driver reported rest while spinning")
	}

	mu.Lock()
	defer mu.Unlock()
	cur, ok := d.CurrentRule()
	if !ok || len(seen) == 0 || seen[len(seen)-1] != cur.ID {
		t.Fatalf("notifications %v not flushed before rest (current %d)", seen, cur.ID)
	}
}

func TestDriverSettleAndClose(t *testing.T) {
	e := newEngine(t, 5, rulesOf(1, 2, 3))
	d := NewDriver(e)
	if !d.Settle(3) {
		t.Fatalf("settle failed")
	}
	if cur, _ := d.CurrentRule(); cur.ID != 3 {
		t.Fatalf("settled on %d", cur.ID)
	}
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("idle driver should not block: %v", err)
	}

	if ok, _ := d.Spin(); !ok {
		t.Fatalf("spin failed")
	}
	d.Close()
	if err := d.Wait(context.Background()); err != nil {
		t.Fatalf("wait after close: %v", err)
	}
	if _, err := d.Spin(); !errors.Is(err, ErrDriverClosed) {
		t.Fatalf("expected ErrDriverClosed, got %v", err)
	}
	d.Close()
}

func TestDriverOnRestSingleSector(t *testing.T) {
	e := newEngine(t, 9, rulesOf(1))
	clk := &fakeClock{now: epoch, step: 25 * time.Millisecond}
	d := NewDriver(e, WithClock(clk.Now), WithInterval(time.Millisecond))
	defer d.Close()

	changes := 0
	d.Subscribe(func(spec.Rule) { changes++ })
	var rested []spec.RuleID
	d.OnRest(func(r spec.Rule) { rested = append(rested, r.ID) })

	if ok, err := d.Spin(); !ok || err != nil {
		t.Fatalf("spin: %v %v", ok, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	// 只有一格時指標永遠不會換格，但停下時仍要回報
	if changes != 0 || len(rested) != 1 || rested[0] != 1 {
		t.Fatalf("changes=%d rested=%v", changes, rested)
	}
}

func TestDriverSettleDropsQueuedEvents(t *testing.T) {
	e := newEngine(t, 5, rulesOf(1, 1))
	d := NewDriver(e)
	defer d.Close()

	var (
		mu   sync.Mutex
		seen []spec.RuleID
	)
	record := func(r spec.Rule) {
		mu.Lock()
		seen = append(seen, r.ID)
		mu.Unlock()
	}
	d.Subscribe(record)
	d.OnRest(record)

	// 上一次 spin 留下、還沒派送的通知與停轉事件
	stale := rulesOf(1, 1)[1]
	rest := make(chan struct{})
	d.mu.Lock()
	d.pending = append(d.pending, driverEvent{rule: &stale}, driverEvent{rest: rest, final: &stale})
	d.mu.Unlock()

	if !d.Settle(1) {
		t.Fatalf("settle failed")
	}
	d.signal()
	select {
	case <-rest:
	case <-time.After(5 * time.Second):
		t.Fatalf("rest channel not closed after settle")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 0 {
		t.Fatalf("stale events delivered after settle: %v", seen)
	}
	if cur, _ := d.CurrentRule(); cur.ID != 1 {
		t.Fatalf("driver faces %d", cur.ID)
	}
}
