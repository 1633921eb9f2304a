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

package rulewheel

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/recorder"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/spec"
	"github.com/zintix-labs/rulewheel/stats"
)

// MaxSimWorkers 平行模擬的 goroutine 上限。
const MaxSimWorkers = 256

// Simulator 在虛擬時鐘上大量執行 spin，統計每條規則的命中比例。
//
// 每個 worker 一個 Engine 與一個 SpinRecorder，彼此不共用狀態；最後合併成一份報表。
// 同一個 seed + 同樣的 workers 數會得到完全一樣的報表。
type Simulator struct {
	cat      *catalog.Catalog
	cf       core.PRNGFactory
	phys     wheel.Physics
	initSeed int64
	epoch    time.Time
}

func newSimulator(cat *catalog.Catalog, cf core.PRNGFactory, phys wheel.Physics, seed int64) *Simulator {
	return &Simulator{
		cat:      cat,
		cf:       cf,
		phys:     phys,
		initSeed: seed,
		epoch:    time.Unix(0, 0),
	}
}

func (s *Simulator) Seed() int64 {
	return s.initSeed
}

func (s *Simulator) rules(kind spec.RuleKind) ([]spec.Rule, error) {
	if kind != spec.KindPersonal && kind != spec.KindTeam {
		return nil, errs.Warnf("unknown wheel kind %q", kind)
	}
	rules := spec.ActiveRules(s.cat.Rules(kind))
	if len(rules) == 0 {
		return nil, wheel.ErrEmptyWheel
	}
	return rules, nil
}

func (s *Simulator) newEngine(rules []spec.Rule, seed int64) (*wheel.Engine, error) {
	eng, err := wheel.NewEngine(core.New(s.cf.New(seed)), s.phys)
	if err != nil {
		return nil, err
	}
	if err := eng.SetRules(rules); err != nil {
		return nil, err
	}
	return eng, nil
}

// run 在單一 engine 上連跑 spins 次；每次都從上一次停下的角度起轉。
func (s *Simulator) run(eng *wheel.Engine, rec *recorder.SpinRecorder, spins int, bar *pb.ProgressBar) error {
	now := s.epoch
	for i := 0; i < spins; i++ {
		o, err := wheel.RunToRest(eng, now, 0, 0)
		if err != nil {
			return err
		}
		rec.Record(o)
		now = now.Add(o.Duration)
		bar.Increment()
	}
	return nil
}

// Sim 單線模擬器：以一個 engine 連續跑指定 spins 並回傳統計結果與用時
func (s *Simulator) Sim(kind spec.RuleKind, spins int, showpb bool) (*stats.SpinReport, time.Duration, error) {
	return s.SimMP(kind, spins, 1, showpb)
}

// SimMP 平行執行 workers 個 engine，總計 spins 次（平均分配，餘數給前面的 worker），
// 合併統計結果後回傳統計結果與用時。
func (s *Simulator) SimMP(kind spec.RuleKind, spins int, workers int, showpb bool) (*stats.SpinReport, time.Duration, error) {
	if workers <= 0 || workers > MaxSimWorkers {
		return nil, 0, errs.Warnf("workers must be in 1..%d", MaxSimWorkers)
	}
	if spins < 1 {
		return nil, 0, errs.NewWarn("spins must > 0")
	}
	rules, err := s.rules(kind)
	if err != nil {
		return nil, 0, err
	}
	workers = min(workers, spins)

	sm := newSeedMaker(s.initSeed)
	engs := make([]*wheel.Engine, workers)
	recs := make([]*recorder.SpinRecorder, workers)
	quota := make([]int, workers)
	for i := range workers {
		seed := s.initSeed
		if i > 0 {
			seed = sm.next()
		}
		if engs[i], err = s.newEngine(rules, seed); err != nil {
			return nil, 0, err
		}
		quota[i] = spins / workers
		if i < spins%workers {
			quota[i]++
		}
		if recs[i], err = recorder.NewSpinRecorder(kind, rules, quota[i]); err != nil {
			return nil, 0, err
		}
	}

	bar := pb.StartNew(spins)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(workers)
	for i := range workers {
		go func(i int) {
			defer wg.Done()
			if err := s.run(engs[i], recs[i], quota[i], bar); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(i)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()
	if firstErr != nil {
		return nil, used, firstErr
	}

	merged, err := recorder.MergeSpinRecorder(recs)
	if err != nil {
		return nil, used, err
	}
	result := merged.Done(stats.SummaryReport{
		Seed:    s.initSeed,
		Workers: workers,
		TickHz:  s.phys.TickRate,
	})
	result.Done()
	return result, used, nil
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// state 走全週期（不重複），再用可逆 mix63 打散
//
// 可能被多個 goroutine 同時呼叫，state 以 CAS 推進。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()                                            // always masked
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
