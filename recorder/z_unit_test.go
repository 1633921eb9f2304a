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
	"testing"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/spec"
	"github.com/zintix-labs/rulewheel/stats"
)

var twoRules = []spec.Rule{
	{ID: 1, Name: "a", Weight: 1, Active: true},
	{ID: 2, Name: "b", Weight: 3, Active: true},
}

func TestRecordCountsHitsAndMisses(t *testing.T) {
	r, err := NewSpinRecorder(spec.KindPersonal, twoRules, 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, idx := range []int{0, 1, 1, 5} {
		r.Record(wheel.Outcome{Index: idx, Ticks: 10})
	}
	if r.Basic.Spins != 4 || r.Basic.Misses != 1 {
		t.Fatalf("basic %+v", r.Basic)
	}
	if r.Dist.Hits[0] != 1 || r.Dist.Hits[1] != 2 || len(r.Dist.Ticks) != 3 {
		t.Fatalf("dist %+v", r.Dist)
	}
	if _, err := NewSpinRecorder(spec.KindPersonal, nil, 0); !errs.IsWarn(err) {
		t.Fatalf("empty rules should warn, got %v", err)
	}
}

func TestMergeAndDone(t *testing.T) {
	a, _ := NewSpinRecorder(spec.KindTeam, twoRules, 0)
	b, _ := NewSpinRecorder(spec.KindTeam, twoRules, 0)
	a.Record(wheel.Outcome{Index: 0, Ticks: 4})
	b.Record(wheel.Outcome{Index: 1, Ticks: 8})
	b.Record(wheel.Outcome{Index: 1, Ticks: 12})

	m, err := MergeSpinRecorder([]*SpinRecorder{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if m.Basic.Spins != 3 || m.Dist.Hits[0] != 1 || m.Dist.Hits[1] != 2 || len(m.Dist.Ticks) != 3 {
		t.Fatalf("merged %+v %+v", m.Basic, m.Dist)
	}

	rep := m.Done(stats.SummaryReport{Seed: 9, Workers: 2, TickHz: 4})
	rep.Done()
	if rep.Summary.Kind != spec.KindTeam || rep.Summary.Spins != 3 || rep.Summary.Seed != 9 {
		t.Fatalf("summary %+v", rep.Summary)
	}
	if rep.Rules[1].Expected != 0.75 || rep.Rest.MeanTicks != 8 {
		t.Fatalf("report %+v %+v", rep.Rules, rep.Rest)
	}
}

func TestMergeRejectsMismatch(t *testing.T) {
	a, _ := NewSpinRecorder(spec.KindTeam, twoRules, 0)
	other, _ := NewSpinRecorder(spec.KindPersonal, twoRules, 0)
	if _, err := MergeSpinRecorder([]*SpinRecorder{a, other}); !errs.IsFatal(err) {
		t.Fatalf("kind mismatch should be fatal, got %v", err)
	}
	swapped, _ := NewSpinRecorder(spec.KindTeam, []spec.Rule{twoRules[1], twoRules[0]}, 0)
	if _, err := MergeSpinRecorder([]*SpinRecorder{a, swapped}); !errs.IsFatal(err) {
		t.Fatalf("order mismatch should be fatal, got %v", err)
	}
	if _, err := MergeSpinRecorder(nil); !errs.IsFatal(err) {
		t.Fatalf("empty merge should be fatal, got %v", err)
	}
}
