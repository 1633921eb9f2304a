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

package core

import (
	"testing"
)

func TestCoreDeterminism(t *testing.T) {
	for _, name := range []string{"pcg64", "pcg32"} {
		cf, ok := FactoryByName(name)
		if !ok {
			t.Fatalf("factory %s not found", name)
		}
		c1 := New(cf.New(7))
		c2 := New(cf.New(7))
		for i := 0; i < 5; i++ {
			if c1.Uint64() != c2.Uint64() {
				t.Fatalf("[%s] Uint64 mismatch at %d", name, i)
			}
		}
		if c1.IntN(10) != c2.IntN(10) {
			t.Fatalf("[%s] IntN mismatch", name)
		}
		if c1.UintN(10) != c2.UintN(10) {
			t.Fatalf("[%s] UintN mismatch", name)
		}
	}
}

func TestFactoryByNameUnknown(t *testing.T) {
	if _, ok := FactoryByName("mt19937"); ok {
		t.Fatalf("expected unknown factory")
	}
}

func TestSnapshotRestore(t *testing.T) {
	for _, name := range []string{"pcg64", "pcg32"} {
		cf, _ := FactoryByName(name)
		a := cf.New(42)
		a.Uint64()
		snap, err := a.Snapshot()
		if err != nil {
			t.Fatalf("[%s] snapshot: %v", name, err)
		}
		want := a.Uint64()

		b := cf.New(1)
		if err := b.Restore(snap); err != nil {
			t.Fatalf("[%s] restore: %v", name, err)
		}
		if got := b.Uint64(); got != want {
			t.Fatalf("[%s] restored sequence mismatch: got %d want %d", name, got, want)
		}
	}
}

func TestPCG32RestoreRejectsBadState(t *testing.T) {
	r := newPCG32WithSeed(3)
	if err := r.Restore([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for short state")
	}
	even := make([]byte, pcg32StateLen)
	if err := r.Restore(even); err == nil {
		t.Fatalf("expected error for even increment")
	}
}

func TestJitterRange(t *testing.T) {
	c := New(Default().New(9))
	for i := 0; i < 10000; i++ {
		v := c.Jitter(10, 3)
		if v < 7 || v >= 13 {
			t.Fatalf("jitter out of range: %v", v)
		}
	}
	if got := c.Jitter(10, 0); got != 10 {
		t.Fatalf("zero variance should return base, got %v", got)
	}
}

func TestUniformSwapsBounds(t *testing.T) {
	c := New(Default().New(5))
	for i := 0; i < 1000; i++ {
		v := c.Uniform(2, -2)
		if v < -2 || v >= 2 {
			t.Fatalf("uniform out of range: %v", v)
		}
	}
}

func TestNewSeedNonNegative(t *testing.T) {
	for i := 0; i < 10; i++ {
		if s := NewSeed(); s < 0 {
			t.Fatalf("negative seed %d", s)
		}
	}
}

func TestDeriveSeed(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 64; i++ {
		s := DeriveSeed(42, i)
		if s < 0 {
			t.Fatalf("derived seed must be non-negative: %d", s)
		}
		if seen[s] {
			t.Fatalf("derived seeds collide at %d", i)
		}
		seen[s] = true
		if DeriveSeed(42, i) != s {
			t.Fatalf("DeriveSeed not deterministic")
		}
	}
}
