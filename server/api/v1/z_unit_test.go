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

package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/dto"
	"github.com/zintix-labs/rulewheel/sdk/constraint"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/server/logger"
	"github.com/zintix-labs/rulewheel/server/netsvr"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
	"github.com/zintix-labs/rulewheel/session"
)

func file(s string) *fstest.MapFile { return &fstest.MapFile{Data: []byte(s)} }

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"items.yaml":    file("kind: items\nitems:\n  - {id: 1, name: Flashlight, min: 0, max: 4}\n  - {id: 2, name: Candle, min: 1, max: 2}\n"),
		"personal.yaml": file("kind: personal\nrules:\n  - {id: 1, name: Dark, restrict: {1: 0}}\n  - {id: 2, name: Slow, weight: 2}\n"),
		"team.yaml":     file("kind: team\nrules:\n  - {id: 10, name: No Candles, restrict: {2: 0}}\n  - {id: 11, name: Normal}\n"),
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(25 * time.Millisecond)
	return c.now
}

type testServer struct {
	t     *testing.T
	h     http.Handler
	store *session.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerTick(t, time.Millisecond)
}

// newTestServerTick tick 間隔設得很長時，起轉的輪盤在測試期間一直處於轉動中。
func newTestServerTick(t *testing.T, tick time.Duration) *testServer {
	t.Helper()
	lab, err := rulewheel.New(core.Default(), rulewheel.Configs(testFS()))
	if err != nil {
		t.Fatalf("lab: %v", err)
	}
	sCfg := &svrcfg.SvrCfg{Lab: lab, Log: logger.NewDefaultLogger(logger.ModeSilence), SimMaxSpins: 2000}
	if err := sCfg.Valid(); err != nil {
		t.Fatal(err)
	}
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store, err := lab.NewStore(session.Options{
		Players:    2,
		Logger:     sCfg.Log,
		DriverOpts: []wheel.DriverOption{wheel.WithClock(clk.Now), wheel.WithInterval(tick)},
	}, 4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(store.Close)
	h, err := NewHandler(sCfg, store)
	if err != nil {
		t.Fatal(err)
	}
	svr := netsvr.NewChiServerDefault()
	svr.Group("/v1", h.Register)
	return &testServer{t: t, h: svr.Handler(), store: store}
}

func (ts *testServer) do(method, path string, body any, out any) int {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			ts.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (ts *testServer) create() dto.SessionView {
	ts.t.Helper()
	var v dto.SessionView
	if code := ts.do(http.MethodPost, "/v1/sessions", nil, &v); code != http.StatusCreated {
		ts.t.Fatalf("create: %d", code)
	}
	return v
}

func TestCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)

	var rules dto.CatalogView
	if code := ts.do(http.MethodGet, "/v1/rules", nil, &rules); code != 200 {
		t.Fatalf("rules: %d", code)
	}
	if len(rules.Personal) != 2 || len(rules.Team) != 2 || len(rules.Entries) != 3 {
		t.Fatalf("unexpected catalog: %+v", rules)
	}
	var team dto.CatalogView
	ts.do(http.MethodGet, "/v1/rules?kind=team", nil, &team)
	if len(team.Personal) != 0 || len(team.Team) != 2 {
		t.Fatalf("kind filter failed: %+v", team)
	}
	if code := ts.do(http.MethodGet, "/v1/rules?kind=items", nil, nil); code != 400 {
		t.Fatalf("items is not a wheel kind: %d", code)
	}

	var items dto.ItemsView
	ts.do(http.MethodGet, "/v1/items", nil, &items)
	if len(items.Items) != 2 {
		t.Fatalf("items: %+v", items)
	}
}

func TestResolveRoute(t *testing.T) {
	ts := newTestServer(t)
	var v dto.ResolveView
	code := ts.do(http.MethodPost, "/v1/resolve", map[string]any{"personal": []int{1}, "team": []int{10}}, &v)
	if code != 200 || len(v.Items) != 2 {
		t.Fatalf("resolve: %d %+v", code, v)
	}
	// Flashlight restricted to 0, Candle restricted to 0 but min 1
	if v.Items[0].Quantity != 0 || v.Items[1].Quantity != 0 || v.Items[1].Display != 1 {
		t.Fatalf("quantities: %+v", v.Items)
	}
	if code := ts.do(http.MethodPost, "/v1/resolve", map[string]any{"personal": []int{99}}, nil); code != 400 {
		t.Fatalf("unknown rule should be 400, got %d", code)
	}
	if code := ts.do(http.MethodPost, "/v1/resolve", map[string]any{"bogus": 1}, nil); code != 400 {
		t.Fatalf("unknown field should be 400, got %d", code)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	v := ts.create()
	if len(v.Players) != 2 || v.Team.Current != nil {
		t.Fatalf("fresh session: %+v", v)
	}
	base := "/v1/sessions/" + v.ID

	var wv dto.WheelView
	if code := ts.do(http.MethodPut, base+"/players/1", map[string]string{"name": "Ada"}, &wv); code != 200 || wv.Name != "Ada" {
		t.Fatalf("rename: %d %+v", code, wv)
	}
	if code := ts.do(http.MethodPut, base+"/players/7", map[string]string{"name": "Nobody"}, nil); code != 400 {
		t.Fatalf("rename out of range: %d", code)
	}

	if code := ts.do(http.MethodPost, base+"/wheels/team/settle", map[string]int{"rule": 10}, &wv); code != 200 {
		t.Fatalf("settle: %d", code)
	}
	if wv.Current == nil || wv.Current.ID != 10 {
		t.Fatalf("settle did not select: %+v", wv)
	}
	if code := ts.do(http.MethodPost, base+"/wheels/team/settle", map[string]int{"rule": 1}, nil); code != 400 {
		t.Fatalf("personal rule on team wheel must fail: %d", code)
	}

	// Candle 下限 1 但被限制為 0：強制帶著但不能用
	var items dto.ResolveView
	ts.do(http.MethodGet, base+"/items", nil, &items)
	candle := items.Items[1]
	if candle.Quantity != 0 || candle.Display != 1 || candle.Class != constraint.ForcedUnused {
		t.Fatalf("items after settle: %+v", items.Items)
	}

	var after dto.SessionView
	if code := ts.do(http.MethodPost, base+"/rules/team/10/toggle", nil, &after); code != 200 {
		t.Fatalf("toggle: %d", code)
	}
	if after.Team.Current != nil || after.Team.Rules != 1 {
		t.Fatalf("toggling the current rule should clear it: %+v", after.Team)
	}
	if code := ts.do(http.MethodPost, base+"/rules/team/none", nil, &after); code != 200 || after.Team.Rules != 0 {
		t.Fatalf("none: %d %+v", code, after.Team)
	}
	if code := ts.do(http.MethodPost, base+"/wheels/team/spin", nil, nil); code != 400 {
		t.Fatalf("spinning an empty wheel should be 400, got %d", code)
	}
	if code := ts.do(http.MethodPost, base+"/rules/team/all", nil, &after); code != 200 || after.Team.Rules != 2 {
		t.Fatalf("all: %d %+v", code, after.Team)
	}
	if code := ts.do(http.MethodPost, base+"/rules/bogus/all", nil, nil); code != 400 {
		t.Fatalf("bad kind: %d", code)
	}

	if code := ts.do(http.MethodDelete, base, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete: %d", code)
	}
	if code := ts.do(http.MethodGet, base, nil, nil); code != http.StatusNotFound {
		t.Fatalf("deleted session should 404, got %d", code)
	}
}

func TestSpinWaitReachesRest(t *testing.T) {
	ts := newTestServer(t)
	v := ts.create()
	base := "/v1/sessions/" + v.ID

	var sv dto.SpinView
	if code := ts.do(http.MethodPost, base+"/wheels/0/spin?wait=1", nil, &sv); code != 200 {
		t.Fatalf("spin: %d", code)
	}
	if sv.Started != 1 || !sv.Waited || len(sv.Wheels) != 1 {
		t.Fatalf("spin view: %+v", sv)
	}
	if sv.Wheels[0].State.Spinning || sv.Wheels[0].Current == nil {
		t.Fatalf("wheel should be at rest with a rule: %+v", sv.Wheels[0])
	}

	if code := ts.do(http.MethodPost, base+"/spin?wait=true", nil, &sv); code != 200 {
		t.Fatalf("spin all: %d", code)
	}
	if sv.Started != 3 || len(sv.Wheels) != 3 {
		t.Fatalf("spin all view: %+v", sv)
	}
	for _, w := range sv.Wheels {
		if w.State.Spinning || w.Current == nil {
			t.Fatalf("wheel %s not settled: %+v", w.Wheel, w)
		}
	}
	if code := ts.do(http.MethodPost, base+"/wheels/9/spin", nil, nil); code != 400 {
		t.Fatalf("unknown wheel: %d", code)
	}
}

func TestSharedStateRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	v := ts.create()
	base := "/v1/sessions/" + v.ID
	ts.do(http.MethodPost, base+"/wheels/team/settle", map[string]int{"rule": 11}, nil)
	ts.do(http.MethodPost, base+"/rules/personal/1/toggle", nil, nil)

	var st dto.StateView
	if code := ts.do(http.MethodGet, base+"/state", nil, &st); code != 200 || st.State == "" {
		t.Fatalf("state: %d %+v", code, st)
	}

	var restored struct {
		dto.SessionView
		Restored bool `json:"restored"`
	}
	if code := ts.do(http.MethodPost, "/v1/sessions", map[string]string{"state": st.State}, &restored); code != 201 {
		t.Fatalf("restore: %d", code)
	}
	if !restored.Restored || restored.ID == v.ID {
		t.Fatalf("expected a new restored session: %+v", restored)
	}
	if restored.Team.Current == nil || restored.Team.Current.ID != 11 || restored.PersonalRules[0].Active {
		t.Fatalf("state not applied: %+v", restored.SessionView)
	}

	// 壞掉的 state 不算錯，開一桌新的
	if code := ts.do(http.MethodPost, "/v1/sessions?state=%25%25garbage", nil, &restored); code != 201 || restored.Restored {
		t.Fatalf("garbage state should yield a fresh session: %d %+v", code, restored.Restored)
	}
}

func TestStoreFull(t *testing.T) {
	ts := newTestServer(t)
	for range 4 {
		ts.create()
	}
	if code := ts.do(http.MethodPost, "/v1/sessions", nil, nil); code != http.StatusTooManyRequests {
		t.Fatalf("fifth session should be 429, got %d", code)
	}
}

func TestSimRoute(t *testing.T) {
	ts := newTestServer(t)
	var resp struct {
		Stats struct {
			Summary struct {
				Spins int
				Seed  int64
			}
			Rules []struct{ Hits int }
		} `json:"stats"`
	}
	code := ts.do(http.MethodGet, "/v1/sim?kind=personal&spins=300&workers=2&seed=7", nil, &resp)
	if code != 200 {
		t.Fatalf("sim: %d", code)
	}
	if resp.Stats.Summary.Spins != 300 || resp.Stats.Summary.Seed != 7 || len(resp.Stats.Rules) != 2 {
		t.Fatalf("sim report: %+v", resp.Stats)
	}
	if code := ts.do(http.MethodPost, "/v1/sim", map[string]any{"kind": "team", "spins": 5000}, nil); code != 400 {
		t.Fatalf("over the spin cap should be 400, got %d", code)
	}
}

func TestSettleConflictWhileSpinning(t *testing.T) {
	ts := newTestServerTick(t, time.Hour)
	v := ts.create()
	base := "/v1/sessions/" + v.ID

	if code := ts.do(http.MethodPost, base+"/wheels/team/spin", nil, nil); code != 200 {
		t.Fatalf("spin: %d", code)
	}
	if code := ts.do(http.MethodPost, base+"/wheels/team/settle", map[string]any{"rule": 10}, nil); code != http.StatusConflict {
		t.Fatalf("settle while spinning: %d", code)
	}
	// 沒在轉的輪盤，規則不存在仍是 400
	if code := ts.do(http.MethodPost, base+"/wheels/0/settle", map[string]any{"rule": 99}, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown rule: %d", code)
	}
}
