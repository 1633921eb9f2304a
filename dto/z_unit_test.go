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

package dto

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/constraint"
)

func TestDecodeSimRequestGET(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/sim?kind=team&spins=500&workers=2&seed=9", nil)
	req, err := DecodeSimRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Kind != "team" || req.Spins != 500 || req.Workers != 2 || req.Seed == nil || *req.Seed != 9 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestDecodeSimRequestPOST(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/sim", strings.NewReader(`{"kind":"personal","spins":10}`))
	req, err := DecodeSimRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Seed != nil || req.Workers != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestDecodeSimRequestRejects(t *testing.T) {
	cases := map[string]*http.Request{
		"unknown field": httptest.NewRequest(http.MethodPost, "/sim", strings.NewReader(`{"kind":"team","spins":1,"x":1}`)),
		"bad kind":      httptest.NewRequest(http.MethodGet, "/sim?kind=items&spins=1", nil),
		"zero spins":    httptest.NewRequest(http.MethodGet, "/sim?kind=team", nil),
		"bad seed":      httptest.NewRequest(http.MethodGet, "/sim?kind=team&spins=1&seed=x", nil),
		"method":        httptest.NewRequest(http.MethodDelete, "/sim", nil),
	}
	for name, r := range cases {
		_, err := DecodeSimRequest(r)
		if err == nil {
			t.Errorf("[%s] expected error", name)
			continue
		}
		if !errs.IsWarn(err) {
			t.Errorf("[%s] expected warn level, got %v", name, err)
		}
	}
}

func TestDecodeCreateSessionAllowsEmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req, err := DecodeCreateSession(r)
	if err != nil || req.State != "" {
		t.Fatalf("empty body should be fine: %+v %v", req, err)
	}
	r = httptest.NewRequest(http.MethodPost, "/sessions?state=abc", nil)
	if req, _ := DecodeCreateSession(r); req.State != "abc" {
		t.Fatalf("state from query lost")
	}
}

func TestDecodeRename(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/x", strings.NewReader(`{"name":"  Ghosty  "}`))
	req, err := DecodeRename(r)
	if err != nil || req.Name != "Ghosty" {
		t.Fatalf("unexpected: %+v %v", req, err)
	}
	for _, body := range []string{`{"name":"   "}`, `{"name":"` + strings.Repeat("x", MaxNameLen+1) + `"}`, ``} {
		r := httptest.NewRequest(http.MethodPut, "/x", strings.NewReader(body))
		if _, err := DecodeRename(r); err == nil {
			t.Errorf("expected error for %q", body)
		}
	}
}

func TestDecodeResolveValidatesItems(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(`{"personal":[1],"team":[2],"items":[{"id":1,"name":"a","min":2,"max":1}]}`))
	if _, err := DecodeResolve(r); err == nil {
		t.Fatalf("expected item range error")
	}
	r = httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(`{"personal":[1,3],"team":[]}`))
	req, err := DecodeResolve(r)
	if err != nil || len(req.Personal) != 2 {
		t.Fatalf("unexpected: %+v %v", req, err)
	}
}

func TestItemViewJSON(t *testing.T) {
	views := NewItemViews([]constraint.ResolvedItem{{ID: 1, Name: "Candle", Quantity: 0, Min: 1, Max: 2}})
	raw, err := json.Marshal(views[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(raw)
	for _, want := range []string{`"name":"Candle"`, `"display":1`, `"class":"under"`, `"quantity":0`} {
		if !strings.Contains(s, want) {
			t.Errorf("%s missing %s", s, want)
		}
	}
}
