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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

// MaxNameLen 玩家名稱上限（rune）。
const MaxNameLen = 32

// 防止 body 過大（1MiB）
const maxBody = 1 << 20

// decodeJSON 以 DisallowUnknownFields 嚴格解碼；allowEmpty 時空 body 視為零值。
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	if r == nil {
		return errs.NewWarn("nil request")
	}
	if r.Body == nil || r.Body == http.NoBody {
		if allowEmpty {
			return nil
		}
		return errs.NewWarn("request body required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return errs.WrapAs(errs.Warn, err, "invalid json")
	}
	return nil
}

// CreateSessionRequest 建立 session；State 為先前分享出去的緊湊狀態（可省略）。
type CreateSessionRequest struct {
	State string `json:"state,omitempty"`
}

// DecodeCreateSession 支援 JSON body 或 ?state=，body 可以為空。
func DecodeCreateSession(r *http.Request) (*CreateSessionRequest, error) {
	req := new(CreateSessionRequest)
	if err := decodeJSON(r, req, true); err != nil {
		return nil, err
	}
	if req.State == "" {
		req.State = r.URL.Query().Get("state")
	}
	req.State = strings.TrimSpace(req.State)
	return req, nil
}

type RenameRequest struct {
	Name string `json:"name"`
}

func DecodeRename(r *http.Request) (*RenameRequest, error) {
	req := new(RenameRequest)
	if err := decodeJSON(r, req, false); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errs.NewWarn("name required")
	}
	if utf8.RuneCountInString(req.Name) > MaxNameLen {
		return nil, errs.Warnf("name longer than %d characters", MaxNameLen)
	}
	return req, nil
}

type SettleRequest struct {
	Rule spec.RuleID `json:"rule"`
}

func DecodeSettle(r *http.Request) (*SettleRequest, error) {
	req := new(SettleRequest)
	if err := decodeJSON(r, req, false); err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveRequest 無狀態的物品計算：以規則 id 指定目前選中的 personal/team 規則。
//
// Items 省略時使用目錄中的物品。規則不做 Active 過濾，呼叫端送什麼就算什麼。
type ResolveRequest struct {
	Personal []spec.RuleID `json:"personal"`
	Team     []spec.RuleID `json:"team"`
	Items    []spec.Item   `json:"items,omitempty"`
}

func DecodeResolve(r *http.Request) (*ResolveRequest, error) {
	req := new(ResolveRequest)
	if err := decodeJSON(r, req, false); err != nil {
		return nil, err
	}
	for _, it := range req.Items {
		if it.Min < 0 || it.Max < it.Min {
			return nil, errs.Warnf("item %d: require 0 <= min <= max", it.ID)
		}
	}
	return req, nil
}

// SimRequest 模擬參數。Seed 為 nil 時由伺服器產生。
type SimRequest struct {
	Kind    string `json:"kind"`
	Spins   int    `json:"spins"`
	Workers int    `json:"workers,omitempty"`
	Seed    *int64 `json:"seed,omitempty"`
}

// DecodeSimRequest
//
// 支援：
//   - GET：從 query string 讀取 kind/spins/workers/seed。
//   - POST：從 JSON body 反序列化（DisallowUnknownFields）。
//
// 這裡只做型別轉換與最基本的範圍檢查；上限由 handler 依伺服器設定決定。
func DecodeSimRequest(r *http.Request) (*SimRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	req := new(SimRequest)

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Kind = q.Get("kind")
		if s := q.Get("spins"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid spins: %v", err))
			}
			req.Spins = v
		}
		if s := q.Get("workers"); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid workers: %v", err))
			}
			req.Workers = v
		}
		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.NewWarn(fmt.Sprintf("invalid seed: %v", err))
			}
			req.Seed = &v
		}
	case http.MethodPost:
		if err := decodeJSON(r, req, false); err != nil {
			return nil, err
		}
	default:
		return nil, errs.NewWarn("method not allowed")
	}

	if _, ok := spec.ParseKind(req.Kind); !ok {
		return nil, errs.NewWarn("kind must be personal or team")
	}
	if req.Spins < 1 {
		return nil, errs.NewWarn("spins must > 0")
	}
	if req.Workers < 0 {
		return nil, errs.NewWarn("workers must >= 0")
	}
	return req, nil
}
