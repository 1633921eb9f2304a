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

// Package dto 定義對外（HTTP / CLI）輸出的結構與請求解碼。
package dto

import (
	"time"

	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/sdk/constraint"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/spec"
)

// WheelView 單一輪盤的快照。
type WheelView struct {
	Wheel   string       `json:"wheel"` // "team" 或玩家索引
	Name    string       `json:"name"`
	State   wheel.State  `json:"state"`
	Current *spec.Rule   `json:"current,omitempty"`
	Rules   int          `json:"rules"` // 輪盤上的規則數（僅 active）
	Sectors []SectorView `json:"sectors,omitempty"`
}

// SectorView 輪盤上的一格，依繪製順序排列；Width 為弧寬（radian）。
type SectorView struct {
	ID    spec.RuleID `json:"id"`
	Width float64     `json:"width"`
}

// ItemView 「要帶的東西」清單中的一列。
type ItemView struct {
	constraint.ResolvedItem
	Display int              `json:"display"`
	Class   constraint.Class `json:"class"`
}

func NewItemViews(items []constraint.ResolvedItem) []ItemView {
	out := make([]ItemView, len(items))
	for i, it := range items {
		out[i] = ItemView{
			ResolvedItem: it,
			Display:      it.Display(),
			Class:        it.Class(),
		}
	}
	return out
}

type SessionView struct {
	ID            string      `json:"id"`
	CreatedAt     time.Time   `json:"created_at"`
	Team          WheelView   `json:"team"`
	Players       []WheelView `json:"players"`
	PersonalRules []spec.Rule `json:"personal_rules"`
	TeamRules     []spec.Rule `json:"team_rules"`
	Items         []ItemView  `json:"items"`
}

// StateView 可分享的緊湊狀態字串。
type StateView struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

type CatalogView struct {
	Personal []spec.Rule     `json:"personal,omitempty"`
	Team     []spec.Rule     `json:"team,omitempty"`
	Entries  []catalog.Entry `json:"entries,omitempty"`
}

type ItemsView struct {
	Items []spec.Item `json:"items"`
}

type ResolveView struct {
	Items []ItemView `json:"items"`
}

// SpinView 一次 spin 請求的回應；Wait=true 時 Wheels 內已是停下後的狀態。
type SpinView struct {
	Started int         `json:"started"`
	Waited  bool        `json:"waited"`
	Wheels  []WheelView `json:"wheels"`
}
