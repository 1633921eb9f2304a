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

// Package spec 定義規則（Rule）、物品（Item）與設定檔文件的資料結構。
//
// 設定檔經過 normalize 之後的 Rule 一律帶有正的 Weight；
// 核心（wheel / constraint）只吃正規化後的資料，不再自行補預設值。
package spec

import (
	"strings"
)

type RuleID int

type ItemID int

// RuleKind 規則屬於哪一種輪盤。
type RuleKind string

const (
	KindPersonal RuleKind = "personal"
	KindTeam     RuleKind = "team"
	KindItems    RuleKind = "items"
)

// DefaultWeight 設定檔省略 weight 時使用。
const DefaultWeight = 1.0

// ParseKind 解析 personal / team（大小寫不敏感）。items 不是規則種類。
func ParseKind(s string) (RuleKind, bool) {
	switch RuleKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPersonal:
		return KindPersonal, true
	case KindTeam:
		return KindTeam, true
	default:
		return "", false
	}
}

// Rule 是輪盤上的一格。
//
// 一次 spin 期間 Rule 不可變；任何編輯（例如切換 Active）都回傳新的 Rule，
// 外層以整個 slice 替換（copy-on-write）。三個 map 只讀共用，不做深拷貝。
type Rule struct {
	ID          RuleID         `yaml:"id"                    json:"id"`
	Name        string         `yaml:"name"                  json:"name"`
	Summary     string         `yaml:"summary"               json:"summary"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Weight      float64        `yaml:"weight"                json:"weight"`
	Active      bool           `yaml:"active"                json:"active"`
	Restrict    map[ItemID]int `yaml:"restrict,omitempty"    json:"restrict,omitempty"`
	Require     map[ItemID]int `yaml:"require,omitempty"     json:"require,omitempty"`
	Reduce      map[ItemID]int `yaml:"reduce,omitempty"      json:"reduce,omitempty"`
}

// WithActive 回傳切換 Active 後的副本。
func (r Rule) WithActive(active bool) Rule {
	r.Active = active
	return r
}

// Item 是「要帶的東西」目錄中的一項；Min/Max 與規則無關。
type Item struct {
	ID   ItemID `yaml:"id"   json:"id"`
	Name string `yaml:"name" json:"name"`
	Min  int    `yaml:"min"  json:"min"`
	Max  int    `yaml:"max"  json:"max"`
}

// RuleSet 一份規則設定檔。
type RuleSet struct {
	Kind  RuleKind `yaml:"kind"  json:"kind"`
	Name  string   `yaml:"name"  json:"name"`
	Rules []Rule   `yaml:"rules" json:"rules"`
}

// ItemSet 一份物品目錄設定檔。
type ItemSet struct {
	Name  string `yaml:"name"  json:"name"`
	Items []Item `yaml:"items" json:"items"`
}

// ActiveRules 回傳 Active 的規則（新 slice，保持原順序）。
func ActiveRules(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// IndexOf 回傳 id 在 rules 中的位置，找不到回傳 -1。
func IndexOf(rules []Rule, id RuleID) int {
	for i := range rules {
		if rules[i].ID == id {
			return i
		}
	}
	return -1
}

// SetActive 回傳指定 id 的 Active 被改寫後的新 slice；id 不存在時 ok=false。
func SetActive(rules []Rule, id RuleID, active bool) ([]Rule, bool) {
	idx := IndexOf(rules, id)
	if idx < 0 {
		return rules, false
	}
	out := append([]Rule(nil), rules...)
	out[idx] = out[idx].WithActive(active)
	return out, true
}

// ToggleActive 反轉指定 id 的 Active。
func ToggleActive(rules []Rule, id RuleID) ([]Rule, bool) {
	idx := IndexOf(rules, id)
	if idx < 0 {
		return rules, false
	}
	return SetActive(rules, id, !rules[idx].Active)
}

// SetAllActive 把所有規則設為同一個 Active 狀態（All / None 按鈕）。
func SetAllActive(rules []Rule, active bool) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.WithActive(active)
	}
	return out
}
