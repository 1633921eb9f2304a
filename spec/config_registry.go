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

package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/rulewheel/errs"
	"gopkg.in/yaml.v3"
)

// Document 是一份設定檔解析後的結果，依 Kind 只會有 RuleSet 或 ItemSet 其中之一。
type Document struct {
	Kind    RuleKind
	RuleSet *RuleSet
	ItemSet *ItemSet
}

// document 是設定檔的原始形狀。weight / active 用指標區分「沒寫」與「寫了零值」。
type document struct {
	Kind  string    `yaml:"kind"  json:"kind"`
	Name  string    `yaml:"name"  json:"name"`
	Rules []ruleDoc `yaml:"rules" json:"rules"`
	Items []Item    `yaml:"items" json:"items"`
}

type ruleDoc struct {
	ID          RuleID         `yaml:"id"          json:"id"`
	Name        string         `yaml:"name"        json:"name"`
	Summary     string         `yaml:"summary"     json:"summary"`
	Description string         `yaml:"description" json:"description"`
	Weight      *float64       `yaml:"weight"      json:"weight"`
	Active      *bool          `yaml:"active"      json:"active"`
	Restrict    map[ItemID]int `yaml:"restrict"    json:"restrict"`
	Require     map[ItemID]int `yaml:"require"     json:"require"`
	Reduce      map[ItemID]int `yaml:"reduce"      json:"reduce"`
}

// GetDocumentByYAML
// 會讀取 YAML 設定、補齊預設值並執行基本檢查後回傳
func GetDocumentByYAML(data []byte) (*Document, error) {
	doc := &document{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshall yaml")
	}
	return doc.build()
}

// GetDocumentByJSON
// 會讀取 Json 設定、補齊預設值並執行基本檢查後回傳
func GetDocumentByJSON(data []byte) (*Document, error) {
	doc := &document{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(doc); err != nil {
		return nil, errs.Wrap(err, "can not unmarshall json byte")
	}
	return doc.build()
}

// GetDocumentByExt 依副檔名（.yaml/.yml/.json）選擇解析器。
func GetDocumentByExt(filename string, data []byte) (*Document, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return GetDocumentByYAML(data)
	case ".json":
		return GetDocumentByJSON(data)
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unsupported config format: %q", filename))
	}
}

// GetRuleSetByYAML 解析並要求文件是 personal/team 規則。
func GetRuleSetByYAML(data []byte) (*RuleSet, error) {
	doc, err := GetDocumentByYAML(data)
	if err != nil {
		return nil, err
	}
	return doc.asRuleSet()
}

func GetRuleSetByJSON(data []byte) (*RuleSet, error) {
	doc, err := GetDocumentByJSON(data)
	if err != nil {
		return nil, err
	}
	return doc.asRuleSet()
}

// GetItemSetByYAML 解析並要求文件是物品目錄。
func GetItemSetByYAML(data []byte) (*ItemSet, error) {
	doc, err := GetDocumentByYAML(data)
	if err != nil {
		return nil, err
	}
	return doc.asItemSet()
}

func GetItemSetByJSON(data []byte) (*ItemSet, error) {
	doc, err := GetDocumentByJSON(data)
	if err != nil {
		return nil, err
	}
	return doc.asItemSet()
}

func (d *Document) asRuleSet() (*RuleSet, error) {
	if d.RuleSet == nil {
		return nil, errs.NewFatal(fmt.Sprintf("expected rule document, got kind=%s", d.Kind))
	}
	return d.RuleSet, nil
}

func (d *Document) asItemSet() (*ItemSet, error) {
	if d.ItemSet == nil {
		return nil, errs.NewFatal(fmt.Sprintf("expected items document, got kind=%s", d.Kind))
	}
	return d.ItemSet, nil
}

// build 是唯一補預設值的地方：weight 省略時補 DefaultWeight，active 省略時為 true。
func (d *document) build() (*Document, error) {
	kind := RuleKind(strings.ToLower(strings.TrimSpace(d.Kind)))
	switch kind {
	case KindPersonal, KindTeam:
		if len(d.Items) > 0 {
			return nil, errs.NewFatal(fmt.Sprintf("kind %s must not declare items", kind))
		}
		rs := &RuleSet{Kind: kind, Name: strings.TrimSpace(d.Name), Rules: make([]Rule, 0, len(d.Rules))}
		for _, rd := range d.Rules {
			rs.Rules = append(rs.Rules, rd.normalize())
		}
		if err := rs.valid(); err != nil {
			return nil, err
		}
		return &Document{Kind: kind, RuleSet: rs}, nil
	case KindItems:
		if len(d.Rules) > 0 {
			return nil, errs.NewFatal("kind items must not declare rules")
		}
		is := &ItemSet{Name: strings.TrimSpace(d.Name), Items: append([]Item(nil), d.Items...)}
		if err := is.valid(); err != nil {
			return nil, err
		}
		return &Document{Kind: kind, ItemSet: is}, nil
	default:
		return nil, errs.NewFatal(fmt.Sprintf("unknown document kind: %q", d.Kind))
	}
}

func (rd ruleDoc) normalize() Rule {
	w := DefaultWeight
	if rd.Weight != nil {
		w = *rd.Weight
	}
	active := true
	if rd.Active != nil {
		active = *rd.Active
	}
	return Rule{
		ID:          rd.ID,
		Name:        strings.TrimSpace(rd.Name),
		Summary:     strings.TrimSpace(rd.Summary),
		Description: rd.Description,
		Weight:      w,
		Active:      active,
		Restrict:    rd.Restrict,
		Require:     rd.Require,
		Reduce:      rd.Reduce,
	}
}

// valid 執行最基本的規則檢查；與物品的交叉檢查在 catalog。
func (rs *RuleSet) valid() error {
	if len(rs.Rules) == 0 {
		return errs.NewFatal(fmt.Sprintf("rule set %q: empty rules", rs.Name))
	}
	seen := make(map[RuleID]struct{}, len(rs.Rules))
	for _, r := range rs.Rules {
		if _, ok := seen[r.ID]; ok {
			return errs.NewWithExtra(errs.Fatal, "duplicate rule id", fmt.Sprintf("set=%s id=%d", rs.Name, r.ID))
		}
		seen[r.ID] = struct{}{}
		if r.Name == "" {
			return errs.NewWithExtra(errs.Fatal, "rule name required", fmt.Sprintf("set=%s id=%d", rs.Name, r.ID))
		}
		if !(r.Weight > 0) || math.IsInf(r.Weight, 0) {
			return errs.NewWithExtra(errs.Fatal, "rule weight must be a positive finite number", fmt.Sprintf("set=%s id=%d weight=%v", rs.Name, r.ID, r.Weight))
		}
		for _, m := range []map[ItemID]int{r.Restrict, r.Require, r.Reduce} {
			for item, q := range m {
				if q < 0 {
					return errs.NewWithExtra(errs.Fatal, "negative item quantity in rule", fmt.Sprintf("set=%s id=%d item=%d", rs.Name, r.ID, item))
				}
			}
		}
	}
	return nil
}

func (is *ItemSet) valid() error {
	seen := make(map[ItemID]struct{}, len(is.Items))
	for _, it := range is.Items {
		if _, ok := seen[it.ID]; ok {
			return errs.NewWithExtra(errs.Fatal, "duplicate item id", fmt.Sprintf("set=%s id=%d", is.Name, it.ID))
		}
		seen[it.ID] = struct{}{}
		if strings.TrimSpace(it.Name) == "" {
			return errs.NewWithExtra(errs.Fatal, "item name required", fmt.Sprintf("set=%s id=%d", is.Name, it.ID))
		}
		if it.Min < 0 || it.Max < it.Min {
			return errs.NewWithExtra(errs.Fatal, "item range must satisfy 0 <= min <= max", fmt.Sprintf("set=%s id=%d min=%d max=%d", is.Name, it.ID, it.Min, it.Max))
		}
	}
	return nil
}
