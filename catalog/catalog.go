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

// Package catalog 把一或多個設定檔來源（fs.FS）整理成單一的規則/物品目錄。
//
// 目錄是整個程式的 Single Source of Truth：
//   - personal 規則（所有個人輪盤共用）
//   - team 規則（隊伍輪盤）
//   - 物品目錄（items to bring 的計算基礎）
//
// 載入是原子性的：全部檔案都解析並通過交叉檢查後才寫入，任何錯誤都直接失敗。
package catalog

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

var (
	ErrDupRule = errs.NewFatal("duplicate rule id")
	ErrDupItem = errs.NewFatal("duplicate item id")
)

// Entry 記錄一份設定檔載入了什麼。
type Entry struct {
	ConfigName string        `json:"config"`
	Kind       spec.RuleKind `json:"kind"`
	Name       string        `json:"name"`
	Count      int           `json:"count"`
}

type Catalog struct {
	personal []spec.Rule
	team     []spec.Rule
	items    []spec.Item
	entries  []Entry
	config   *multiFS
	frozen   bool
}

func New(cfg ...fs.FS) (*Catalog, error) {
	multFS, err := newMultiFS(cfg...)
	if err != nil {
		return nil, errs.Wrap(err, "can not create catalog")
	}
	return &Catalog{config: multFS}, nil
}

// Load 建立 catalog 並立刻 LoadAll + Freeze。
func Load(cfg ...fs.FS) (*Catalog, error) {
	c, err := New(cfg...)
	if err != nil {
		return nil, err
	}
	if err := c.LoadAll(); err != nil {
		return nil, err
	}
	c.Freeze()
	return c, nil
}

// LoadAll
//
// 依檔名排序後逐一解析所有 .yaml/.yml/.json，合併成目錄。
//  1. Fail-fast：任何一個檔案讀取/解析/檢查失敗都立刻回傳 error。
//  2. 原子性：全部成功後才寫入 Catalog，不會留下半完成的狀態。
//  3. 交叉檢查：規則的 restrict/require/reduce 只能引用物品目錄中存在的 id。
func (c *Catalog) LoadAll() error {
	if c.frozen {
		return errs.NewWarn("can not load when catalog already frozen")
	}
	var (
		personal []spec.Rule
		team     []spec.Rule
		items    []spec.Item
		entries  []Entry
	)
	for _, name := range c.config.Names() {
		src, _ := c.config.GetFS(name)
		raw, err := fs.ReadFile(src, name)
		if err != nil {
			return errs.WrapWithExtra(err, "read config failed", name)
		}
		doc, err := spec.GetDocumentByExt(name, raw)
		if err != nil {
			return errs.WrapWithExtra(err, "parse config failed", name)
		}
		switch doc.Kind {
		case spec.KindPersonal:
			personal = append(personal, doc.RuleSet.Rules...)
			entries = append(entries, Entry{ConfigName: name, Kind: doc.Kind, Name: doc.RuleSet.Name, Count: len(doc.RuleSet.Rules)})
		case spec.KindTeam:
			team = append(team, doc.RuleSet.Rules...)
			entries = append(entries, Entry{ConfigName: name, Kind: doc.Kind, Name: doc.RuleSet.Name, Count: len(doc.RuleSet.Rules)})
		case spec.KindItems:
			items = append(items, doc.ItemSet.Items...)
			entries = append(entries, Entry{ConfigName: name, Kind: doc.Kind, Name: doc.ItemSet.Name, Count: len(doc.ItemSet.Items)})
		}
	}

	if len(personal) == 0 {
		return errs.NewFatal("no personal rules found")
	}
	if len(team) == 0 {
		return errs.NewFatal("no team rules found")
	}
	if err := uniqueRules(personal); err != nil {
		return errs.WrapWithExtra(err, "personal rules", "")
	}
	if err := uniqueRules(team); err != nil {
		return errs.WrapWithExtra(err, "team rules", "")
	}
	known := make(map[spec.ItemID]struct{}, len(items))
	for _, it := range items {
		if _, ok := known[it.ID]; ok {
			return errs.WrapWithExtra(ErrDupItem, "items", fmt.Sprintf("id=%d", it.ID))
		}
		known[it.ID] = struct{}{}
	}
	for _, rules := range [][]spec.Rule{personal, team} {
		if err := knownItems(rules, known); err != nil {
			return err
		}
	}

	c.personal = personal
	c.team = team
	c.items = items
	c.entries = entries
	return nil
}

func uniqueRules(rules []spec.Rule) error {
	seen := make(map[spec.RuleID]struct{}, len(rules))
	for _, r := range rules {
		if _, ok := seen[r.ID]; ok {
			return errs.WrapWithExtra(ErrDupRule, "rule id collides across files", fmt.Sprintf("id=%d", r.ID))
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func knownItems(rules []spec.Rule, known map[spec.ItemID]struct{}) error {
	for _, r := range rules {
		for _, m := range []map[spec.ItemID]int{r.Restrict, r.Require, r.Reduce} {
			for id := range m {
				if _, ok := known[id]; !ok {
					return errs.NewWithExtra(errs.Fatal, "rule references unknown item", fmt.Sprintf("rule=%d item=%d", r.ID, id))
				}
			}
		}
	}
	return nil
}

// Rules 回傳指定種類的規則副本（呼叫端可自由 copy-on-write）。
func (c *Catalog) Rules(kind spec.RuleKind) []spec.Rule {
	switch kind {
	case spec.KindPersonal:
		return append([]spec.Rule(nil), c.personal...)
	case spec.KindTeam:
		return append([]spec.Rule(nil), c.team...)
	default:
		return nil
	}
}

func (c *Catalog) Items() []spec.Item {
	return append([]spec.Item(nil), c.items...)
}

func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Freeze() {
	c.frozen = true
}

func (c *Catalog) IsFrozen() bool {
	return c.frozen
}

type multiFS struct {
	src   []fs.FS
	index map[string]int // name -> src index
}

func newMultiFS(src ...fs.FS) (*multiFS, error) {
	if len(src) == 0 {
		return nil, errs.NewFatal("no fs provided")
	}
	for i, s := range src {
		if s == nil {
			return nil, errs.NewFatal(fmt.Sprintf("fs[%d] is nil", i))
		}
	}

	m := &multiFS{
		src:   src,
		index: make(map[string]int, 16),
	}

	for i := 0; i < len(src); i++ {
		err := fs.WalkDir(src[i], ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				// configs 必須是扁平目錄，只允許根目錄 "."
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("config FS must be flat (no subdirectories): %q", path))
			}
			if strings.HasPrefix(path, ".") {
				return nil
			}
			// 只收 yaml/json，其餘檔案（README、.go）忽略
			if !isConfigName(path) {
				return nil
			}
			if prev, ok := m.index[path]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate config %q in fs[%d] and fs[%d]", path, prev, i))
			}
			m.index[path] = i
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if len(m.index) == 0 {
		return nil, errs.NewFatal("no config files found")
	}
	return m, nil
}

func isConfigName(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") || strings.HasSuffix(lower, ".json")
}

func (m *multiFS) GetFS(name string) (fs.FS, bool) {
	if id, ok := m.index[name]; ok {
		return m.src[id], ok
	}
	return nil, false
}

// Names 回傳排序後的設定檔名，保證載入順序穩定。
func (m *multiFS) Names() []string {
	names := make([]string, 0, len(m.index))
	for n := range m.index {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
