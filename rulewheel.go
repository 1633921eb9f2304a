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

// Package rulewheel 提供規則輪盤的「組裝入口（assembler）」。
//
// Lab 把兩個必需的地基組裝在一起：
//  1. Catalog：規則與物品目錄，設定檔來源一律以 fs.FS 注入（go:embed 或 os.DirFS）。
//  2. PRNGFactory：亂數核心工廠，同一個 seed 產生同一串 spin。
//
// 由 Lab 建出 Session（互動用，真實時間驅動）與 Simulator（離線大量模擬，虛擬時鐘）。
package rulewheel

import (
	"io/fs"
	"log/slog"

	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/session"
	"github.com/zintix-labs/rulewheel/spec"
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 持有凍結後的 Catalog、亂數工廠與輪盤物理參數。建立後唯讀，可在多個 goroutine 共用。
type Lab struct {
	cat  *catalog.Catalog
	cf   core.PRNGFactory
	phys wheel.Physics
}

// LabOption 調整 Lab 的預設值。
type LabOption func(*Lab)

// WithPhysics 換掉預設的輪盤物理參數。
func WithPhysics(p wheel.Physics) LabOption {
	return func(l *Lab) { l.phys = p }
}

// New 建立 Lab：讀入所有設定檔、交叉檢查後凍結 Catalog。
//
// cf 不能為 nil；cfgs 至少一個。
func New(cf core.PRNGFactory, cfgs []fs.FS, opts ...LabOption) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cat, err := catalog.Load(cfgs...)
	if err != nil {
		return nil, err
	}
	lab := &Lab{cat: cat, cf: cf, phys: wheel.DefaultPhysics()}
	for _, o := range opts {
		o(lab)
	}
	if err := lab.phys.Valid(); err != nil {
		return nil, errs.WrapAs(errs.Fatal, err, "invalid wheel physics")
	}
	return lab, nil
}

func (l *Lab) Catalog() *catalog.Catalog {
	return l.cat
}

func (l *Lab) Physics() wheel.Physics {
	return l.phys
}

func (l *Lab) Entries() []catalog.Entry {
	return l.cat.Entries()
}

// sessionOptions 把 Lab 的亂數工廠與物理參數套到 opt 上（呼叫端有給的優先）。
func (l *Lab) sessionOptions(opt session.Options) session.Options {
	if opt.CoreFactory == nil {
		opt.CoreFactory = l.cf
	}
	if opt.Physics == (wheel.Physics{}) {
		opt.Physics = l.phys
	}
	return opt
}

// NewSession 建立一個獨立的 session（不進 Store）。
func (l *Lab) NewSession(opt session.Options) (*session.Session, error) {
	return session.New(l.cat, l.sessionOptions(opt))
}

// NewStore 建立 session 表；opt 是每個新 session 的範本。
func (l *Lab) NewStore(opt session.Options, maxSessions int) (*session.Store, error) {
	return session.NewStore(l.cat, l.sessionOptions(opt), maxSessions)
}

// NewSimulator 以 crypto/rand 產生初始 seed。
func (l *Lab) NewSimulator() *Simulator {
	return l.NewSimulatorWithSeed(core.NewSeed())
}

// NewSimulatorWithSeed 同一個 seed、同樣的 workers 數，結果完全一致。
func (l *Lab) NewSimulatorWithSeed(seed int64) *Simulator {
	return newSimulator(l.cat, l.cf, l.phys, seed)
}

// Rules 回傳某種輪盤上目前會出現的（active）規則。
func (l *Lab) Rules(kind spec.RuleKind) ([]spec.Rule, error) {
	if kind != spec.KindPersonal && kind != spec.KindTeam {
		return nil, errs.Warnf("unknown wheel kind %q", kind)
	}
	return spec.ActiveRules(l.cat.Rules(kind)), nil
}

// LogAttrs 方便在啟動時印出載入了什麼。
func (l *Lab) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("personal_rules", len(l.cat.Rules(spec.KindPersonal))),
		slog.Int("team_rules", len(l.cat.Rules(spec.KindTeam))),
		slog.Int("items", len(l.cat.Items())),
		slog.Int("configs", len(l.cat.Entries())),
	}
}
