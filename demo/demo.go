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

// Package demo 以內建的示範設定檔組出可直接使用的 Lab 與伺服器設定。
package demo

import (
	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/demo/demo_configs"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/server/logger"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
)

func NewCatalog() (*catalog.Catalog, error) {
	return catalog.Load(demo_configs.FS)
}

func NewLab() (*rulewheel.Lab, error) {
	return rulewheel.New(core.Default(), rulewheel.Configs(demo_configs.FS))
}

// NewServerConfig 預設值的伺服器設定，其餘欄位交給 SvrCfg.Valid 補齊。
func NewServerConfig() (*svrcfg.SvrCfg, error) {
	lab, err := NewLab()
	if err != nil {
		return nil, errs.WrapAs(errs.Fatal, err, "new demo lab failed")
	}
	scfg := &svrcfg.SvrCfg{
		Log: logger.NewDefaultAsyncLogger(logger.ModeDev),
		Lab: lab,
	}
	return scfg, scfg.Valid()
}
