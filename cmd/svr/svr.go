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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/demo/demo_configs"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/server"
	"github.com/zintix-labs/rulewheel/server/logger"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
)

// 旗標給預設值，RULEWHEEL_* 環境變數可覆寫旗標。
func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := server.Run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(args []string) (*svrcfg.SvrCfg, error) {
	e := svrcfg.Env{
		Addr:        svrcfg.DefaultAddr,
		SimMaxSpins: svrcfg.DefaultSimSpins,
		SpinWait:    svrcfg.DefaultSpinWait,
	}
	fset := flag.NewFlagSet("svr", flag.ContinueOnError)
	fset.StringVar(&e.LogMode, "log-mode", "dev", "log mode: dev|prod|silence")
	fset.StringVar(&e.Addr, "addr", e.Addr, "listen address")
	fset.IntVar(&e.Players, "players", 4, "players per new session (1..8)")
	fset.StringVar(&e.Configs, "configs", "", "config directory (empty: built-in demo configs)")
	fset.IntVar(&e.MaxSessions, "max-sessions", 0, "max live sessions (0: default)")
	fset.IntVar(&e.SimMaxSpins, "sim-max", e.SimMaxSpins, "max spins per /v1/sim request")
	fset.DurationVar(&e.SpinWait, "spin-wait", e.SpinWait, "max wait for ?wait=1 spins")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}
	if err := e.LoadEnv(); err != nil {
		return nil, err
	}

	mode, err := logger.ParseMode(e.LogMode)
	if err != nil {
		return nil, err
	}
	log, _ := logger.NewAsync(4096, mode)

	cfgs := rulewheel.Configs(demo_configs.FS)
	if e.Configs != "" {
		cfgs = rulewheel.Configs(os.DirFS(e.Configs))
	}
	lab, err := rulewheel.New(core.Default(), cfgs)
	if err != nil {
		return nil, err
	}
	sCfg := &svrcfg.SvrCfg{Log: log, Lab: lab}
	e.Apply(sCfg)
	return sCfg, nil
}
