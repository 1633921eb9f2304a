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

package svrcfg

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/server/logger"
	"github.com/zintix-labs/rulewheel/session"
)

const (
	DefaultAddr     = ":5808"
	DefaultSimSpins = 100_000
	MaxSimSpins     = 1_000_000
	DefaultSpinWait = 30 * time.Second
)

type SvrCfg struct {
	Log         *slog.Logger
	Addr        string
	Players     int // 每個新 session 的玩家數，1..8
	MaxSessions int
	SimMaxSpins int
	SpinWait    time.Duration // ?wait=1 最長等多久
	Lab         *rulewheel.Lab
}

func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if sc.Players <= 0 {
		sc.Players = session.DefaultPlayers
	}
	sc.Players = min(session.MaxPlayers, sc.Players)
	if sc.MaxSessions <= 0 {
		sc.MaxSessions = session.DefaultMaxSessions
	}
	if sc.SimMaxSpins <= 0 {
		sc.SimMaxSpins = DefaultSimSpins
	}
	sc.SimMaxSpins = min(MaxSimSpins, sc.SimMaxSpins)
	if sc.SpinWait <= 0 {
		sc.SpinWait = DefaultSpinWait
	}
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}
	return nil
}

// Env 可由環境變數覆寫的啟動參數（RULEWHEEL_ 前綴）。
// 欄位初值由呼叫端（通常是 flag）先填好，環境變數有設才覆寫。
type Env struct {
	Addr        string        `env:"ADDR"`
	LogMode     string        `env:"LOG_MODE"`
	Players     int           `env:"PLAYERS"`
	Configs     string        `env:"CONFIGS"`
	MaxSessions int           `env:"MAX_SESSIONS"`
	SimMaxSpins int           `env:"SIM_MAX_SPINS"`
	SpinWait    time.Duration `env:"SPIN_WAIT"`
}

// LoadEnv 以 RULEWHEEL_ 前綴讀取環境變數覆寫 e。
func (e *Env) LoadEnv() error {
	if err := env.ParseWithOptions(e, env.Options{Prefix: "RULEWHEEL_"}); err != nil {
		return errs.WrapAs(errs.Fatal, err, "parse environment")
	}
	return nil
}

// LoadEnvFrom 與 LoadEnv 相同，但從給定的 map 讀取（測試用）。
func (e *Env) LoadEnvFrom(vars map[string]string) error {
	if err := env.ParseWithOptions(e, env.Options{Prefix: "RULEWHEEL_", Environment: vars}); err != nil {
		return errs.WrapAs(errs.Fatal, err, "parse environment")
	}
	return nil
}

// Apply 把 Env 的數值帶進 SvrCfg（不含 logger 與 Lab）。
func (e *Env) Apply(sc *SvrCfg) {
	sc.Addr = e.Addr
	sc.Players = e.Players
	sc.MaxSessions = e.MaxSessions
	sc.SimMaxSpins = e.SimMaxSpins
	sc.SpinWait = e.SpinWait
}
