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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/server/api"
	"github.com/zintix-labs/rulewheel/server/app"
	"github.com/zintix-labs/rulewheel/server/netsvr"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
	"github.com/zintix-labs/rulewheel/session"
)

// Run 是 server 套件的啟動入口：
//  1. 驗證 SvrCfg。
//  2. 建立 HTTP server 與 session 表。
//  3. 註冊路由並交給 app 管理生命週期，直到收到終止信號。
func Run(sCfg *svrcfg.SvrCfg) error {
	if err := sCfg.Valid(); err != nil {
		// logger 可能還不能用
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	svr := netsvr.NewChiServer(sCfg.Addr, sCfg.SpinWait+10*time.Second)
	return RunWithSvr(sCfg, svr)
}

// RunWithSvr 與 Run 相同，但由呼叫端注入 NetSvr（例如掛在既有的服務底下）。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) error {
	if err := sCfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	if svr == nil {
		return errs.NewFatal("svr is required")
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		return errs.NewFatal("default server is not ready")
	}

	store, err := NewStore(sCfg)
	if err != nil {
		return err
	}
	if err := api.RegisterRoutes(svr, sCfg, store); err != nil {
		store.Close()
		return err
	}

	storeComp := app.NewFunc(func(context.Context) error {
		store.Shutdown("server shutdown")
		return nil
	})
	a := app.NewWith(storeComp, svr).WithLogger(sCfg.Log)

	attrs := append(sCfg.Lab.LogAttrs(), slog.String("addr", sCfg.Addr), slog.Int("players", sCfg.Players))
	sCfg.Log.LogAttrs(context.Background(), slog.LevelInfo, "rulewheel.listening", attrs...)
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
		return err
	}
	return nil
}

// NewStore 依 SvrCfg 建立 session 表（每桌玩家數、logger 由設定帶入）。
func NewStore(sCfg *svrcfg.SvrCfg) (*session.Store, error) {
	return sCfg.Lab.NewStore(session.Options{
		Players: sCfg.Players,
		Logger:  sCfg.Log,
	}, sCfg.MaxSessions)
}
