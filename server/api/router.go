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

package api

import (
	"log/slog"
	"net/http"

	v1 "github.com/zintix-labs/rulewheel/server/api/v1"
	"github.com/zintix-labs/rulewheel/server/httperr"
	"github.com/zintix-labs/rulewheel/server/netsvr"
	"github.com/zintix-labs/rulewheel/server/netsvr/middleware"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
	"github.com/zintix-labs/rulewheel/session"
)

// RegisterRoutes 註冊 middleware、首頁與 /v1。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, store *session.Store) error {
	registerMiddleware(svr, sCfg.Log)
	registerIndex(svr, store)
	return registerV1API(svr, sCfg, store)
}

func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover)
	svr.Use(middleware.Compression)
}

// 首頁：健康檢查 + 目前的 session 數
func registerIndex(svr netsvr.NetSvr, store *session.Store) {
	svr.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httperr.JSON(w, http.StatusOK, map[string]any{
			"service":  "rulewheel",
			"api":      "/v1",
			"sessions": store.Len(),
			"closed":   store.Closed(),
		})
	})
}

func registerV1API(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg, store *session.Store) error {
	h, err := v1.NewHandler(sCfg, store)
	if err != nil {
		return err
	}
	svr.Group("/v1", h.Register)
	return nil
}
