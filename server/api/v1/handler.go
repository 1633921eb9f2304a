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

// Package v1 是 /v1 底下的 HTTP handlers。
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/server/httperr"
	"github.com/zintix-labs/rulewheel/server/netsvr"
	"github.com/zintix-labs/rulewheel/server/svrcfg"
	"github.com/zintix-labs/rulewheel/session"
	"github.com/zintix-labs/rulewheel/spec"
)

// Handler 持有 /v1 需要的所有依賴。
type Handler struct {
	lab      *rulewheel.Lab
	store    *session.Store
	log      *slog.Logger
	spinWait time.Duration
	simMax   int
}

func NewHandler(sCfg *svrcfg.SvrCfg, store *session.Store) (*Handler, error) {
	if sCfg == nil || sCfg.Lab == nil || store == nil {
		return nil, errs.NewFatal("v1 handler needs lab and session store")
	}
	return &Handler{
		lab:      sCfg.Lab,
		store:    store,
		log:      sCfg.Log,
		spinWait: sCfg.SpinWait,
		simMax:   sCfg.SimMaxSpins,
	}, nil
}

// Register 把所有 /v1 路由掛到 r 上。
func (h *Handler) Register(r netsvr.NetRouter) {
	r.Get("/rules", h.Rules)
	r.Get("/items", h.Items)
	r.Post("/resolve", h.Resolve)

	r.Get("/sim", h.Sim)
	r.Post("/sim", h.Sim)

	r.Post("/sessions", h.CreateSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Delete("/sessions/{id}", h.DeleteSession)
	r.Put("/sessions/{id}/players/{idx}", h.RenamePlayer)
	r.Post("/sessions/{id}/rules/{kind}/{rid}/toggle", h.ToggleRule)
	r.Post("/sessions/{id}/rules/{kind}/all", h.ActivateAll)
	r.Post("/sessions/{id}/rules/{kind}/none", h.DeactivateAll)
	r.Post("/sessions/{id}/spin", h.SpinAll)
	r.Post("/sessions/{id}/wheels/{wheel}/spin", h.Spin)
	r.Post("/sessions/{id}/wheels/{wheel}/settle", h.Settle)
	r.Get("/sessions/{id}/items", h.SessionItems)
	r.Get("/sessions/{id}/state", h.State)
}

// fail 寫回錯誤並記錄值得注意的錯誤。
func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	httperr.Log(h.log, msg, err)
	httperr.Errs(w, err)
}

func (h *Handler) session(r *http.Request) (*session.Session, error) {
	return h.store.Get(netsvr.Param(r, "id"))
}

func kindParam(r *http.Request) (spec.RuleKind, error) {
	k, ok := spec.ParseKind(netsvr.Param(r, "kind"))
	if !ok {
		return "", session.ErrBadKind
	}
	return k, nil
}

func wheelParam(r *http.Request) (session.Wheel, error) {
	w, ok := session.ParseWheel(netsvr.Param(r, "wheel"))
	if !ok {
		return 0, session.ErrNoWheel
	}
	return w, nil
}

func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(netsvr.Param(r, name))
	if err != nil {
		return 0, errs.Warnf("%s must be an integer", name)
	}
	return n, nil
}

// wantWait ?wait=1 / true。
func wantWait(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	return v
}

// waitCtx 等待停轉的 context：請求取消或超過 spinWait 都會結束。
func (h *Handler) waitCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.spinWait)
}
