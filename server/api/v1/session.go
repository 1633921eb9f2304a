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

package v1

import (
	"log/slog"
	"net/http"

	"github.com/zintix-labs/rulewheel/dto"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/server/httperr"
	"github.com/zintix-labs/rulewheel/server/netsvr"
	"github.com/zintix-labs/rulewheel/session"
	"github.com/zintix-labs/rulewheel/spec"
)

// CreateSession POST /v1/sessions
//
// 帶 state 時嘗試還原；state 壞掉不算錯，直接開一桌新的（Restored=false）。
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeCreateSession(r)
	if err != nil {
		h.fail(w, "v1.session.create", err)
		return
	}
	s, restored, err := h.store.Create(req.State)
	if err != nil {
		h.fail(w, "v1.session.create", err)
		return
	}
	type created struct {
		dto.SessionView
		Restored bool `json:"restored"`
	}
	w.Header().Set("Location", "/v1/sessions/"+s.ID())
	httperr.JSON(w, http.StatusCreated, created{SessionView: s.View(), Restored: restored})
}

// GetSession GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.get", err)
		return
	}
	httperr.JSON(w, http.StatusOK, s.View())
}

// DeleteSession DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(netsvr.Param(r, "id")); err != nil {
		h.fail(w, "v1.session.delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenamePlayer PUT /v1/sessions/{id}/players/{idx}
func (h *Handler) RenamePlayer(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.rename", err)
		return
	}
	idx, err := intParam(r, "idx")
	if err != nil {
		h.fail(w, "v1.session.rename", err)
		return
	}
	req, err := dto.DecodeRename(r)
	if err != nil {
		h.fail(w, "v1.session.rename", err)
		return
	}
	if err := s.SetName(idx, req.Name); err != nil {
		h.fail(w, "v1.session.rename", err)
		return
	}
	h.wheelOK(w, s, session.Wheel(idx))
}

// ToggleRule POST /v1/sessions/{id}/rules/{kind}/{rid}/toggle
func (h *Handler) ToggleRule(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.toggle", err)
		return
	}
	kind, err := kindParam(r)
	if err != nil {
		h.fail(w, "v1.session.toggle", err)
		return
	}
	rid, err := intParam(r, "rid")
	if err != nil {
		h.fail(w, "v1.session.toggle", err)
		return
	}
	if err := s.ToggleRule(kind, spec.RuleID(rid)); err != nil {
		h.fail(w, "v1.session.toggle", err)
		return
	}
	httperr.JSON(w, http.StatusOK, s.View())
}

// ActivateAll POST /v1/sessions/{id}/rules/{kind}/all
func (h *Handler) ActivateAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, true)
}

// DeactivateAll POST /v1/sessions/{id}/rules/{kind}/none
func (h *Handler) DeactivateAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, false)
}

func (h *Handler) setAll(w http.ResponseWriter, r *http.Request, active bool) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.set_all", err)
		return
	}
	kind, err := kindParam(r)
	if err != nil {
		h.fail(w, "v1.session.set_all", err)
		return
	}
	if err := s.SetAllActive(kind, active); err != nil {
		h.fail(w, "v1.session.set_all", err)
		return
	}
	httperr.JSON(w, http.StatusOK, s.View())
}

// Spin POST /v1/sessions/{id}/wheels/{wheel}/spin[?wait=1]
//
// 已在轉動時 Started=0，不算錯誤。
func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.spin", err)
		return
	}
	wh, err := wheelParam(r)
	if err != nil {
		h.fail(w, "v1.session.spin", err)
		return
	}
	started, err := s.Spin(wh)
	if err != nil {
		h.fail(w, "v1.session.spin", err)
		return
	}
	v := dto.SpinView{}
	if started {
		v.Started = 1
	}
	if wantWait(r) {
		ctx, cancel := h.waitCtx(r)
		defer cancel()
		if err := s.WaitWheel(ctx, wh); err != nil {
			h.fail(w, "v1.session.spin_wait", err)
			return
		}
		v.Waited = true
	}
	wv, err := s.WheelView(wh)
	if err != nil {
		h.fail(w, "v1.session.spin", err)
		return
	}
	v.Wheels = []dto.WheelView{wv}
	httperr.JSON(w, http.StatusOK, v)
}

// SpinAll POST /v1/sessions/{id}/spin[?wait=1]
func (h *Handler) SpinAll(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.spin_all", err)
		return
	}
	started, err := s.SpinAll()
	if err != nil {
		h.fail(w, "v1.session.spin_all", err)
		return
	}
	v := dto.SpinView{Started: started}
	if wantWait(r) {
		ctx, cancel := h.waitCtx(r)
		defer cancel()
		if err := s.Wait(ctx); err != nil {
			h.fail(w, "v1.session.spin_wait", err)
			return
		}
		v.Waited = true
	}
	view := s.View()
	v.Wheels = append([]dto.WheelView{view.Team}, view.Players...)
	h.log.Debug("v1.session.spin_all", slog.String("session", s.ID()), slog.Int("started", started))
	httperr.JSON(w, http.StatusOK, v)
}

// Settle POST /v1/sessions/{id}/wheels/{wheel}/settle {"rule": id}
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.settle", err)
		return
	}
	wh, err := wheelParam(r)
	if err != nil {
		h.fail(w, "v1.session.settle", err)
		return
	}
	req, err := dto.DecodeSettle(r)
	if err != nil {
		h.fail(w, "v1.session.settle", err)
		return
	}
	ok, err := s.Settle(wh, req.Rule)
	if err != nil {
		h.fail(w, "v1.session.settle", err)
		return
	}
	if !ok {
		h.fail(w, "v1.session.settle", errs.Wrap(session.ErrNoRule, "rule is not on this wheel"))
		return
	}
	h.wheelOK(w, s, wh)
}

// SessionItems GET /v1/sessions/{id}/items
func (h *Handler) SessionItems(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.items", err)
		return
	}
	httperr.JSON(w, http.StatusOK, dto.ResolveView{Items: dto.NewItemViews(s.ItemsToBring())})
}

// State GET /v1/sessions/{id}/state
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.fail(w, "v1.session.state", err)
		return
	}
	enc, err := s.Encode()
	if err != nil {
		h.fail(w, "v1.session.state", err)
		return
	}
	httperr.JSON(w, http.StatusOK, dto.StateView{ID: s.ID(), State: enc})
}

func (h *Handler) wheelOK(w http.ResponseWriter, s *session.Session, wh session.Wheel) {
	v, err := s.WheelView(wh)
	if err != nil {
		h.fail(w, "v1.session.wheel", err)
		return
	}
	httperr.JSON(w, http.StatusOK, v)
}
