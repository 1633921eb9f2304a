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
	"net/http"

	"github.com/zintix-labs/rulewheel/dto"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/constraint"
	"github.com/zintix-labs/rulewheel/server/httperr"
	"github.com/zintix-labs/rulewheel/spec"
)

// Rules GET /v1/rules[?kind=personal|team]
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	cat := h.lab.Catalog()
	v := dto.CatalogView{Entries: cat.Entries()}
	switch k := r.URL.Query().Get("kind"); k {
	case "":
		v.Personal = cat.Rules(spec.KindPersonal)
		v.Team = cat.Rules(spec.KindTeam)
	default:
		kind, ok := spec.ParseKind(k)
		if !ok {
			h.fail(w, "v1.rules", errs.Warnf("unknown kind %q", k))
			return
		}
		if kind == spec.KindPersonal {
			v.Personal = cat.Rules(kind)
		} else {
			v.Team = cat.Rules(kind)
		}
	}
	httperr.JSON(w, http.StatusOK, v)
}

// Items GET /v1/items
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	httperr.JSON(w, http.StatusOK, dto.ItemsView{Items: h.lab.Catalog().Items()})
}

// Resolve POST /v1/resolve：無狀態的物品計算。
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	req, err := dto.DecodeResolve(r)
	if err != nil {
		h.fail(w, "v1.resolve", err)
		return
	}
	cat := h.lab.Catalog()
	rules := make([]spec.Rule, 0, len(req.Personal)+len(req.Team))
	for _, set := range []struct {
		kind spec.RuleKind
		ids  []spec.RuleID
	}{{spec.KindPersonal, req.Personal}, {spec.KindTeam, req.Team}} {
		all := cat.Rules(set.kind)
		for _, id := range set.ids {
			idx := spec.IndexOf(all, id)
			if idx < 0 {
				h.fail(w, "v1.resolve", errs.Warnf("unknown %s rule %d", set.kind, id))
				return
			}
			rules = append(rules, all[idx])
		}
	}
	items := req.Items
	if len(items) == 0 {
		items = cat.Items()
	}
	httperr.JSON(w, http.StatusOK, dto.ResolveView{Items: dto.NewItemViews(constraint.Resolve(items, rules))})
}
