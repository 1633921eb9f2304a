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
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/server/httperr"
	"github.com/zintix-labs/rulewheel/spec"
	"github.com/zintix-labs/rulewheel/stats"
)

const defaultSimWorkers = 1

// Sim GET|POST /v1/sim：在伺服器上跑離線模擬，回傳統計報表。
func (h *Handler) Sim(w http.ResponseWriter, r *http.Request) {
	// 內部結構 不影響外部 也不被外部使用
	type SimResponse struct {
		Stats    *stats.SpinReport `json:"stats"`
		UsedTime int64             `json:"used_ms"`
	}

	req, err := dto.DecodeSimRequest(r)
	if err != nil {
		h.fail(w, "v1.sim", err)
		return
	}
	if req.Spins > h.simMax {
		h.fail(w, "v1.sim", errs.Warnf("spins must be between 1 and %d", h.simMax))
		return
	}
	kind, _ := spec.ParseKind(req.Kind)
	workers := req.Workers
	if workers == 0 {
		workers = defaultSimWorkers
	}
	seed := core.NewSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}

	sim := h.lab.NewSimulatorWithSeed(seed)
	report, used, err := sim.SimMP(kind, req.Spins, workers, false)
	if err != nil {
		h.fail(w, "v1.sim", err)
		return
	}
	h.log.Info("v1.sim",
		slog.String("kind", string(kind)),
		slog.Int("spins", req.Spins),
		slog.Int64("seed", seed),
		slog.Float64("p_value", report.Fit.PValue),
		slog.Duration("used", used),
	)
	httperr.JSON(w, http.StatusOK, SimResponse{Stats: report, UsedTime: used.Milliseconds()})
}
