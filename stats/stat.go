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

// Package stats 把大量模擬 spin 的結果整理成報表：
// 每條規則的實際命中比例 vs 權重期望、卡方適合度檢定、停轉所需 tick 與時間的分佈。
package stats

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/rulewheel/spec"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// Confidence 比例信賴區間的信心水準。
const Confidence = 0.95

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo" yaml:"lo"`
	Hi float64 `json:"Hi" yaml:"hi"`
}

// SpinReport 一批模擬 spin 的統計報告。
type SpinReport struct {
	Summary *SummaryReport `json:"Summary" yaml:"summary"`
	Rules   []RuleShare    `json:"Rules"   yaml:"rules"`
	Fit     *FitReport     `json:"Fit"     yaml:"fit"`
	Rest    *RestReport    `json:"Rest"    yaml:"rest"`

	ticks  []float64
	isDone bool
}

type SummaryReport struct {
	Kind    spec.RuleKind `json:"Kind"    yaml:"kind"`
	Spins   int           `json:"Spins"   yaml:"spins"`
	Rules   int           `json:"Rules"   yaml:"rules"`
	Seed    int64         `json:"Seed"    yaml:"seed"`
	Workers int           `json:"Workers" yaml:"workers"`
	TickHz  float64       `json:"TickHz"  yaml:"tick_hz"`
}

// RuleShare 單一規則的命中統計。
type RuleShare struct {
	ID       spec.RuleID `json:"ID"       yaml:"id"`
	Name     string      `json:"Name"     yaml:"name"`
	Weight   float64     `json:"Weight"   yaml:"weight"`
	Hits     int         `json:"Hits"     yaml:"hits"`
	Observed float64     `json:"Observed" yaml:"observed"`
	Expected float64     `json:"Expected" yaml:"expected"`
	CI       CI          `json:"CI"       yaml:"ci"`
}

// FitReport Pearson 卡方適合度檢定：H0 = 命中比例等於權重比例。
type FitReport struct {
	ChiSquare float64 `json:"ChiSquare" yaml:"chi_square"`
	DoF       int     `json:"DoF"       yaml:"dof"`
	PValue    float64 `json:"PValue"    yaml:"p_value"`
}

// RestReport 從起轉到停下的 tick 數與（虛擬）秒數。
type RestReport struct {
	MeanTicks   float64 `json:"MeanTicks"   yaml:"mean_ticks"`
	StdTicks    float64 `json:"StdTicks"    yaml:"std_ticks"`
	P50Ticks    float64 `json:"P50Ticks"    yaml:"p50_ticks"`
	P95Ticks    float64 `json:"P95Ticks"    yaml:"p95_ticks"`
	MaxTicks    float64 `json:"MaxTicks"    yaml:"max_ticks"`
	MeanSeconds float64 `json:"MeanSeconds" yaml:"mean_seconds"`
	StdSeconds  float64 `json:"StdSeconds"  yaml:"std_seconds"`
}

// NewSpinReport 以命中次數與每次 spin 的 tick 數建立報表；rules 與 hits 一一對應。
//
// 統計量在 Done 時一次計算。
func NewSpinReport(sum SummaryReport, rules []spec.Rule, hits []int, ticks []float64) *SpinReport {
	r := &SpinReport{
		Summary: &sum,
		Rules:   make([]RuleShare, len(rules)),
		Fit:     &FitReport{},
		Rest:    &RestReport{},
		ticks:   ticks,
	}
	for i, rule := range rules {
		r.Rules[i] = RuleShare{ID: rule.ID, Name: rule.Name, Weight: rule.Weight}
		if i < len(hits) {
			r.Rules[i].Hits = hits[i]
		}
	}
	r.Summary.Rules = len(rules)
	return r
}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 計算比例、信賴區間、卡方檢定與停轉分佈，只會執行一次。
func (s *SpinReport) Done() {
	if s.isDone {
		return
	}
	total := 0.0
	for _, r := range s.Rules {
		total += r.Weight
	}
	n := 0
	for _, r := range s.Rules {
		n += r.Hits
	}
	s.Summary.Spins = n

	for i := range s.Rules {
		r := &s.Rules[i]
		if total > 0 {
			r.Expected = r.Weight / total
		}
		r.Observed, r.CI = proportionCICP(r.Hits, n, Confidence)
	}
	*s.Fit = chiSquareFit(s.Rules, n)
	s.rest()
	s.isDone = true
}

func (s *SpinReport) rest() {
	if len(s.ticks) == 0 {
		return
	}
	sorted := slices.Clone(s.ticks)
	slices.Sort(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	s.Rest.MeanTicks = mean
	s.Rest.StdTicks = std
	s.Rest.P50Ticks = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	s.Rest.P95Ticks = stat.Quantile(0.95, stat.Empirical, sorted, nil)
	s.Rest.MaxTicks = sorted[len(sorted)-1]
	if s.Summary.TickHz > 0 {
		s.Rest.MeanSeconds = mean / s.Summary.TickHz
		s.Rest.StdSeconds = std / s.Summary.TickHz
	}
}

// Consistent 在顯著水準 alpha 下是否無法拒絕「命中比例等於權重比例」。
func (s *SpinReport) Consistent(alpha float64) bool {
	s.Done()
	return s.Fit.PValue >= alpha
}

func (s *SpinReport) WriteWith(w io.Writer, rep SpinReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 印出摘要表與每條規則的比例表。
func (s *SpinReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.Spins)
	sk, sm := s.fmtBasic()
	fmt.Println(fmtTable(fmt.Sprintf("%s wheel", s.Summary.Kind), sk, sm))
	fmt.Println(fmtRules(s.Rules))
}

// ============================================================
// ** 內部統計函數 **
// ============================================================

// chiSquareFit 只計入期望比例 > 0 的格子；自由度 = 格數 - 1。
func chiSquareFit(rules []RuleShare, n int) FitReport {
	fit := FitReport{PValue: 1}
	if n == 0 {
		return fit
	}
	k := 0
	for _, r := range rules {
		exp := r.Expected * float64(n)
		if exp <= 0 {
			continue
		}
		d := float64(r.Hits) - exp
		fit.ChiSquare += d * d / exp
		k++
	}
	fit.DoF = k - 1
	if fit.DoF < 1 {
		fit.ChiSquare = 0
		return fit
	}
	fit.PValue = distuv.ChiSquared{K: float64(fit.DoF)}.Survival(fit.ChiSquare)
	return fit
}

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

// ============================================================
// ** 輸出函數 **
// ============================================================

func formatDuration(d time.Duration, spins int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	sps := int(float64(spins) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nsps : %d spins/sec\n", sec, sps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		p.Printf("used: %dm %ds\nsps : %d spins/sec\n", m, s, sps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nsps : %d spins/sec\n", h, m, s, sps)
}

func (s *SpinReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	verdict := "consistent"
	if !(s.Fit.PValue >= 0.01) {
		verdict = "biased"
	}
	basic := map[string]string{
		"Wheel":       p.Sprintf("%s", s.Summary.Kind),
		"Rules":       p.Sprintf("%d", s.Summary.Rules),
		"Total Spins": p.Sprintf("%d", s.Summary.Spins),
		"Seed":        fmt.Sprintf("%d", s.Summary.Seed),
		"Workers":     p.Sprintf("%d", s.Summary.Workers),
		"Chi-Square":  p.Sprintf("%.3f (dof %d)", s.Fit.ChiSquare, s.Fit.DoF),
		"P-Value":     p.Sprintf("%.4f (%s)", s.Fit.PValue, verdict),
		"Mean Ticks":  p.Sprintf("%.1f ± %.1f", s.Rest.MeanTicks, s.Rest.StdTicks),
		"P95 Ticks":   p.Sprintf("%.0f", s.Rest.P95Ticks),
		"Mean Spin":   p.Sprintf("%.2f s", s.Rest.MeanSeconds),
	}
	keys := []string{"Wheel", "Rules", "Total Spins", "Seed", "Workers", "Chi-Square", "P-Value", "Mean Ticks", "P95 Ticks", "Mean Spin"}
	return keys, basic
}

// fmtRules 每條規則一列：名稱、命中、實際比例與信賴區間、期望比例。
func fmtRules(rules []RuleShare) string {
	p := message.NewPrinter(lang)
	keys := make([]string, len(rules))
	msg := make(map[string]string, len(rules))
	for i, r := range rules {
		k := fmt.Sprintf("#%d %s", r.ID, r.Name)
		keys[i] = k
		msg[k] = p.Sprintf("%d hits  %.2f%% [%.2f%%, %.2f%%]  exp %.2f%%",
			r.Hits, 100*r.Observed, 100*r.CI.Lo, 100*r.CI.Hi, 100*r.Expected)
	}
	return fmtTable("Rule Shares", keys, msg)
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := max(0, (totalInner-titleW)/2)
	right := max(0, totalInner-titleW-left)

	fmtStr := top
	fmtStr += p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	fmtStr += divider
	for _, k := range keys {
		fmtStr += p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	fmtStr += divider

	return fmtStr
}

func blank(w int) string {
	if w <= 0 {
		return ""
	}
	return strings.Repeat(" ", w)
}
