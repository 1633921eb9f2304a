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

// Package session 是一張「輪盤桌」的狀態：一個 team 輪盤、N 個 personal 輪盤、
// 玩家名稱、規則開關，以及由目前選中規則算出來的「要帶的東西」。
//
// 鎖的順序：Session.mu 可以在持有時呼叫 Driver 的 setter；
// Driver 的規則變更通知在它自己的派送 goroutine 上回呼 Session（此時不持有 Driver 的鎖）。
// 任何「等待輪盤停下」的動作都不能持有 Session.mu。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/dto"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/constraint"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/spec"
)

const (
	DefaultPlayers = 4
	MaxPlayers     = 8
)

var (
	ErrNoWheel  = errs.NewWarn("wheel not found")
	ErrNoRule   = errs.NewWarn("rule not found")
	ErrNoPlayer = errs.NewWarn("player not found")
	ErrBadKind  = errs.NewWarn("rule kind must be personal or team")
)

// Wheel 指定一個輪盤：Team 或玩家索引（0 起算）。
type Wheel int

const Team Wheel = -1

func (w Wheel) String() string {
	if w == Team {
		return "team"
	}
	return strconv.Itoa(int(w))
}

// ParseWheel 解析 "team" 或玩家索引。
func ParseWheel(s string) (Wheel, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "team" {
		return Team, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return Wheel(n), true
}

type Options struct {
	ID          string
	Players     int
	Physics     wheel.Physics
	CoreFactory core.PRNGFactory
	Seed        int64 // 0 表示由 crypto/rand 產生
	Logger      *slog.Logger
	DriverOpts  []wheel.DriverOption
}

func (o *Options) normalize() {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Players <= 0 {
		o.Players = DefaultPlayers
	}
	o.Players = min(o.Players, MaxPlayers)
	if o.Physics == (wheel.Physics{}) {
		o.Physics = wheel.DefaultPhysics()
	}
	if o.CoreFactory == nil {
		o.CoreFactory = core.Default()
	}
	if o.Seed == 0 {
		o.Seed = core.NewSeed()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

type Session struct {
	mu      sync.Mutex
	id      string
	created time.Time
	log     *slog.Logger

	items    []spec.Item
	personal []spec.Rule // 完整清單（含 Active 旗標），copy-on-write
	team     []spec.Rule
	names    []string
	current  map[Wheel]spec.RuleID // 指標下的規則；沒有 key 表示尚未選出

	teamDrv *wheel.Driver
	drivers []*wheel.Driver
	closed  bool
}

// New 建立 session：所有規則預設 active，玩家名稱為 "Player 1..N"。
func New(cat *catalog.Catalog, opt Options) (*Session, error) {
	if cat == nil {
		return nil, errs.NewFatal("session needs a catalog")
	}
	if !cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	opt.normalize()

	s := &Session{
		id:       opt.ID,
		created:  time.Now(),
		log:      opt.Logger.With(slog.String("session", opt.ID)),
		items:    cat.Items(),
		personal: spec.SetAllActive(cat.Rules(spec.KindPersonal), true),
		team:     spec.SetAllActive(cat.Rules(spec.KindTeam), true),
		names:    make([]string, opt.Players),
		current:  make(map[Wheel]spec.RuleID, opt.Players+1),
	}
	for i := range s.names {
		s.names[i] = fmt.Sprintf("Player %d", i+1)
	}

	newDriver := func(w Wheel, rules []spec.Rule) (*wheel.Driver, error) {
		seed := core.DeriveSeed(opt.Seed, int(w)+1)
		eng, err := wheel.NewEngine(core.New(opt.CoreFactory.New(seed)), opt.Physics)
		if err != nil {
			return nil, err
		}
		if err := eng.SetRules(spec.ActiveRules(rules)); err != nil {
			return nil, err
		}
		drvOpts := append([]wheel.DriverOption{wheel.WithLogger(s.log.With(slog.String("wheel", w.String())))}, opt.DriverOpts...)
		d := wheel.NewDriver(eng, drvOpts...)
		d.Subscribe(func(r spec.Rule) { s.onRuleChange(w, r) })
		d.OnRest(func(r spec.Rule) { s.onRuleChange(w, r) })
		return d, nil
	}

	var err error
	if s.teamDrv, err = newDriver(Team, s.team); err != nil {
		return nil, err
	}
	s.drivers = make([]*wheel.Driver, opt.Players)
	for i := range s.drivers {
		if s.drivers[i], err = newDriver(Wheel(i), s.personal); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.created }

func (s *Session) Players() int { return len(s.drivers) }

// onRuleChange 在 Driver 的派送 goroutine 上執行。
// 輪盤已停下且指標不在 r 上時（例如派送途中被 Settle 搶先），這是過期的通知，直接丟掉。
func (s *Session) onRuleChange(w Wheel, r spec.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	d, err := s.driver(w)
	if err != nil {
		return
	}
	if !d.State().Spinning {
		if cur, ok := d.CurrentRule(); !ok || cur.ID != r.ID {
			return
		}
	}
	s.current[w] = r.ID
}

// driver 呼叫前必須持有 mu。
func (s *Session) driver(w Wheel) (*wheel.Driver, error) {
	if w == Team {
		return s.teamDrv, nil
	}
	if int(w) < 0 || int(w) >= len(s.drivers) {
		return nil, ErrNoWheel
	}
	return s.drivers[w], nil
}

// wheelsOf 呼叫前必須持有 mu。
func (s *Session) wheelsOf(kind spec.RuleKind) []Wheel {
	if kind == spec.KindTeam {
		return []Wheel{Team}
	}
	out := make([]Wheel, len(s.drivers))
	for i := range out {
		out[i] = Wheel(i)
	}
	return out
}

func (s *Session) SetName(player int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player < 0 || player >= len(s.names) {
		return ErrNoPlayer
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewWarn("name required")
	}
	s.names[player] = name
	return nil
}

// ToggleRule 反轉一條規則的 Active。
func (s *Session) ToggleRule(kind spec.RuleKind, id spec.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := s.rulesOf(kind)
	if err != nil {
		return err
	}
	next, ok := spec.ToggleActive(rules, id)
	if !ok {
		return ErrNoRule
	}
	return s.applyRules(kind, next)
}

// SetAllActive 對應 All / None 按鈕。
func (s *Session) SetAllActive(kind spec.RuleKind, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules, err := s.rulesOf(kind)
	if err != nil {
		return err
	}
	return s.applyRules(kind, spec.SetAllActive(rules, active))
}

// rulesOf 呼叫前必須持有 mu。
func (s *Session) rulesOf(kind spec.RuleKind) ([]spec.Rule, error) {
	switch kind {
	case spec.KindPersonal:
		return s.personal, nil
	case spec.KindTeam:
		return s.team, nil
	default:
		return nil, ErrBadKind
	}
}

// applyRules 換上新的規則清單並同步到該種類的所有輪盤。
//
// 目前選中的規則若仍 active，停著的輪盤會重新 settle 對準它（權重分佈變了，角度也要跟著變）；
// 若已不 active 則清掉。呼叫前必須持有 mu。
func (s *Session) applyRules(kind spec.RuleKind, rules []spec.Rule) error {
	active := spec.ActiveRules(rules)
	for _, w := range s.wheelsOf(kind) {
		d, _ := s.driver(w)
		if err := d.SetRules(active); err != nil {
			return err
		}
	}
	if kind == spec.KindTeam {
		s.team = rules
	} else {
		s.personal = rules
	}
	for _, w := range s.wheelsOf(kind) {
		id, ok := s.current[w]
		if !ok {
			continue
		}
		if spec.IndexOf(active, id) < 0 {
			delete(s.current, w)
			continue
		}
		d, _ := s.driver(w)
		d.Settle(id)
	}
	return nil
}

// Spin 讓一個輪盤起轉；已在轉動時回傳 false。沒有 active 規則時回傳 wheel.ErrEmptyWheel。
func (s *Session) Spin(w Wheel) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, wheel.ErrDriverClosed
	}
	d, err := s.driver(w)
	if err != nil {
		return false, err
	}
	started, err := d.Spin()
	if started {
		s.log.Debug("session.spin", slog.String("wheel", w.String()))
	}
	return started, err
}

// SpinAll 讓所有輪盤（team + personal）起轉，回傳實際起轉的數量。
// 沒有 active 規則的輪盤會被略過；只有全部都轉不起來時才回傳錯誤。
func (s *Session) SpinAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, wheel.ErrDriverClosed
	}
	started := 0
	var firstErr error
	for _, d := range s.all() {
		ok, err := d.Spin()
		if ok {
			started++
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if started == 0 && firstErr != nil {
		return 0, firstErr
	}
	s.log.Debug("session.spin_all", slog.Int("started", started))
	return started, nil
}

// Settle 不經物理模擬直接把輪盤對準指定規則。
//
// 轉動中回傳 wheel.ErrSpinning（稍後再試），session 已關閉回傳 wheel.ErrDriverClosed；
// 規則不在這個輪盤上時回傳 false。
func (s *Session) Settle(w Wheel, id spec.RuleID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settleLocked(w, id)
}

// settleLocked 呼叫前必須持有 mu。
func (s *Session) settleLocked(w Wheel, id spec.RuleID) (bool, error) {
	if s.closed {
		return false, wheel.ErrDriverClosed
	}
	d, err := s.driver(w)
	if err != nil {
		return false, err
	}
	// 持有 mu 時輪盤不會被別人起轉，檢查之後只可能從轉動變成停下
	if d.State().Spinning {
		return false, wheel.ErrSpinning
	}
	if !d.Settle(id) {
		return false, nil
	}
	s.current[w] = id
	return true, nil
}

// all 呼叫前必須持有 mu。
func (s *Session) all() []*wheel.Driver {
	out := make([]*wheel.Driver, 0, len(s.drivers)+1)
	out = append(out, s.teamDrv)
	return append(out, s.drivers...)
}

// Wait 等到所有輪盤停下，或 ctx 結束。
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	drivers := s.all()
	s.mu.Unlock()
	for _, d := range drivers {
		if err := d.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// WaitWheel 等到單一輪盤停下。
func (s *Session) WaitWheel(ctx context.Context, w Wheel) error {
	s.mu.Lock()
	d, err := s.driver(w)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return d.Wait(ctx)
}

// selected 目前選中且仍 active 的規則：每個玩家的 personal + team。呼叫前必須持有 mu。
func (s *Session) selected() []spec.Rule {
	out := make([]spec.Rule, 0, len(s.drivers)+1)
	pick := func(rules []spec.Rule, w Wheel) {
		id, ok := s.current[w]
		if !ok {
			return
		}
		if idx := spec.IndexOf(rules, id); idx >= 0 && rules[idx].Active {
			out = append(out, rules[idx])
		}
	}
	for i := range s.drivers {
		pick(s.personal, Wheel(i))
	}
	pick(s.team, Team)
	return out
}

// ItemsToBring 依目前選中的規則計算物品清單。
func (s *Session) ItemsToBring() []constraint.ResolvedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return constraint.Resolve(s.items, s.selected())
}

// Current 回傳輪盤目前選中的規則。
func (s *Session) Current(w Wheel) (spec.Rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRule(w)
}

// currentRule 呼叫前必須持有 mu。
func (s *Session) currentRule(w Wheel) (spec.Rule, bool) {
	id, ok := s.current[w]
	if !ok {
		return spec.Rule{}, false
	}
	rules := s.personal
	if w == Team {
		rules = s.team
	}
	idx := spec.IndexOf(rules, id)
	if idx < 0 {
		return spec.Rule{}, false
	}
	return rules[idx], true
}

// View 整桌快照。
func (s *Session) View() dto.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := dto.SessionView{
		ID:            s.id,
		CreatedAt:     s.created,
		Team:          s.wheelView(Team),
		Players:       make([]dto.WheelView, len(s.drivers)),
		PersonalRules: append([]spec.Rule(nil), s.personal...),
		TeamRules:     append([]spec.Rule(nil), s.team...),
		Items:         dto.NewItemViews(constraint.Resolve(s.items, s.selected())),
	}
	for i := range s.drivers {
		v.Players[i] = s.wheelView(Wheel(i))
	}
	return v
}

// WheelView 單一輪盤快照。
func (s *Session) WheelView(w Wheel) (dto.WheelView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.driver(w); err != nil {
		return dto.WheelView{}, err
	}
	return s.wheelView(w), nil
}

// wheelView 呼叫前必須持有 mu。
func (s *Session) wheelView(w Wheel) dto.WheelView {
	d, _ := s.driver(w)
	rules := d.Rules()
	v := dto.WheelView{
		Wheel: w.String(),
		Name:  "Team",
		State: d.State(),
		Rules: len(rules),
	}
	if w != Team {
		v.Name = s.names[w]
	}
	// 空輪盤沒有扇區
	if widths, err := wheel.SectorWidths(rules); err == nil {
		v.Sectors = make([]dto.SectorView, len(rules))
		for i, r := range rules {
			v.Sectors[i] = dto.SectorView{ID: r.ID, Width: widths[i]}
		}
	}
	if r, ok := s.currentRule(w); ok {
		v.Current = &r
	}
	return v
}

// Close 停掉所有輪盤；重複呼叫安全。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	drivers := make([]*wheel.Driver, 0, len(s.drivers)+1)
	for _, d := range s.all() {
		if d != nil {
			drivers = append(drivers, d)
		}
	}
	s.mu.Unlock()
	for _, d := range drivers {
		d.Close()
	}
}
