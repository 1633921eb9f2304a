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

package session

import (
	"strings"
	"unicode/utf8"

	"github.com/zintix-labs/rulewheel/corefmt"
	"github.com/zintix-labs/rulewheel/dto"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/spec"
)

const stateVersion = 1

// sharedState 可分享狀態。只存「和預設值不同」的部分：關掉的規則、名稱、目前選中的規則。
type sharedState struct {
	V           int            `json:"v"`
	Names       []string       `json:"n,omitempty"`
	OffPersonal []spec.RuleID  `json:"op,omitempty"`
	OffTeam     []spec.RuleID  `json:"ot,omitempty"`
	Team        *spec.RuleID   `json:"t,omitempty"`
	Players     []*spec.RuleID `json:"p,omitempty"`
}

func inactiveIDs(rules []spec.Rule) []spec.RuleID {
	var out []spec.RuleID
	for _, r := range rules {
		if !r.Active {
			out = append(out, r.ID)
		}
	}
	return out
}

// Encode 把整桌狀態編成 JSON -> zstd -> base64url 字串。
func (s *Session) Encode() (string, error) {
	s.mu.Lock()
	st := sharedState{
		V:           stateVersion,
		Names:       append([]string(nil), s.names...),
		OffPersonal: inactiveIDs(s.personal),
		OffTeam:     inactiveIDs(s.team),
	}
	if id, ok := s.current[Team]; ok {
		st.Team = &id
	}
	st.Players = make([]*spec.RuleID, len(s.drivers))
	for i := range s.drivers {
		if id, ok := s.current[Wheel(i)]; ok {
			st.Players[i] = &id
		}
	}
	s.mu.Unlock()
	return corefmt.EncodeCompact(st)
}

// Restore 套用 Encode 產生的字串。
//
// 先完整解碼並檢查（版本、名稱、規則 id 都要存在於這張桌子），全部通過才寫入；
// 任何問題都回傳 errs.Warn 且 session 保持原狀，由呼叫端決定要不要吞掉。
func (s *Session) Restore(encoded string) error {
	var st sharedState
	if err := corefmt.DecodeCompact(strings.TrimSpace(encoded), &st); err != nil {
		return errs.Wrap(err, "decode session state")
	}
	if st.V != stateVersion {
		return errs.Warnf("unsupported session state version %d", st.V)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(st.Names) > len(s.names) || len(st.Players) > len(s.drivers) {
		return errs.NewWarn("session state has more players than this table")
	}
	for _, n := range st.Names {
		n = strings.TrimSpace(n)
		if n == "" || utf8.RuneCountInString(n) > dto.MaxNameLen {
			return errs.NewWarn("session state has an invalid player name")
		}
	}

	personal, err := deactivate(s.personal, st.OffPersonal)
	if err != nil {
		return err
	}
	team, err := deactivate(s.team, st.OffTeam)
	if err != nil {
		return err
	}
	pick := func(rules []spec.Rule, id *spec.RuleID) error {
		if id == nil {
			return nil
		}
		if idx := spec.IndexOf(rules, *id); idx < 0 || !rules[idx].Active {
			return errs.Warnf("session state selects unknown or inactive rule %d", *id)
		}
		return nil
	}
	if err := pick(team, st.Team); err != nil {
		return err
	}
	for _, id := range st.Players {
		if err := pick(personal, id); err != nil {
			return err
		}
	}

	// 檢查完畢，開始寫入
	for i, n := range st.Names {
		s.names[i] = strings.TrimSpace(n)
	}
	clear(s.current)
	if err := s.applyRules(spec.KindPersonal, personal); err != nil {
		return err
	}
	if err := s.applyRules(spec.KindTeam, team); err != nil {
		return err
	}
	settle := func(w Wheel, id *spec.RuleID) {
		if id == nil {
			return
		}
		d, _ := s.driver(w)
		if d.Settle(*id) {
			s.current[w] = *id
		}
	}
	settle(Team, st.Team)
	for i, id := range st.Players {
		settle(Wheel(i), id)
	}
	return nil
}

// deactivate 回傳把 off 中的 id 設為 inactive、其餘 active 的新清單。
func deactivate(rules []spec.Rule, off []spec.RuleID) ([]spec.Rule, error) {
	out := spec.SetAllActive(rules, true)
	for _, id := range off {
		var ok bool
		if out, ok = spec.SetActive(out, id, false); !ok {
			return nil, errs.Warnf("session state references unknown rule %d", id)
		}
	}
	return out, nil
}
