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
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zintix-labs/rulewheel/catalog"
	"github.com/zintix-labs/rulewheel/errs"
)

// DefaultMaxSessions 單一行程最多同時保存的 session 數。
const DefaultMaxSessions = 1024

var (
	ErrNotFound = errs.NewWarn("session not found")
	ErrFull     = errs.NewWarn("too many sessions")
)

// Store 只存在記憶體中的 session 表，以 uuid 為 key。
type Store struct {
	cat  *catalog.Catalog
	opt  Options
	max  int
	log  *slog.Logger
	mu   sync.RWMutex
	byID map[string]*Session

	// lifecycle
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string
}

// NewStore opt 是每個新 session 的範本（ID / Seed 每次都重新產生）。
func NewStore(cat *catalog.Catalog, opt Options, maxSessions int) (*Store, error) {
	if cat == nil || !cat.IsFrozen() {
		return nil, errs.NewFatal("store needs a frozen catalog")
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	st := &Store{
		cat:  cat,
		opt:  opt,
		max:  maxSessions,
		log:  log,
		byID: make(map[string]*Session, 16),
		done: make(chan struct{}),
	}
	st.reason.Store("")
	return st, nil
}

// Create 建立新 session。state 不為空時嘗試還原；還原失敗只記 log，回傳全新的 session（restored=false）。
func (st *Store) Create(state string) (s *Session, restored bool, err error) {
	select {
	case <-st.done:
		return nil, false, errs.NewFatal("session store closed: " + st.ClosedReason())
	default:
	}

	st.mu.RLock()
	full := len(st.byID) >= st.max
	st.mu.RUnlock()
	if full {
		return nil, false, ErrFull
	}

	opt := st.opt
	opt.ID = uuid.NewString()
	opt.Seed = 0
	s, err = New(st.cat, opt)
	if err != nil {
		return nil, false, err
	}
	if state != "" {
		if rerr := s.Restore(state); rerr != nil {
			st.log.Warn("session.restore_ignored", slog.String("session", s.ID()), slog.Any("err", rerr))
		} else {
			restored = true
		}
	}

	st.mu.Lock()
	if len(st.byID) >= st.max {
		st.mu.Unlock()
		s.Close()
		return nil, false, ErrFull
	}
	st.byID[s.ID()] = s
	st.mu.Unlock()

	st.log.Info("session.create", slog.String("session", s.ID()), slog.Bool("restored", restored))
	return s, restored, nil
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.byID[id]
	delete(st.byID, id)
	st.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	st.log.Info("session.delete", slog.String("session", id))
	return nil
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}

// IDs 排序後的 session id。
func (st *Store) IDs() []string {
	st.mu.RLock()
	ids := make([]string, 0, len(st.byID))
	for id := range st.byID {
		ids = append(ids, id)
	}
	st.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close 關閉所有 session；可重複呼叫。
func (st *Store) Close() {
	st.closeWithReason("closed")
}

// closeWithReason closes the store and records the reason (written once).
func (st *Store) closeWithReason(reason string) {
	st.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		st.reason.Store(reason)
		st.closed.Store(true)
		close(st.done)

		st.mu.Lock()
		all := st.byID
		st.byID = make(map[string]*Session)
		st.mu.Unlock()
		for _, s := range all {
			s.Close()
		}
		st.log.Info("session.store_closed", slog.String("reason", reason), slog.Int("sessions", len(all)))
	})
}

// Closed reports whether the store has been closed.
func (st *Store) Closed() bool {
	return st.closed.Load()
}

func (st *Store) ClosedReason() string {
	if v := st.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Shutdown 讓 Store 可以掛在 app 的生命週期上。
func (st *Store) Shutdown(reason string) {
	st.closeWithReason(reason)
}
