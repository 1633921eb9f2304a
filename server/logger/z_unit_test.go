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

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/zintix-labs/rulewheel/errs"
)

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuf) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]LogMode{"": ModeDev, "PROD": ModeProd, " silence ": ModeSilence} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("loud"); !errs.IsWarn(err) {
		t.Fatalf("unknown mode should be warn, got %v", err)
	}
}

func TestProdFlattensErrs(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, ModeProd)
	log.Warn("session.restore_ignored", slog.Any("err", errs.Wrap(errs.NewWarn("bad state"), "restore")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	e, ok := rec["err"].(map[string]any)
	if !ok {
		t.Fatalf("err not grouped: %v", rec)
	}
	if e["lv"] != "warn" || e["msg"] != "restore" || !strings.Contains(e["cause"].(string), "bad state") {
		t.Fatalf("unexpected err group: %v", e)
	}
}

func TestAsyncDrainsOnClose(t *testing.T) {
	var buf lockedBuf
	ah := NewAsyncHandler(handlerFor(&buf, ModeDev), 64)
	log := slog.New(ah).With(slog.String("svc", "wheel"))
	for range 10 {
		log.Info("tick")
	}
	ah.Close()
	if n := strings.Count(buf.String(), "msg=tick"); n != 10 {
		t.Fatalf("want 10 records after close, got %d", n)
	}
	if !strings.Contains(buf.String(), "svc=wheel") {
		t.Fatalf("WithAttrs lost")
	}
	log.Info("late")
	if ah.Dropped() != 1 {
		t.Fatalf("record after close should be dropped, dropped=%d", ah.Dropped())
	}
	ah.Close()
}
