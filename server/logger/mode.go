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

// Package logger 組裝 server 與 cmd 共用的 slog.Logger。
//
// 兩種注入方式：直接拿 *slog.Logger（NewDefaultLogger / NewAsync），
// 或自行組裝 slog.Handler 後交給 NewLogger。AsyncHandler 可以把任何 handler 變成非阻塞。
package logger

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zintix-labs/rulewheel/errs"
)

// enum LogMode
type LogMode uint8

const (
	ModeDev LogMode = iota
	ModeProd
	ModeSilence
)

func (m LogMode) String() string {
	switch m {
	case ModeDev:
		return "dev"
	case ModeProd:
		return "prod"
	case ModeSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// ParseMode dev / prod / silence（大小寫不敏感，空字串視為 dev）。
func ParseMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dev":
		return ModeDev, nil
	case "prod":
		return ModeProd, nil
	case "silence", "silent":
		return ModeSilence, nil
	default:
		return ModeDev, errs.Warnf("unknown log mode %q (dev|prod|silence)", s)
	}
}

// NewDefaultLogger 依 LogMode 建立同步 logger。
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(buildHandler(mode))
}

// NewDefaultAsyncLogger 依 LogMode 建立非同步 logger。
func NewDefaultAsyncLogger(mode LogMode) *slog.Logger {
	return slog.New(NewAsyncHandler(buildHandler(mode), 8192))
}

// NewLogger 包裝呼叫端自行組裝的 Handler；nil 時使用 dev 預設。
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = buildHandler(ModeDev)
	}
	return slog.New(h)
}

// NewAsync 便利入口：LogMode 預設 handler 外面再包一層 AsyncHandler。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(buildHandler(mode), buf)
	return slog.New(ah), ah
}

// NewWriterLogger 把 mode 的格式寫到 w（測試或導向檔案用）。
func NewWriterLogger(w io.Writer, mode LogMode) *slog.Logger {
	return slog.New(handlerFor(w, mode))
}

func buildHandler(mode LogMode) slog.Handler {
	switch mode {
	case ModeProd:
		// 正式環境：JSON + stdout
		return handlerFor(os.Stdout, mode)
	case ModeSilence:
		return slog.DiscardHandler
	default:
		return handlerFor(os.Stderr, ModeDev)
	}
}

func handlerFor(w io.Writer, mode LogMode) slog.Handler {
	switch mode {
	case ModeProd:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: replaceErr})
	case ModeSilence:
		return slog.DiscardHandler
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: replaceErr})
	}
}

// replaceErr 把 errs.E 攤平成 {lv, msg, cause}，避免 JSON 輸出整串 Error() 字串。
func replaceErr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	err, ok := a.Value.Any().(error)
	if !ok {
		return a
	}
	var e *errs.E
	if !errors.As(err, &e) {
		return slog.String(a.Key, err.Error())
	}
	attrs := []any{
		slog.String("lv", errs.ErrLv(e.ErrLv)),
		slog.String("msg", e.Message),
	}
	if e.Cause != nil {
		attrs = append(attrs, slog.String("cause", e.Cause.Error()))
	}
	return slog.Group(a.Key, attrs...)
}
