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

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/wheel"
	"github.com/zintix-labs/rulewheel/session"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則（邊界層最小映射、可預期）：
//   - ctx timeout/cancel    → 504/408
//   - session.ErrNotFound   → 404
//   - session.ErrFull       → 429
//   - wheel.ErrSpinning     → 409（輪盤還在轉，稍後再試）
//   - errs.Warn             → 400
//   - errs.Fatal / 其他     → 500
func StatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrFull):
		return http.StatusTooManyRequests
	case errors.Is(err, wheel.ErrSpinning):
		return http.StatusConflict
	}
	if errs.Level(err) == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type body struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Errs 寫回 {"error": ..., "status": ...}。500 不外露內部訊息。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	msg := message(err)
	if status >= 500 {
		msg = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body{Error: msg, Status: status})
}

// message 串起錯誤鏈上每一層 errs.E 的 Message（不含 errlv/extra 等內部欄位）。
func message(err error) string {
	e, ok := errs.AsErr(err)
	if !ok {
		return err.Error()
	}
	msg := e.Message
	if e.Cause != nil {
		if m := message(e.Cause); m != "" && m != msg {
			msg += ": " + m
		}
	}
	return msg
}

// Log 只記錄值得注意的錯誤：408/409/429 記 warn，5xx 記 error。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	status := StatusCode(err)
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusConflict || status == http.StatusTooManyRequests:
		log.Warn(msg, slog.Any("err", err))
	case status >= 500 && status < 600:
		log.Error(msg, slog.Any("err", err))
	}
}

// JSON 寫回 200 + JSON。先編碼到記憶體，避免寫到一半才出錯。
func JSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		Errs(w, errs.Wrap(err, "encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}
