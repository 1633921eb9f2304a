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

// Package corefmt 提供可放進 URL / JSON 的緊湊文字編碼。
//
// 分享狀態與 RNG 快照都走同一條路：JSON -> zstd -> base64url（無 padding）。
package corefmt

import (
	"encoding/base64"
	"encoding/json"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/rulewheel/errs"
)

// MaxDecoded 解壓後的大小上限，避免惡意輸入把記憶體撐爆。
const MaxDecoded = 1 << 20

var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	})
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecoded), zstd.WithDecoderConcurrency(0))
	})
)

func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.WrapAs(errs.Warn, err, "decode base64url failed")
	}
	return b, nil
}

// Compress 以 zstd 壓縮（EncodeAll 可併發呼叫）。
func Compress(b []byte) ([]byte, error) {
	enc, err := encoder()
	if err != nil {
		return nil, errs.Wrap(err, "zstd encoder init failed")
	}
	return enc.EncodeAll(b, nil), nil
}

func Decompress(b []byte) ([]byte, error) {
	dec, err := decoder()
	if err != nil {
		return nil, errs.Wrap(err, "zstd decoder init failed")
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, errs.WrapAs(errs.Warn, err, "zstd decode failed")
	}
	return out, nil
}

// EncodeCompact 把 v 編成 JSON -> zstd -> base64url。
func EncodeCompact(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", errs.Wrap(err, "marshal compact payload failed")
	}
	z, err := Compress(raw)
	if err != nil {
		return "", err
	}
	return EncodeBase64URL(z), nil
}

// DecodeCompact 為 EncodeCompact 的反向；任何一層壞掉都回傳 Warn（屬於呼叫端輸入問題）。
func DecodeCompact(s string, v any) error {
	if s == "" {
		return errs.NewWarn("empty compact payload")
	}
	z, err := DecodeBase64URL(s)
	if err != nil {
		return err
	}
	raw, err := Decompress(z)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errs.WrapAs(errs.Warn, err, "unmarshal compact payload failed")
	}
	return nil
}
