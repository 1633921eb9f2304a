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

package corefmt

import (
	"strings"
	"testing"

	"github.com/zintix-labs/rulewheel/errs"
)

type payload struct {
	Names []string `json:"n"`
	IDs   []int    `json:"i"`
}

func TestCompactRoundTrip(t *testing.T) {
	in := payload{Names: []string{"Player 1", "Player 2"}, IDs: []int{3, 5, 8}}
	s, err := EncodeCompact(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.ContainsAny(s, "+/=") {
		t.Fatalf("payload is not url-safe: %q", s)
	}
	var out payload
	if err := DecodeCompact(s, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Names) != 2 || out.Names[1] != "Player 2" || len(out.IDs) != 3 || out.IDs[2] != 8 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDecodeCompactMalformedIsWarn(t *testing.T) {
	bad := []string{
		"",
		"***not base64***",
		EncodeBase64URL([]byte("plain bytes, not zstd")),
	}
	for _, s := range bad {
		var out payload
		err := DecodeCompact(s, &out)
		if err == nil {
			t.Fatalf("expected error for %q", s)
		}
		if !errs.IsWarn(err) {
			t.Fatalf("malformed input should be warn, got %v", err)
		}
	}

	z, err := Compress([]byte("{not json"))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	var out payload
	if err := DecodeCompact(EncodeBase64URL(z), &out); !errs.IsWarn(err) {
		t.Fatalf("bad json should be warn, got %v", err)
	}
}
