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

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

var payload = strings.Repeat(`{"rule":"Lights Out"}`, 200)

func handler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, payload)
		}
	})
}

func TestNegotiate(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"gzip":                  "gzip",
		"gzip, zstd":            "zstd",
		"zstd;q=0, gzip;q=0.5":  "gzip",
		"br":                    "",
		"GZIP ; q=1":            "gzip",
		"zstd;q=0.000,gzip;q=0": "",
	}
	for in, want := range cases {
		got := ""
		if c := negotiate(in); c != nil {
			got = c.name
		}
		if got != want {
			t.Errorf("negotiate(%q) = %q want %q", in, got, want)
		}
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, enc := range []string{"zstd", "gzip"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", enc)
		rec := httptest.NewRecorder()
		Compression(handler(http.StatusOK)).ServeHTTP(rec, req)

		if rec.Header().Get("Content-Encoding") != enc {
			t.Fatalf("%s: encoding header %q", enc, rec.Header().Get("Content-Encoding"))
		}
		var r io.Reader
		switch enc {
		case "zstd":
			d, err := zstd.NewReader(rec.Body)
			if err != nil {
				t.Fatal(err)
			}
			defer d.Close()
			r = d
		case "gzip":
			g, err := gzip.NewReader(rec.Body)
			if err != nil {
				t.Fatal(err)
			}
			r = g
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != payload {
			t.Fatalf("%s: payload mismatch", enc)
		}
	}
}

func TestCompressionSkipsNoBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	Compression(handler(http.StatusNoContent)).ServeHTTP(rec, req)
	if rec.Body.Len() != 0 || rec.Header().Get("Content-Encoding") != "" {
		t.Fatalf("204 must stay empty and uncompressed: %d bytes, %q", rec.Body.Len(), rec.Header().Get("Content-Encoding"))
	}
}

func TestAccessLogAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestID(AccessLog(log)(handler(http.StatusOK)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/rules", nil))

	id := rec.Header().Get(HeaderRequestID)
	if id == "" {
		t.Fatalf("request id header missing")
	}
	out := buf.String()
	for _, want := range []string{"msg=http.access", "status=200", "path=/v1/rules", "req_id=" + id} {
		if !strings.Contains(out, want) {
			t.Errorf("access log %q missing %q", out, want)
		}
	}
}
