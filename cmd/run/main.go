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

// run 離線大量模擬一種輪盤，檢查每條規則的命中比例是否貼近權重。
//
//	go run ./cmd/run -kind personal -spins 1000000 -worker 8
//	go run ./cmd/run -kind team -out yaml -p cpu
package main

import (
	"fmt"
	"os"

	"github.com/zintix-labs/rulewheel/sdk/perf"
)

func main() {
	cfg, err := bindVar(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	path, err := perf.Run(perf.DefaultDir, cfg.pprof, func() error { return executeSimulator(cfg) })
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "pprof written to %s\n", path)
	}
}
