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

// ops 專案的日常任務入口：go run ./scripts <task> [args...]
//
//	test         清 cache 後跑全部測試，只顯示 ok / FAIL 行
//	test-detail  verbose 測試，略過沒有測試檔的套件
//	cover        跑全部測試並輸出 build/cover.out
//	sim          以 cmd/run 跑兩種輪盤各一次（其餘參數原樣轉給 cmd/run）
//	pgo          以 cpu profile 跑一次模擬，複製成 cmd/run/default.pgo
//	serve        以 dev log 啟動 cmd/svr
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
)

var (
	okLine   = color.New(color.FgGreen).PrintlnFunc()
	failLine = color.New(color.FgRed).PrintlnFunc()
	title    = color.New(color.FgCyan, color.Bold).PrintlnFunc()
)

type task struct {
	name string
	run  func(args []string) error
}

var tasks = []task{
	{"test", func([]string) error { return goTest(false) }},
	{"test-detail", func([]string) error { return goTest(true) }},
	{"cover", runCover},
	{"sim", runSim},
	{"pgo", runPGO},
	{"serve", runServe},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	name := os.Args[1]
	for _, t := range tasks {
		if t.name != name {
			continue
		}
		if err := t.run(os.Args[2:]); err != nil {
			failLine(fmt.Sprintf("%s: %v", name, err))
			os.Exit(1)
		}
		return
	}
	color.Yellow("unknown task: %s", name)
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Println("Usage: go run ./scripts <task>")
	for _, t := range tasks {
		fmt.Println("  " + t.name)
	}
}

func runCover([]string) error {
	title("running tests with coverage")
	if err := os.MkdirAll("build", 0o755); err != nil {
		return err
	}
	out := filepath.Join("build", "cover.out")
	if err := command("go", "test", "./...", "-count=1", "-coverprofile="+out).stream(nil); err != nil {
		return err
	}
	return command("go", "tool", "cover", "-func="+out).stream(nil)
}

func runSim(args []string) error {
	for _, kind := range []string{"personal", "team"} {
		title("simulating " + kind + " wheel")
		argv := append([]string{"run", "./cmd/run", "-kind", kind}, args...)
		if err := command("go", argv...).stream(nil); err != nil {
			return err
		}
	}
	return nil
}

func runPGO(args []string) error {
	title("collecting cpu profile for PGO")
	argv := append([]string{"run", "./cmd/run", "-p", "cpu", "-out", "json"}, args...)
	if err := command("go", argv...).quiet(); err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join("build", "profiling", "cpu.pprof"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join("cmd", "run", "default.pgo"), data, 0o644); err != nil {
		return err
	}
	okLine("wrote cmd/run/default.pgo")
	return nil
}

func runServe(args []string) error {
	argv := append([]string{"run", "./cmd/svr", "-log-mode", "dev"}, args...)
	return command("go", argv...).stream(nil)
}
