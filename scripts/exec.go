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

package main

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
)

type cmd struct{ *exec.Cmd }

func command(name string, args ...string) cmd {
	c := exec.Command(name, args...)
	c.Env = os.Environ()
	return cmd{c}
}

// stream 合併 stdout/stderr 一行行轉出；filter 回傳 false 的行不印。
// ok 開頭的行印綠色，FAIL 開頭的行印紅色。
func (c cmd) stream(filter func(line string) bool) error {
	pr, pw := io.Pipe()
	c.Stdout = pw
	c.Stderr = pw
	if err := c.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(pr)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			line := sc.Text()
			if filter != nil && !filter(line) {
				continue
			}
			switch {
			case strings.HasPrefix(line, "ok"):
				okLine(line)
			case strings.HasPrefix(line, "FAIL"), strings.HasPrefix(line, "--- FAIL"):
				failLine(line)
			default:
				os.Stdout.WriteString(line + "\n")
			}
		}
		// 讀不完也要把管線排空，避免子行程卡住
		io.Copy(io.Discard, pr)
	}()
	err := c.Wait()
	pw.Close()
	<-done
	return err
}

// quiet 丟掉輸出，只看 exit code。
func (c cmd) quiet() error {
	c.Stdout = io.Discard
	c.Stderr = os.Stderr
	return c.Run()
}

// goTest 先清 test cache 再跑全部測試。
func goTest(verbose bool) error {
	title("running tests")
	if err := command("go", "clean", "-testcache").Run(); err != nil {
		failLine(err.Error())
	}
	if verbose {
		return command("go", "test", "./...", "-v", "-count=1").stream(func(line string) bool {
			return !strings.Contains(line, "[no test files]")
		})
	}
	return command("go", "test", "./...", "-cover", "-count=1").stream(func(line string) bool {
		return strings.HasPrefix(line, "ok") || strings.HasPrefix(line, "FAIL") || strings.HasPrefix(line, "---")
	})
}
