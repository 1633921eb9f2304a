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

package app

import (
	"context"
	"sync"
)

// Component 可啟動 / 可關閉的長生命週期元件。
//   - Run 阻塞直到元件停止。
//   - Shutdown 要求優雅關閉，應尊重 ctx 的期限。
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}

// Func 把「只有關閉動作」的資源（例如記憶體中的 session 表）包成 Component：
// Run 阻塞到 Shutdown 被呼叫為止。
type Func struct {
	stop     func(ctx context.Context) error
	done     chan struct{}
	doneOnce sync.Once
}

func NewFunc(stop func(ctx context.Context) error) *Func {
	return &Func{stop: stop, done: make(chan struct{})}
}

func (f *Func) Run() error {
	<-f.done
	return nil
}

func (f *Func) Shutdown(ctx context.Context) error {
	var err error
	f.doneOnce.Do(func() {
		if f.stop != nil {
			err = f.stop(ctx)
		}
		close(f.done)
	})
	return err
}
