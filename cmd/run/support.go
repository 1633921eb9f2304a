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
	"flag"
	"io/fs"
	"os"
	"strings"

	"github.com/zintix-labs/rulewheel"
	"github.com/zintix-labs/rulewheel/demo/demo_configs"
	"github.com/zintix-labs/rulewheel/errs"
	"github.com/zintix-labs/rulewheel/sdk/core"
	"github.com/zintix-labs/rulewheel/sdk/perf"
	"github.com/zintix-labs/rulewheel/spec"
	"github.com/zintix-labs/rulewheel/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type config struct {
	kind    spec.RuleKind
	spins   int
	worker  int
	seed    int64
	out     string
	file    string
	prng    core.PRNGFactory
	configs fs.FS
	pprof   perf.Mode
}

func bindVar(args []string) (*config, error) {
	var (
		kind, out, prng, dir, pmode string
		cfg                         = new(config)
	)
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	fset.StringVar(&kind, "kind", "personal", "wheel kind: personal|team")
	fset.IntVar(&cfg.spins, "spins", 1_000_000, "total spins")
	fset.IntVar(&cfg.worker, "worker", 1, "number of workers")
	fset.Int64Var(&cfg.seed, "seed", -1, "int64 seed, <1 means random")
	fset.StringVar(&out, "out", "table", "output: table|json|yaml")
	fset.StringVar(&cfg.file, "o", "", "also write the report to this file (.yaml/.yml as YAML, otherwise JSON)")
	fset.StringVar(&prng, "prng", "pcg64", "prng: pcg64|pcg32")
	fset.StringVar(&dir, "configs", "", "config directory (empty: built-in demo configs)")
	fset.StringVar(&pmode, "p", "", "pprof: '', cpu, heap, allocs")
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	k, ok := spec.ParseKind(kind)
	if !ok {
		return nil, errs.Warnf("value err : unknown wheel kind %q", kind)
	}
	cfg.kind = k
	if cfg.spins < 1 {
		return nil, errs.NewWarn("value err : spins must > 0")
	}
	if cfg.worker < 1 || cfg.worker > rulewheel.MaxSimWorkers {
		return nil, errs.Warnf("value err : workers must be in 1..%d", rulewheel.MaxSimWorkers)
	}
	switch cfg.out = strings.ToLower(out); cfg.out {
	case "table", "json", "yaml":
	default:
		return nil, errs.Warnf("value err : unknown output %q", out)
	}
	if cfg.prng, ok = core.FactoryByName(prng); !ok {
		return nil, errs.Warnf("value err : unknown prng %q", prng)
	}
	var err error
	if cfg.pprof, err = perf.ParseMode(pmode); err != nil {
		return nil, err
	}
	cfg.configs = demo_configs.FS
	if dir != "" {
		cfg.configs = os.DirFS(dir)
	}
	// given seed illegal -> random seed
	if cfg.seed < 1 {
		cfg.seed = core.NewSeed()
	}
	return cfg, nil
}

// executeSimulator 建 Lab、跑模擬、依 -out 輸出報表。
func executeSimulator(cfg *config) error {
	lab, err := rulewheel.New(cfg.prng, rulewheel.Configs(cfg.configs))
	if err != nil {
		return err
	}
	rules, err := lab.Rules(cfg.kind)
	if err != nil {
		return err
	}
	s := lab.NewSimulatorWithSeed(cfg.seed)

	table := cfg.out == "table"
	if table {
		green := "\033[1;32m"
		reset := "\033[0m"
		p := message.NewPrinter(language.English)
		p.Printf("%s[WHEEL:%s] [RULES:%d] [WORKERS:%d] [SPINS:%d] [SEED:%d]%s\n",
			green, cfg.kind, len(rules), cfg.worker, cfg.spins, cfg.seed, reset)
	}

	st, used, err := s.SimMP(cfg.kind, cfg.spins, cfg.worker, table)
	if err != nil {
		return err
	}
	if cfg.file != "" {
		if err := writeReport(cfg.file, st); err != nil {
			return err
		}
	}
	switch cfg.out {
	case "json":
		return st.WriteWith(os.Stdout, &stats.JsonSpinReportRender{})
	case "yaml":
		return st.WriteWith(os.Stdout, &stats.YAMLSpinReportRender{})
	default:
		st.StdOut(used)
		return nil
	}
}

// writeReport 依副檔名選擇格式寫檔。
func writeReport(path string, st *stats.SpinReport) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.Wrap(err, "create report file")
	}
	if err := st.WriteWith(f, stats.RenderFor(path)); err != nil {
		f.Close()
		return errs.Wrap(err, "write report")
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(err, "close report file")
	}
	return nil
}
