package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arkilian/driftguard/internal/config"
	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/engine"
	"github.com/arkilian/driftguard/pkg/types"
)

func resetFlags() {
	configFile, dataDir, mode, logLevel, policy = "", "", "", "", ""
	concurrency = 0
	jsonOutput = false
}

func TestLoadConfigPrecedence(t *testing.T) {
	defer resetFlags()

	path := filepath.Join(t.TempDir(), "driftguard.yaml")
	if err := os.WriteFile(path, []byte("mode: schema\nengine:\n  concurrency: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DRIFTGUARD_CONCURRENCY", "4")

	configFile = path
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Mode != config.ModeSchema || cfg.Engine.Concurrency != 4 {
		t.Fatalf("env should override file: %+v", cfg.Engine)
	}

	concurrency = 6
	mode = "data"
	cfg, err = loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Mode != config.ModeData || cfg.Engine.Concurrency != 6 {
		t.Fatalf("flags should override env: mode=%s concurrency=%d", cfg.Mode, cfg.Engine.Concurrency)
	}
}

func TestPrintRun(t *testing.T) {
	res := &engine.RunResult{
		RunID:  "r1",
		Status: engine.StatusCompleted,
		Outcomes: []types.ModelOutcome{
			{Model: "ORDERS", Status: types.StatusPass, Summary: "The data frames are equal"},
			{Model: "ITEMS", Status: types.StatusFail, Summary: "1 of 3 rows differ (showing 1)",
				Detail: []string{`row 2: STATUS: self="OPEN" other="VOID"`}},
		},
		Verdict: &types.Verdict{RunID: "r1", Policy: "uniform_baseline", Artifacts: 2, DistinctCounts: []int{0, 1}},
	}

	var buf bytes.Buffer
	printRun(&buf, res)
	out := buf.String()
	for _, want := range []string{"ORDERS", "ITEMS:", `other="VOID"`, "Verdict: FALSE"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if res.ExitCode() != engine.ExitFail {
		t.Errorf("exit code = %d, want %d", res.ExitCode(), engine.ExitFail)
	}
}

func TestRunReportCarriesError(t *testing.T) {
	res := &engine.RunResult{
		RunID:  "r2",
		Status: engine.StatusScopeViolation,
		Err:    dgerrors.NewScopeViolation("release models not in regression config: SKU_NEW"),
	}
	r := runReport(res)
	if !strings.Contains(r.Error, "SKU_NEW") || r.Verdict != nil || r.Outcomes == nil {
		t.Fatalf("unexpected report: %+v", r)
	}

	var ee *exitError
	if !errors.As(error(&exitError{code: res.ExitCode()}), &ee) || ee.code != engine.ExitAborted {
		t.Fatal("aborted runs exit with code 2")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "driftguard version dev") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
