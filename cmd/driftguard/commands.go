package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/arkilian/driftguard/internal/engine"
	"github.com/arkilian/driftguard/pkg/types"
)

func runRegression(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res := a.Run(cmd.Context())
	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), runReport(res)); err != nil {
			return err
		}
	} else {
		printRun(cmd.OutOrStdout(), res)
	}

	if code := res.ExitCode(); code != engine.ExitPass {
		return &exitError{code: code}
	}
	return nil
}

func runScope(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	resolution, err := a.Engine().Scope(cmd.Context())
	if err != nil {
		return err
	}

	scope := make(map[string][]string, resolution.Scope.Len())
	for _, m := range resolution.Scope.Models() {
		scope[m] = resolution.Scope.Excluded(m)
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"manifest": resolution.Key,
			"version":  resolution.Version,
			"models":   scope,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manifest: %s\n", resolution.Key)
	if resolution.Version != "" {
		fmt.Fprintf(out, "Version:  %s\n", resolution.Version)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tEXCLUDED COLUMNS")
	for _, m := range resolution.Scope.Models() {
		fmt.Fprintf(w, "%s\t%s\n", m, strings.Join(scope[m], ", "))
	}
	return w.Flush()
}

func runVerdict(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	v, err := a.Reevaluate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := writeJSON(cmd.OutOrStdout(), v); err != nil {
			return err
		}
	} else {
		printVerdict(cmd.OutOrStdout(), v)
	}
	if !v.Pass {
		return &exitError{code: engine.ExitFail}
	}
	return nil
}

// report is the JSON form of a run result.
type report struct {
	RunID    string               `json:"run_id"`
	Status   engine.Status        `json:"status"`
	Error    string               `json:"error,omitempty"`
	Manifest string               `json:"manifest,omitempty"`
	Outcomes []types.ModelOutcome `json:"outcomes"`
	Skipped  []string             `json:"skipped,omitempty"`
	Verdict  *types.Verdict       `json:"verdict,omitempty"`
	Digest   string               `json:"digest,omitempty"`
}

func runReport(res *engine.RunResult) report {
	r := report{
		RunID:    res.RunID,
		Status:   res.Status,
		Manifest: res.Manifest,
		Outcomes: res.Outcomes,
		Skipped:  res.Skipped,
		Verdict:  res.Verdict,
		Digest:   res.Digest,
	}
	if r.Outcomes == nil {
		r.Outcomes = []types.ModelOutcome{}
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}

func printRun(out io.Writer, res *engine.RunResult) {
	fmt.Fprintf(out, "Run:    %s\n", res.RunID)
	fmt.Fprintf(out, "Status: %s\n", res.Status)
	if res.Err != nil {
		fmt.Fprintf(out, "Error:  %v\n", res.Err)
	}
	if res.Manifest != "" {
		fmt.Fprintf(out, "Manifest: %s\n", res.Manifest)
	}

	if len(res.Outcomes) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODEL\tSTATUS\tRECORDS\tSUMMARY")
		for _, o := range res.Outcomes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", o.Model, o.Status, len(o.Detail), o.Summary)
		}
		w.Flush()
		for _, o := range res.Outcomes {
			if o.Status == types.StatusPass {
				continue
			}
			fmt.Fprintf(out, "\n%s:\n", o.Model)
			for _, d := range o.Detail {
				fmt.Fprintf(out, "  %s\n", d)
			}
		}
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "\nSkipped (not persisted): %s\n", strings.Join(res.Skipped, ", "))
	}
	if len(res.TopDrift) > 0 {
		fmt.Fprintln(out, "\nMost drifting columns:")
		for _, c := range res.TopDrift {
			fmt.Fprintf(out, "  %s (%d in %d models)\n", c.Column, c.Frequency, len(c.Models))
		}
	}
	if res.Verdict != nil {
		fmt.Fprintln(out)
		printVerdict(out, res.Verdict)
	}
}

func printVerdict(out io.Writer, v *types.Verdict) {
	fmt.Fprintf(out, "Verdict: %s (policy %s, %d artifacts, distinct record counts %v)\n",
		v.Result(), v.Policy, v.Artifacts, v.DistinctCounts)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
