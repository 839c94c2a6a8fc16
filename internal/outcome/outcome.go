// Package outcome derives the final run verdict from the artifacts of a run.
package outcome

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/arkilian/driftguard/internal/results"
	"github.com/arkilian/driftguard/pkg/types"
)

// Policy decides whether a run passes given its artifacts.
type Policy interface {
	Name() string
	Evaluate(artifacts []types.Artifact) bool
}

// UniformBaseline passes iff every artifact has the same record count and
// that count equals Baseline. It checks that every model produced a
// uniformly shaped result, not that each model passed; a run with no
// artifacts fails.
type UniformBaseline struct {
	Baseline int
}

// Name returns "uniform_baseline".
func (UniformBaseline) Name() string { return "uniform_baseline" }

// Evaluate applies the rule.
func (p UniformBaseline) Evaluate(artifacts []types.Artifact) bool {
	counts := DistinctCounts(artifacts)
	return len(counts) == 1 && counts[0] == p.Baseline
}

// AllPass passes iff there is at least one artifact and every artifact has
// status Pass.
type AllPass struct{}

// Name returns "all_pass".
func (AllPass) Name() string { return "all_pass" }

// Evaluate applies the rule.
func (AllPass) Evaluate(artifacts []types.Artifact) bool {
	if len(artifacts) == 0 {
		return false
	}
	for _, a := range artifacts {
		if a.Status != types.StatusPass {
			return false
		}
	}
	return true
}

// NewPolicy returns the policy registered under name.
func NewPolicy(name string, baseline int) (Policy, error) {
	switch name {
	case "", "uniform_baseline":
		return UniformBaseline{Baseline: baseline}, nil
	case "all_pass":
		return AllPass{}, nil
	}
	return nil, fmt.Errorf("outcome: unknown policy %q", name)
}

// DistinctCounts returns the sorted set of artifact record counts.
func DistinctCounts(artifacts []types.Artifact) []int {
	set := make(map[int]struct{}, len(artifacts))
	for _, a := range artifacts {
		set[a.RecordCount] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Evaluator reads a run's artifacts from the store, applies the policy and
// persists the verdict.
type Evaluator struct {
	store  results.Store
	policy Policy
	now    func() time.Time
}

// NewEvaluator creates an evaluator.
func NewEvaluator(store results.Store, policy Policy) *Evaluator {
	return &Evaluator{store: store, policy: policy, now: time.Now}
}

// Evaluate computes and persists the verdict of runID.
func (e *Evaluator) Evaluate(ctx context.Context, runID string) (*types.Verdict, error) {
	artifacts, err := e.store.ListArtifacts(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("outcome: failed to list artifacts of %s: %w", runID, err)
	}

	v := Decide(runID, artifacts, e.policy, e.now().UTC())
	if err := e.store.PersistVerdict(ctx, *v); err != nil {
		return v, fmt.Errorf("outcome: failed to persist verdict of %s: %w", runID, err)
	}
	return v, nil
}

// Decide builds the verdict for artifacts under policy without I/O.
func Decide(runID string, artifacts []types.Artifact, policy Policy, now time.Time) *types.Verdict {
	v := &types.Verdict{
		RunID:          runID,
		Pass:           policy.Evaluate(artifacts),
		Policy:         policy.Name(),
		DistinctCounts: DistinctCounts(artifacts),
		Artifacts:      len(artifacts),
		EvaluatedAt:    now,
	}
	if ub, ok := policy.(UniformBaseline); ok {
		v.Baseline = ub.Baseline
	}
	return v
}
