// Package schemadrift compares column metadata of a model between the
// reference schema and the candidate schema.
//
// The comparison is a left outer join driven by the reference side: columns
// that exist only on the candidate side are not reported.
package schemadrift

import (
	"context"
	"fmt"
	"sort"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/warehouse"
	"github.com/arkilian/driftguard/pkg/types"
)

// Column match statuses reported in the outcome detail.
const (
	ColumnPass = "Pass"
	ColumnFail = "Fail"
)

// ColumnResult is the comparison of one reference column.
type ColumnResult struct {
	Column    string
	Reference types.ColumnSignature
	Candidate types.ColumnSignature
	// Missing is true when the candidate has no column of that name
	Missing bool
	Match   bool
}

// Status returns Pass or Fail.
func (r ColumnResult) Status() string {
	if r.Match {
		return ColumnPass
	}
	return ColumnFail
}

// Checker runs schema drift checks against a warehouse.
type Checker struct {
	wh     warehouse.Warehouse
	suffix string
}

// NewChecker creates a checker. The candidate schema is the reference schema
// plus suffix.
func NewChecker(wh warehouse.Warehouse, suffix string) *Checker {
	if suffix == "" {
		suffix = "_REGRESSION"
	}
	return &Checker{wh: wh, suffix: suffix}
}

// Check loads both sides' metadata and compares them.
func (c *Checker) Check(ctx context.Context, desc types.ModelDescriptor) (types.ModelOutcome, error) {
	ref, err := c.wh.Columns(ctx, warehouse.Reference(desc))
	if err != nil {
		return types.ModelOutcome{}, dgerrors.NewSchemaLookupError("reference metadata for "+desc.QualifiedName(), err)
	}
	if len(ref) == 0 {
		return types.ModelOutcome{}, dgerrors.NewSchemaLookupError("no reference columns for "+desc.QualifiedName(), nil)
	}
	cand, err := c.wh.Columns(ctx, warehouse.Candidate(desc, c.suffix))
	if err != nil {
		return types.ModelOutcome{}, dgerrors.NewSchemaLookupError("candidate metadata for "+desc.QualifiedName(), err)
	}

	return Outcome(desc.Name, Compare(ref, cand)), nil
}

// Compare joins reference columns to candidate columns by name and compares
// their (data_type, max_length, numeric_precision, numeric_precision_radix)
// signatures with NULLs defaulted. Results follow the reference order.
func Compare(ref, cand []types.ColumnMetadata) []ColumnResult {
	byName := make(map[string]*types.ColumnMetadata, len(cand))
	for i := range cand {
		name := types.CanonicalName(cand[i].ColumnName)
		if _, dup := byName[name]; !dup {
			byName[name] = &cand[i]
		}
	}

	results := make([]ColumnResult, 0, len(ref))
	for i := range ref {
		r := &ref[i]
		other, ok := byName[types.CanonicalName(r.ColumnName)]
		rs, cs := r.Signature(), other.Signature()
		results = append(results, ColumnResult{
			Column:    r.ColumnName,
			Reference: rs,
			Candidate: cs,
			Missing:   !ok,
			Match:     rs == cs,
		})
	}
	return results
}

// Outcome renders column results: Fail if any column fails. Detail holds
// every (column, status) pair on Pass and only the failing pairs on Fail.
func Outcome(model string, results []ColumnResult) types.ModelOutcome {
	var failing, drifted []string
	all := make([]string, 0, len(results))
	for _, r := range results {
		line := fmt.Sprintf("%s, %s", r.Column, r.Status())
		all = append(all, line)
		if !r.Match {
			failing = append(failing, line)
			drifted = append(drifted, r.Column)
		}
	}
	sort.Strings(drifted)

	if len(failing) > 0 {
		return types.ModelOutcome{
			Model:   model,
			Status:  types.StatusFail,
			Summary: fmt.Sprintf("%d of %d columns drifted", len(failing), len(results)),
			Detail:  failing,
			Drifted: drifted,
		}
	}
	return types.ModelOutcome{
		Model:   model,
		Status:  types.StatusPass,
		Summary: fmt.Sprintf("all %d columns match", len(results)),
		Detail:  all,
	}
}
