// Package diff compares a model's reference and candidate datasets under a
// projection: a shape phase followed by a positional content phase.
package diff

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arkilian/driftguard/internal/dataset"
	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/projection"
	"github.com/arkilian/driftguard/internal/warehouse"
	"github.com/arkilian/driftguard/pkg/types"
	"github.com/spaolacci/murmur3"
)

// DefaultSampleSize bounds the mismatching rows reported per model.
const DefaultSampleSize = 10

// EqualSummary is the summary of a model whose datasets compare equal.
const EqualSummary = "The data frames are equal"

// Options configures an Engine.
type Options struct {
	// CandidateSuffix locates the candidate schema (default "_REGRESSION")
	CandidateSuffix string
	// SampleSize bounds RowMismatch samples (default 10)
	SampleSize int
}

// Engine runs data diffs for models.
type Engine struct {
	wh         warehouse.Warehouse
	builder    *projection.Builder
	suffix     string
	sampleSize int
}

// NewEngine creates a diff engine reading both sides from wh.
func NewEngine(wh warehouse.Warehouse, opts Options) *Engine {
	if opts.CandidateSuffix == "" {
		opts.CandidateSuffix = "_REGRESSION"
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Engine{
		wh:         wh,
		builder:    projection.NewBuilder(wh),
		suffix:     opts.CandidateSuffix,
		sampleSize: opts.SampleSize,
	}
}

// Diff applies spec to both datasets and compares them.
func (e *Engine) Diff(spec types.ProjectionSpec, ref, cand *dataset.Table) (types.DiffResult, error) {
	return Diff(spec, ref, cand, e.sampleSize)
}

// Diff applies spec to both datasets and compares them, keeping at most
// sampleSize mismatching rows in the result.
func Diff(spec types.ProjectionSpec, ref, cand *dataset.Table, sampleSize int) (types.DiffResult, error) {
	left, err := projection.Apply(spec, ref)
	if err != nil {
		return types.DiffResult{}, err
	}
	right, err := projection.Apply(spec, cand)
	if err != nil {
		return types.DiffResult{}, err
	}
	return Compare(left, right, sampleSize), nil
}

// Compare compares two already projected and sorted tables with identical
// column lists.
func Compare(left, right *dataset.Table, sampleSize int) types.DiffResult {
	ls, rs := left.Shape(), right.Shape()

	// Shape phase: alignment is undefined when sizes differ
	if ls.Cells() != rs.Cells() {
		return types.DiffResult{Kind: types.DiffShapeMismatch, Left: ls, Right: rs}
	}
	if ls.Cols == 0 {
		return types.DiffResult{Kind: types.DiffEqual, Left: ls, Right: rs}
	}

	// Content phase
	result := types.DiffResult{Kind: types.DiffEqual, Left: ls, Right: rs}
	for i := range left.Rows {
		lrow, rrow := left.Rows[i], right.Rows[i]
		if fingerprint(lrow) == fingerprint(rrow) {
			continue
		}

		var mismatch *types.RowMismatch
		for c := range lrow {
			if dataset.Equal(lrow[c], rrow[c]) {
				continue
			}
			if mismatch == nil {
				mismatch = &types.RowMismatch{Row: i}
			}
			mismatch.Columns = append(mismatch.Columns, left.Columns[c])
			mismatch.Reference = append(mismatch.Reference, lrow[c])
			mismatch.Candidate = append(mismatch.Candidate, rrow[c])
		}
		if mismatch == nil {
			continue
		}

		result.TotalMismatches++
		if len(result.Sample) < sampleSize {
			result.Sample = append(result.Sample, *mismatch)
		}
	}

	if result.TotalMismatches > 0 {
		result.Kind = types.DiffContentMismatch
	}
	return result
}

// Run loads both sides of desc, diffs them under the projection built from
// the reference columns minus excluded, and renders the outcome.
func (e *Engine) Run(ctx context.Context, desc types.ModelDescriptor, excluded []string) (types.ModelOutcome, error) {
	spec, err := e.builder.BuildFor(ctx, desc, excluded)
	if err != nil {
		return types.ModelOutcome{}, err
	}

	ref, err := e.wh.Load(ctx, warehouse.Reference(desc))
	if err != nil {
		return types.ModelOutcome{}, dgerrors.NewDiffExecutionError("failed to load reference "+desc.QualifiedName(), err)
	}
	cand, err := e.wh.Load(ctx, warehouse.Candidate(desc, e.suffix))
	if err != nil {
		return types.ModelOutcome{}, dgerrors.NewDiffExecutionError("failed to load candidate "+desc.QualifiedName(), err)
	}

	result, err := e.Diff(spec, ref, cand)
	if err != nil {
		return types.ModelOutcome{}, err
	}
	return Render(desc.Name, result), nil
}

// Render converts a diff result into a model outcome. Equal results carry no
// detail rows.
func Render(model string, r types.DiffResult) types.ModelOutcome {
	switch r.Kind {
	case types.DiffEqual:
		return types.ModelOutcome{Model: model, Status: types.StatusPass, Summary: EqualSummary}

	case types.DiffShapeMismatch:
		return types.ModelOutcome{
			Model:  model,
			Status: types.StatusFail,
			Summary: fmt.Sprintf("The data frames are not equal in size. Size of the Ref dataset : %s Size of the Regression dataset: %s",
				r.Left, r.Right),
			Detail: []string{
				"Size of the Ref dataset : " + r.Left.String(),
				"Size of the Regression dataset: " + r.Right.String(),
			},
		}
	}

	detail := make([]string, 0, len(r.Sample))
	drifted := make(map[string]struct{})
	for _, m := range r.Sample {
		parts := make([]string, len(m.Columns))
		for i, c := range m.Columns {
			drifted[c] = struct{}{}
			parts[i] = fmt.Sprintf("%s: self=%s other=%s", c, formatValue(m.Reference[i]), formatValue(m.Candidate[i]))
		}
		detail = append(detail, fmt.Sprintf("row %d: %s", m.Row, strings.Join(parts, ", ")))
	}
	return types.ModelOutcome{
		Model:  model,
		Status: types.StatusFail,
		Summary: fmt.Sprintf("%d of %d rows differ (showing %d)",
			r.TotalMismatches, r.Left.Rows, len(r.Sample)),
		Detail:     detail,
		Drifted:    sortedKeys(drifted),
		Mismatches: r.TotalMismatches,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strconv.Quote(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}

// fingerprint hashes a row so that rows whose cells compare equal under
// dataset.Compare hash equally in the common case. Numbers with an exact
// integer value hash as integers, so 2 and 2.0 agree.
func fingerprint(row []interface{}) [2]uint64 {
	h := murmur3.New128()
	var buf [8]byte
	for _, v := range row {
		switch val := v.(type) {
		case nil:
			h.Write([]byte{'z'})
		case int64:
			h.Write([]byte{'i'})
			binary.LittleEndian.PutUint64(buf[:], uint64(val))
			h.Write(buf[:])
		case float64:
			if val == math.Trunc(val) && val >= math.MinInt64 && val < math.MaxInt64 {
				h.Write([]byte{'i'})
				binary.LittleEndian.PutUint64(buf[:], uint64(int64(val)))
			} else {
				h.Write([]byte{'f'})
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(val))
			}
			h.Write(buf[:])
		case string:
			h.Write([]byte{'s'})
			binary.LittleEndian.PutUint64(buf[:], uint64(len(val)))
			h.Write(buf[:])
			h.Write([]byte(val))
		case time.Time:
			h.Write([]byte{'t'})
			binary.LittleEndian.PutUint64(buf[:], uint64(val.UnixNano()))
			h.Write(buf[:])
		default:
			s := fmt.Sprintf("%v", val)
			h.Write([]byte{'v'})
			binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
			h.Write(buf[:])
			h.Write([]byte(s))
		}
	}
	a, b := h.Sum128()
	return [2]uint64{a, b}
}
