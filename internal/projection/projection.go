// Package projection builds the column/filter/sort specification for a model
// and evaluates it against a loaded dataset.
package projection

import (
	"context"
	"sort"

	"github.com/arkilian/driftguard/internal/dataset"
	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/warehouse"
	"github.com/arkilian/driftguard/pkg/types"
)

// Build derives the projection for desc from the reference column list.
// Excluded columns are removed case-insensitively, the remainder is
// deduplicated and sorted ascending and doubles as the sort key. Build does
// no I/O.
func Build(desc types.ModelDescriptor, columns []string, excluded []string) types.ProjectionSpec {
	skip := make(map[string]struct{}, len(excluded))
	for _, c := range excluded {
		skip[types.CanonicalName(c)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(columns))
	retained := make([]string, 0, len(columns))
	for _, c := range columns {
		name := types.CanonicalName(c)
		if name == "" {
			continue
		}
		if _, ok := skip[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		retained = append(retained, name)
	}
	sort.Strings(retained)

	sortKey := make([]string, len(retained))
	copy(sortKey, retained)

	var filter *types.Filter
	if desc.Filter != nil {
		f := *desc.Filter
		filter = &f
	}

	return types.ProjectionSpec{
		RetainedColumns: retained,
		Filter:          filter,
		SortKey:         sortKey,
	}
}

// Builder builds projections using the warehouse for column listing.
type Builder struct {
	wh warehouse.Warehouse
}

// NewBuilder creates a projection builder.
func NewBuilder(wh warehouse.Warehouse) *Builder {
	return &Builder{wh: wh}
}

// BuildFor lists the reference columns of desc and builds its projection.
func (b *Builder) BuildFor(ctx context.Context, desc types.ModelDescriptor, excluded []string) (types.ProjectionSpec, error) {
	meta, err := b.wh.Columns(ctx, warehouse.Reference(desc))
	if err != nil {
		return types.ProjectionSpec{}, dgerrors.NewSchemaLookupError(
			"failed to list columns of "+desc.QualifiedName(), err)
	}
	if len(meta) == 0 {
		return types.ProjectionSpec{}, dgerrors.NewSchemaLookupError(
			"no columns found for "+desc.QualifiedName(), nil)
	}

	columns := make([]string, len(meta))
	for i, m := range meta {
		columns[i] = m.ColumnName
	}
	return Build(desc, columns, excluded), nil
}

// Apply evaluates spec against t: filter, then column selection, then a
// stable sort by the sort key. The returned table is a new value with dense
// 0-based row positions; t is not modified.
func Apply(spec types.ProjectionSpec, t *dataset.Table) (*dataset.Table, error) {
	pred, err := dataset.CompilePredicate(t, spec.Filter)
	if err != nil {
		return nil, dgerrors.NewDiffExecutionError("invalid filter", err)
	}

	indices := make([]int, len(spec.RetainedColumns))
	for i, c := range spec.RetainedColumns {
		idx, ok := t.ColumnIndex(c)
		if !ok {
			return nil, dgerrors.NewDiffExecutionError("column "+c+" not found in dataset", nil)
		}
		indices[i] = idx
	}

	rows := make([][]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		if pred != nil && !pred.Match(row) {
			continue
		}
		out := make([]interface{}, len(indices))
		for i, idx := range indices {
			out[i] = row[idx]
		}
		rows = append(rows, out)
	}

	// Projected column i is sort key i
	keys := make([]int, 0, len(spec.SortKey))
	for _, k := range spec.SortKey {
		for i, c := range spec.RetainedColumns {
			if c == k {
				keys = append(keys, i)
				break
			}
		}
	}
	dataset.SortRows(rows, keys)

	columns := make([]string, len(spec.RetainedColumns))
	copy(columns, spec.RetainedColumns)
	return &dataset.Table{Columns: columns, Rows: rows}, nil
}
