// Package types provides core data types for driftguard.
package types

import (
	"sort"
	"strings"
)

// FilterOperator is a comparison operator allowed in a model filter.
type FilterOperator string

const (
	OpEqual        FilterOperator = "="
	OpDoubleEqual  FilterOperator = "=="
	OpNotEqual     FilterOperator = "!="
	OpNotEqualSQL  FilterOperator = "<>"
	OpLess         FilterOperator = "<"
	OpLessEqual    FilterOperator = "<="
	OpGreater      FilterOperator = ">"
	OpGreaterEqual FilterOperator = ">="
)

// Valid reports whether the operator is supported by the filter evaluator.
func (o FilterOperator) Valid() bool {
	switch o {
	case OpEqual, OpDoubleEqual, OpNotEqual, OpNotEqualSQL,
		OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Filter is a single-column row predicate: Column Operator Value.
type Filter struct {
	// Column is the filtered column (canonical upper case)
	Column string `json:"column" yaml:"column"`
	// Operator is the comparison operator
	Operator FilterOperator `json:"operator" yaml:"operator"`
	// Value is the literal compared against, as declared in configuration
	Value string `json:"value" yaml:"value"`
}

// ModelDescriptor locates one model eligible for regression validation.
type ModelDescriptor struct {
	// Name is the model (table) name, canonical upper case; unique in a catalog
	Name string `json:"name"`
	// Database is the database holding the model
	Database string `json:"database"`
	// Schema is the reference schema; the candidate lives in Schema plus a suffix
	Schema string `json:"schema"`
	// Filter optionally restricts the rows that participate in the diff
	Filter *Filter `json:"filter,omitempty"`
}

// QualifiedName returns DATABASE.SCHEMA.NAME.
func (d ModelDescriptor) QualifiedName() string {
	return d.Database + "." + d.Schema + "." + d.Name
}

// CanonicalName normalizes model and column names for comparison.
func CanonicalName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ReleaseScope maps impacted model names to the columns the release
// intentionally changed. Built once per run and read-only afterwards.
type ReleaseScope struct {
	models map[string]map[string]struct{}
}

// NewReleaseScope builds a scope from model → excluded columns, normalizing
// every name to canonical case and deduplicating columns.
func NewReleaseScope(impacted map[string][]string) ReleaseScope {
	models := make(map[string]map[string]struct{}, len(impacted))
	for model, cols := range impacted {
		name := CanonicalName(model)
		set, ok := models[name]
		if !ok {
			set = make(map[string]struct{}, len(cols))
			models[name] = set
		}
		for _, c := range cols {
			set[CanonicalName(c)] = struct{}{}
		}
	}
	return ReleaseScope{models: models}
}

// Len returns the number of impacted models.
func (s ReleaseScope) Len() int {
	return len(s.models)
}

// Contains reports whether the model is impacted by the release.
func (s ReleaseScope) Contains(model string) bool {
	_, ok := s.models[CanonicalName(model)]
	return ok
}

// Models returns the impacted model names, sorted.
func (s ReleaseScope) Models() []string {
	out := make([]string, 0, len(s.models))
	for m := range s.models {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Excluded returns the sorted excluded columns for a model (nil if the model
// is not in scope).
func (s ReleaseScope) Excluded(model string) []string {
	set, ok := s.models[CanonicalName(model)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// IsExcluded reports whether column is excluded for model.
func (s ReleaseScope) IsExcluded(model, column string) bool {
	set, ok := s.models[CanonicalName(model)]
	if !ok {
		return false
	}
	_, ok = set[CanonicalName(column)]
	return ok
}
