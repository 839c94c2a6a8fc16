// Package dataset holds the in-memory tabular form of a loaded model and the
// value semantics shared by the projection evaluator and the diff engine.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/arkilian/driftguard/pkg/types"
)

// Table is a loaded dataset: named columns and positional rows.
type Table struct {
	Columns []string
	Rows    [][]interface{}
}

// NewTable creates a table, normalizing every cell with Normalize.
func NewTable(columns []string, rows [][]interface{}) *Table {
	for _, row := range rows {
		for i, v := range row {
			row[i] = Normalize(v)
		}
	}
	return &Table{Columns: columns, Rows: rows}
}

// Shape returns the table's (rows, cols).
func (t *Table) Shape() types.Shape {
	return types.Shape{Rows: len(t.Rows), Cols: len(t.Columns)}
}

// ColumnIndex resolves a column name case-insensitively.
func (t *Table) ColumnIndex(name string) (int, bool) {
	want := types.CanonicalName(name)
	for i, c := range t.Columns {
		if types.CanonicalName(c) == want {
			return i, true
		}
	}
	return -1, false
}

// Normalize converts driver values to the small set the comparator knows:
// nil, int64, float64, bool, string, time.Time.
func Normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	}
	return v
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int64:
		return float64(val), true
	}
	return 0, false
}

// Value families, in sort order. Values of different families never
// compare equal.
const (
	familyNull = iota
	familyNumber
	familyBool
	familyTime
	familyString
	familyOther
)

func family(v interface{}) int {
	switch v.(type) {
	case nil:
		return familyNull
	case int64, float64:
		return familyNumber
	case bool:
		return familyBool
	case time.Time:
		return familyTime
	case string:
		return familyString
	}
	return familyOther
}

// Compare orders two normalized values. The order is total: values sort by
// family (NULL, number, bool, time, string, other) and then within the
// family. Numbers compare exactly across int64/float64 and NaN sorts after
// every other number. Other values order by type name, then %v rendering.
func Compare(a, b interface{}) int {
	fa, fb := family(a), family(b)
	if fa != fb {
		return cmpInt(int64(fa), int64(fb))
	}

	switch fa {
	case familyNull:
		return 0
	case familyNumber:
		return compareNumbers(a, b)
	case familyBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case familyTime:
		ta, tb := a.(time.Time), b.(time.Time)
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	case familyString:
		return strings.Compare(a.(string), b.(string))
	}

	if c := strings.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)); c != 0 {
		return c
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareNumbers orders int64 and float64 values without rounding large
// integers through float64.
func compareNumbers(a, b interface{}) int {
	ia, aInt := a.(int64)
	ib, bInt := b.(int64)
	switch {
	case aInt && bInt:
		return cmpInt(ia, ib)
	case aInt:
		return compareIntFloat(ia, b.(float64))
	case bInt:
		return -compareIntFloat(ib, a.(float64))
	}

	x, y := a.(float64), b.(float64)
	xNaN, yNaN := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xNaN && yNaN:
		return 0
	case xNaN:
		return 1
	case yNaN:
		return -1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func compareIntFloat(i int64, f float64) int {
	switch {
	case math.IsNaN(f):
		return -1
	case f >= math.MaxInt64:
		return -1
	case f < math.MinInt64:
		return 1
	}
	whole := math.Trunc(f)
	if c := cmpInt(i, int64(whole)); c != 0 {
		return c
	}
	switch frac := f - whole; {
	case frac > 0:
		return -1
	case frac < 0:
		return 1
	}
	return 0
}

// Equal reports whether two normalized values are equal. NULL equals NULL,
// NaN equals NaN, and values of different families are never equal, so
// 5 and "5" differ.
func Equal(a, b interface{}) bool {
	return Compare(a, b) == 0
}

// SortRows stably sorts rows by the given column indices, ascending.
func SortRows(rows [][]interface{}, keys []int) {
	if len(keys) == 0 || len(rows) <= 1 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			if cmp := Compare(rows[i][k], rows[j][k]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

// Predicate is a compiled single-column filter.
type Predicate struct {
	column  int
	op      types.FilterOperator
	literal string
	number  float64
	numeric bool
}

// CompilePredicate resolves the filter column against t and parses the
// literal. Single quotes around the literal are stripped.
func CompilePredicate(t *Table, f *types.Filter) (*Predicate, error) {
	if f == nil {
		return nil, nil
	}
	if !f.Operator.Valid() {
		return nil, fmt.Errorf("unsupported filter operator %q", f.Operator)
	}
	idx, ok := t.ColumnIndex(f.Column)
	if !ok {
		return nil, fmt.Errorf("filter column %q not found", f.Column)
	}

	literal := strings.TrimSpace(f.Value)
	if len(literal) >= 2 && literal[0] == '\'' && literal[len(literal)-1] == '\'' {
		literal = literal[1 : len(literal)-1]
	}

	p := &Predicate{column: idx, op: f.Operator, literal: literal}
	if n, err := strconv.ParseFloat(literal, 64); err == nil {
		p.number = n
		p.numeric = true
	}
	return p, nil
}

// Match evaluates the predicate on a row. A NULL cell never matches.
func (p *Predicate) Match(row []interface{}) bool {
	v := row[p.column]
	if v == nil {
		return false
	}

	var cmp int
	if f, ok := toFloat(v); ok && p.numeric {
		switch {
		case f < p.number:
			cmp = -1
		case f > p.number:
			cmp = 1
		}
	} else {
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case time.Time:
			s = val.Format(time.RFC3339Nano)
		default:
			s = fmt.Sprintf("%v", val)
		}
		cmp = strings.Compare(s, p.literal)
	}

	switch p.op {
	case types.OpEqual, types.OpDoubleEqual:
		return cmp == 0
	case types.OpNotEqual, types.OpNotEqualSQL:
		return cmp != 0
	case types.OpLess:
		return cmp < 0
	case types.OpLessEqual:
		return cmp <= 0
	case types.OpGreater:
		return cmp > 0
	case types.OpGreaterEqual:
		return cmp >= 0
	}
	return false
}
