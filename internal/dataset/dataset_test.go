package dataset

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/arkilian/driftguard/pkg/types"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{[]byte("abc"), "abc"},
		{int(7), int64(7)},
		{int32(7), int64(7)},
		{float32(1.5), float64(1.5)},
		{"x", "x"},
		{true, true},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b interface{}
		want int
	}{
		{"null-null", nil, nil, 0},
		{"null-first", nil, int64(1), -1},
		{"null-last", "a", nil, 1},
		{"int-int", int64(2), int64(3), -1},
		{"int-float-equal", int64(2), float64(2), 0},
		{"float-int", float64(2.5), int64(2), 1},
		{"strings", "b", "a", 1},
		{"bool-before-string", "1", true, 1},
		{"number-before-string", int64(10), "9", -1},
		{"int-string-differ", int64(5), "5", -1},
		{"bool-string-differ", true, "true", -1},
		{"time-before-string", time.Unix(0, 0).UTC(), "1970", -1},
		{"nan-equal", math.NaN(), math.NaN(), 0},
		{"nan-after-float", math.NaN(), math.Inf(1), 1},
		{"nan-after-int", int64(math.MaxInt64), math.NaN(), -1},
		{"large-int-exact", int64(1<<53 + 1), float64(1 << 53), 1},
		{"int-below-fraction", int64(2), 2.5, -1},
		{"negative-fraction", int64(-2), -2.5, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.a, tt.b); got != tt.want {
				t.Fatalf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSortRowsStable(t *testing.T) {
	rows := [][]interface{}{
		{int64(2), "b", "first"},
		{int64(1), "z", "x"},
		{int64(2), "a", "y"},
		{int64(2), "b", "second"},
	}
	SortRows(rows, []int{0, 1})

	want := []string{"x", "y", "first", "second"}
	for i, w := range want {
		if rows[i][2] != w {
			t.Fatalf("row %d: got %v, want %v", i, rows[i][2], w)
		}
	}
}

func TestEqualTypeStrict(t *testing.T) {
	if Equal(int64(5), "5") || Equal(true, "true") || Equal(float64(1), "1") {
		t.Fatal("values of different families must not be equal")
	}
	if !Equal(int64(5), float64(5)) || !Equal(math.NaN(), math.NaN()) {
		t.Fatal("numbers compare by value and NaN equals NaN")
	}
}

func TestSortRowsOrderIndependent(t *testing.T) {
	nan := math.NaN()
	inputs := [][]interface{}{
		{int64(3), nan, int64(1), "9", int64(10), nil, true},
		{int64(1), "9", nan, true, int64(3), int64(10), nil},
		{nil, true, int64(10), int64(3), "9", nan, int64(1)},
	}

	var want string
	for i, in := range inputs {
		rows := make([][]interface{}, len(in))
		for j, v := range in {
			rows[j] = []interface{}{v}
		}
		SortRows(rows, []int{0})
		got := fmt.Sprint(rows)
		if i == 0 {
			want = got
			continue
		}
		if got != want {
			t.Fatalf("input %d sorted to %s, want %s", i, got, want)
		}
	}
	if want != "[[<nil>] [1] [3] [10] [NaN] [true] [9]]" {
		t.Fatalf("unexpected order %s", want)
	}
}

func TestPredicate(t *testing.T) {
	table := NewTable([]string{"ID", "STATUS"}, [][]interface{}{
		{int64(1), "ACTIVE"},
		{int64(5), "CLOSED"},
		{nil, "ACTIVE"},
	})

	tests := []struct {
		name   string
		filter types.Filter
		want   []bool
	}{
		{"numeric greater", types.Filter{Column: "id", Operator: types.OpGreater, Value: "2"}, []bool{false, true, false}},
		{"numeric equal", types.Filter{Column: "ID", Operator: types.OpEqual, Value: "1"}, []bool{true, false, false}},
		{"quoted string", types.Filter{Column: "STATUS", Operator: types.OpEqual, Value: "'ACTIVE'"}, []bool{true, false, true}},
		{"not equal sql", types.Filter{Column: "STATUS", Operator: types.OpNotEqualSQL, Value: "ACTIVE"}, []bool{false, true, false}},
		{"null never matches", types.Filter{Column: "ID", Operator: types.OpNotEqual, Value: "9"}, []bool{true, true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.filter
			p, err := CompilePredicate(table, &f)
			if err != nil {
				t.Fatalf("CompilePredicate: %v", err)
			}
			for i, row := range table.Rows {
				if got := p.Match(row); got != tt.want[i] {
					t.Errorf("row %d: got %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestCompilePredicateErrors(t *testing.T) {
	table := NewTable([]string{"ID"}, nil)

	if _, err := CompilePredicate(table, &types.Filter{Column: "MISSING", Operator: types.OpEqual, Value: "1"}); err == nil {
		t.Fatal("expected error for unknown column")
	}
	if _, err := CompilePredicate(table, &types.Filter{Column: "ID", Operator: "LIKE", Value: "1"}); err == nil {
		t.Fatal("expected error for unsupported operator")
	}
	p, err := CompilePredicate(table, nil)
	if err != nil || p != nil {
		t.Fatalf("nil filter: got %v, %v", p, err)
	}
}
