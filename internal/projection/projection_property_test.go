package projection

import (
	"sort"
	"testing"

	"github.com/arkilian/driftguard/pkg/types"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// columnNames generates short column-name lists with collisions and mixed
// case so deduplication and exclusion are exercised.
func columnNames() gopter.Gen {
	pool := []string{"id", "ID", "amount", "Amount", "status", "updated_at", "UPDATED_AT", "code", "region"}
	return gen.SliceOf(gen.IntRange(0, len(pool)-1)).Map(func(idx []int) []string {
		out := make([]string, len(idx))
		for i, n := range idx {
			out[i] = pool[n]
		}
		return out
	})
}

func TestBuildExcludedNeverRetained(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("retained ∩ excluded = ∅", prop.ForAll(
		func(columns []string, excluded []string) bool {
			spec := Build(types.ModelDescriptor{Name: "T"}, columns, excluded)
			for _, r := range spec.RetainedColumns {
				for _, e := range excluded {
					if types.CanonicalName(e) == r {
						return false
					}
				}
			}
			return true
		},
		columnNames(),
		columnNames(),
	))

	properties.TestingRun(t)
}

func TestBuildRetainedSortedAndUnique(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("retained is sorted, deduplicated and equals the sort key", prop.ForAll(
		func(columns []string, excluded []string) bool {
			spec := Build(types.ModelDescriptor{Name: "T"}, columns, excluded)
			if !sort.StringsAreSorted(spec.RetainedColumns) {
				return false
			}
			for i := 1; i < len(spec.RetainedColumns); i++ {
				if spec.RetainedColumns[i] == spec.RetainedColumns[i-1] {
					return false
				}
			}
			if len(spec.SortKey) != len(spec.RetainedColumns) {
				return false
			}
			for i := range spec.SortKey {
				if spec.SortKey[i] != spec.RetainedColumns[i] {
					return false
				}
			}
			return true
		},
		columnNames(),
		columnNames(),
	))

	properties.TestingRun(t)
}
