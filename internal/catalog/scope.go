package catalog

import (
	"sort"
	"strings"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/pkg/types"
)

// ValidateScope checks that every model in the release scope is declared in
// the catalog. It returns a ScopeViolation naming all missing models.
func ValidateScope(scope types.ReleaseScope, models []types.ModelDescriptor) error {
	declared := make(map[string]struct{}, len(models))
	for _, m := range models {
		declared[m.Name] = struct{}{}
	}

	var missing []string
	for _, name := range scope.Models() {
		if _, ok := declared[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sort.Strings(missing)
	return dgerrors.NewScopeViolation(
		"release models not in regression config: " + strings.Join(missing, ", ")).
		WithDetails(map[string]interface{}{"missing": missing})
}

// InScope returns the catalog models impacted by the release, in catalog
// order.
func InScope(scope types.ReleaseScope, models []types.ModelDescriptor) []types.ModelDescriptor {
	var out []types.ModelDescriptor
	for _, m := range models {
		if scope.Contains(m.Name) {
			out = append(out, m)
		}
	}
	return out
}
