package catalog

import (
	"context"
	"errors"
	"testing"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogJSON = `[
	{"name": "orders", "database": "DW", "schema": "SALES",
	 "filter_column": "status", "filter_operator": "=", "filter_column_value": "'OPEN'"},
	{"name": "ITEMS", "database": "DW", "schema": "SALES",
	 "filter_column": "qty", "filter_operator": "", "filter_column_value": "3"},
	{"name": "Customers", "database": "DW", "schema": "CRM"}
]`

func TestParseJSON(t *testing.T) {
	models, err := Parse([]byte(catalogJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, models, 3)

	assert.Equal(t, []string{"ORDERS", "ITEMS", "CUSTOMERS"},
		[]string{models[0].Name, models[1].Name, models[2].Name}, "declared order is preserved")

	require.NotNil(t, models[0].Filter)
	assert.Equal(t, types.Filter{Column: "STATUS", Operator: types.OpEqual, Value: "'OPEN'"}, *models[0].Filter)
	assert.Nil(t, models[1].Filter, "partial filter is ignored")
	assert.Nil(t, models[2].Filter)
	assert.Equal(t, "DW.CRM.CUSTOMERS", models[2].QualifiedName())
}

func TestParseYAML(t *testing.T) {
	doc := `
- name: orders
  database: DW
  schema: SALES
  filter_column: amount
  filter_operator: ">="
  filter_column_value: "100"
- name: items
  database: DW
  schema: SALES
`
	models, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, types.OpGreaterEqual, models[0].Filter.Operator)
	assert.Equal(t, "ITEMS", models[1].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed", `[{"name": `},
		{"not an array", `{"name": "A"}`},
		{"missing name", `[{"database": "DW", "schema": "S"}]`},
		{"missing database", `[{"name": "A", "schema": "S"}]`},
		{"missing schema", `[{"name": "A", "database": "DW"}]`},
		{"duplicate", `[{"name": "A", "database": "DW", "schema": "S"}, {"name": "a", "database": "DW", "schema": "T"}]`},
		{"bad operator", `[{"name": "A", "database": "DW", "schema": "S", "filter_column": "X", "filter_operator": "LIKE", "filter_column_value": "1"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			assert.True(t, errors.Is(err, dgerrors.ErrCatalogParse), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "configs/regression_config.json", []byte(catalogJSON)))

	models, err := Load(ctx, store, "configs/regression_config.json")
	require.NoError(t, err)
	assert.Len(t, models, 3)

	_, err = Load(ctx, store, "configs/missing.json")
	assert.True(t, errors.Is(err, dgerrors.ErrCatalogParse))
}

func TestFormatForKey(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForKey("a/b.YML"))
	assert.Equal(t, FormatYAML, FormatForKey("a/b.yaml"))
	assert.Equal(t, FormatJSON, FormatForKey("a/b.json"))
	assert.Equal(t, FormatJSON, FormatForKey("a/b"))
}

func TestValidateScope(t *testing.T) {
	models, err := Parse([]byte(catalogJSON), FormatJSON)
	require.NoError(t, err)

	ok := types.NewReleaseScope(map[string][]string{"orders": {"UPDATED_AT"}, "customers": nil})
	assert.NoError(t, ValidateScope(ok, models))

	bad := types.NewReleaseScope(map[string][]string{"ORDERS": nil, "SKU_NEW": nil, "ALPHA": nil})
	err = ValidateScope(bad, models)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dgerrors.ErrScopeViolation))
	assert.Contains(t, err.Error(), "ALPHA, SKU_NEW")

	var de *dgerrors.DriftError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"ALPHA", "SKU_NEW"}, de.Details["missing"])

	assert.NoError(t, ValidateScope(types.NewReleaseScope(nil), models))
}

func TestInScopeKeepsCatalogOrder(t *testing.T) {
	models, err := Parse([]byte(catalogJSON), FormatJSON)
	require.NoError(t, err)

	scope := types.NewReleaseScope(map[string][]string{"CUSTOMERS": nil, "ORDERS": nil})
	in := InScope(scope, models)
	require.Len(t, in, 2)
	assert.Equal(t, "ORDERS", in[0].Name)
	assert.Equal(t, "CUSTOMERS", in[1].Name)
}
