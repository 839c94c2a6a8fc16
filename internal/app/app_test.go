package app

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/driftguard/internal/config"
	"github.com/arkilian/driftguard/internal/engine"
	"github.com/arkilian/driftguard/internal/results"
)

const releaseManifest = `{
  "releases": [
    {"version": "2.1", "models_impacted": {"orders": ["updated_at"], "items": []}},
    {"version": "2.0", "models_impacted": {"legacy": []}}
  ]
}`

const regressionConfig = `[
  {"name": "ORDERS", "database": "DW", "schema": "SALES",
   "filter_column": "STATUS", "filter_operator": "!=", "filter_column_value": "'VOID'"},
  {"name": "ITEMS", "database": "DW", "schema": "SALES"},
  {"name": "CUSTOMERS", "database": "DW", "schema": "SALES"}
]`

func execAll(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

// setup builds a data directory with a local storage tree and two attached
// SQLite schemas, and returns a configuration pointing at them.
func setup(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Log.Level = "error"
	cfg.Metrics.Textfile = filepath.Join(dir, "driftguard.prom")
	cfg.Precheck.RequiredSchemas = []string{"SALES", "SALES_REGRESSION"}

	storageDir := filepath.Join(dir, "storage", "configs")
	require.NoError(t, os.MkdirAll(storageDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "release_v2.1.json"), []byte(releaseManifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "regression_config.json"), []byte(regressionConfig), 0644))

	ref := filepath.Join(dir, "sales.db")
	cand := filepath.Join(dir, "sales_regression.db")
	execAll(t, ref,
		`CREATE TABLE ORDERS (ID INTEGER, STATUS VARCHAR(10), UPDATED_AT TEXT)`,
		`INSERT INTO ORDERS VALUES (1, 'OPEN', '2024-01-01'), (2, 'CLOSED', '2024-01-02'), (3, 'VOID', '2024-01-03')`,
		`CREATE TABLE ITEMS (SKU VARCHAR(20), QTY NUMBER(10,0))`,
		`INSERT INTO ITEMS VALUES ('A-1', 3), ('B-2', 5)`,
	)
	execAll(t, cand,
		`CREATE TABLE ORDERS (ID INTEGER, STATUS VARCHAR(10), UPDATED_AT TEXT)`,
		// VOID rows are filtered out; UPDATED_AT is excluded by the release
		`INSERT INTO ORDERS VALUES (2, 'CLOSED', '2025-02-02'), (1, 'OPEN', '2025-02-01'), (3, 'VOID', 'x')`,
		`CREATE TABLE ITEMS (SKU VARCHAR(20), QTY NUMBER(10,0))`,
		`INSERT INTO ITEMS VALUES ('B-2', 5), ('A-1', 3)`,
	)
	cfg.Warehouse.Attach = map[string]string{"SALES": ref, "SALES_REGRESSION": cand}
	return cfg
}

func openApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Open(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a
}

func TestDataRunEndToEnd(t *testing.T) {
	cfg := setup(t)
	a := openApp(t, cfg)
	ctx := context.Background()

	res := a.Run(ctx)
	require.NoError(t, res.Err)
	require.Equal(t, engine.StatusCompleted, res.Status)
	assert.Equal(t, "configs/release_v2.1.json", res.Manifest)
	assert.Equal(t, []string{"ORDERS", "ITEMS"}, res.Processed(), "CUSTOMERS is not impacted")
	require.NotNil(t, res.Verdict)
	assert.True(t, res.Verdict.Pass)
	assert.Equal(t, engine.ExitPass, res.ExitCode())

	store, ok := a.Results().(*results.SQLiteStore)
	require.True(t, ok)

	arts, err := store.ListArtifacts(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	for _, art := range arts {
		assert.Equal(t, 0, art.RecordCount, art.Model)
	}

	entries, err := store.RunLog(ctx, res.RunID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.GreaterOrEqual(t, len(entries), 2)
	assert.Equal(t, "start", entries[0].Function)
	assert.Equal(t, "mode data, verdict policy uniform_baseline", entries[0].Message)
	assert.Equal(t, "precheck", entries[1].Function)
	assert.Equal(t, len(res.Log), len(entries), "every entry is flushed exactly once")

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), `driftguard_runs_total{status="completed"} 1`))

	v, err := a.Reevaluate(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Verdict.Pass, v.Pass)
}

func TestSchemaRunEndToEnd(t *testing.T) {
	cfg := setup(t)
	cfg.Mode = config.ModeSchema
	cand := cfg.Warehouse.Attach["SALES_REGRESSION"]
	execAll(t, cand,
		`DROP TABLE ITEMS`,
		`CREATE TABLE ITEMS (SKU VARCHAR(40), QTY NUMBER(10,0), EXTRA TEXT)`,
	)
	a := openApp(t, cfg)

	res := a.Run(context.Background())
	require.Equal(t, engine.StatusCompleted, res.Status)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, []string{"ID, Pass", "STATUS, Pass", "UPDATED_AT, Pass"}, res.Outcomes[0].Detail)
	assert.Equal(t, []string{"SKU, Fail"}, res.Outcomes[1].Detail, "candidate-only EXTRA is not reported")
	assert.Equal(t, "all_pass", res.Verdict.Policy)
	assert.False(t, res.Verdict.Pass)
	assert.Equal(t, engine.ExitFail, res.ExitCode())
}

func TestPrecheckFailsWithoutSchema(t *testing.T) {
	cfg := setup(t)
	delete(cfg.Warehouse.Attach, "SALES_REGRESSION")
	a := openApp(t, cfg)

	res := a.Run(context.Background())
	assert.Equal(t, engine.StatusPrecheckFailed, res.Status)
	assert.Equal(t, engine.ExitAborted, res.ExitCode())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Warehouse.Driver = "oracle"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Log.Level = "loud"
	_, err = New(cfg)
	assert.Error(t, err)
}
