package results

// Schema of the SQLite results database (results.db).

// CreateArtifactsTableSQL holds one row per (run, model). detail is a JSON
// array of strings; record_count is its length.
const CreateArtifactsTableSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
    run_id TEXT NOT NULL,
    model TEXT NOT NULL,
    status TEXT NOT NULL,
    summary TEXT NOT NULL,
    detail TEXT NOT NULL,
    record_count INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (run_id, model)
)`

// CreateVerdictsTableSQL holds the single-row boolean verdict of each run.
const CreateVerdictsTableSQL = `
CREATE TABLE IF NOT EXISTS verdicts (
    run_id TEXT PRIMARY KEY,
    result TEXT NOT NULL,
    policy TEXT NOT NULL,
    baseline INTEGER NOT NULL,
    distinct_counts TEXT NOT NULL,
    artifacts INTEGER NOT NULL,
    evaluated_at INTEGER NOT NULL
)`

// CreateRunLogTableSQL holds the per-function audit trail.
const CreateRunLogTableSQL = `
CREATE TABLE IF NOT EXISTS run_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    function_name TEXT NOT NULL,
    model TEXT,
    message TEXT NOT NULL,
    logged_at INTEGER NOT NULL
)`

// CreateIndexesSQL creates lookup indexes.
var CreateIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_verdicts_evaluated ON verdicts(evaluated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_run_log_run ON run_log(run_id, seq)`,
}

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	stmts := []string{
		CreateArtifactsTableSQL,
		CreateVerdictsTableSQL,
		CreateRunLogTableSQL,
	}
	return append(stmts, CreateIndexesSQL...)
}
