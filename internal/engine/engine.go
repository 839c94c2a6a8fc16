// Package engine orchestrates one regression run: precheck, release scope
// resolution, catalog loading, the scope gate, per-model validation, artifact
// persistence and the final verdict.
package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/arkilian/driftguard/internal/catalog"
	"github.com/arkilian/driftguard/internal/config"
	"github.com/arkilian/driftguard/internal/diff"
	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/internal/observability"
	"github.com/arkilian/driftguard/internal/outcome"
	"github.com/arkilian/driftguard/internal/release"
	"github.com/arkilian/driftguard/internal/results"
	"github.com/arkilian/driftguard/internal/runlog"
	"github.com/arkilian/driftguard/internal/schemadrift"
	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/internal/warehouse"
	"github.com/arkilian/driftguard/pkg/types"
)

// Status is the final state of a run.
type Status string

const (
	StatusCompleted           Status = "completed"
	StatusPrecheckFailed      Status = "precheck_failed"
	StatusManifestUnavailable Status = "manifest_unavailable"
	StatusCatalogInvalid      Status = "catalog_invalid"
	StatusScopeViolation      Status = "scope_violation"
	StatusNoImpactedModels    Status = "no_impacted_models"
	// StatusEvaluationFailed means models were validated but the artifacts
	// could not be read back to compute a verdict.
	StatusEvaluationFailed Status = "evaluation_failed"
)

// Exit codes returned by RunResult.ExitCode.
const (
	ExitPass    = 0
	ExitFail    = 1
	ExitAborted = 2
)

// RunResult is everything a run produced. Outcomes follow catalog order.
type RunResult struct {
	RunID  string
	Status Status
	// Err is the fatal error of an aborted run
	Err error

	// Manifest is the object path of the release manifest used
	Manifest string
	Scope    []string

	Outcomes []types.ModelOutcome
	// Skipped lists models whose artifact could not be persisted
	Skipped []string
	Verdict *types.Verdict
	// Digest fingerprints the persisted artifacts (model, status, detail)
	Digest string
	// TopDrift holds the most frequently drifting columns of the run
	TopDrift []observability.ColumnStats

	Log       []runlog.Entry
	StartedAt time.Time
	EndedAt   time.Time
}

// Aborted reports whether the run ended without a verdict. Only a completed
// run carries one.
func (r *RunResult) Aborted() bool {
	return r.Verdict == nil
}

// ExitCode maps the run to a process exit code.
func (r *RunResult) ExitCode() int {
	switch {
	case r.Aborted():
		return ExitAborted
	case r.Verdict.Pass:
		return ExitPass
	default:
		return ExitFail
	}
}

// Processed returns the models that produced an outcome, in catalog order.
func (r *RunResult) Processed() []string {
	out := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Model)
	}
	return out
}

// Options configures an engine.
type Options struct {
	Mode config.Mode

	// ManifestPrefix and ManifestPattern locate release manifests
	ManifestPrefix  string
	ManifestPattern string
	// CatalogKey is the object path of the regression configuration
	CatalogKey string

	CandidateSuffix string
	SampleSize      int
	Concurrency     int

	// RequiredSchemas must exist in the warehouse before a run starts
	RequiredSchemas []string

	Policy outcome.Policy

	// TopDrift bounds RunResult.TopDrift
	TopDrift int
}

// OptionsFromConfig derives engine options from a resolved configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	policy, err := outcome.NewPolicy(cfg.Outcome.Policy, cfg.Outcome.Baseline)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Mode:            cfg.Mode,
		ManifestPrefix:  cfg.Release.Prefix,
		ManifestPattern: cfg.Release.ManifestPattern,
		CatalogKey:      cfg.Release.CatalogKey,
		CandidateSuffix: cfg.Warehouse.CandidateSuffix,
		SampleSize:      cfg.Engine.SampleSize,
		Concurrency:     cfg.Engine.Concurrency,
		RequiredSchemas: cfg.Precheck.RequiredSchemas,
		Policy:          policy,
	}, nil
}

// Deps are the adapters an engine runs against.
type Deps struct {
	Storage   storage.ObjectStorage
	Warehouse warehouse.Warehouse
	Results   results.Store
	// Metrics is optional
	Metrics *observability.RunMetrics
	// Logger defaults to the logrus standard logger
	Logger *log.Logger
	// Sinks receive the run log in addition to the logrus sink
	Sinks []runlog.Sink
}

// Engine runs regression validations.
type Engine struct {
	opts Options
	deps Deps

	resolver  *release.Resolver
	differ    *diff.Engine
	checker   *schemadrift.Checker
	evaluator *outcome.Evaluator
	logger    *log.Entry

	newRunID func() string
	now      func() time.Time
}

// New creates an engine.
func New(opts Options, deps Deps) *Engine {
	if opts.Mode == "" {
		opts.Mode = config.ModeData
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.CandidateSuffix == "" {
		opts.CandidateSuffix = "_REGRESSION"
	}
	if opts.TopDrift <= 0 {
		opts.TopDrift = 5
	}
	if opts.Policy == nil {
		if opts.Mode == config.ModeSchema {
			opts.Policy = outcome.AllPass{}
		} else {
			opts.Policy = outcome.UniformBaseline{}
		}
	}
	if deps.Logger == nil {
		deps.Logger = log.StandardLogger()
	}

	return &Engine{
		opts:     opts,
		deps:     deps,
		resolver: release.NewResolver(deps.Storage, opts.ManifestPrefix, opts.ManifestPattern),
		differ: diff.NewEngine(deps.Warehouse, diff.Options{
			CandidateSuffix: opts.CandidateSuffix,
			SampleSize:      opts.SampleSize,
		}),
		checker:   schemadrift.NewChecker(deps.Warehouse, opts.CandidateSuffix),
		evaluator: outcome.NewEvaluator(deps.Results, opts.Policy),
		logger:    deps.Logger.WithField("component", "engine"),
		newRunID:  func() string { return uuid.New().String() },
		now:       time.Now,
	}
}

// Run executes one run under a fresh run id. It never returns an error:
// fatal failures are reported through RunResult.Status and RunResult.Err.
func (e *Engine) Run(ctx context.Context) *RunResult {
	return e.RunWithID(ctx, e.newRunID())
}

// RunWithID executes one run under runID. Re-running with the same id first
// clears the run's earlier artifacts and verdict.
func (e *Engine) RunWithID(ctx context.Context, runID string) *RunResult {
	sinks := append([]runlog.Sink{runlog.NewLogrusSink(e.deps.Logger)}, e.deps.Sinks...)
	run := runlog.New(runID, e.deps.Logger, sinks...)

	res := &RunResult{RunID: runID, StartedAt: e.now().UTC()}
	logger := e.logger.WithFields(log.Fields{"run_id": runID, "mode": e.opts.Mode, "policy": e.opts.Policy.Name()})
	logger.Info("Starting regression run")
	run.Logf("start", "mode %s, verdict policy %s", e.opts.Mode, e.opts.Policy.Name())

	defer func() {
		res.EndedAt = e.now().UTC()
		if err := run.Flush(ctx); err != nil {
			logger.WithError(err).Warn("Failed to flush run log")
		}
		res.Log = run.Entries()
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordRun(string(res.Status), res.Verdict, res.EndedAt)
		}

		fields := log.Fields{"status": res.Status, "models": len(res.Outcomes)}
		if res.Verdict != nil {
			fields["verdict"] = res.Verdict.Result()
		}
		if res.Err != nil {
			logger.WithFields(fields).WithError(res.Err).Error("Regression run aborted")
		} else {
			logger.WithFields(fields).Info("Regression run finished")
		}
	}()

	if err := e.precheck(ctx, run); err != nil {
		return abort(res, run, StatusPrecheckFailed, err)
	}
	if err := e.deps.Results.ClearRun(ctx, runID); err != nil {
		return abort(res, run, StatusPrecheckFailed,
			dgerrors.NewPrecheckFailure("failed to clear earlier results of run "+runID, err))
	}
	e.flush(ctx, run)

	resolution, err := e.resolver.Resolve(ctx)
	if err != nil {
		return abort(res, run, StatusManifestUnavailable, err)
	}
	res.Manifest = resolution.Key
	res.Scope = resolution.Scope.Models()
	run.Logf("resolve_scope", "release %s from %s impacts %d models: %s",
		versionOrUnknown(resolution.Version), resolution.Key, resolution.Scope.Len(), strings.Join(res.Scope, ", "))
	e.flush(ctx, run)

	models, err := catalog.Load(ctx, e.deps.Storage, e.opts.CatalogKey)
	if err != nil {
		return abort(res, run, StatusCatalogInvalid, err)
	}
	run.Logf("load_catalog", "loaded %d models from %s", len(models), e.opts.CatalogKey)

	if err := catalog.ValidateScope(resolution.Scope, models); err != nil {
		return abort(res, run, StatusScopeViolation, err)
	}

	selected := catalog.InScope(resolution.Scope, models)
	if len(selected) == 0 {
		run.Logf("validate_scope", "no catalog model is impacted by the release")
		res.Status = StatusNoImpactedModels
		return res
	}
	run.Logf("validate_scope", "%d of %d catalog models in scope", len(selected), len(models))
	e.flush(ctx, run)

	e.validateModels(ctx, run, resolution.Scope, selected, res)

	verdict, err := e.evaluator.Evaluate(ctx, runID)
	processed := strings.Join(res.Processed(), ", ")
	if verdict == nil {
		run.Logf("report", "list of models processed: %s", processed)
		return abort(res, run, StatusEvaluationFailed, err)
	}
	if err != nil {
		// Keep the computed verdict; only its persistence failed.
		run.Logf("evaluate", "failed to persist verdict: %v", err)
	}
	run.Logf("evaluate", "policy %s over %d artifacts, distinct record counts %v: %s",
		verdict.Policy, verdict.Artifacts, verdict.DistinctCounts, verdict.Result())
	run.Logf("report", "list of models processed: %s", processed)

	res.Verdict = verdict
	res.Status = StatusCompleted
	return res
}

// Scope resolves the release scope without running any validation.
func (e *Engine) Scope(ctx context.Context) (*release.Resolution, error) {
	return e.resolver.Resolve(ctx)
}

// Reevaluate recomputes and persists the verdict of a stored run.
func (e *Engine) Reevaluate(ctx context.Context, runID string) (*types.Verdict, error) {
	return e.evaluator.Evaluate(ctx, runID)
}

func (e *Engine) precheck(ctx context.Context, run *runlog.Run) error {
	exists, err := e.deps.Storage.Exists(ctx, e.opts.CatalogKey)
	if err != nil {
		return dgerrors.NewPrecheckFailure("failed to check regression configuration "+e.opts.CatalogKey, err)
	}
	if !exists {
		return dgerrors.NewPrecheckFailure("regression configuration "+e.opts.CatalogKey+" does not exist", nil)
	}

	if err := e.deps.Warehouse.Ping(ctx); err != nil {
		return dgerrors.NewPrecheckFailure("warehouse is unreachable", err)
	}

	for _, schema := range e.opts.RequiredSchemas {
		ok, err := e.deps.Warehouse.SchemaExists(ctx, schema)
		if err != nil {
			return dgerrors.NewPrecheckFailure("failed to check schema "+schema, err)
		}
		if !ok {
			return dgerrors.NewPrecheckFailure("required schema "+schema+" does not exist", nil)
		}
	}

	run.Logf("precheck", "regression configuration %s and %d required schemas present",
		e.opts.CatalogKey, len(e.opts.RequiredSchemas))
	return nil
}

// slot is the per-model result of validateModels.
type slot struct {
	outcome types.ModelOutcome
	// persisted is false when the artifact could not be written
	persisted bool
}

// validateModels runs every selected model through the worker pool. Results
// land in index-addressed slots so the reported order is the catalog order.
func (e *Engine) validateModels(ctx context.Context, run *runlog.Run, scope types.ReleaseScope,
	models []types.ModelDescriptor, res *RunResult) {

	agg := results.NewAggregator(run.ID, e.deps.Results)
	stats := observability.NewDriftStats()
	slots := make([]slot, len(models))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, desc := range models {
		i, desc := i, desc
		g.Go(func() error {
			slots[i] = e.validateModel(gctx, run, agg, stats, desc, scope.Excluded(desc.Name))
			return nil
		})
	}
	// Workers never return errors; model failures are recorded in slots.
	_ = g.Wait()

	for _, s := range slots {
		if !s.persisted {
			res.Skipped = append(res.Skipped, s.outcome.Model)
			continue
		}
		res.Outcomes = append(res.Outcomes, s.outcome)
	}
	res.Digest = digest(agg.Artifacts())
	res.TopDrift = stats.TopColumns(e.opts.TopDrift)
}

func (e *Engine) validateModel(ctx context.Context, run *runlog.Run, agg *results.Aggregator,
	stats *observability.DriftStats, desc types.ModelDescriptor, excluded []string) slot {

	mlog := run.Model(desc.Name)
	start := e.now()

	var (
		o   types.ModelOutcome
		err error
	)
	switch e.opts.Mode {
	case config.ModeSchema:
		mlog.Logf("schema_check", "comparing metadata of %s", desc.QualifiedName())
		o, err = e.checker.Check(ctx, desc)
	default:
		mlog.Logf("data_diff", "diffing %s excluding [%s]", desc.QualifiedName(), strings.Join(excluded, ", "))
		o, err = e.differ.Run(ctx, desc, excluded)
	}

	metricStatus := string(o.Status)
	if err != nil {
		mlog.Logf("validate", "%s (%s)", err, dgerrors.GetCode(err))
		o = failedOutcome(desc.Name, err)
		metricStatus = "error"
	}

	for _, col := range o.Drifted {
		stats.RecordColumn(desc.Name, col)
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordModel(string(e.opts.Mode), metricStatus, e.now().Sub(start))
		e.deps.Metrics.RecordMismatches(o.Mismatches)
	}
	mlog.Logf("validate", "%s: %s", o.Status, o.Summary)

	if _, err := agg.Add(ctx, o); err != nil {
		mlog.Logf("persist", "skipped: %v", err)
		e.flush(ctx, run)
		return slot{outcome: o}
	}
	mlog.Logf("persist", "stored %d detail records", len(o.Detail))
	e.flush(ctx, run)
	return slot{outcome: o, persisted: true}
}

// failedOutcome converts a per-model error into a Fail outcome carrying the
// error as its only detail row.
func failedOutcome(model string, err error) types.ModelOutcome {
	return types.ModelOutcome{
		Model:   model,
		Status:  types.StatusFail,
		Summary: "validation error: " + err.Error(),
		Detail:  []string{err.Error()},
	}
}

func (e *Engine) flush(ctx context.Context, run *runlog.Run) {
	if err := run.Flush(ctx); err != nil {
		e.logger.WithError(err).WithField("run_id", run.ID).Warn("Failed to flush run log")
	}
}

func abort(res *RunResult, run *runlog.Run, status Status, err error) *RunResult {
	res.Status = status
	res.Err = err
	run.Logf(string(status), "run aborted: %v", err)

	var de *dgerrors.DriftError
	if errors.As(err, &de) {
		if missing, ok := de.Details["missing"].([]string); ok {
			run.Logf(string(status), "missing models: %s", strings.Join(missing, ", "))
		}
	}
	return res
}

// digest hashes the artifacts ordered by model, independent of timestamps.
func digest(artifacts []types.Artifact) string {
	sorted := make([]types.Artifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Model < sorted[j].Model })

	h := murmur3.New128()
	for _, a := range sorted {
		fmt.Fprintf(h, "%s\x00%s\x00%d\x00", a.Model, a.Status, a.RecordCount)
		for _, d := range a.Detail {
			h.Write([]byte(d))
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func versionOrUnknown(v string) string {
	if v == "" {
		return "(unversioned)"
	}
	return v
}
