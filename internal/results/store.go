// Package results persists per-model artifacts and run verdicts.
package results

import (
	"context"
	"errors"

	"github.com/arkilian/driftguard/pkg/types"
)

// ErrNotFound is returned when an artifact or verdict does not exist.
var ErrNotFound = errors.New("results: not found")

// Store is the artifact store. Persisting the same (run, model) twice
// replaces the earlier artifact.
type Store interface {
	// Persist writes one model's artifact.
	Persist(ctx context.Context, a types.Artifact) error

	// ListArtifacts returns every artifact of a run, ordered by model name.
	ListArtifacts(ctx context.Context, runID string) ([]types.Artifact, error)

	// RecordCount returns the record count of one artifact.
	RecordCount(ctx context.Context, runID, model string) (int, error)

	// PersistVerdict writes the run's single-row verdict.
	PersistVerdict(ctx context.Context, v types.Verdict) error

	// LatestVerdict returns the verdict of runID, or the most recent verdict
	// of any run when runID is empty.
	LatestVerdict(ctx context.Context, runID string) (*types.Verdict, error)

	// ClearRun removes every artifact and the verdict of runID.
	ClearRun(ctx context.Context, runID string) error

	// Close releases resources.
	Close() error
}
