package results

import (
	"context"
	"sync"
	"time"

	dgerrors "github.com/arkilian/driftguard/internal/errors"
	"github.com/arkilian/driftguard/pkg/types"
)

// Aggregator persists exactly one artifact per model of a run. Appends are
// serialized so concurrent workers can share one aggregator.
type Aggregator struct {
	runID string
	store Store
	now   func() time.Time

	mu        sync.Mutex
	persisted map[string]types.Artifact
	order     []string
}

// NewAggregator creates an aggregator for runID.
func NewAggregator(runID string, store Store) *Aggregator {
	return &Aggregator{
		runID:     runID,
		store:     store,
		now:       time.Now,
		persisted: make(map[string]types.Artifact),
	}
}

// Add converts the outcome to an artifact and persists it. A failing store
// yields a PersistError and the model is not counted.
func (g *Aggregator) Add(ctx context.Context, o types.ModelOutcome) (types.Artifact, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a := types.NewArtifact(g.runID, o, g.now().UTC())
	if err := g.store.Persist(ctx, a); err != nil {
		return types.Artifact{}, dgerrors.NewPersistError("failed to persist artifact for "+o.Model, err)
	}

	if _, seen := g.persisted[a.Model]; !seen {
		g.order = append(g.order, a.Model)
	}
	g.persisted[a.Model] = a
	return a, nil
}

// Artifacts returns the artifacts persisted through this aggregator in the
// order they were first added.
func (g *Aggregator) Artifacts() []types.Artifact {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]types.Artifact, 0, len(g.order))
	for _, m := range g.order {
		out = append(out, g.persisted[m])
	}
	return out
}

// Len returns the number of distinct models persisted.
func (g *Aggregator) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.order)
}
