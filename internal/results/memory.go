package results

import (
	"context"
	"sort"
	"sync"

	"github.com/arkilian/driftguard/pkg/types"
)

// MemoryStore is an in-process Store for dry runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string]types.Artifact
	verdicts  map[string]types.Verdict
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string]map[string]types.Artifact),
		verdicts:  make(map[string]types.Verdict),
	}
}

// Persist stores one artifact.
func (m *MemoryStore) Persist(ctx context.Context, a types.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.artifacts[a.RunID]
	if !ok {
		run = make(map[string]types.Artifact)
		m.artifacts[a.RunID] = run
	}
	a.Detail = append([]string(nil), a.Detail...)
	run[a.Model] = a
	return nil
}

// ListArtifacts returns the artifacts of runID ordered by model.
func (m *MemoryStore) ListArtifacts(_ context.Context, runID string) ([]types.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run := m.artifacts[runID]
	out := make([]types.Artifact, 0, len(run))
	for _, a := range run {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// RecordCount returns the record count of one artifact.
func (m *MemoryStore) RecordCount(_ context.Context, runID, model string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.artifacts[runID][model]
	if !ok {
		return 0, ErrNotFound
	}
	return a.RecordCount, nil
}

// PersistVerdict stores the verdict of a run.
func (m *MemoryStore) PersistVerdict(ctx context.Context, v types.Verdict) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[v.RunID] = v
	return nil
}

// LatestVerdict returns the verdict of runID, or the newest when empty.
func (m *MemoryStore) LatestVerdict(_ context.Context, runID string) (*types.Verdict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if runID != "" {
		v, ok := m.verdicts[runID]
		if !ok {
			return nil, ErrNotFound
		}
		return &v, nil
	}

	var latest *types.Verdict
	for id := range m.verdicts {
		v := m.verdicts[id]
		if latest == nil || v.EvaluatedAt.After(latest.EvaluatedAt) {
			latest = &v
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// ClearRun drops the artifacts and verdict of runID.
func (m *MemoryStore) ClearRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, runID)
	delete(m.verdicts, runID)
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
