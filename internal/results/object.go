package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/arkilian/driftguard/internal/storage"
	"github.com/arkilian/driftguard/pkg/types"
	"github.com/golang/snappy"
)

const (
	artifactSuffix = ".json.sz"
	verdictObject  = "_verdict" + artifactSuffix
)

// ObjectStore keeps artifacts as snappy-compressed JSON objects:
// <prefix>/<run_id>/<model>.json.sz, and the verdict as
// <prefix>/<run_id>/_verdict.json.sz.
type ObjectStore struct {
	store  storage.ObjectStorage
	prefix string
}

// NewObjectStore creates an object-storage-backed artifact store.
func NewObjectStore(store storage.ObjectStorage, prefix string) *ObjectStore {
	return &ObjectStore{store: store, prefix: strings.Trim(prefix, "/")}
}

func (o *ObjectStore) runPrefix(runID string) string {
	return path.Join(o.prefix, runID) + "/"
}

func (o *ObjectStore) artifactKey(runID, model string) string {
	return path.Join(o.prefix, runID, model+artifactSuffix)
}

func (o *ObjectStore) put(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return o.store.Put(ctx, key, snappy.Encode(nil, data))
}

func (o *ObjectStore) get(ctx context.Context, key string, v interface{}) error {
	compressed, err := o.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return ErrNotFound
		}
		return err
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("results: corrupt object %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

// Persist writes one artifact object.
func (o *ObjectStore) Persist(ctx context.Context, a types.Artifact) error {
	if err := o.put(ctx, o.artifactKey(a.RunID, a.Model), a); err != nil {
		return fmt.Errorf("results: failed to persist artifact %s/%s: %w", a.RunID, a.Model, err)
	}
	return nil
}

// ListArtifacts reads every artifact object of runID.
func (o *ObjectStore) ListArtifacts(ctx context.Context, runID string) ([]types.Artifact, error) {
	objects, err := o.store.ListObjects(ctx, o.runPrefix(runID))
	if err != nil {
		return nil, fmt.Errorf("results: failed to list artifacts: %w", err)
	}

	var out []types.Artifact
	for _, obj := range objects {
		base := path.Base(obj.Key)
		if base == verdictObject || !strings.HasSuffix(base, artifactSuffix) {
			continue
		}
		var a types.Artifact
		if err := o.get(ctx, obj.Key, &a); err != nil {
			return nil, fmt.Errorf("results: failed to read %s: %w", obj.Key, err)
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}

// RecordCount reads one artifact and returns its record count.
func (o *ObjectStore) RecordCount(ctx context.Context, runID, model string) (int, error) {
	var a types.Artifact
	if err := o.get(ctx, o.artifactKey(runID, model), &a); err != nil {
		return 0, err
	}
	return a.RecordCount, nil
}

// PersistVerdict writes the verdict object of the run.
func (o *ObjectStore) PersistVerdict(ctx context.Context, v types.Verdict) error {
	if err := o.put(ctx, path.Join(o.prefix, v.RunID, verdictObject), v); err != nil {
		return fmt.Errorf("results: failed to persist verdict %s: %w", v.RunID, err)
	}
	return nil
}

// LatestVerdict reads the verdict of runID, or scans all runs for the newest
// verdict object when runID is empty.
func (o *ObjectStore) LatestVerdict(ctx context.Context, runID string) (*types.Verdict, error) {
	key := path.Join(o.prefix, runID, verdictObject)
	if runID == "" {
		objects, err := o.store.ListObjects(ctx, o.prefix)
		if err != nil {
			return nil, fmt.Errorf("results: failed to list verdicts: %w", err)
		}
		latest, ok := storage.Latest(storage.MatchBase(objects, verdictObject))
		if !ok {
			return nil, ErrNotFound
		}
		key = latest.Key
	}

	var v types.Verdict
	if err := o.get(ctx, key, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ClearRun deletes every object under the run's prefix, verdict included.
func (o *ObjectStore) ClearRun(ctx context.Context, runID string) error {
	objects, err := o.store.ListObjects(ctx, o.runPrefix(runID))
	if err != nil {
		return fmt.Errorf("results: failed to list run %s: %w", runID, err)
	}
	for _, obj := range objects {
		if err := o.store.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("results: failed to clear run %s: %w", runID, err)
		}
	}
	return nil
}

// Close is a no-op.
func (o *ObjectStore) Close() error {
	return nil
}
