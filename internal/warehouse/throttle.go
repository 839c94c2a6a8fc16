package warehouse

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/arkilian/driftguard/internal/dataset"
	"github.com/arkilian/driftguard/pkg/types"
)

// ThrottledWarehouse limits the rate of metadata and data calls made to a
// shared warehouse. Workers block until a token is available or their
// context is done.
type ThrottledWarehouse struct {
	Warehouse
	limiter *rate.Limiter
}

// Throttle wraps wh with a limiter allowing qps calls per second with the
// given burst. A non-positive qps returns wh unchanged.
func Throttle(wh Warehouse, qps float64, burst int) Warehouse {
	if qps <= 0 {
		return wh
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledWarehouse{Warehouse: wh, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// SchemaExists waits for a token, then delegates.
func (t *ThrottledWarehouse) SchemaExists(ctx context.Context, schema string) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, err
	}
	return t.Warehouse.SchemaExists(ctx, schema)
}

// Columns waits for a token, then delegates.
func (t *ThrottledWarehouse) Columns(ctx context.Context, loc Location) ([]types.ColumnMetadata, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Warehouse.Columns(ctx, loc)
}

// Load waits for a token, then delegates.
func (t *ThrottledWarehouse) Load(ctx context.Context, loc Location) (*dataset.Table, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Warehouse.Load(ctx, loc)
}
