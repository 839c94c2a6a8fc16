// Package observability provides run metrics and drift statistics.
package observability

import (
	"sort"
	"sync"
	"time"
)

// DriftStats tracks how often each column drifts across the models of a run.
type DriftStats struct {
	mu      sync.RWMutex
	columns map[string]*ColumnStats
}

// ColumnStats holds drift statistics for one column name.
type ColumnStats struct {
	Column    string
	Frequency int64
	LastSeen  time.Time
	Models    map[string]int // model → drifting rows or checks
}

// NewDriftStats creates an empty drift statistics tracker.
func NewDriftStats() *DriftStats {
	return &DriftStats{columns: make(map[string]*ColumnStats)}
}

// RecordColumn records one drift of column in model.
// This method is O(1) and thread-safe.
func (d *DriftStats) RecordColumn(model, column string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats, exists := d.columns[column]
	if !exists {
		stats = &ColumnStats{
			Column: column,
			Models: make(map[string]int),
		}
		d.columns[column] = stats
	}

	stats.Frequency++
	stats.LastSeen = time.Now()
	stats.Models[model]++
}

// TopColumns returns the top N drifting columns by frequency. Ties are
// ordered by column name. Returns copies.
func (d *DriftStats) TopColumns(n int) []ColumnStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if n <= 0 || len(d.columns) == 0 {
		return []ColumnStats{}
	}

	stats := make([]ColumnStats, 0, len(d.columns))
	for _, s := range d.columns {
		statsCopy := ColumnStats{
			Column:    s.Column,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Models:    make(map[string]int, len(s.Models)),
		}
		for m, count := range s.Models {
			statsCopy.Models[m] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Column < stats[j].Column
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Len returns the number of distinct drifting columns.
func (d *DriftStats) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.columns)
}
