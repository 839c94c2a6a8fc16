// Package runlog keeps the ordered audit trail of one run and flushes it to
// log sinks.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Entry is one audit line.
type Entry struct {
	RunID    string    `json:"run_id"`
	Seq      int       `json:"seq"`
	Function string    `json:"function"`
	Model    string    `json:"model,omitempty"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// Sink persists audit lines.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Run is the explicit run context threaded through a run: the run id plus
// the ordered in-memory log. Safe for concurrent use.
type Run struct {
	ID string

	mu      sync.Mutex
	entries []Entry
	flushed int
	sinks   []Sink
	logger  *log.Entry
	now     func() time.Time
}

// New creates a run context. Entries are mirrored to logger at debug level.
func New(id string, logger *log.Logger, sinks ...Sink) *Run {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Run{
		ID:     id,
		sinks:  sinks,
		logger: logger.WithField("run_id", id),
		now:    time.Now,
	}
}

// Logf appends a run-level entry.
func (r *Run) Logf(function, format string, args ...interface{}) {
	r.append(function, "", fmt.Sprintf(format, args...))
}

// Model returns a view that tags entries with a model name.
func (r *Run) Model(name string) *ModelLog {
	return &ModelLog{run: r, model: name}
}

func (r *Run) append(function, model, message string) {
	r.mu.Lock()
	e := Entry{
		RunID:    r.ID,
		Seq:      len(r.entries) + 1,
		Function: function,
		Model:    model,
		Message:  message,
		Time:     r.now().UTC(),
	}
	r.entries = append(r.entries, e)
	r.mu.Unlock()

	fields := log.Fields{"function": function}
	if model != "" {
		fields["model"] = model
	}
	r.logger.WithFields(fields).Debug(message)
}

// Entries returns a copy of all entries in append order.
func (r *Run) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Messages returns "function: message" lines in append order.
func (r *Run) Messages() []string {
	entries := r.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Function + ": " + e.Message
	}
	return out
}

// Flush appends every entry not yet flushed to each sink. A failing append
// is reported but does not stop the remaining entries or sinks; flushed
// entries are never sent twice.
func (r *Run) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := r.entries[r.flushed:]
	var errs []error
	for _, sink := range r.sinks {
		for _, e := range pending {
			if err := sink.Append(ctx, e); err != nil {
				r.logger.WithError(err).WithField("seq", e.Seq).Warn("run log append failed")
				errs = append(errs, err)
			}
		}
	}
	r.flushed = len(r.entries)
	return errors.Join(errs...)
}

// ModelLog writes entries tagged with one model.
type ModelLog struct {
	run   *Run
	model string
}

// Logf appends a model-level entry.
func (m *ModelLog) Logf(function, format string, args ...interface{}) {
	m.run.append(function, m.model, fmt.Sprintf(format, args...))
}
