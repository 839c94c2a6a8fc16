package runlog

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LogrusSink writes audit lines to a logrus logger at info level.
type LogrusSink struct {
	logger *log.Logger
}

// NewLogrusSink creates a sink on logger (the standard logger if nil).
func NewLogrusSink(logger *log.Logger) *LogrusSink {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogrusSink{logger: logger}
}

// Append logs one entry.
func (s *LogrusSink) Append(_ context.Context, e Entry) error {
	fields := log.Fields{
		"run_id":   e.RunID,
		"seq":      e.Seq,
		"function": e.Function,
	}
	if e.Model != "" {
		fields["model"] = e.Model
	}
	s.logger.WithFields(fields).WithTime(e.Time).Info(e.Message)
	return nil
}

// MemorySink collects entries in memory.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemorySink creates an empty memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append stores one entry.
func (s *MemorySink) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Entries returns a copy of the stored entries.
func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
