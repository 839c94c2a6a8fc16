package runlog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, Entry) error {
	f.calls++
	return errors.New("sink down")
}

func TestRunOrderAndFlush(t *testing.T) {
	sink := NewMemorySink()
	run := New("run-1", nil, sink)

	run.Logf("main", "Function Initiated")
	run.Model("ORDERS").Logf("regression_process", "rows=%d", 3)
	require.NoError(t, run.Flush(context.Background()))

	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Seq)
	assert.Equal(t, "main", entries[0].Function)
	assert.Empty(t, entries[0].Model)
	assert.Equal(t, "ORDERS", entries[1].Model)
	assert.Equal(t, "rows=3", entries[1].Message)
	assert.Equal(t, "run-1", entries[1].RunID)

	// Already flushed entries are not re-sent
	run.Logf("main", "done")
	require.NoError(t, run.Flush(context.Background()))
	assert.Len(t, sink.Entries(), 3)

	assert.Equal(t, []string{"main: Function Initiated", "regression_process: rows=3", "main: done"}, run.Messages())
}

func TestFlushSinkFailureIsolated(t *testing.T) {
	bad := &failingSink{}
	good := NewMemorySink()
	run := New("run-2", nil, bad, good)

	run.Logf("main", "a")
	run.Logf("main", "b")
	err := run.Flush(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, bad.calls)
	assert.Len(t, good.Entries(), 2)

	// Failed entries are not retried
	assert.NoError(t, run.Flush(context.Background()))
	assert.Equal(t, 2, bad.calls)
}

func TestRunConcurrentAppends(t *testing.T) {
	run := New("run-3", nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				run.Model(fmt.Sprintf("M%d", id)).Logf("worker", "%d", j)
			}
		}(i)
	}
	wg.Wait()

	entries := run.Entries()
	require.Len(t, entries, 400)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestLogrusSink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	sink := NewLogrusSink(logger)
	run := New("run-4", logger, sink)
	run.Model("ORDERS").Logf("save_regression_result", "persisted")
	require.NoError(t, run.Flush(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"model":"ORDERS"`)
	assert.Contains(t, out, `"function":"save_regression_result"`)
	assert.Contains(t, out, `"msg":"persisted"`)
}
