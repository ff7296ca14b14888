package process

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdlbs/procd/internal/logger"
)

func TestBatchWriter_FlushesOnCloseAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj", "web.log")

	w, err := NewBatchWriter(path, WriterConfig{BatchSize: 100, BatchInterval: time.Hour}, logger.NewNop())
	require.NoError(t, err)

	ts := time.Date(2026, 7, 29, 10, 0, 0, 123000000, time.UTC)
	w.Write(WriterEntry{Timestamp: ts, Content: "hello stdout", IsStderr: false})
	w.Write(WriterEntry{Timestamp: ts, Content: "oops", IsStderr: true})
	w.Close()

	lines, err := ReadLogFile(path)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "hello stdout", lines[0].Content)
	assert.False(t, lines[0].IsStderr)
	assert.WithinDuration(t, ts, lines[0].Timestamp, time.Millisecond)

	assert.Equal(t, "oops", lines[1].Content)
	assert.True(t, lines[1].IsStderr)
}

func TestBatchWriter_FlushesOnBatchSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "web.log")

	w, err := NewBatchWriter(path, WriterConfig{BatchSize: 2, BatchInterval: time.Hour}, logger.NewNop())
	require.NoError(t, err)
	defer w.Close()

	w.Write(WriterEntry{Timestamp: time.Now().UTC(), Content: "a"})
	w.Write(WriterEntry{Timestamp: time.Now().UTC(), Content: "b"})

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_FlushesOnTimer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "web.log")

	w, err := NewBatchWriter(path, WriterConfig{BatchSize: 1000, BatchInterval: 20 * time.Millisecond}, logger.NewNop())
	require.NoError(t, err)
	defer w.Close()

	w.Write(WriterEntry{Timestamp: time.Now().UTC(), Content: "lonely line"})

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && len(data) > 0
	}, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_WriteNeverBlocksOnFullQueue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "web.log")

	// Producers must never block on Write, even against a tiny queue
	// (a full queue drops the entry instead).
	w, err := NewBatchWriter(path, WriterConfig{QueueCapacity: 1, BatchSize: 1000, BatchInterval: time.Hour}, logger.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			w.Write(WriterEntry{Timestamp: time.Now().UTC(), Content: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write must never block on a full queue")
	}
	w.Close()
}
