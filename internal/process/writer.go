package process

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kdlbs/procd/internal/logger"
)

// WriterEntry is a single line queued for the on-disk log.
type WriterEntry struct {
	Timestamp time.Time
	Content   string
	IsStderr  bool
}

// WriterConfig tunes the batching policy; zero-value fields fall back to
// the built-in defaults.
type WriterConfig struct {
	QueueCapacity int
	BatchSize     int
	BatchInterval time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 500 * time.Millisecond
	}
	return c
}

// BatchWriter owns a single append-only log file and drains queued
// entries in time/size batches. Multiple producers (stdout +
// stderr pipelines) enqueue via Write; a single background goroutine
// consumes.
type BatchWriter struct {
	path   string
	queue  chan WriterEntry
	done   chan struct{}
	log    *logger.Logger
	dropMu sync.Mutex
	dropd  bool // logged the "queue full" warning once since last successful send
}

// NewBatchWriter opens the log file in append mode, so a process's log
// survives across runs and daemon restarts, and starts the drain
// goroutine.
func NewBatchWriter(path string, cfg WriterConfig, log *logger.Logger) (*BatchWriter, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	w := &BatchWriter{
		path:  path,
		queue: make(chan WriterEntry, cfg.QueueCapacity),
		done:  make(chan struct{}),
		log:   log,
	}

	go w.run(f, cfg)

	return w, nil
}

// Write enqueues entry without blocking; if the queue is full the entry is
// dropped and a warning logged once.
func (w *BatchWriter) Write(entry WriterEntry) {
	select {
	case w.queue <- entry:
		w.dropMu.Lock()
		w.dropd = false
		w.dropMu.Unlock()
	default:
		w.dropMu.Lock()
		alreadyWarned := w.dropd
		w.dropd = true
		w.dropMu.Unlock()
		if !alreadyWarned {
			w.log.Warn("log writer queue full, dropping entry", zap.String("path", w.path))
		}
	}
}

// Close stops the drain goroutine after flushing remaining entries, and
// closes the file. It blocks until the goroutine has exited.
func (w *BatchWriter) Close() {
	close(w.queue)
	<-w.done
}

func (w *BatchWriter) run(f *os.File, cfg WriterConfig) {
	defer close(w.done)
	defer f.Close()

	ticker := time.NewTicker(cfg.BatchInterval)
	defer ticker.Stop()

	batch := make([]WriterEntry, 0, cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := writeBatch(f, batch); err != nil {
			w.log.Error("failed to flush log batch", zap.String("path", w.path), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// writeBatch formats every entry into the on-disk line format and issues
// a single contiguous Write syscall.
func writeBatch(f *os.File, batch []WriterEntry) error {
	var buf bytes.Buffer
	for _, e := range batch {
		level := "INFO"
		if e.IsStderr {
			level = "ERROR"
		}
		content := e.Content
		fmt.Fprintf(&buf, "%s [%s] %s", e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"), level, content)
		if len(content) == 0 || content[len(content)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	_, err := f.Write(buf.Bytes())
	return err
}
