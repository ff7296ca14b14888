package process

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/kdlbs/procd/internal/eventhub"
)

const (
	// pipelineReadSize is the chunk size read from the child's pipe
	// per read syscall.
	pipelineReadSize = 8 * 1024
	// maxPendingLine bounds the amount of undelimited data buffered
	// while waiting for a newline. A line that grows past this without
	// a '\n' has its oldest bytes discarded so an adversarial or
	// line-buffering-disabled child can't grow the pipeline's memory
	// without bound; only the most recent maxPendingLine bytes of that
	// line survive.
	maxPendingLine = 1024 * 1024
)

// LinePipeline drains one of a child's stdout/stderr pipes, splits it
// into lines, and fans each line out to the ring buffer, the batch
// writer, and the event hub, while feeding the readiness latch.
type LinePipeline struct {
	rec      *Record
	isStderr bool
	hub      *eventhub.Hub
	project  string
	ready    *Readiness
	lineSeq  *int64 // shared across stdout+stderr for this record
}

// NewLinePipeline constructs a pipeline for one stream of rec. lineSeq is
// a shared counter (stdout and stderr of the same process interleave
// into one line_number space for the live stream).
func NewLinePipeline(rec *Record, isStderr bool, hub *eventhub.Hub, project string, ready *Readiness, lineSeq *int64) *LinePipeline {
	return &LinePipeline{rec: rec, isStderr: isStderr, hub: hub, project: project, ready: ready, lineSeq: lineSeq}
}

// Run drains r until EOF or ctx cancellation, returning once the pipe is
// closed. It never returns an error for ordinary EOF; errors are best
// effort only (the reader side of a closed pipe, which is the normal
// termination route).
func (p *LinePipeline) Run(ctx context.Context, r io.Reader) {
	buf := make([]byte, pipelineReadSize)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := r.Read(buf)
		if n > 0 {
			ts := time.Now().UTC()
			pending = append(pending, buf[:n]...)
			pending = p.drainLines(pending, ts)
			if len(pending) > maxPendingLine {
				pending = pending[len(pending)-maxPendingLine:]
			}
		}
		if err != nil {
			if len(pending) > 0 {
				p.emitLine(pending, time.Now().UTC())
			}
			return
		}
	}
}

// drainLines emits every complete ('\n'-terminated) line in pending,
// returning the unconsumed remainder.
func (p *LinePipeline) drainLines(pending []byte, ts time.Time) []byte {
	for {
		idx := bytes.IndexByte(pending, '\n')
		if idx < 0 {
			return pending
		}
		p.emitLine(pending[:idx], ts)
		pending = pending[idx+1:]
	}
}

func (p *LinePipeline) emitLine(lineBytes []byte, ts time.Time) {
	content := string(lineBytes)

	p.rec.Ring.PushOverwrite(Chunk{Bytes: append([]byte(nil), lineBytes...), Timestamp: ts, IsStderr: p.isStderr})

	if p.rec.Writer != nil {
		p.rec.Writer.Write(WriterEntry{Timestamp: ts, Content: content, IsStderr: p.isStderr})
	}

	lineNo := int(atomic.AddInt64(p.lineSeq, 1))

	if p.hub != nil {
		p.hub.Publish(eventhub.StreamEvent{
			Project: p.project,
			Log: &eventhub.LogEvent{
				ProcessName: p.rec.Key.Name,
				Entry: eventhub.LogEntry{
					LineNumber:  lineNo,
					Content:     content,
					Timestamp:   ts,
					IsStderr:    p.isStderr,
					ProcessName: p.rec.Key.Name,
				},
			},
		})
	}

	if p.ready != nil {
		select {
		case <-p.ready.Done():
		default:
			if re := p.rec.WaitRegex(); re != nil && re.MatchString(content) {
				p.ready.FireMatch(content)
			}
		}
	}
}
