package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_SnapshotOrderAndOverwrite(t *testing.T) {
	r := NewRing(3)
	now := time.Now()
	r.PushOverwrite(Chunk{Bytes: []byte("a"), Timestamp: now})
	r.PushOverwrite(Chunk{Bytes: []byte("b"), Timestamp: now})
	r.PushOverwrite(Chunk{Bytes: []byte("c"), Timestamp: now})
	r.PushOverwrite(Chunk{Bytes: []byte("d"), Timestamp: now}) // overwrites "a"

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "b", string(snap[0].Bytes))
	assert.Equal(t, "c", string(snap[1].Bytes))
	assert.Equal(t, "d", string(snap[2].Bytes))
}

func TestRing_DefaultCapacity(t *testing.T) {
	r := NewRing(0)
	assert.Equal(t, DefaultRingCapacity, r.capacity)
}

func TestRing_TailBytes(t *testing.T) {
	r := NewRing(10)
	r.PushOverwrite(Chunk{Bytes: []byte("hello ")})
	r.PushOverwrite(Chunk{Bytes: []byte("world")})

	assert.Equal(t, "hello world", string(r.TailBytes(100)))
	assert.Equal(t, "orld", string(r.TailBytes(4)))
}
