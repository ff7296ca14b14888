package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadiness_FireMatchWins(t *testing.T) {
	r := NewReadiness()
	r.FireMatch("READY")
	r.FireTimeout() // no-op, latch already fired

	select {
	case <-r.Done():
	default:
		t.Fatal("expected latch to be fired")
	}

	line, timedOut := r.Result()
	assert.Equal(t, "READY", line)
	assert.False(t, timedOut)
}

func TestReadiness_FireTimeout(t *testing.T) {
	r := NewReadiness()
	r.FireTimeout()

	line, timedOut := r.Result()
	assert.Empty(t, line)
	assert.True(t, timedOut)
}

func TestReadiness_FireChildExited(t *testing.T) {
	r := NewReadiness()
	r.FireChildExited()

	line, timedOut := r.Result()
	assert.Empty(t, line)
	assert.False(t, timedOut)
}

func TestReadiness_OnlyFirstFireWins(t *testing.T) {
	r := NewReadiness()
	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.FireTimeout()
		close(done)
	}()
	r.FireMatch("first")
	<-done

	line, timedOut := r.Result()
	assert.Equal(t, "first", line)
	assert.False(t, timedOut)
}
