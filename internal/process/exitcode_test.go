package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatExitReason(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{0, "Process exited normally"},
		{1, "General error"},
		{2, "Misuse of shell builtin"},
		{126, "Command cannot execute"},
		{127, "Command not found"},
		{137, "Terminated by signal 9"},
		{143, "Terminated by signal 15"},
		{-1, "Unknown error"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatExitReason(c.code), "code %d", c.code)
	}
}

func TestIsSignalTermination(t *testing.T) {
	assert.False(t, IsSignalTermination(0))
	assert.False(t, IsSignalTermination(127))
	assert.False(t, IsSignalTermination(128))
	assert.True(t, IsSignalTermination(137))
}
