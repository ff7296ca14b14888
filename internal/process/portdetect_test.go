package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPort(t *testing.T) {
	cases := []struct {
		name string
		want int
		ok   bool
	}{
		{"*:3000", 3000, true},
		{"127.0.0.1:8080", 8080, true},
		{"[::]:3000", 3000, true},
		{"[::1]:9090", 9090, true},
		{"no-colon-here", 0, false},
		{"host:not-a-port", 0, false},
	}
	for _, c := range cases {
		port, ok := extractPort(c.name)
		assert.Equal(t, c.ok, ok, c.name)
		if c.ok {
			assert.Equal(t, c.want, port, c.name)
		}
	}
}

func TestPortSetEqual(t *testing.T) {
	a := map[int]struct{}{3000: {}, 4000: {}}
	b := map[int]struct{}{4000: {}, 3000: {}}
	c := map[int]struct{}{3000: {}}

	assert.True(t, portSetEqual(a, b))
	assert.False(t, portSetEqual(a, c))
	assert.False(t, portSetEqual(a, nil))
	assert.True(t, portSetEqual(nil, nil))
}
