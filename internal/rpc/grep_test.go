package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdlbs/procd/internal/process"
)

func lineAt(n int, content string, ts time.Time) process.ParsedLine {
	return process.ParsedLine{LineNumber: n, Content: content, Timestamp: ts}
}

// TestGrepLines_ContextWindow: with lines
// A, B, ERROR x, C, D and context=1, exactly one match surfaces with one
// line of context on either side.
func TestGrepLines_ContextWindow(t *testing.T) {
	now := time.Now().UTC()
	lines := []process.ParsedLine{
		lineAt(1, "A", now),
		lineAt(2, "B", now),
		lineAt(3, "ERROR x", now),
		lineAt(4, "C", now),
		lineAt(5, "D", now),
	}

	matches, err := grepLines(lines, "ERROR", 1, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ERROR x", matches[0].MatchedLine)
	assert.Equal(t, []string{"B"}, matches[0].ContextBefore)
	assert.Equal(t, []string{"C"}, matches[0].ContextAfter)
}

func TestGrepLines_ContextClampedAtBoundaries(t *testing.T) {
	now := time.Now().UTC()
	lines := []process.ParsedLine{
		lineAt(1, "ERROR first", now),
		lineAt(2, "middle", now),
		lineAt(3, "ERROR last", now),
	}

	matches, err := grepLines(lines, "ERROR", 5, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Empty(t, matches[0].ContextBefore)
	assert.Equal(t, []string{"middle", "ERROR last"}, matches[0].ContextAfter)
	assert.Equal(t, []string{"ERROR first", "middle"}, matches[1].ContextBefore)
	assert.Empty(t, matches[1].ContextAfter)
}

func TestGrepLines_InvalidRegex(t *testing.T) {
	_, err := grepLines([]process.ParsedLine{lineAt(1, "x", time.Now())}, "(unterminated", 0, 0)
	assert.Error(t, err)
}

func TestParseLast(t *testing.T) {
	cases := map[string]time.Duration{
		"1h":  time.Hour,
		"30m": 30 * time.Minute,
		"2d":  48 * time.Hour,
		"45s": 45 * time.Second,
	}
	for in, want := range cases {
		got, err := parseLast(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := parseLast("garbage")
	assert.Error(t, err)
}

func TestParseClockOrDate(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	got, err := parseClockOrDate("2026-07-28 09:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 28, 9, 30, 0, 0, time.UTC), got)

	got, err = parseClockOrDate("09:30", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 29, 9, 30, 0, 0, time.UTC), got)

	_, err = parseClockOrDate("not-a-time", now)
	assert.Error(t, err)

	got, err = parseClockOrDate("", now)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestTimeWindow_LastTakesPriority(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	from, to, err := timeWindow("2000-01-01 00:00", "2000-01-02 00:00", "1h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-time.Hour), from)
	assert.Equal(t, now, to)
}

func TestInWindow(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, inWindow(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), from, to))
	assert.False(t, inWindow(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), from, to))
	assert.False(t, inWindow(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), from, to))
	assert.True(t, inWindow(time.Time{}, from, to), "unparsed timestamps are never time-filtered out")
}

func TestRingToLines_RenumbersFromOne(t *testing.T) {
	chunks := []process.Chunk{
		{Bytes: []byte("first\n")},
		{Bytes: []byte("second\n")},
	}
	lines := ringToLines(chunks)
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].LineNumber)
	assert.Equal(t, "first", lines[0].Content)
	assert.Equal(t, 2, lines[1].LineNumber)
	assert.Equal(t, "second", lines[1].Content)
}
