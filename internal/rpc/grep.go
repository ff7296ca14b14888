package rpc

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kdlbs/procd/internal/process"
)

var (
	errInvalidTimeFilter = errors.New("invalid time filter")
	errInvalidPattern    = errors.New("invalid pattern")
	errLogsNotFound      = errors.New("no log history for process")
)

// parseLast parses a duration shorthand like "1h", "30m", "2d", "45s"
// for the grep last filter.
func parseLast(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", errInvalidTimeFilter, s)
	}
	unit := s[len(s)-1]
	numPart := s[:len(s)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidTimeFilter, s)
	}
	switch unit {
	case 's':
		return time.Duration(n) * time.Second, nil
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: %q", errInvalidTimeFilter, s)
	}
}

// parseClockOrDate parses "YYYY-MM-DD HH:MM[:SS]" or "HH:MM[:SS]"
// (today).
func parseClockOrDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{"2006-01-02 15:04:05", "2006-01-02 15:04"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	clockLayouts := []string{"15:04:05", "15:04"}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errInvalidTimeFilter, s)
}

// timeWindow resolves since/until/last into an optional [from, to] window
// (inWindow keeps timestamps equal to either bound).
func timeWindow(since, until, last string, now time.Time) (from, to time.Time, err error) {
	if last != "" {
		d, err := parseLast(last)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return now.Add(-d), now, nil
	}
	from, err = parseClockOrDate(since, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err = parseClockOrDate(until, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func inWindow(ts, from, to time.Time) bool {
	if ts.IsZero() {
		return true // lines with no parsed timestamp are never filtered out by time
	}
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

// grepLines runs the grep algorithm over an already time-
// filtered slice of lines.
func grepLines(lines []process.ParsedLine, pattern string, before, after int) ([]GrepMatch, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidPattern, err)
	}

	var matches []GrepMatch
	for i, line := range lines {
		if !re.MatchString(line.Content) {
			continue
		}
		start := i - before
		if start < 0 {
			start = 0
		}
		end := i + after
		if end >= len(lines) {
			end = len(lines) - 1
		}

		var ctxBefore, ctxAfter []string
		for j := start; j < i; j++ {
			ctxBefore = append(ctxBefore, lines[j].Content)
		}
		for j := i + 1; j <= end; j++ {
			ctxAfter = append(ctxAfter, lines[j].Content)
		}

		matches = append(matches, GrepMatch{
			MatchedLine:   line.Content,
			ContextBefore: ctxBefore,
			ContextAfter:  ctxAfter,
		})
	}
	return matches, nil
}

// ringToLines converts a live process's ring snapshot into ParsedLine
// values with line numbers renumbered from 1, mirroring the on-disk
// parser's shape so grepLines can treat both sources uniformly.
func ringToLines(chunks []process.Chunk) []process.ParsedLine {
	lines := make([]process.ParsedLine, 0, len(chunks))
	for i, c := range chunks {
		content := string(c.Bytes)
		content = strings.TrimSuffix(content, "\n")
		lines = append(lines, process.ParsedLine{
			LineNumber: i + 1,
			Content:    content,
			Timestamp:  c.Timestamp,
			IsStderr:   c.IsStderr,
		})
	}
	return lines
}
