package process

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"time"
)

// ParsedLine is one line recovered from an on-disk log file, with
// line_number renumbered from 1 at read time.
type ParsedLine struct {
	LineNumber int
	Content    string
	Timestamp  time.Time // zero value ("null") if the line didn't match the format
	IsStderr   bool
}

var logLineRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z) \[(INFO|ERROR)\] (.*)$`)

// ParseLogLine parses one on-disk log line. Lines that don't match the
// format come back with a zero Timestamp and IsStderr=false (level
// INFO).
func ParseLogLine(line string, lineNumber int) ParsedLine {
	m := logLineRe.FindStringSubmatch(line)
	if m == nil {
		return ParsedLine{LineNumber: lineNumber, Content: line}
	}
	ts, err := time.Parse("2006-01-02T15:04:05.000Z", m[1])
	if err != nil {
		return ParsedLine{LineNumber: lineNumber, Content: line}
	}
	return ParsedLine{
		LineNumber: lineNumber,
		Content:    m[3],
		Timestamp:  ts,
		IsStderr:   m[2] == "ERROR",
	}
}

// ReadLogFile parses every line of the file at path.
func ReadLogFile(path string) ([]ParsedLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []ParsedLine
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		lines = append(lines, ParseLogLine(sc.Text(), n))
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return lines, err
	}
	return lines, nil
}

// TailLogFile returns at most the last n parsed lines of the file at
// path.
func TailLogFile(path string, n int) ([]ParsedLine, error) {
	lines, err := ReadLogFile(path)
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(lines) <= n {
		return lines, nil
	}
	return lines[len(lines)-n:], nil
}
