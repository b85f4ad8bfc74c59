package search

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

const maxQueryLine = 1024 * 1024

// LoadQueries reads one query per line from path.
//
// A missing or unreadable file is reported through the error but still yields
// an empty, non-nil slice: callers log it and carry on.
func LoadQueries(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, fmt.Errorf("the file '%s' was not found: %w", path, err)
		}
		return []string{}, fmt.Errorf("error reading file '%s': %w", path, err)
	}
	defer file.Close()

	queries, err := ReadQueries(file)
	if err != nil {
		return []string{}, fmt.Errorf("error reading file '%s': %w", path, err)
	}
	return queries, nil
}

// ReadQueries splits r into trimmed, non-empty lines. \n, \r\n and a lone \r
// all end a line, and a leading UTF-8 BOM is dropped.
func ReadQueries(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQueryLine)
	scanner.Split(scanAnyLineEnding)

	queries := []string{}
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return []string{}, err
	}
	return queries, nil
}

// scanAnyLineEnding is bufio.ScanLines extended to treat a bare \r as a line end
func scanAnyLineEnding(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// \r: swallow a following \n, but we need to see the next byte first
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
