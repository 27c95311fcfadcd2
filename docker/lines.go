// File: docker/lines.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Line-oriented helpers over container output.

package docker

import (
	"bytes"
	"errors"
	"iter"
	"regexp"
	"strings"
)

// ErrNoMatch is returned by WaitForLine when the stream ends cleanly without
// any line matching.
var ErrNoMatch = errors.New("no output line matched")

// OutputLines splits raw output into lines without line terminators.
func OutputLines(raw []byte) []string {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// WaitForLine consumes seq until a complete line matches one of patterns and
// returns that line. Consumption stops at the match, which releases the
// underlying stream. A trailing line without a newline is checked once the
// stream has ended.
func WaitForLine(seq iter.Seq2[[]byte, error], patterns ...*regexp.Regexp) (string, error) {
	if len(patterns) == 0 {
		return "", errors.New("docker: no patterns to wait for")
	}
	var pending []byte
	for chunk, err := range seq {
		if err != nil {
			return "", err
		}
		pending = append(pending, chunk...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			line := strings.TrimSuffix(string(pending[:i]), "\r")
			pending = pending[i+1:]
			if matchAny(line, patterns) {
				return line, nil
			}
		}
	}
	if len(pending) > 0 {
		if line := string(pending); matchAny(line, patterns) {
			return line, nil
		}
	}
	return "", ErrNoMatch
}

func matchAny(line string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
