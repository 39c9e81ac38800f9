package patch

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// LineReader splits a character stream into physical lines. Every line keeps
// its original terminator so that rejoining the lines reproduces the input
// byte for byte. One line may be pushed back with Unread.
type LineReader struct {
	r         *bufio.Reader
	pushback  string
	hasPushed bool
	eof       bool
	lineNo    int
}

// NewLineReader wraps r. The reader is consumed lazily.
func NewLineReader(r io.Reader) *LineReader {
	if br, ok := r.(*bufio.Reader); ok {
		return &LineReader{r: br}
	}
	return &LineReader{r: bufio.NewReader(r)}
}

// ReadLine returns the next line including its terminator. ok is false once
// the stream is exhausted. Read failures are returned as an *Error with code
// IO_ERROR.
func (lr *LineReader) ReadLine() (line string, ok bool, err error) {
	if lr.hasPushed {
		lr.hasPushed = false
		lr.lineNo++
		return lr.pushback, true, nil
	}
	if lr.eof {
		return "", false, nil
	}
	line, err = lr.r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, &Error{Code: CodeIO, Message: "failed to read line: " + err.Error(), Err: err}
		}
		lr.eof = true
		if line == "" {
			return "", false, nil
		}
	}
	lr.lineNo++
	return line, true, nil
}

// Unread pushes line back so the next ReadLine returns it again. Only one
// line of pushback is supported.
func (lr *LineReader) Unread(line string) {
	if lr.hasPushed {
		panic("patch: LineReader supports a single line of pushback")
	}
	lr.pushback = line
	lr.hasPushed = true
	lr.lineNo--
}

// ReadLines drains the remaining lines.
func (lr *LineReader) ReadLines() ([]string, error) {
	var lines []string
	for {
		line, ok, err := lr.ReadLine()
		if err != nil {
			return lines, err
		}
		if !ok {
			return lines, nil
		}
		lines = append(lines, line)
	}
}

// LineNumber returns the 1-based number of the last line returned.
func (lr *LineReader) LineNumber() int {
	return lr.lineNo
}

// SplitEOL separates a physical line into its text and terminator.
func SplitEOL(line string) (text, eol string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}
