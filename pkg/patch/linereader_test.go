package patch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineReaderKeepsTerminators(t *testing.T) {
	t.Parallel()

	input := "one\r\ntwo\nthree"
	lr := NewLineReader(strings.NewReader(input))
	lines, err := lr.ReadLines()
	require.NoError(t, err)
	require.Equal(t, []string{"one\r\n", "two\n", "three"}, lines)
	require.Equal(t, input, strings.Join(lines, ""))
	require.Equal(t, 3, lr.LineNumber())
}

func TestLineReaderUnread(t *testing.T) {
	t.Parallel()

	lr := NewLineReader(strings.NewReader("a\nb\n"))
	first, ok, err := lr.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a\n", first)

	lr.Unread(first)
	require.Equal(t, 0, lr.LineNumber())
	require.Panics(t, func() { lr.Unread("again") })

	again, ok, err := lr.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a\n", again)

	second, ok, _ := lr.ReadLine()
	require.True(t, ok)
	require.Equal(t, "b\n", second)

	_, ok, err = lr.ReadLine()
	require.NoError(t, err)
	require.False(t, ok)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestLineReaderWrapsReadFailures(t *testing.T) {
	t.Parallel()

	_, _, err := NewLineReader(failingReader{}).ReadLine()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrIO)
	require.Contains(t, err.Error(), "disk on fire")
}

func TestSplitEOL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		line, text, eol string
	}{
		{"plain\n", "plain", "\n"},
		{"dos\r\n", "dos", "\r\n"},
		{"bare", "bare", ""},
		{"", "", ""},
	}
	for _, tc := range cases {
		text, eol := SplitEOL(tc.line)
		if text != tc.text || eol != tc.eol {
			t.Fatalf("SplitEOL(%q) = %q, %q; want %q, %q", tc.line, text, eol, tc.text, tc.eol)
		}
	}
}
