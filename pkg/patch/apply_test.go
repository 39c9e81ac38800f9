package patch

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParseOne(t *testing.T, text string) *Diff {
	t.Helper()
	diffs, err := ParseString(text, ParseOptions{})
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	return diffs[0]
}

func numberedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("l%d", i+1)
	}
	return lines
}

func TestApplySingleHunk(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, fooUnified)
	original := []string{"line1", "line2", "line3"}
	got, err := Apply(d, original, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, []string{"line1", "line2 modified", "line3"}, got)
	require.Equal(t, []string{"line1", "line2", "line3"}, original, "input must not be modified")
}

func TestApplyCarriesShiftAcrossHunks(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -5 +5,3 @@",
		" l5",
		"+a",
		"+b",
		"@@ -20 +22 @@",
		"-l20",
		"+X",
	))
	require.Equal(t, 21, hunkIndex(d.Hunks[1], 2))

	out, shift, err := applyDiff(d, numberedLines(30), false, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, 2, shift)
	require.Len(t, out, 32)
	require.Equal(t, "X", out[21])
	require.Equal(t, "l19", out[20])
	require.Equal(t, "l21", out[22])
	require.Equal(t, []string{"l5", "a", "b", "l6"}, out[4:8])
}

func TestApplyContextOnlyIsIdentity(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -2,2 +2,2 @@",
		" l2",
		" l3",
		"@@ -6 +6 @@",
		" l6",
	))
	original := numberedLines(8)
	out, shift, err := applyDiff(d, original, false, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, 0, shift)
	require.Equal(t, original, out)
}

func TestApplyLengthMatchesDeclaredRanges(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -1,3 +1,2 @@",
		" l1",
		"-l2",
		" l3",
		"@@ -6,2 +5,4 @@",
		" l6",
		"+n1",
		"+n2",
		" l7",
	))
	doc := numberedLines(10)
	for _, h := range d.Hunks {
		context, added, _ := h.Counts()
		require.Equal(t, h.New.Length, context+added)
	}

	out, err := Apply(d, doc, ApplyOptions{Strict: true})
	require.NoError(t, err)
	delta := 0
	for _, h := range d.Hunks {
		delta += h.New.Length - h.Old.Length
	}
	require.Len(t, out, len(doc)+delta)
}

func TestApplyHonorsDeclarationOrder(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -2 +2,2 @@",
		" l2",
		"+new",
		"@@ -5 +5,0 @@",
		"-l5",
	))
	doc := numberedLines(6)

	inOrder, err := Apply(d, doc, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, []string{"l1", "l2", "new", "l3", "l4", "l6"}, inOrder)

	reversed := &Diff{OldName: d.OldName, NewName: d.NewName, OldTimestamp: d.OldTimestamp, NewTimestamp: d.NewTimestamp,
		Hunks: []*Hunk{d.Hunks[1], d.Hunks[0]}}
	swapped, err := Apply(reversed, doc, ApplyOptions{})
	require.NoError(t, err)
	require.NotEqual(t, inOrder, swapped)

	_, err = Apply(reversed, doc, ApplyOptions{Strict: true})
	require.ErrorIs(t, err, ErrContextMismatch)
}

func TestApplyInsertAfterEmptyOldRange(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -2,0 +3 @@",
		"+inserted",
	))
	out, err := Apply(d, []string{"a", "b", "c"}, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "inserted", "c"}, out)

	created := mustParseOne(t, patchText(
		"--- /dev/null",
		"+++ new.txt",
		"@@ -0,0 +1,2 @@",
		"+a",
		"+b",
	))
	out, err = Apply(created, nil, ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, out)
}

func TestApplyStrictMismatch(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, fooUnified)
	doc := []string{"line1", "lineX", "line3"}

	_, err := Apply(d, doc, ApplyOptions{Strict: true})
	require.ErrorIs(t, err, ErrContextMismatch)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "b/foo.txt", pe.RelativePath)
	require.Contains(t, pe.Detail, `expected: "line2"`)
	require.Contains(t, pe.Detail, `found:    "lineX"`)
	require.Contains(t, pe.Detail, "{+")
	require.Equal(t, []HunkStatus{{Number: 1, Status: statusContextMismatch}}, pe.HunkStatuses)

	// Without verification the hunk replaces whatever sits at its position.
	out, err := Apply(d, doc, ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"line1", "line2 modified", "line3"}, out)
}

func TestApplyOutOfBounds(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -1 +1 @@",
		"-l1",
		"+one",
		"@@ -5 +5 @@",
		"-l5",
		"+five",
	))
	out, err := Apply(d, numberedLines(2), ApplyOptions{})
	require.Nil(t, out)
	require.ErrorIs(t, err, ErrRangeOutOfBounds)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, []HunkStatus{
		{Number: 1, Status: statusApplied},
		{Number: 2, Status: statusOutOfBounds},
	}, pe.HunkStatuses)
	require.NotNil(t, pe.FailedHunk)
	require.Equal(t, 2, pe.FailedHunk.Number)
	require.Equal(t, []string{"@@ -5 +5 @@", "-l5", "+five"}, pe.FailedHunk.RawPatchLines)
}

func TestApplyRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	d := &Diff{
		OldName: "a.txt", NewName: "a.txt",
		OldTimestamp: new(int64), NewTimestamp: new(int64),
		Hunks: []*Hunk{{
			Old:    Range{Start: 1, Length: 3},
			New:    Range{Start: 1, Length: 1},
			Header: "@@ -1,3 +1 @@",
			Lines:  []Line{{Kind: LineContext, Text: "l1"}},
		}},
	}
	_, err := Apply(d, numberedLines(5), ApplyOptions{})
	require.ErrorIs(t, err, ErrRangeOutOfBounds)
}

func TestApplyMalformedHunk(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -x +1 @@",
		"-l1",
		"+one",
	))
	_, err := Apply(d, numberedLines(3), ApplyOptions{})
	require.ErrorIs(t, err, ErrMalformedHunk)
	require.ErrorIs(t, err, ErrMalformedRange)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, statusMalformed, pe.HunkStatuses[0].Status)
}

func TestApplyRejectsNilDiff(t *testing.T) {
	t.Parallel()

	_, err := Apply(nil, nil, ApplyOptions{})
	require.ErrorIs(t, err, ErrMalformedHunk)
}

func TestApplyTextPreservesTerminators(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, fooUnified)
	got, err := ApplyText(d, strings.NewReader("line1\r\nline2\r\nline3"), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "line1\r\nline2 modified\nline3", got)
}

func TestApplyTextNoNewlineAtEnd(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -1,2 +1,2 @@",
		" keep",
		"-old",
		`\ No newline at end of file`,
		"+new",
		`\ No newline at end of file`,
	))
	got, err := ApplyText(d, strings.NewReader("keep\nold"), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "keep\nnew", got)
}

func TestApplyContextFormatMatchesUnified(t *testing.T) {
	t.Parallel()

	doc := "line1\nline2\nline3\n"
	unified, err := ApplyText(mustParseOne(t, fooUnified), strings.NewReader(doc), ApplyOptions{Strict: true})
	require.NoError(t, err)
	context, err := ApplyText(mustParseOne(t, fooContext), strings.NewReader(doc), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, unified, context)
	require.Equal(t, "line1\nline2 modified\nline3\n", context)
}

func TestApplyTextTerminatesLineBeforeAddedText(t *testing.T) {
	t.Parallel()

	// The patch omits the "\ No newline" marker for the unterminated "a".
	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -1 +1,2 @@",
		" a",
		"+b",
	))
	got, err := ApplyText(d, strings.NewReader("a"), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", got)

	got, err = ApplyText(d, strings.NewReader("a"), ApplyOptions{})
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", got)
}

func TestApplyTextUsesDocumentTerminatorForRepair(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -2 +2,2 @@",
		" b",
		"+c",
	))
	got, err := ApplyText(d, strings.NewReader("a\r\nb"), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "a\r\nb\r\nc\n", got)
}

func TestApplyTextInsertAfterUnterminatedLastLine(t *testing.T) {
	t.Parallel()

	d := mustParseOne(t, patchText(
		"--- a.txt",
		"+++ a.txt",
		"@@ -1,0 +2 @@",
		"+b",
	))
	got, err := ApplyText(d, strings.NewReader("a"), ApplyOptions{Strict: true})
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", got)
}
