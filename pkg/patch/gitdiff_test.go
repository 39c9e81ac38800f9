package patch

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/stretchr/testify/require"
)

// TestApplyAgreesWithGitApply cross-checks results against an independent
// git-style patch implementation.
func TestApplyAgreesWithGitApply(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		original string
		hunks    []string
	}{
		{
			name:     "single change",
			original: "line1\nline2\nline3\n",
			hunks: []string{
				"@@ -1,3 +1,3 @@",
				" line1",
				"-line2",
				"+line2 modified",
				" line3",
			},
		},
		{
			name:     "shifting hunks",
			original: strings.Join(numberedLines(30), "\n") + "\n",
			hunks: []string{
				"@@ -3,3 +3,5 @@",
				" l3",
				" l4",
				"+a",
				"+b",
				" l5",
				"@@ -18,5 +20,3 @@",
				" l18",
				"-l19",
				"-l20",
				" l21",
				" l22",
			},
		},
		{
			name:     "append without trailing newline",
			original: "first\nlast",
			hunks: []string{
				"@@ -1,2 +1,3 @@",
				" first",
				"-last",
				`\ No newline at end of file`,
				"+last",
				"+appended",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			diffText := strings.Join(append([]string{
				"diff --git a/doc.txt b/doc.txt",
				"--- a/doc.txt",
				"+++ b/doc.txt",
			}, tc.hunks...), "\n") + "\n"

			files, _, err := gitdiff.Parse(strings.NewReader(diffText))
			require.NoError(t, err)
			require.Len(t, files, 1)
			var want bytes.Buffer
			require.NoError(t, gitdiff.Apply(&want, strings.NewReader(tc.original), files[0]))

			d := mustParseOne(t, diffText)
			got, err := ApplyText(d, strings.NewReader(tc.original), ApplyOptions{Strict: true})
			require.NoError(t, err)
			require.Equal(t, want.String(), got)
		})
	}
}
