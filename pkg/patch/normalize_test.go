package patch

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMergeContextBlocksLenientKeepsOldLine(t *testing.T) {
	t.Parallel()

	oldBlock := []contextLine{{tag: ' ', text: "one", eol: "\r\n"}, {tag: '-', text: "two", eol: "\r\n"}}
	newBlock := []contextLine{{tag: ' ', text: "uno", eol: "\n"}}

	lines, err := mergeContextBlocks(oldBlock, newBlock, true, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, []Line{
		{Kind: LineContext, Text: "one", EOL: "\r\n"},
		{Kind: LineRemoved, Text: "two", EOL: "\r\n"},
	}, lines)
}

func TestMergeContextBlocksStrictRejectsDisagreement(t *testing.T) {
	t.Parallel()

	oldBlock := []contextLine{{tag: ' ', text: "one", eol: "\n"}}
	newBlock := []contextLine{{tag: ' ', text: "uno", eol: "\n"}}

	_, err := mergeContextBlocks(oldBlock, newBlock, false, zerolog.Nop())
	require.ErrorIs(t, err, ErrCorruptPatch)
}
