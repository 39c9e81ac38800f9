package patch

import (
	"fmt"

	"github.com/rs/zerolog"
)

// mergeContextBlocks folds the separate old and new blocks of a context-format
// hunk into one ordered sequence of tagged lines.
//
// Runs are consumed in a fixed order: removals from the old block, additions
// from the new block, paired change runs (old side first), then paired
// context lines, which must agree byte for byte. Any other pairing drains the
// side that still has lines. Disagreeing context lines are a CORRUPT_PATCH
// error unless lenient is set, in which case the old text is kept.
func mergeContextBlocks(oldBlock, newBlock []contextLine, lenient bool, log zerolog.Logger) ([]Line, error) {
	lines := make([]Line, 0, len(oldBlock)+len(newBlock))
	i, j := 0, 0

	emitRun := func(block []contextLine, pos int, tag byte, kind LineKind) int {
		for pos < len(block) && block[pos].tag == tag {
			lines = append(lines, Line{Kind: kind, Text: block[pos].text, EOL: block[pos].eol})
			pos++
		}
		return pos
	}

	for i < len(oldBlock) || j < len(newBlock) {
		oldOK, newOK := i < len(oldBlock), j < len(newBlock)
		switch {
		case oldOK && oldBlock[i].tag == '-':
			i = emitRun(oldBlock, i, '-', LineRemoved)
		case newOK && newBlock[j].tag == '+':
			j = emitRun(newBlock, j, '+', LineAdded)
		case oldOK && newOK && oldBlock[i].tag == '!' && newBlock[j].tag == '!':
			i = emitRun(oldBlock, i, '!', LineRemoved)
			j = emitRun(newBlock, j, '!', LineAdded)
		case oldOK && newOK && oldBlock[i].tag == ' ' && newBlock[j].tag == ' ':
			for i < len(oldBlock) && j < len(newBlock) && oldBlock[i].tag == ' ' && newBlock[j].tag == ' ' {
				o, n := oldBlock[i], newBlock[j]
				if o.text != n.text {
					if !lenient {
						return nil, &Error{
							Code:    CodeCorruptPatch,
							Message: fmt.Sprintf("context lines disagree: old %q, new %q", o.text, n.text),
							Detail:  describeMismatch(o.text, n.text),
						}
					}
					log.Warn().Str("old", o.text).Str("new", n.text).Msg("context lines disagree, keeping old text")
				}
				lines = append(lines, Line{Kind: LineContext, Text: o.text, EOL: o.eol})
				i++
				j++
			}
		case oldOK:
			i = emitRun(oldBlock, i, oldBlock[i].tag, sideKind(oldBlock[i].tag, LineRemoved))
		default:
			j = emitRun(newBlock, j, newBlock[j].tag, sideKind(newBlock[j].tag, LineAdded))
		}
	}
	return lines, nil
}

// sideKind maps a tag drained from one side to a line kind. A change marker
// becomes the side's own kind.
func sideKind(tag byte, changed LineKind) LineKind {
	switch tag {
	case '+':
		return LineAdded
	case '-':
		return LineRemoved
	case '!':
		return changed
	default:
		return LineContext
	}
}
