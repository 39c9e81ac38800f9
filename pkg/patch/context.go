package patch

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const contextHunkSeparator = "***************"

var (
	contextOldRangePattern = regexp.MustCompile(`^\*\*\* (\d+)(?:,(\d+))? \*\*\*`)
	contextNewRangePattern = regexp.MustCompile(`^--- (\d+)(?:,(\d+))? ---`)
)

// contextLine is a line of one side of a context-format hunk, tagged with
// its two-character prefix (' ', '+', '-' or '!').
type contextLine struct {
	tag  byte
	text string
	eol  string
}

type contextBlock int

const (
	blockNone contextBlock = iota
	blockOld
	blockNew
)

// contextRange is a declared "start,end" range before conversion to a length.
type contextRange struct {
	Range
	single bool
}

// parseContextRange converts an inclusive "start[,end]" pair into a Range.
func parseContextRange(pattern *regexp.Regexp, marker string) (contextRange, error) {
	m := pattern.FindStringSubmatch(marker)
	if m == nil {
		return contextRange{Range: MalformedRange}, newError(CodeMalformedRange, "malformed context range %q", marker)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return contextRange{Range: MalformedRange}, &Error{Code: CodeMalformedRange, Message: "malformed context range " + strconv.Quote(marker), Err: err}
	}
	if m[2] == "" {
		return contextRange{Range: Range{Start: start, Length: 1}, single: true}, nil
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return contextRange{Range: MalformedRange}, &Error{Code: CodeMalformedRange, Message: "malformed context range " + strconv.Quote(marker), Err: err}
	}
	return contextRange{Range: Range{Start: start, Length: end - start + 1}}, nil
}

// isRangeMarker reports whether text looks like "*** a,b ****" or
// "--- c,d ----" rather than a file header.
func isRangeMarker(text, prefix string) bool {
	if !strings.HasPrefix(text, prefix) {
		return false
	}
	trimmed := strings.TrimRight(text, " ")
	return len(trimmed) > len(prefix)+3 && strings.HasSuffix(trimmed, prefix[:3])
}

// contextHunkBuilder accumulates the two blocks of the hunk being read.
type contextHunkBuilder struct {
	hunk     *Hunk
	line     int
	oldRange contextRange
	newRange contextRange
	oldLines []contextLine
	newLines []contextLine
	active   contextBlock
	lenient  bool
	log      zerolog.Logger
}

func (b *contextHunkBuilder) start(separator string, line int) {
	b.hunk = &Hunk{Raw: []string{separator}}
	b.line = line
	b.oldRange = contextRange{}
	b.newRange = contextRange{}
	b.oldLines, b.newLines = nil, nil
	b.active = blockNone
}

func (b *contextHunkBuilder) accepts(text string) bool {
	if len(text) < 2 || text[1] != ' ' {
		return false
	}
	switch text[0] {
	case ' ', '!':
		return b.active != blockNone
	case '-':
		return b.active == blockOld
	case '+':
		return b.active == blockNew
	default:
		return false
	}
}

func (b *contextHunkBuilder) add(text, eol string) {
	line := contextLine{tag: text[0], text: text[2:], eol: eol}
	if b.active == blockOld {
		b.oldLines = append(b.oldLines, line)
	} else {
		b.newLines = append(b.newLines, line)
	}
	b.hunk.Raw = append(b.hunk.Raw, text)
}

func (b *contextHunkBuilder) markNoNewline(text string) {
	block := b.newLines
	if b.active == blockOld {
		block = b.oldLines
	}
	if n := len(block); n > 0 {
		block[n-1].eol = ""
	}
	b.hunk.Raw = append(b.hunk.Raw, text)
}

func (b *contextHunkBuilder) setRange(which contextBlock, text string, line int) {
	pattern := contextOldRangePattern
	if which == blockNew {
		pattern = contextNewRangePattern
	}
	r, err := parseContextRange(pattern, text)
	if err != nil {
		b.log.Warn().Str("marker", text).Msg("malformed context range")
		b.hunk.RangeErr = atPatchLine(err, line)
	}
	if which == blockOld {
		b.oldRange = r
		b.hunk.Header = text
	} else {
		b.newRange = r
	}
	b.active = which
	b.hunk.Raw = append(b.hunk.Raw, text)
}

// flush merges the collected blocks into a hunk and appends it to d.
func (b *contextHunkBuilder) flush(d *Diff) error {
	h := b.hunk
	b.hunk = nil
	if h == nil || (len(b.oldLines) == 0 && len(b.newLines) == 0) {
		return nil
	}
	lines, err := mergeContextBlocks(b.oldLines, b.newLines, b.lenient, b.log)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.RelativePath = d.Path()
			pe.FailedHunk = &FailedHunk{Number: len(d.Hunks) + 1, RawPatchLines: h.Raw}
		}
		return atPatchLine(err, b.line)
	}
	h.Lines = lines
	h.Old = b.oldRange.Range
	h.New = b.newRange.Range
	if h.RangeErr != nil || b.oldRange.Range == (Range{}) || b.newRange.Range == (Range{}) {
		h.Old, h.New = MalformedRange, MalformedRange
		if h.RangeErr == nil {
			h.RangeErr = atPatchLine(newError(CodeMalformedRange, "context hunk is missing a range marker"), b.line)
		}
	} else {
		context, added, removed := h.Counts()
		// GNU diff prints an empty range as the single line number before it.
		if b.oldRange.single && context+removed == 0 {
			h.Old.Length = 0
		}
		if b.newRange.single && context+added == 0 {
			h.New.Length = 0
		}
	}
	d.Hunks = append(d.Hunks, h)
	return nil
}

// readContext collects the hunks following a "*** "/"--- " header pair into
// d. It returns the first line that does not belong to the diff, with ok
// false at end of stream.
func readContext(lr *LineReader, d *Diff, lenient bool, log zerolog.Logger) (string, bool, error) {
	b := &contextHunkBuilder{lenient: lenient, log: log}
	for {
		line, ok, err := lr.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, b.flush(d)
		}
		text, eol := SplitEOL(line)

		switch {
		case strings.HasPrefix(text, contextHunkSeparator):
			if err := b.flush(d); err != nil {
				return "", false, err
			}
			b.start(text, lr.LineNumber())
		case b.hunk != nil && isRangeMarker(text, "*** "):
			b.setRange(blockOld, text, lr.LineNumber())
		case b.hunk != nil && isRangeMarker(text, "--- "):
			b.setRange(blockNew, text, lr.LineNumber())
		case b.hunk != nil && b.accepts(text):
			b.add(text, eol)
		case b.hunk != nil && b.active != blockNone && strings.HasPrefix(text, `\`):
			b.markNoNewline(text)
		default:
			return line, true, b.flush(d)
		}
	}
}
