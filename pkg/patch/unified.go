package patch

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var unifiedRangePattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// parseUnifiedRange reads "@@ -a[,b] +c[,d] @@". A missing length means 1.
func parseUnifiedRange(header string) (oldRange, newRange Range, err error) {
	m := unifiedRangePattern.FindStringSubmatch(header)
	if m == nil {
		return MalformedRange, MalformedRange, newError(CodeMalformedRange, "malformed hunk range %q", header)
	}
	oldRange, err = rangeFromStartLength(m[1], m[2])
	if err == nil {
		newRange, err = rangeFromStartLength(m[3], m[4])
	}
	if err != nil {
		return MalformedRange, MalformedRange, &Error{Code: CodeMalformedRange, Message: "malformed hunk range " + strconv.Quote(header), Err: err}
	}
	return oldRange, newRange, nil
}

func rangeFromStartLength(start, length string) (Range, error) {
	s, err := strconv.Atoi(start)
	if err != nil {
		return MalformedRange, err
	}
	if length == "" {
		return Range{Start: s, Length: 1}, nil
	}
	n, err := strconv.Atoi(length)
	if err != nil {
		return MalformedRange, err
	}
	return Range{Start: s, Length: n}, nil
}

// readUnified collects the hunks following a "--- "/"+++ " header pair into
// d. It returns the first line that does not belong to the diff, with ok
// false at end of stream.
//
// While a hunk's declared line counts are outstanding, lines are attributed
// to it by their tag (an empty line counts as empty context). Once both counts
// are met, only another "@@ " marker or a "\" marker continues the diff. A
// hunk with a malformed range has no usable counts, so a "--- " line followed
// by "+++ " ends it instead.
func readUnified(lr *LineReader, d *Diff, log zerolog.Logger) (string, bool, error) {
	var (
		hunk             *Hunk
		oldLeft, newLeft int
	)
	flush := func() {
		if hunk != nil && len(hunk.Lines) > 0 {
			d.Hunks = append(d.Hunks, hunk)
		}
		hunk = nil
	}

	for {
		line, ok, err := lr.ReadLine()
		if err != nil || !ok {
			flush()
			return "", false, err
		}
		text, eol := SplitEOL(line)

		if strings.HasPrefix(text, "@@ ") {
			flush()
			hunk = &Hunk{Header: text, Raw: []string{text}}
			hunk.Old, hunk.New, hunk.RangeErr = parseUnifiedRange(text)
			if hunk.RangeErr != nil {
				hunk.RangeErr = atPatchLine(hunk.RangeErr, lr.LineNumber())
				log.Warn().Str("path", d.Path()).Str("header", text).Msg("malformed hunk range")
				oldLeft, newLeft = -1, -1
			} else {
				oldLeft, newLeft = hunk.Old.Length, hunk.New.Length
			}
			continue
		}
		if hunk == nil {
			return line, true, nil
		}
		if strings.HasPrefix(text, `\`) {
			if n := len(hunk.Lines); n > 0 {
				hunk.Lines[n-1].EOL = ""
			}
			hunk.Raw = append(hunk.Raw, text)
			continue
		}

		counted := oldLeft >= 0 && newLeft >= 0
		if counted && oldLeft == 0 && newLeft == 0 {
			flush()
			return line, true, nil
		}
		if !counted && strings.HasPrefix(text, "--- ") {
			next, ok, err := lr.ReadLine()
			if err != nil {
				flush()
				return "", false, err
			}
			if ok {
				lr.Unread(next)
				if strings.HasPrefix(next, "+++ ") {
					flush()
					return line, true, nil
				}
			}
		}

		var kind LineKind
		switch {
		case text == "" && counted && oldLeft > 0 && newLeft > 0:
			kind = LineContext
			text = " "
		case strings.HasPrefix(text, " "):
			kind = LineContext
		case strings.HasPrefix(text, "+"):
			kind = LineAdded
		case strings.HasPrefix(text, "-"):
			kind = LineRemoved
		default:
			flush()
			return line, true, nil
		}

		hunk.Lines = append(hunk.Lines, Line{Kind: kind, Text: text[1:], EOL: eol})
		hunk.Raw = append(hunk.Raw, text)
		if counted {
			if kind != LineAdded {
				oldLeft--
			}
			if kind != LineRemoved {
				newLeft--
			}
			if oldLeft < 0 || newLeft < 0 {
				// More lines than declared: fall back to tag rules and let
				// the applier reject the length mismatch.
				oldLeft, newLeft = -1, -1
			}
		}
	}
}
