package patch

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ApplyOptions configure hunk application.
type ApplyOptions struct {
	// Strict verifies that every context and removed line matches the
	// document at the hunk's position before the hunk is applied.
	Strict bool
}

// Apply applies the hunks of d, in declaration order, to lines and returns
// the patched lines. Lines carry no terminators. The input slice is never
// modified; on error no partial result is returned.
func Apply(d *Diff, lines []string, opts ApplyOptions) ([]string, error) {
	out, _, err := applyDiff(d, lines, false, opts)
	return out, err
}

// ApplyText reads the target document from r, applies d, and returns the
// patched text. Terminators of unchanged lines are preserved, and added lines
// use the terminators found in the patch.
func ApplyText(d *Diff, r io.Reader, opts ApplyOptions) (string, error) {
	lines, err := NewLineReader(r).ReadLines()
	if err != nil {
		return "", err
	}
	out, _, err := applyDiff(d, lines, true, opts)
	if err != nil {
		return "", err
	}
	return strings.Join(out, ""), nil
}

// applyDiff runs every hunk against doc and returns the result together with
// the final shift. When terminated is set, document lines keep their line
// terminators.
func applyDiff(d *Diff, doc []string, terminated bool, opts ApplyOptions) ([]string, int, error) {
	if d == nil {
		return nil, 0, newError(CodeMalformedHunk, "nil diff")
	}
	out := append([]string(nil), doc...)
	shift := 0
	statuses := make([]HunkStatus, 0, len(d.Hunks))
	for index, hunk := range d.Hunks {
		number := index + 1
		patched, delta, err := applyHunk(out, hunk, shift, terminated, opts)
		if err != nil {
			return nil, shift, annotateHunkError(err, d, hunk, number, statuses)
		}
		out = patched
		shift += delta
		statuses = append(statuses, HunkStatus{Number: number, Status: statusApplied})
	}
	return out, shift, nil
}

// hunkIndex returns the 0-based position of the hunk's old range in a
// document already shifted by earlier hunks. An empty old range names the
// line after which the new lines go.
func hunkIndex(h *Hunk, shift int) int {
	if h.Old.Length == 0 {
		return h.Old.Start + shift
	}
	return h.Old.Start - 1 + shift
}

func applyHunk(doc []string, h *Hunk, shift int, terminated bool, opts ApplyOptions) ([]string, int, error) {
	if h.Malformed() {
		return nil, 0, &Error{
			Code:    CodeMalformedHunk,
			Message: fmt.Sprintf("hunk %q has a malformed range", h.Header),
			Err:     h.RangeErr,
		}
	}

	context, added, removed := h.Counts()
	if context+removed != h.Old.Length {
		return nil, 0, newError(CodeRangeOutOfBounds,
			"hunk %q declares %d old lines but carries %d", h.Header, h.Old.Length, context+removed)
	}
	index := hunkIndex(h, shift)
	end := index + h.Old.Length
	if index < 0 || end > len(doc) {
		return nil, 0, newError(CodeRangeOutOfBounds,
			"hunk %q spans lines %d-%d of a %d-line document", h.Header, index+1, end, len(doc))
	}

	replacement := make([]string, 0, context+added)
	pos := index
	for _, line := range h.Lines {
		if line.Kind == LineAdded {
			if terminated {
				replacement = append(replacement, line.Text+line.EOL)
			} else {
				replacement = append(replacement, line.Text)
			}
			continue
		}

		current, eol := doc[pos], ""
		if terminated {
			current, eol = SplitEOL(current)
		}
		if opts.Strict && current != line.Text {
			return nil, 0, &Error{
				Code:    CodeContextMismatch,
				Message: fmt.Sprintf("line %d does not match hunk %q", pos+1, h.Header),
				Detail:  describeMismatch(line.Text, current),
			}
		}
		if line.Kind == LineContext {
			replacement = append(replacement, line.Text+eol)
		}
		pos++
	}

	delta := len(replacement) - h.Old.Length
	if !terminated {
		return splice(doc, index, h.Old.Length, replacement), delta, nil
	}

	// Only the document's final line may stay unterminated.
	fill := lineTerminator(doc)
	for k, line := range replacement {
		last := k == len(replacement)-1 && end == len(doc)
		if !last && !strings.HasSuffix(line, "\n") {
			replacement[k] = line + fill
		}
	}
	out := splice(doc, index, h.Old.Length, replacement)
	if index > 0 && len(replacement) > 0 && !strings.HasSuffix(out[index-1], "\n") {
		out[index-1] += fill
	}
	return out, delta, nil
}

// lineTerminator returns the first terminator used in doc, or "\n".
func lineTerminator(doc []string) string {
	for _, line := range doc {
		if _, eol := SplitEOL(line); eol != "" {
			return eol
		}
	}
	return "\n"
}

func splice(target []string, index, deleteCount int, replacement []string) []string {
	if deleteCount == 0 && len(replacement) == 0 {
		return target
	}
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}

// describeMismatch renders the expected and actual text with a character
// diff, deletions as [-x-] and insertions as {+y+}.
func describeMismatch(want, got string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(want, got, false))
	var builder strings.Builder
	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			builder.WriteString("[-" + diff.Text + "-]")
		case diffmatchpatch.DiffInsert:
			builder.WriteString("{+" + diff.Text + "+}")
		default:
			builder.WriteString(diff.Text)
		}
	}
	return fmt.Sprintf("expected: %q\nfound:    %q\ndiff:     %s", want, got, builder.String())
}

func annotateHunkError(err error, d *Diff, h *Hunk, number int, applied []HunkStatus) *Error {
	pe, ok := err.(*Error)
	if !ok {
		pe = &Error{Message: err.Error(), Err: err}
	}

	status := statusOutOfBounds
	switch pe.Code {
	case CodeMalformedHunk:
		status = statusMalformed
	case CodeContextMismatch:
		status = statusContextMismatch
	}
	pe.HunkStatuses = append(append([]HunkStatus{}, applied...), HunkStatus{Number: number, Status: status})
	if pe.RelativePath == "" {
		pe.RelativePath = d.Path()
	}
	if pe.FailedHunk == nil {
		pe.FailedHunk = &FailedHunk{Number: number, RawPatchLines: append([]string(nil), h.Raw...)}
	}
	return pe
}
