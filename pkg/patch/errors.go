package patch

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes carried by *Error.
const (
	CodeIO                = "IO_ERROR"
	CodeMalformedRange    = "MALFORMED_RANGE"
	CodeCorruptPatch      = "CORRUPT_PATCH"
	CodeMalformedHunk     = "MALFORMED_HUNK"
	CodeRangeOutOfBounds  = "RANGE_OUT_OF_BOUNDS"
	CodeContextMismatch   = "CONTEXT_MISMATCH"
	CodeFileExists        = "FILE_EXISTS"
	CodeFileNotFound      = "FILE_NOT_FOUND"
	statusApplied         = "applied"
	statusMalformed       = "malformed"
	statusOutOfBounds     = "out-of-range"
	statusContextMismatch = "mismatch"
)

// Sentinels for errors.Is. An *Error matches a sentinel when the codes agree.
var (
	ErrIO               = &Error{Code: CodeIO}
	ErrMalformedRange   = &Error{Code: CodeMalformedRange}
	ErrCorruptPatch     = &Error{Code: CodeCorruptPatch}
	ErrMalformedHunk    = &Error{Code: CodeMalformedHunk}
	ErrRangeOutOfBounds = &Error{Code: CodeRangeOutOfBounds}
	ErrContextMismatch  = &Error{Code: CodeContextMismatch}
	ErrFileExists       = &Error{Code: CodeFileExists}
	ErrFileNotFound     = &Error{Code: CodeFileNotFound}
)

// HunkStatus tracks how a hunk was applied when processing a diff.
type HunkStatus struct {
	Number int    `json:"number"`
	Status string `json:"status"`
}

// FailedHunk stores the raw lines of the hunk that could not be applied.
type FailedHunk struct {
	Number        int      `json:"number"`
	RawPatchLines []string `json:"rawPatchLines"`
}

// Error represents a structured failure while parsing or applying a patch.
// It satisfies the error interface so it can be returned directly from the
// Parse and Apply helpers.
type Error struct {
	Message      string
	Code         string
	RelativePath string
	HunkStatuses []HunkStatus
	FailedHunk   *FailedHunk
	// Detail holds a rendered explanation, such as the character diff
	// between an expected and an actual line.
	Detail string
	// PatchLine is the 1-based line of the patch stream the problem was
	// found on, or zero when it is not tied to one.
	PatchLine int
	Err       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return "patch error: " + e.Code
	}
	return "patch error"
}

// Unwrap exposes the underlying cause, typically a reader failure.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// atPatchLine records the patch line on err when it is an *Error that does
// not carry one yet.
func atPatchLine(err error, line int) error {
	var pe *Error
	if line > 0 && errors.As(err, &pe) && pe.PatchLine == 0 {
		pe.PatchLine = line
		pe.Message = fmt.Sprintf("%s (patch line %d)", pe.Message, line)
	}
	return err
}

func describeHunkStatuses(statuses []HunkStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var applied []string
	var failed string
	for _, status := range statuses {
		if status.Status == statusApplied {
			applied = append(applied, fmt.Sprintf("%d", status.Number))
			continue
		}
		if failed == "" {
			failed = fmt.Sprintf("Hunk %d failed (%s).", status.Number, status.Status)
		}
	}

	parts := make([]string, 0, 2)
	if len(applied) > 0 {
		parts = append(parts, fmt.Sprintf("Hunks applied: %s.", strings.Join(applied, ", ")))
	}
	if failed != "" {
		parts = append(parts, failed)
	}
	return strings.Join(parts, "\n")
}

// FormatError renders Error values into a human readable message suitable for
// surfacing to end users.
func FormatError(err *Error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	message := err.Message
	if message == "" {
		message = "Unknown error occurred."
	}
	switch err.Code {
	case CodeMalformedHunk, CodeRangeOutOfBounds, CodeContextMismatch:
	default:
		return message
	}

	var parts []string
	parts = append(parts, message)
	if err.RelativePath != "" {
		parts = append(parts, fmt.Sprintf("File: %s", err.RelativePath))
	}
	if summary := describeHunkStatuses(err.HunkStatuses); summary != "" {
		parts = append(parts, "", summary)
	}
	if err.Detail != "" {
		parts = append(parts, "", err.Detail)
	}
	if err.FailedHunk != nil && len(err.FailedHunk.RawPatchLines) > 0 {
		parts = append(parts, "", "Offending hunk:")
		parts = append(parts, strings.Join(err.FailedHunk.RawPatchLines, "\n"))
	}
	return strings.Join(parts, "\n")
}
