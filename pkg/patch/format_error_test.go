package patch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDescribeHunkStatuses(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		statuses []HunkStatus
		want     string
	}{
		{
			name: "empty",
			want: "",
		},
		{
			name:     "only applied",
			statuses: []HunkStatus{{Number: 1, Status: "applied"}, {Number: 2, Status: "applied"}},
			want:     "Hunks applied: 1, 2.",
		},
		{
			name:     "mixed",
			statuses: []HunkStatus{{Number: 1, Status: "applied"}, {Number: 3, Status: "mismatch"}},
			want:     "Hunks applied: 1.\nHunk 3 failed (mismatch).",
		},
		{
			name:     "first failure wins",
			statuses: []HunkStatus{{Number: 1, Status: "out-of-range"}, {Number: 2, Status: "malformed"}},
			want:     "Hunk 1 failed (out-of-range).",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := describeHunkStatuses(tc.statuses); got != tc.want {
				t.Fatalf("describeHunkStatuses() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatErrorForContextMismatch(t *testing.T) {
	t.Parallel()

	err := &Error{
		Message:      "line 5 does not match hunk \"@@ -5 +5 @@\"",
		Code:         CodeContextMismatch,
		RelativePath: "src/app.go",
		HunkStatuses: []HunkStatus{{Number: 2, Status: "applied"}, {Number: 5, Status: "mismatch"}},
		FailedHunk: &FailedHunk{
			Number:        5,
			RawPatchLines: []string{"@@ -5 +5 @@", "-before", "+after"},
		},
		Detail: describeMismatch("before", "befor3"),
	}

	got := FormatError(err)
	if !containsAll(got, []string{
		"does not match hunk",
		"File: src/app.go",
		"Hunks applied: 2.",
		"Hunk 5 failed (mismatch).",
		`expected: "before"`,
		"Offending hunk:",
		"-before\n+after",
	}) {
		t.Fatalf("unexpected formatted output:\n%s", got)
	}
}

func TestFormatErrorForUnknown(t *testing.T) {
	t.Parallel()

	if got := FormatError(nil); got != "Unknown error occurred." {
		t.Fatalf("unexpected message for nil error: %q", got)
	}

	err := &Error{Message: "custom failure", Code: CodeFileExists, RelativePath: "x"}
	if got := FormatError(err); got != "custom failure" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestErrorMatchesSentinelsByCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("short read")
	err := fmt.Errorf("wrapped: %w", &Error{Code: CodeIO, Message: "read failed", Err: cause})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("expected IO sentinel to match")
	}
	if errors.Is(err, ErrCorruptPatch) {
		t.Fatalf("unexpected match for a different code")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the cause to be reachable")
	}
	if got := (&Error{Code: CodeFileExists}).Error(); got != "patch error: FILE_EXISTS" {
		t.Fatalf("unexpected fallback message: %q", got)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
