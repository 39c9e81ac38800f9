package patch

// NullDevice is the header name used for the side of a diff whose file does
// not exist.
const NullDevice = "/dev/null"

// TimestampUnknown is stored when a header carried a date that matched none of
// the accepted layouts, or no date at all.
const TimestampUnknown int64 = -1

// Format identifies the diff dialect a Diff was read from.
type Format int

const (
	FormatUnknown Format = iota
	FormatUnified
	FormatContext
)

func (f Format) String() string {
	switch f {
	case FormatUnified:
		return "unified"
	case FormatContext:
		return "context"
	default:
		return "unknown"
	}
}

// Kind classifies a Diff by which of its sides exist.
type Kind int

const (
	KindChange Kind = iota
	KindAddition
	KindDeletion
)

func (k Kind) String() string {
	switch k {
	case KindAddition:
		return "addition"
	case KindDeletion:
		return "deletion"
	default:
		return "change"
	}
}

// LineKind tags a hunk line with its effect on the document.
type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
)

// Prefix returns the unified-format tag character for the kind.
func (k LineKind) Prefix() byte {
	switch k {
	case LineAdded:
		return '+'
	case LineRemoved:
		return '-'
	default:
		return ' '
	}
}

// Line is a single tagged hunk line. Text never includes the terminator; EOL
// holds the terminator exactly as it appeared in the patch, and is empty when
// the line was followed by a "\ No newline at end of file" marker.
type Line struct {
	Kind LineKind
	Text string
	EOL  string
}

// Range is a 1-based line range as declared by a hunk marker.
type Range struct {
	Start  int
	Length int
}

// MalformedRange is recorded for hunks whose range marker failed to parse.
var MalformedRange = Range{Start: -1, Length: -1}

// Hunk is one contiguous change region of a Diff.
type Hunk struct {
	Old    Range
	New    Range
	Lines  []Line
	Header string
	// Raw holds the physical patch lines of the hunk, markers included.
	Raw []string
	// RangeErr is set when the range marker could not be parsed. Such a hunk
	// is kept so the rest of the file still parses, but it cannot be applied.
	RangeErr error
}

// Malformed reports whether the hunk carries the sentinel range.
func (h *Hunk) Malformed() bool {
	return h.Old == MalformedRange || h.New == MalformedRange
}

// Counts returns the number of context, added, and removed lines.
func (h *Hunk) Counts() (context, added, removed int) {
	for _, line := range h.Lines {
		switch line.Kind {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		default:
			context++
		}
	}
	return context, added, removed
}

// Diff is the change set for a single file.
type Diff struct {
	OldName string
	NewName string
	// OldTimestamp and NewTimestamp are milliseconds since the epoch. A nil
	// value means the side is the null device.
	OldTimestamp *int64
	NewTimestamp *int64
	Format       Format
	// IndexName and DiffArgs are the "Index:" and "diff" lines seen before
	// the header pair. They are display hints only.
	IndexName string
	DiffArgs  []string
	Hunks     []*Hunk
}

// Kind classifies the diff from its timestamps.
func (d *Diff) Kind() Kind {
	switch {
	case d.OldTimestamp == nil:
		return KindAddition
	case d.NewTimestamp == nil:
		return KindDeletion
	default:
		return KindChange
	}
}

// Path returns the canonical path of the diff: the new name, or the old name
// for deletions.
func (d *Diff) Path() string {
	if d.Kind() == KindDeletion || d.NewName == "" {
		return d.OldName
	}
	return d.NewName
}

// Stats returns the total number of added and removed lines across hunks.
func (d *Diff) Stats() (added, removed int) {
	for _, h := range d.Hunks {
		_, a, r := h.Counts()
		added += a
		removed += r
	}
	return added, removed
}

// canonicalizeNames makes both names equal when one side is the null device.
func (d *Diff) canonicalizeNames() {
	switch {
	case d.OldTimestamp == nil && d.NewTimestamp != nil:
		d.OldName = d.NewName
	case d.NewTimestamp == nil && d.OldTimestamp != nil:
		d.NewName = d.OldName
	}
}
