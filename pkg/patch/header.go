package patch

import (
	"regexp"
	"strings"
	"time"
)

// dateLayouts are tried in order; the first successful parse wins. The order
// decides which reading an ambiguous date gets, so keep it stable.
var dateLayouts = []string{
	"Mon Jan _2 15:04:05 2006",
	"2006/01/02 15:04:05",
	"Mon Jan _2 15:04:05 MST 2006",
	"2006-01-02 15:04:05.000000000 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

var (
	wordPattern  = regexp.MustCompile(`[A-Za-z]+`)
	fieldPattern = regexp.MustCompile(`\S+`)

	calendarNames = func() map[string]string {
		names := []string{
			"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun",
			"Jan", "Feb", "Mar", "Apr", "May", "Jun",
			"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
		}
		m := make(map[string]string, len(names))
		for _, n := range names {
			m[strings.ToLower(n)] = n
		}
		return m
	}()
)

// splitHeaderFields splits the remainder of a file header line on tabs. Paths
// may contain spaces, so generic whitespace is not a separator.
func splitHeaderFields(rest string) []string {
	var fields []string
	for _, f := range strings.Split(rest, "\t") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// parseFileHeader extracts the file name and timestamp from the text that
// follows a "--- ", "+++ " or "*** " header prefix. A nil timestamp marks the
// null device.
func parseFileHeader(rest string) (name string, timestamp *int64) {
	rest, _ = SplitEOL(rest)
	fields := splitHeaderFields(rest)
	if len(fields) == 1 && !strings.Contains(rest, "\t") {
		fields = splitTrailingDate(fields[0])
	}
	if len(fields) == 0 {
		ts := TimestampUnknown
		return "", &ts
	}

	name = stripRevision(fields[0])
	if name == NullDevice {
		return name, nil
	}
	ts := TimestampUnknown
	if len(fields) > 1 {
		if ms, ok := parseTimestamp(fields[1]); ok {
			ts = ms
		}
	}
	return name, &ts
}

// splitTrailingDate handles headers where the date is separated from the
// name by spaces instead of a tab.
func splitTrailingDate(rest string) []string {
	idx := fieldPattern.FindAllStringIndex(rest, -1)
	for n := min(6, len(idx)-1); n >= 2; n-- {
		start := idx[len(idx)-n][0]
		if _, ok := parseTimestamp(rest[start:]); ok {
			return []string{strings.TrimSpace(rest[:start]), rest[start:]}
		}
	}
	return []string{rest}
}

// stripRevision drops a trailing ":revision" tag such as "foo.c:1.5". Drive
// letters and suffixes that look like path segments are left alone.
func stripRevision(name string) string {
	idx := strings.LastIndexByte(name, ':')
	if idx <= 0 || idx == len(name)-1 {
		return name
	}
	if idx == 1 && isASCIILetter(name[0]) {
		return name
	}
	if strings.ContainsAny(name[idx+1:], `/\`) {
		return name
	}
	return name[:idx]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// parseTimestamp parses value against dateLayouts and returns milliseconds
// since the epoch. Day and month names are matched case-insensitively. Dates
// without a zone are read as UTC.
func parseTimestamp(value string) (int64, bool) {
	t, _, ok := matchDateLayout(value)
	if !ok {
		return 0, false
	}
	return t.UnixMilli(), true
}

// matchDateLayout returns the time parsed by the first layout that accepts
// value, together with that layout.
func matchDateLayout(value string) (time.Time, string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, "", false
	}
	value = wordPattern.ReplaceAllStringFunc(value, func(word string) string {
		if canonical, ok := calendarNames[strings.ToLower(word)]; ok {
			return canonical
		}
		return word
	})
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, layout, true
		}
	}
	return time.Time{}, "", false
}
