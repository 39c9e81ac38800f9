package patch

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// ParseOptions configure the parser.
type ParseOptions struct {
	// Lenient keeps parsing when the old and new blocks of a context-format
	// hunk disagree on a context line. The disagreement is logged and the old
	// text is kept. By default such a patch is rejected as corrupt.
	Lenient bool
	// Logger receives debug and warning events. Nil discards them.
	Logger *zerolog.Logger
}

func (o ParseOptions) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Parser turns a patch stream into per-file diffs.
type Parser struct {
	lr   *LineReader
	opts ParseOptions
	log  zerolog.Logger

	diffs     []*Diff
	indexName string
	diffArgs  []string
}

// NewParser returns a parser reading from r.
func NewParser(r io.Reader, opts ParseOptions) *Parser {
	return &Parser{
		lr:   NewLineReader(r),
		opts: opts,
		log:  opts.logger(),
	}
}

// Parse reads a patch in unified or context format from r.
//
// Parsing is best effort: malformed hunk ranges are recorded on the hunk and
// the rest of the file is still read. Read failures and, unless
// ParseOptions.Lenient is set, corrupt context hunks stop the parse; the diffs
// completed so far are returned together with the error.
func Parse(r io.Reader, opts ParseOptions) ([]*Diff, error) {
	return NewParser(r, opts).Parse()
}

// ParseString is Parse for in-memory patch text.
func ParseString(patch string, opts ParseOptions) ([]*Diff, error) {
	return Parse(strings.NewReader(patch), opts)
}

// Parse consumes the stream and returns the diffs in patch order.
func (p *Parser) Parse() ([]*Diff, error) {
	line, ok, err := p.lr.ReadLine()
	for ok && err == nil {
		line, ok, err = p.scan(line)
	}
	return p.diffs, err
}

// SniffFormat decides which dialect a pair of header lines opens.
func SniffFormat(first, second string) Format {
	switch {
	case strings.HasPrefix(first, "--- ") && strings.HasPrefix(second, "+++ "):
		return FormatUnified
	case strings.HasPrefix(first, "*** ") && strings.HasPrefix(second, "--- "):
		return FormatContext
	default:
		return FormatUnknown
	}
}

// scan inspects the current line and returns the next line to inspect.
func (p *Parser) scan(line string) (string, bool, error) {
	text, _ := SplitEOL(line)
	switch {
	case strings.HasPrefix(text, "Index: "):
		p.indexName = strings.TrimSpace(strings.TrimPrefix(text, "Index: "))
	case strings.HasPrefix(text, "diff "):
		p.diffArgs = strings.Fields(text)[1:]
	case strings.HasPrefix(text, "--- "), strings.HasPrefix(text, "*** "):
		second, ok, err := p.lr.ReadLine()
		if err != nil || !ok {
			return "", false, err
		}
		secondText, _ := SplitEOL(second)
		if format := SniffFormat(text, secondText); format != FormatUnknown {
			return p.readDiff(format, text, secondText)
		}
		// The second line may itself open a header pair.
		p.lr.Unread(second)
	}
	return p.lr.ReadLine()
}

func (p *Parser) readDiff(format Format, first, second string) (string, bool, error) {
	d := &Diff{Format: format, IndexName: p.indexName, DiffArgs: p.diffArgs}
	p.indexName, p.diffArgs = "", nil

	d.OldName, d.OldTimestamp = parseFileHeader(first[4:])
	d.NewName, d.NewTimestamp = parseFileHeader(second[4:])
	d.canonicalizeNames()

	var (
		next string
		ok   bool
		err  error
	)
	if format == FormatUnified {
		next, ok, err = readUnified(p.lr, d, p.log)
	} else {
		next, ok, err = readContext(p.lr, d, p.opts.Lenient, p.log)
	}
	p.diffs = append(p.diffs, d)
	p.log.Debug().
		Str("path", d.Path()).
		Str("format", format.String()).
		Str("kind", d.Kind().String()).
		Int("hunks", len(d.Hunks)).
		Msg("parsed diff")
	return next, ok, err
}
