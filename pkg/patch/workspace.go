package patch

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Result statuses reported per file.
const (
	StatusAdded    = "A"
	StatusModified = "M"
	StatusDeleted  = "D"
	StatusFailed   = "F"
)

// Options configure how the workspace helpers apply diffs.
type Options struct {
	ApplyOptions
	// Lenient is passed to the parser by the *Patch helpers.
	Lenient bool
	// Strip removes this many leading path components from header names,
	// like patch -p.
	Strip int
	// Workers bounds how many files are patched concurrently. Diffs that
	// target the same file are always applied one after another.
	Workers int
	// Logger receives per-file events. Nil discards them.
	Logger *zerolog.Logger
	// Observe, when set, is called once per diff with its result. It may be
	// called from several goroutines at once.
	Observe func(Result)
}

func (o Options) parseOptions() ParseOptions {
	return ParseOptions{Lenient: o.Lenient, Logger: o.Logger}
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// Result describes the outcome for a single diff.
type Result struct {
	Status   string
	Path     string
	Kind     Kind
	Hunks    int
	Bytes    int
	Duration time.Duration
	Err      error
}

// workspace is the file access used by apply. Implementations must be safe
// for concurrent use on distinct paths.
type workspace interface {
	Load(path string) (content string, exists bool, err error)
	Store(path, content string) error
	Remove(path string) error
}

// StripPath removes n leading components from a slash-separated header path.
func StripPath(name string, n int) string {
	p := strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	for i := 0; i < n; i++ {
		idx := strings.IndexByte(p, '/')
		if idx < 0 {
			break
		}
		p = p[idx+1:]
	}
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// apply patches every diff against ws. Diffs are grouped by target so that
// groups can run concurrently while each group keeps patch order. A failing
// diff never prevents other diffs from being applied; all failures are
// joined into the returned error.
func apply(ctx context.Context, diffs []*Diff, ws workspace, opts Options) ([]Result, error) {
	if ws == nil {
		return nil, errors.New("nil workspace")
	}
	groups := groupByTarget(diffs, opts.Strip)
	results := make([][]Result, len(groups))

	var g errgroup.Group
	g.SetLimit(max(opts.Workers, 1))
	for i, group := range groups {
		g.Go(func() error {
			for _, d := range group {
				results[i] = append(results[i], applyOne(ctx, d, ws, opts))
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		flat []Result
		errs []error
	)
	for _, group := range results {
		for _, res := range group {
			flat = append(flat, res)
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
		}
	}
	return flat, errors.Join(errs...)
}

// groupByTarget partitions diffs so that any two diffs which may touch the
// same file share a group. A change can open either its old or its new name,
// so diffs are joined whenever they share either stripped name.
func groupByTarget(diffs []*Diff, strip int) [][]*Diff {
	parent := make([]int, len(diffs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	owner := make(map[string]int)
	for i, d := range diffs {
		for _, name := range targetNames(d, strip) {
			j, ok := owner[name]
			if !ok {
				owner[name] = i
				continue
			}
			if ri, rj := find(i), find(j); ri != rj {
				parent[max(ri, rj)] = min(ri, rj)
			}
		}
	}

	var groups [][]*Diff
	index := make(map[int]int)
	for i, d := range diffs {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], d)
	}
	return groups
}

// targetNames lists the stripped names locate may open for d.
func targetNames(d *Diff, strip int) []string {
	var raw []string
	switch d.Kind() {
	case KindAddition:
		raw = []string{d.NewName}
	case KindDeletion:
		raw = []string{d.OldName}
	default:
		raw = []string{d.OldName, d.NewName}
	}
	names := make([]string, 0, len(raw))
	for _, name := range raw {
		if name == NullDevice {
			continue
		}
		names = append(names, StripPath(name, strip))
	}
	if len(names) == 0 {
		names = append(names, StripPath(d.Path(), strip))
	}
	return names
}

func applyOne(ctx context.Context, d *Diff, ws workspace, opts Options) (res Result) {
	log := opts.logger()
	started := time.Now()
	res = Result{Kind: d.Kind(), Hunks: len(d.Hunks), Path: StripPath(d.Path(), opts.Strip)}
	defer func() {
		res.Duration = time.Since(started)
		if res.Err != nil {
			res.Status = StatusFailed
			log.Warn().Err(res.Err).Str("path", res.Path).Msg("diff not applied")
		} else {
			log.Debug().Str("path", res.Path).Str("status", res.Status).Int("hunks", res.Hunks).Msg("diff applied")
		}
		if opts.Observe != nil {
			opts.Observe(res)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = &Error{Message: err.Error(), RelativePath: res.Path, Err: err}
		return res
	}

	target, content, exists, err := locate(ws, d, opts.Strip)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = target

	switch d.Kind() {
	case KindAddition:
		if exists && content != "" {
			res.Err = &Error{Code: CodeFileExists, Message: fmt.Sprintf("cannot add %s: file already exists", target), RelativePath: target}
			return res
		}
		content = ""
	default:
		if !exists {
			res.Err = &Error{Code: CodeFileNotFound, Message: fmt.Sprintf("cannot patch %s: file does not exist", target), RelativePath: target}
			return res
		}
	}

	patched, err := ApplyText(d, strings.NewReader(content), opts.ApplyOptions)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			pe.RelativePath = target
		}
		res.Err = err
		return res
	}

	if d.Kind() == KindDeletion && patched == "" {
		if err := ws.Remove(target); err != nil {
			res.Err = err
			return res
		}
		res.Status = StatusDeleted
		return res
	}
	if err := ws.Store(target, patched); err != nil {
		res.Err = err
		return res
	}
	res.Bytes = len(patched)
	res.Status = StatusModified
	if d.Kind() == KindAddition {
		res.Status = StatusAdded
	}
	return res
}

// locate resolves the file a diff applies to. Changes prefer the old name and
// fall back to the new name when the old one is missing.
func locate(ws workspace, d *Diff, strip int) (string, string, bool, error) {
	oldPath := StripPath(d.OldName, strip)
	newPath := StripPath(d.NewName, strip)
	candidates := []string{oldPath}
	switch d.Kind() {
	case KindAddition:
		candidates = []string{newPath}
	case KindChange:
		if newPath != oldPath {
			candidates = append(candidates, newPath)
		}
	}

	for _, candidate := range candidates {
		if candidate == "" || candidate == "." {
			continue
		}
		content, exists, err := ws.Load(candidate)
		if err != nil {
			return candidate, "", false, err
		}
		if exists {
			return candidate, content, true, nil
		}
	}
	return candidates[0], "", false, nil
}
