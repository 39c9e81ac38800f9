package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FilesystemOptions configure ApplyFilesystem.
type FilesystemOptions struct {
	Options
	// WorkingDir is the directory header paths are resolved against. It
	// defaults to the process working directory.
	WorkingDir string
	// DryRun computes every result without writing to disk.
	DryRun bool
}

// ApplyFilesystem applies diffs to the OS filesystem.
func ApplyFilesystem(ctx context.Context, diffs []*Diff, opts FilesystemOptions) ([]Result, error) {
	ws, err := newFilesystemWorkspace(opts)
	if err != nil {
		return nil, err
	}
	return apply(ctx, diffs, ws, opts.Options)
}

// ApplyFilesystemPatch parses a raw patch payload and applies it to the filesystem.
func ApplyFilesystemPatch(ctx context.Context, patchBody string, opts FilesystemOptions) ([]Result, error) {
	diffs, err := ParseString(patchBody, opts.parseOptions())
	if err != nil {
		return nil, err
	}
	return ApplyFilesystem(ctx, diffs, opts)
}

type filesystemWorkspace struct {
	workingDir string
	dryRun     bool

	mu      sync.Mutex
	modes   map[string]fs.FileMode
	overlay map[string]*string
}

func newFilesystemWorkspace(opts FilesystemOptions) (*filesystemWorkspace, error) {
	workingDir := strings.TrimSpace(opts.WorkingDir)
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workingDir = wd
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	return &filesystemWorkspace{
		workingDir: workingDir,
		dryRun:     opts.DryRun,
		modes:      make(map[string]fs.FileMode),
		overlay:    make(map[string]*string),
	}, nil
}

func (ws *filesystemWorkspace) Load(path string) (string, bool, error) {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return "", false, err
	}
	if ws.dryRun {
		ws.mu.Lock()
		staged, ok := ws.overlay[abs]
		ws.mu.Unlock()
		if ok {
			if staged == nil {
				return "", false, nil
			}
			return *staged, true, nil
		}
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", false, nil
	case err != nil:
		return "", false, &Error{Code: CodeIO, Message: fmt.Sprintf("failed to stat %s", rel), RelativePath: rel, Err: err}
	case info.IsDir():
		return "", false, &Error{Code: CodeIO, Message: fmt.Sprintf("cannot patch directory %s", rel), RelativePath: rel}
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", false, &Error{Code: CodeIO, Message: fmt.Sprintf("failed to read %s", rel), RelativePath: rel, Err: err}
	}
	ws.mu.Lock()
	ws.modes[abs] = info.Mode()
	ws.mu.Unlock()
	return string(content), true, nil
}

func (ws *filesystemWorkspace) Store(path, content string) error {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return err
	}
	ws.mu.Lock()
	mode := ws.modes[abs]
	if ws.dryRun {
		ws.overlay[abs] = &content
	}
	ws.mu.Unlock()
	if ws.dryRun {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return &Error{Code: CodeIO, Message: fmt.Sprintf("failed to create directory for %s", rel), RelativePath: rel, Err: err}
	}
	perm := mode & fs.ModePerm
	if perm == 0 {
		perm = 0o644
	}
	if err := os.WriteFile(abs, []byte(content), perm); err != nil {
		return &Error{Code: CodeIO, Message: fmt.Sprintf("failed to write %s", rel), RelativePath: rel, Err: err}
	}
	if special := mode & (fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky); special != 0 {
		if err := os.Chmod(abs, perm|special); err != nil {
			return &Error{Code: CodeIO, Message: fmt.Sprintf("failed to restore permissions for %s", rel), RelativePath: rel, Err: err}
		}
	}
	return nil
}

func (ws *filesystemWorkspace) Remove(path string) error {
	abs, rel, err := ws.resolvePath(path)
	if err != nil {
		return err
	}
	if ws.dryRun {
		ws.mu.Lock()
		ws.overlay[abs] = nil
		ws.mu.Unlock()
		return nil
	}
	if err := os.Remove(abs); err != nil {
		return &Error{Code: CodeIO, Message: fmt.Sprintf("failed to delete file %s", rel), RelativePath: rel, Err: err}
	}
	return nil
}

// resolvePath maps a header path onto the working directory. Paths that
// would escape it are rejected.
func (ws *filesystemWorkspace) resolvePath(relative string) (string, string, error) {
	rel := strings.TrimSpace(relative)
	if rel == "" {
		return "", "", newError(CodeFileNotFound, "invalid patch path")
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	abs := cleaned
	if !filepath.IsAbs(cleaned) {
		abs = filepath.Join(ws.workingDir, cleaned)
	}
	within, err := filepath.Rel(ws.workingDir, abs)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", "", &Error{Code: CodeFileNotFound, Message: fmt.Sprintf("path %s escapes the working directory", rel), RelativePath: rel}
	}
	return abs, filepath.ToSlash(within), nil
}
