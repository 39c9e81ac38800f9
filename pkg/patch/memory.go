package patch

import (
	"context"
	"sync"
)

// ApplyToMemory applies diffs to an in-memory document store represented by a map.
// The provided map is copied before mutation and the updated snapshot is
// returned even when some diffs fail.
func ApplyToMemory(ctx context.Context, diffs []*Diff, files map[string]string, opts Options) (map[string]string, []Result, error) {
	snapshot := make(map[string]string, len(files))
	for k, v := range files {
		snapshot[StripPath(k, 0)] = v
	}
	ws := &memoryWorkspace{files: snapshot}
	results, err := apply(ctx, diffs, ws, opts)
	return ws.files, results, err
}

// ApplyMemoryPatch parses a raw patch payload and applies it to an in-memory map of files.
func ApplyMemoryPatch(ctx context.Context, patchBody string, files map[string]string, opts Options) (map[string]string, []Result, error) {
	diffs, err := ParseString(patchBody, opts.parseOptions())
	if err != nil {
		return nil, nil, err
	}
	return ApplyToMemory(ctx, diffs, files, opts)
}

type memoryWorkspace struct {
	mu    sync.Mutex
	files map[string]string
}

func (ws *memoryWorkspace) Load(path string) (string, bool, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	content, ok := ws.files[path]
	return content, ok, nil
}

func (ws *memoryWorkspace) Store(path, content string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.files[path] = content
	return nil
}

func (ws *memoryWorkspace) Remove(path string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if _, ok := ws.files[path]; !ok {
		return &Error{Code: CodeFileNotFound, Message: "failed to delete file " + path, RelativePath: path}
	}
	delete(ws.files, path)
	return nil
}
