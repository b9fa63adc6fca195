package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// fsTool is the shared base for filesystem tools: every path is resolved
// against the workspace root and rejected if it escapes it.
type fsTool struct {
	fs   afero.Fs
	root string
}

func (f *fsTool) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	target := filepath.Join(f.root, name)
	rel, err := filepath.Rel(f.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path attempt: %s", name)
	}
	return target, nil
}

func stringParam(params map[string]any, key string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WriteFileTool writes a file inside the workspace, creating parent
// directories as needed.
type WriteFileTool struct{ fsTool }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file in the workspace." }

func (t *WriteFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	content := stringParam(params, "content")
	if err := t.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}
	if err := afero.WriteFile(t.fs, path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), stringParam(params, "path")), nil
}

// ReadFileTool reads a file inside the workspace.
type ReadFileTool struct{ fsTool }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a file from the workspace." }

func (t *ReadFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(t.fs, path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// DeleteFileTool removes a file inside the workspace.
type DeleteFileTool struct{ fsTool }

func (t *DeleteFileTool) Name() string        { return "delete_file" }
func (t *DeleteFileTool) Description() string { return "Delete a file from the workspace." }

func (t *DeleteFileTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	path, err := t.resolve(stringParam(params, "path"))
	if err != nil {
		return "", err
	}
	if err := t.fs.Remove(path); err != nil {
		return "", fmt.Errorf("delete %s: %w", path, err)
	}
	return "deleted " + stringParam(params, "path"), nil
}

// ListDirTool lists a workspace directory.
type ListDirTool struct{ fsTool }

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List the entries of a workspace directory." }

func (t *ListDirTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	name := stringParam(params, "path")
	if name == "" {
		name = "."
	}
	path, err := t.resolve(name)
	if err != nil {
		return "", err
	}
	infos, err := afero.ReadDir(t.fs, path)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", path, err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		n := info.Name()
		if info.IsDir() {
			n += "/"
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

// NewFilesystemRegistry builds a registry with the filesystem toolset rooted
// at root. Pass afero.NewOsFs() in production; tests use an in-memory fs.
func NewFilesystemRegistry(fs afero.Fs, root string) *Registry {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	base := fsTool{fs: fs, root: abs}
	r := NewRegistry()
	r.Register(&WriteFileTool{base})
	r.Register(&ReadFileTool{base})
	r.Register(&DeleteFileTool{base})
	r.Register(&ListDirTool{base})
	return r
}
