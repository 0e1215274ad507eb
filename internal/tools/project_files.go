package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ProjectFilesTool reads files of the Godot project on disk. Paths are
// res:// paths or paths relative to the project root; nothing outside the
// root is reachable.
type ProjectFilesTool struct {
	name string
	Root string
}

const (
	toolListProjectFiles = "list_project_files"
	toolReadProjectFile  = "read_project_file"
)

// RegisterProjectFiles registers the project file commands on r. Nothing
// is registered without a project root.
func RegisterProjectFiles(r *Registry, root string) {
	if root == "" {
		return
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	if real, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = real
	}
	r.Register(&ProjectFilesTool{name: toolListProjectFiles, Root: absRoot})
	r.Register(&ProjectFilesTool{name: toolReadProjectFile, Root: absRoot})
}

func (f *ProjectFilesTool) Name() string {
	return f.name
}

func (f *ProjectFilesTool) Description() string {
	if f.name == toolListProjectFiles {
		return "List the files and directories under a res:// directory of the project."
	}
	return "Read a text file of the project, e.g. a .gd script or a .tscn scene."
}

func (f *ProjectFilesTool) Parameters() map[string]any {
	properties := map[string]any{
		"path": prop("string", "res:// path, e.g. res://scenes"),
	}
	if f.name == toolListProjectFiles {
		properties["pattern"] = prop("string", "Optional glob relative to path, e.g. **/*.gd")
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{"path"},
	}
}

func (f *ProjectFilesTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	if err := requireParams(f, params); err != nil {
		return "", err
	}
	rel := stringParam(params, "path")
	target, err := f.resolve(rel)
	if err != nil {
		return "", err
	}

	if f.name == toolReadProjectFile {
		data, err := os.ReadFile(target)
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), nil
	}

	if pattern := stringParam(params, "pattern"); pattern != "" {
		return f.glob(target, pattern)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return "", fmt.Errorf("failed to list directory: %w", err)
	}
	var b strings.Builder
	for _, entry := range entries {
		typeStr := "file"
		if entry.IsDir() {
			typeStr = "dir"
		}
		fmt.Fprintf(&b, "[%s] %s\n", typeStr, entry.Name())
	}
	if b.Len() == 0 {
		return "Directory is empty", nil
	}
	return b.String(), nil
}

func (f *ProjectFilesTool) glob(dir, pattern string) (string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid pattern: %s", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithNoFollow())
	if err != nil {
		return "", fmt.Errorf("failed to match %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "No matching files", nil
	}
	sort.Strings(matches)
	return strings.Join(matches, "\n") + "\n", nil
}

// resolve maps p into the project root. Symlinks are followed before the
// root check, so a link pointing outside the project is rejected.
func (f *ProjectFilesTool) resolve(p string) (string, error) {
	clean := strings.TrimPrefix(p, "res://")
	target := filepath.Join(f.Root, filepath.FromSlash(clean))
	if !f.contains(target) {
		return "", fmt.Errorf("path outside the project: %s", p)
	}

	real, err := filepath.EvalSymlinks(target)
	if err != nil {
		// A missing target is checked through its parent.
		parent, perr := filepath.EvalSymlinks(filepath.Dir(target))
		if perr != nil {
			return target, nil
		}
		real = filepath.Join(parent, filepath.Base(target))
	}
	if !f.contains(real) {
		return "", fmt.Errorf("path outside the project: %s", p)
	}
	return real, nil
}

func (f *ProjectFilesTool) contains(path string) bool {
	rel, err := filepath.Rel(f.Root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
