package trainer

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

const (
	ModelFile    = "model"
	GradientFile = "gradient"

	workspacePattern = "mine-"
)

var (
	ErrMissingFile = errors.New("workspace file is not configured")
	ErrInvalidFile = errors.New("workspace file name must be a plain file name")
)

// DefaultFiles names the files of a training cycle inside its workspace.
var DefaultFiles = map[string]string{
	ModelFile:    "model.pkl",
	GradientFile: "gradient.pkl",
}

// Workspace is a scratch directory owned by a single training cycle.
type Workspace struct {
	Dir   string
	paths map[string]string
}

// NewWorkspace creates a fresh directory under root (the system temp
// directory when root is empty) and resolves every entry of files inside it.
func NewWorkspace(root string, files map[string]string) (*Workspace, error) {
	if len(files) == 0 {
		files = DefaultFiles
	}
	for _, key := range []string{ModelFile, GradientFile} {
		if _, ok := files[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, key)
		}
	}
	for key, name := range files {
		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidFile, key, name)
		}
	}

	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create workspace root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, workspacePattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	paths := make(map[string]string, len(files))
	for key, name := range files {
		paths[key] = filepath.Join(dir, name)
	}

	return &Workspace{Dir: dir, paths: paths}, nil
}

func (w *Workspace) Path(key string) (string, error) {
	p, ok := w.paths[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingFile, key)
	}

	return p, nil
}

func (w *Workspace) Paths() map[string]string {
	return maps.Clone(w.paths)
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Dir)
}
