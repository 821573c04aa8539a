package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirDestination writes artifacts below a local directory.
type DirDestination struct {
	root string
}

// NewDirDestination returns a destination rooted at dir.
func NewDirDestination(dir string) *DirDestination {
	return &DirDestination{root: dir}
}

func (d *DirDestination) Name() string { return "dir" }

// Write replaces each artifact file atomically.
func (d *DirDestination) Write(ctx context.Context, artifacts []Artifact) error {
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFileAtomic(filepath.Join(d.root, filepath.FromSlash(a.Name)), a.Data); err != nil {
			return err
		}
	}
	return nil
}

func writeFileAtomic(name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), name)
}
