package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitDestination commits artifacts into a local clone and pushes them.
type GitDestination struct {
	repo   string // path to the local clone
	branch string // branch to commit and push to
}

// NewGitDestination creates a git destination. repo is the path to an
// existing local clone with an "origin" remote.
func NewGitDestination(repo, branch string) *GitDestination {
	return &GitDestination{repo: repo, branch: branch}
}

func (d *GitDestination) Name() string { return "git" }

// Write writes the artifacts, commits, and pushes. Unchanged artifacts
// produce no commit.
func (d *GitDestination) Write(ctx context.Context, artifacts []Artifact) error {
	if len(artifacts) == 0 {
		return nil
	}
	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return fmt.Errorf("git checkout: %w", err)
	}
	// The remote may not have the branch yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		if err := writeFileAtomic(filepath.Join(d.repo, filepath.FromSlash(a.Name)), a.Data); err != nil {
			return err
		}
		names[i] = a.Name
	}

	if _, err := d.git(ctx, append([]string{"add", "--"}, names...)...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	if _, err := d.git(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}

	graph := strings.SplitN(artifacts[0].Name, "/", 2)[0]
	if _, err := d.git(ctx, "commit", "-m", "kgv: snapshot "+graph); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	if _, err := d.git(ctx, "push", "origin", d.branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = d.repo
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
