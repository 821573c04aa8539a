package export

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func newGitClone(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}

	remoteDir := t.TempDir()
	run(t, remoteDir, "git", "init", "--bare")

	workDir := t.TempDir()
	run(t, workDir, "git", "clone", remoteDir, "repo")
	repoDir := filepath.Join(workDir, "repo")

	run(t, repoDir, "git", "config", "user.email", "test@test.com")
	run(t, repoDir, "git", "config", "user.name", "Test")
	run(t, repoDir, "git", "checkout", "-b", "main")

	if err := os.WriteFile(filepath.Join(repoDir, ".gitkeep"), nil, 0o644); err != nil {
		t.Fatalf("write .gitkeep: %v", err)
	}
	run(t, repoDir, "git", "add", ".")
	run(t, repoDir, "git", "commit", "-m", "init")
	run(t, repoDir, "git", "push", "origin", "main")
	return repoDir
}

func TestGitDestination(t *testing.T) {
	repoDir := newGitClone(t)
	dest := NewGitDestination(repoDir, "main")
	ctx := context.Background()

	v1 := []Artifact{{Name: "g1/graph.json", Data: []byte(`{"nodes":[]}` + "\n")}}
	if err := dest.Write(ctx, v1); err != nil {
		t.Fatalf("first write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(repoDir, "g1", "graph.json"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(got) != string(v1[0].Data) {
		t.Fatalf("content mismatch: got %q", got)
	}
	commits := revCount(t, repoDir)

	// Same data: no commit.
	if err := dest.Write(ctx, v1); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if n := revCount(t, repoDir); n != commits {
		t.Fatalf("commits = %s after unchanged write, want %s", n, commits)
	}

	v2 := []Artifact{{Name: "g1/graph.json", Data: []byte(`{"nodes":[{"id":"n1"}]}` + "\n")}}
	if err := dest.Write(ctx, v2); err != nil {
		t.Fatalf("third write: %v", err)
	}
	if n := revCount(t, repoDir); n == commits {
		t.Fatal("changed write did not commit")
	}
	msg := output(t, repoDir, "git", "log", "-1", "--format=%s")
	if msg != "kgv: snapshot g1" {
		t.Fatalf("commit message = %q", msg)
	}
}

func TestGitDestination_Empty(t *testing.T) {
	dest := NewGitDestination(t.TempDir(), "main")
	if err := dest.Write(context.Background(), nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}
}

func revCount(t *testing.T, dir string) string {
	t.Helper()
	return output(t, dir, "git", "rev-list", "--count", "HEAD")
}

func output(t *testing.T, dir, name string, args ...string) string {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
	return strings.TrimSpace(string(out))
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("%s %v failed: %v", name, args, err)
	}
}
