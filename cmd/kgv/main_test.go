package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/kgview/internal/config"
	"github.com/alfredjeanlab/kgview/internal/model"
)

func TestJSONToYAML(t *testing.T) {
	out, err := jsonToYAML([]byte(`{"nodes":[{"id":"n1","name":"Alice"}],"links":[]}`))
	if err != nil {
		t.Fatalf("jsonToYAML: %v", err)
	}
	for _, want := range []string{"nodes:", "id: n1", "name: Alice", "links: []"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("yaml missing %q:\n%s", want, out)
		}
	}

	if _, err := jsonToYAML([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestFirstArg(t *testing.T) {
	if got := firstArg(nil); got != "" {
		t.Errorf("firstArg(nil) = %q", got)
	}
	if got := firstArg([]string{"g1", "g2"}); got != "g1" {
		t.Errorf("firstArg = %q, want g1", got)
	}
}

func TestBuildDestinations(t *testing.T) {
	logger = zap.NewNop()

	dests, err := buildDestinations(context.Background(), config.Export{})
	if err != nil || len(dests) != 0 {
		t.Fatalf("no targets: got %d destinations, err %v", len(dests), err)
	}

	dests, err = buildDestinations(context.Background(), config.Export{
		Dir:       t.TempDir(),
		GitRepo:   t.TempDir(),
		GitBranch: "main",
	})
	if err != nil {
		t.Fatalf("buildDestinations: %v", err)
	}
	var names []string
	for _, d := range dests {
		names = append(names, d.Name())
	}
	if strings.Join(names, ",") != "dir,git" {
		t.Errorf("destinations = %v, want [dir git]", names)
	}
}

func TestOpenPrefs_SQLite(t *testing.T) {
	c := config.Default()
	c.PrefsPath = filepath.Join(t.TempDir(), "prefs.db")

	s, err := openPrefs(c)
	if err != nil {
		t.Fatalf("openPrefs: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.SetPreference(ctx, model.StringPreference(model.PrefLastUser, "u1")); err != nil {
		t.Fatalf("SetPreference: %v", err)
	}
	p, err := s.GetPreference(ctx, model.PrefLastUser)
	if err != nil {
		t.Fatalf("GetPreference: %v", err)
	}
	if p.String() != "u1" {
		t.Errorf("last user = %q, want u1", p.String())
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "graphs", "show", "search", "upload", "add-node", "delete-node",
		"delete-graph", "delete-graphs", "delete-user", "export", "share", "theme", "watch"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
