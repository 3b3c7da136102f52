package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writePolicyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	return path
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	regoContent := `# Nodes must be named.
# Unnamed nodes render badly in DOT output.
# severity: critical
package custom.names

import rego.v1

# not part of the description
deny contains "x" if { false }
`
	path := writePolicyFile(t, t.TempDir(), "node-names.rego", regoContent)

	policies, err := loader.loadFromFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("got %d policies, want 1", len(policies))
	}

	p := policies[0]
	if p.Name != "node-names" {
		t.Errorf("Expected name 'node-names', got '%s'", p.Name)
	}
	if p.Description != "Nodes must be named. Unnamed nodes render badly in DOT output." {
		t.Errorf("Description = %q", p.Description)
	}
	if p.Severity != SeverityCritical {
		t.Errorf("Severity = %s, want critical", p.Severity)
	}
	if p.Rego != regoContent || !p.Enabled || p.Source != path {
		t.Errorf("policy = %+v", p)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, []Policy)
	}{
		{
			name:    "single policy defaults",
			content: `{"name": "p1", "rego": "package p1"}`,
			checkFunc: func(t *testing.T, policies []Policy) {
				if len(policies) != 1 || !policies[0].Enabled || policies[0].Severity != SeverityWarning {
					t.Errorf("policies = %+v", policies)
				}
			},
		},
		{
			name:    "explicitly disabled",
			content: `{"name": "p1", "rego": "package p1", "enabled": false, "severity": "error"}`,
			checkFunc: func(t *testing.T, policies []Policy) {
				if policies[0].Enabled || policies[0].Severity != SeverityError {
					t.Errorf("policy = %+v", policies[0])
				}
			},
		},
		{
			name: "bundle",
			content: `{"name": "graph-style", "version": "1.0", "policies": [
				{"name": "a", "rego": "package a"},
				{"name": "b", "rego": "package b", "severity": "info"}
			]}`,
			checkFunc: func(t *testing.T, policies []Policy) {
				if len(policies) != 2 || policies[1].Severity != SeverityInfo {
					t.Errorf("policies = %+v", policies)
				}
				for _, p := range policies {
					if p.Source == "" {
						t.Errorf("policy %s has no source", p.Name)
					}
				}
			},
		},
		{name: "missing rego", content: `{"name": "p1"}`, wantErr: true},
		{name: "bad severity", content: `{"name": "p1", "rego": "package p1", "severity": "fatal"}`, wantErr: true},
		{name: "bad bundle member", content: `{"name": "b", "policies": [{"rego": "package a"}]}`, wantErr: true},
		{name: "malformed", content: `{`, wantErr: true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader(zerolog.Nop())
			path := writePolicyFile(t, dir, fmt.Sprintf("policy%d.json", i), tt.content)

			policies, err := loader.loadFromFile(context.Background(), path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, policies)
			}
		})
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := writePolicyFile(t, t.TempDir(), "bundle.json",
		`{"name": "graph-style", "version": "2.1", "description": "style rules", "policies": [{"name": "a", "rego": "package a"}]}`)

	bundle, err := loader.LoadBundle(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadBundle() error = %v", err)
	}
	if bundle.Name != "graph-style" || bundle.Version != "2.1" || len(bundle.Policies) != 1 {
		t.Errorf("bundle = %+v", bundle)
	}

	if _, err := loader.LoadBundle(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadBundle() of a missing file returned no error")
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0o750); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	writePolicyFile(t, dir, "one.rego", "package one")
	writePolicyFile(t, nested, "two.json", `{"name": "two", "rego": "package two"}`)
	writePolicyFile(t, nested, "broken.json", `{`)
	writePolicyFile(t, dir, "notes.txt", "ignored")
	single := writePolicyFile(t, t.TempDir(), "three.rego", "package three")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir, single})
	if err != nil {
		t.Fatalf("LoadFromPaths() error = %v", err)
	}
	names := map[string]bool{}
	for _, p := range policies {
		names[p.Name] = true
	}
	if len(policies) != 3 || !names["one"] || !names["two"] || !names["three"] {
		t.Errorf("loaded %v", names)
	}

	if _, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("LoadFromPaths() with a missing path returned no error")
	}
}

func TestLoader_Cache(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	path := writePolicyFile(t, t.TempDir(), "cached.rego", "package first")

	if _, err := loader.loadFromFile(context.Background(), path); err != nil {
		t.Fatalf("loadFromFile() error = %v", err)
	}
	writePolicyFile(t, filepath.Dir(path), "cached.rego", "package second")

	policies, _ := loader.loadFromFile(context.Background(), path)
	if policies[0].Rego != "package first" {
		t.Error("cache was bypassed")
	}

	loader.ClearCache()
	policies, _ = loader.loadFromFile(context.Background(), path)
	if policies[0].Rego != "package second" {
		t.Error("ClearCache() kept stale content")
	}
}

func TestLoader_Watch(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	loader.SetDelay(50 * time.Millisecond)

	dir := t.TempDir()
	writePolicyFile(t, dir, "one.rego", "package one")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu     sync.Mutex
		counts []int
	)
	reloaded := make(chan struct{}, 16)
	err := loader.Watch(ctx, []string{dir}, func(policies []Policy) error {
		mu.Lock()
		counts = append(counts, len(policies))
		mu.Unlock()
		reloaded <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer func() { _ = loader.StopWatching() }()

	writePolicyFile(t, dir, "two.rego", "package two")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			mu.Lock()
			last := counts[len(counts)-1]
			mu.Unlock()
			if last == 2 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for policy reload")
		}
	}
}
