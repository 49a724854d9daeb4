package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const creditRego = `# Tenants must carry a credit type.
# severity: error
# tags: tenants, credit

package custom.credit

deny contains violation if {
	some t in input.property.tenants
	not t.isVacant
	t.creditType == ""
	violation := {"message": "credit type missing", "subject": t.id}
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestLoadFromFileRego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	path := filepath.Join(t.TempDir(), "credit-required.rego")
	writeFile(t, path, creditRego)

	policies, err := loader.loadFromFile(path)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("Expected 1 policy, got %d", len(policies))
	}

	p := policies[0]
	if p.Name != "credit-required" {
		t.Errorf("Expected name 'credit-required', got %q", p.Name)
	}
	if p.Severity != SeverityError {
		t.Errorf("Expected severity error, got %s", p.Severity)
	}
	if p.Description != "Tenants must carry a credit type." {
		t.Errorf("Unexpected description %q", p.Description)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "tenants" || p.Tags[1] != "credit" {
		t.Errorf("Unexpected tags %v", p.Tags)
	}
	if p.Metadata["source"] != path {
		t.Errorf("Expected source metadata %s, got %v", path, p.Metadata["source"])
	}
	if !p.Enabled || p.Builtin {
		t.Error("Loaded policy should be enabled and not built-in")
	}
}

func TestLoadFromFileRegoBadSeverity(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	path := filepath.Join(t.TempDir(), "bad.rego")
	writeFile(t, path, "# severity: fatal\npackage bad\n")

	if _, err := loader.loadFromFile(path); err == nil {
		t.Fatal("Expected error for unknown severity")
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	single := Policy{Name: "single", Rego: "package single\n\ndeny contains \"x\" if { false }\n", Enabled: true}
	data, err := json.Marshal(single)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	singlePath := filepath.Join(dir, "single.json")
	writeFile(t, singlePath, string(data))

	policies, err := loader.loadFromFile(singlePath)
	if err != nil {
		t.Fatalf("Failed to load JSON policy: %v", err)
	}
	if len(policies) != 1 || policies[0].Name != "single" {
		t.Fatalf("Unexpected policies %+v", policies)
	}
	if policies[0].Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", policies[0].Severity)
	}

	bundle := PolicyBundle{
		Name:    "house-rules",
		Version: "1",
		Policies: []Policy{
			{Name: "a", Rego: "package a\n", Enabled: true, Severity: SeverityInfo},
			{Name: "b", Rego: "package b\n", Enabled: true, Builtin: true},
		},
	}
	data, err = json.Marshal(bundle)
	if err != nil {
		t.Fatalf("Failed to marshal bundle: %v", err)
	}
	bundlePath := filepath.Join(dir, "bundle.json")
	writeFile(t, bundlePath, string(data))

	policies, err = loader.loadFromFile(bundlePath)
	if err != nil {
		t.Fatalf("Failed to load bundle: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 bundle policies, got %d", len(policies))
	}
	if policies[1].Builtin {
		t.Error("Bundle policies must never be marked built-in")
	}
}

func TestLoadFromDirectory(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "credit-required.rego"), creditRego)
	writeFile(t, filepath.Join(dir, "README.md"), "not a policy")
	writeFile(t, filepath.Join(dir, "broken.json"), "{not json")

	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	writeFile(t, filepath.Join(nested, "other.rego"), "package other\n")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPathsMissing(t *testing.T) {
	loader := NewLoader(zerolog.Nop())

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("Expected error for missing path")
	}
}

func TestEngineLoadPolicies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "credit-required.rego"), creditRego)

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	result, err := eng.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Allowed {
		t.Error("Loaded error policy should block")
	}
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.rego"), "package first\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 4)
	loader := NewLoader(zerolog.Nop())
	if err := loader.Watch(ctx, []string{dir}, func(p []Policy) error {
		reloaded <- p
		return nil
	}); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, filepath.Join(dir, "second.rego"), "package second\n")

	select {
	case policies := <-reloaded:
		if len(policies) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(policies))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for reload")
	}
}
