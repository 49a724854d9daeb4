package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rentroll/rentroll/pkg/property"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"not found", property.NewNotFound(property.MsgVersionNotFound), 3},
		{"conflict", property.NewConflict(property.MsgRevisionMismatch, nil), 4},
		{"validation", property.NewValidation(property.MsgSpaceExceeded), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseKey(t *testing.T) {
	key, err := parseKey([]string{"tower-1", "2.3"})
	if err != nil {
		t.Fatalf("parseKey() error = %v", err)
	}
	if key.PropertyID != "tower-1" || key.Version != "2.3" {
		t.Errorf("parseKey() = %+v", key)
	}

	if _, err := parseKey([]string{"tower-1", "two"}); err == nil {
		t.Error("parseKey() accepted a malformed version")
	}
}

func TestWriterRequiresWriteRole(t *testing.T) {
	defer func(prev string) { roleName = prev }(roleName)

	roleName = string(property.RoleViewer)
	if _, err := writer(); err == nil {
		t.Error("writer() allowed a viewer")
	}

	roleName = string(property.RoleAdmin)
	if _, err := writer(); err != nil {
		t.Errorf("writer() rejected an admin: %v", err)
	}
}

const propertyDoc = `
propertyDetails:
  address: 100 Main St
  buildingSizeSf: 1000
underwritingInputs:
  estStartDate: "2024-01-01"
  holdPeriodYears: 10
brokers:
  - name: Jane Broker
    email: jane@example.com
tenants: []
`

const tenantDoc = `
tenantName: Acme
squareFeet: 400
rentPsf: 30
leaseStart: "2024-02-01"
leaseEnd: "2029-01-31"
leaseType: NNN
`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCommand("test", "none", "now")
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rentroll.yaml")
	propPath := filepath.Join(dir, "property.yaml")
	tenantPath := filepath.Join(dir, "tenant.yaml")
	if err := os.WriteFile(propPath, []byte(propertyDoc), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tenantPath, []byte(tenantDoc), 0o600); err != nil {
		t.Fatal(err)
	}

	steps := [][]string{
		{"init", "--config", cfgPath, "--path", filepath.Join(dir, "data", "rentroll.db")},
		{"migrate", "--config", cfgPath},
		{"property", "create", "--config", cfgPath, "--file", propPath, "--id", "tower-1"},
		{"tenant", "add", "tower-1", "1.0", "--config", cfgPath, "--revision", "0", "--file", tenantPath},
		{"property", "save-as", "tower-1", "1.0", "--config", cfgPath, "--revision", "1"},
		{"property", "versions", "tower-1", "--config", cfgPath, "--json"},
		{"audit", "verify", "tower-1", "1.0", "--config", cfgPath},
		{"policy", "check", "--config", cfgPath, "--file", propPath},
	}
	for _, args := range steps {
		if err := execute(t, args...); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
	}

	// 1.0 is historical after the branch.
	err := execute(t, "tenant", "add", "tower-1", "1.0", "--config", cfgPath, "--revision", "1", "--file", tenantPath)
	if property.KindOf(err) != property.KindConflict {
		t.Errorf("write to historical version error = %v, want CONFLICT", err)
	}

	err = execute(t, "property", "show", "tower-1", "9.9", "--config", cfgPath)
	if ExitCode(err) != 3 {
		t.Errorf("show unknown version exit code = %d, want 3", ExitCode(err))
	}

	if err := execute(t, "init", "--config", cfgPath); err == nil {
		t.Error("init overwrote an existing config without --force")
	}

	err = execute(t, "backup", "--config", cfgPath, "--dir", filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("backup wrote %d files, want 1", len(entries))
	}
}
