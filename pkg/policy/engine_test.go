package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func baseInput() *Input {
	return &Input{
		Action:     property.ActionUpdateVersion,
		PropertyID: "prop-1",
		Version:    "1.0",
		Actor:      property.Actor{ID: "alice", Role: property.RoleAnalyst},
		Property: property.Snapshot{
			PropertyDetails: property.PropertyDetails{
				Address:        "1 Main St",
				BuildingSizeSf: 10000,
			},
			UnderwritingInputs: property.UnderwritingInputs{
				EstStartDate:    "2024-01-01",
				HoldPeriodYears: 10,
			},
			Brokers: []property.Broker{
				{ID: "b1", Name: "Dana", Email: "dana@example.com"},
			},
			Tenants: []property.Tenant{
				{ID: "t1", TenantName: "Acme", SquareFeet: 4000, RentPsf: 30, LeaseType: "NNN", LeaseStart: "2024-02-01", LeaseEnd: "2029-01-31"},
				{ID: property.VacantTenantID, TenantName: "VACANT", SquareFeet: 6000, LeaseType: "N/A", IsVacant: true},
			},
		},
	}
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{"broker-contact", "hold-period", "lease-type", "tenant-concentration", "tenant-economics"}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policy %d: expected %s, got %s", i, name, policies[i].Name)
		}
		if !policies[i].Builtin || !policies[i].Enabled {
			t.Errorf("policy %s should be an enabled built-in", name)
		}
	}
}

func TestEvaluateCleanInput(t *testing.T) {
	eng := newTestEngine(t)

	result, err := eng.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected clean input to be allowed, got %+v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations, got %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 5 {
		t.Errorf("Expected 5 evaluated policies, got %v", result.EvaluatedPolicies)
	}
	if err := result.Err(); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestEvaluateBuiltins(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name     string
		mutate   func(in *Input)
		policy   string
		severity Severity
		subject  string
		allowed  bool
	}{
		{
			name:     "negative rent",
			mutate:   func(in *Input) { in.Property.Tenants[0].RentPsf = -1 },
			policy:   "tenant-economics",
			severity: SeverityError,
			subject:  "t1",
			allowed:  false,
		},
		{
			name:     "hold period too long",
			mutate:   func(in *Input) { in.Property.UnderwritingInputs.HoldPeriodYears = 60 },
			policy:   "hold-period",
			severity: SeverityWarning,
			allowed:  true,
		},
		{
			name:     "unknown lease type",
			mutate:   func(in *Input) { in.Property.Tenants[0].LeaseType = "Handshake" },
			policy:   "lease-type",
			severity: SeverityWarning,
			subject:  "t1",
			allowed:  true,
		},
		{
			name: "broker without contact",
			mutate: func(in *Input) {
				in.Property.Brokers[0].Email = ""
			},
			policy:   "broker-contact",
			severity: SeverityWarning,
			subject:  "b1",
			allowed:  true,
		},
		{
			name: "tenant concentration",
			mutate: func(in *Input) {
				in.Property.Tenants[0].SquareFeet = 9500
				in.Property.Tenants[1].SquareFeet = 500
			},
			policy:   "tenant-concentration",
			severity: SeverityInfo,
			subject:  "t1",
			allowed:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(in)

			result, err := eng.Evaluate(context.Background(), in)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Allowed != tt.allowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.allowed)
			}
			if len(result.Violations) != 1 {
				t.Fatalf("Expected 1 violation, got %+v", result.Violations)
			}
			v := result.Violations[0]
			if v.Policy != tt.policy {
				t.Errorf("Policy = %s, want %s", v.Policy, tt.policy)
			}
			if v.Severity != tt.severity {
				t.Errorf("Severity = %s, want %s", v.Severity, tt.severity)
			}
			if v.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", v.Subject, tt.subject)
			}
		})
	}
}

func TestEvaluateIgnoresDeletedAndVacant(t *testing.T) {
	eng := newTestEngine(t)

	in := baseInput()
	in.Property.Tenants[0].RentPsf = -5
	in.Property.Tenants[0].IsDeleted = true
	in.Property.Tenants[1].LeaseType = "whatever"
	in.Property.Brokers[0].Email = ""
	in.Property.Brokers[0].IsDeleted = true

	result, err := eng.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations, got %+v", result.Violations)
	}
}

func TestResultErr(t *testing.T) {
	eng := newTestEngine(t)

	in := baseInput()
	in.Property.Tenants[0].TiPsf = -2

	result, err := eng.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	verr := result.Err()
	if !property.IsValidation(verr) {
		t.Fatalf("Expected VALIDATION error, got %v", verr)
	}
	want := "Policy tenant-economics: tenant t1 has negative tiPsf"
	if msg := property.MessageOf(verr); msg != want {
		t.Errorf("Message = %q, want %q", msg, want)
	}
	if len(result.Advisories()) != 0 {
		t.Errorf("Expected no advisories, got %+v", result.Advisories())
	}
}

func TestDisableEnablePolicy(t *testing.T) {
	eng := newTestEngine(t)

	in := baseInput()
	in.Property.Tenants[0].LcPsf = -1

	if err := eng.DisablePolicy("tenant-economics"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	result, err := eng.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed {
		t.Error("Disabled policy should not block")
	}

	if err := eng.EnablePolicy("tenant-economics"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, err = eng.Evaluate(context.Background(), in)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Allowed {
		t.Error("Re-enabled policy should block")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestAddAndReplacePolicies(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	custom := Policy{
		Name:     "credit-required",
		Severity: SeverityCritical,
		Enabled:  true,
		Rego: `package custom.credit

deny contains violation if {
	some t in input.property.tenants
	not t.isVacant
	t.creditType == ""
	violation := {"message": sprintf("tenant %s needs a credit type", [t.id]), "subject": t.id}
}
`,
	}
	if err := eng.AddPolicies(ctx, []Policy{custom}); err != nil {
		t.Fatalf("AddPolicies failed: %v", err)
	}

	result, err := eng.Evaluate(ctx, baseInput())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("Expected critical custom policy to block")
	}
	if !strings.Contains(property.MessageOf(result.Err()), "Policy credit-required") {
		t.Errorf("Unexpected error: %v", result.Err())
	}

	if err := eng.ReplacePolicies(ctx, nil); err != nil {
		t.Fatalf("ReplacePolicies failed: %v", err)
	}
	if _, err := eng.GetPolicy("credit-required"); err == nil {
		t.Error("Custom policy should be gone after replace")
	}
	if _, err := eng.GetPolicy("tenant-economics"); err != nil {
		t.Errorf("Built-in policy should survive replace: %v", err)
	}
}

func TestAddPoliciesRejectsBadRego(t *testing.T) {
	eng := newTestEngine(t)

	bad := Policy{Name: "broken", Rego: "package broken\n\ndeny contains x if {", Enabled: true}
	if err := eng.AddPolicies(context.Background(), []Policy{bad}); err == nil {
		t.Fatal("Expected compile error")
	}
	if _, err := eng.GetPolicy("broken"); err == nil {
		t.Error("Broken policy must not be installed")
	}
}

func TestStringViolation(t *testing.T) {
	eng := newTestEngine(t)

	p := Policy{
		Name:     "no-empty-name",
		Severity: SeverityError,
		Enabled:  true,
		Rego: `package custom.name

deny contains "property name is required" if {
	object.get(input.property.propertyDetails, "propertyName", "") == ""
}
`,
	}
	if err := eng.AddPolicies(context.Background(), []Policy{p}); err != nil {
		t.Fatalf("AddPolicies failed: %v", err)
	}

	result, err := eng.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := property.MessageOf(result.Err()); got != "Policy no-empty-name: property name is required" {
		t.Errorf("Unexpected message %q", got)
	}
}
