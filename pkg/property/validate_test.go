package property

import (
	"strings"
	"testing"
)

func TestValidateInput(t *testing.T) {
	valid := TenantInput{
		TenantName: "Acme",
		SquareFeet: 500,
		LeaseStart: "2024-01-01",
		LeaseEnd:   "2026-12-31",
	}

	tests := []struct {
		name    string
		input   interface{}
		wantErr string
	}{
		{name: "valid tenant", input: valid},
		{
			name: "missing name",
			input: func() TenantInput {
				in := valid
				in.TenantName = ""
				return in
			}(),
			wantErr: "TenantName is required",
		},
		{
			name: "bad date",
			input: func() TenantInput {
				in := valid
				in.LeaseEnd = "31/12/2026"
				return in
			}(),
			wantErr: "LeaseEnd must be a YYYY-MM-DD date",
		},
		{
			name: "negative footage",
			input: func() TenantInput {
				in := valid
				in.SquareFeet = -1
				return in
			}(),
			wantErr: "SquareFeet must be >= 0",
		},
		{name: "broker email", input: BrokerInput{Name: "Jane", Email: "not-an-email"}, wantErr: "Email must be a valid email address"},
		{name: "broker ok", input: BrokerInput{Name: "Jane", Email: "jane@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.input)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !IsValidation(err) {
				t.Fatalf("expected VALIDATION, got %v", err)
			}
			if !strings.Contains(MessageOf(err), tt.wantErr) {
				t.Errorf("message %q does not contain %q", MessageOf(err), tt.wantErr)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":   RoleAdmin,
		" Analyst": RoleAnalyst,
		"viewer":  RoleViewer,
		"root":    RoleViewer,
		"":        RoleViewer,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %s, want %s", in, got, want)
		}
	}

	if err := (Actor{ID: "a", Role: RoleViewer}).Authorize(RoleAdmin, RoleAnalyst); err == nil {
		t.Errorf("viewer should not be authorized to write")
	}
	if !(Actor{Role: RoleAnalyst}).CanWrite() {
		t.Errorf("analyst should be able to write")
	}
}
