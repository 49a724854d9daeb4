package property

import (
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SemVer
		wantErr bool
	}{
		{name: "simple", input: "1.1", want: SemVer{Major: 1, Minor: 1}},
		{name: "multi digit", input: "12.305", want: SemVer{Major: 12, Minor: 305}},
		{name: "missing minor", input: "1", wantErr: true},
		{name: "letters", input: "bad", wantErr: true},
		{name: "letters in minor", input: "1.x", wantErr: true},
		{name: "negative", input: "-1.0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("expected VALIDATION error, got %v", err)
				}
				if MessageOf(err) != "Invalid version format: "+tt.input {
					t.Errorf("unexpected message: %q", MessageOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
		wantKind Kind
	}{
		{name: "single", versions: []string{"1.1"}, want: "1.2"},
		{name: "unordered", versions: []string{"1.1", "1.3", "1.2"}, want: "1.4"},
		{name: "major dominates", versions: []string{"1.99", "2.0"}, want: "2.1"},
		{name: "minor above ten", versions: []string{"1.9", "1.10"}, want: "1.11"},
		{name: "none", versions: nil, wantKind: KindNotFound},
		{name: "malformed", versions: []string{"1.1", "bad"}, wantKind: KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextVersion(tt.versions)
			if tt.wantKind != "" {
				if KindOf(err) != tt.wantKind {
					t.Fatalf("expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
