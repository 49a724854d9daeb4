package policy

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational findings.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError rejects the mutation.
	SeverityError Severity = "error"

	// SeverityCritical rejects the mutation.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether a violation of this severity rejects a mutation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Policy represents an admission rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. It must define a deny set.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with the binary.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Subject is the broker or tenant id the violation is about, if any.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`
}

// Result is the outcome of evaluating every enabled policy against one input.
type Result struct {
	// Allowed is false when at least one blocking violation was found.
	Allowed bool `json:"allowed"`

	// Violations lists all violations in policy name order.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation failures that did not block the mutation.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Err returns a VALIDATION error for the first blocking violation, or nil.
func (r *Result) Err() error {
	for _, v := range r.Violations {
		if v.Severity.Blocking() {
			return property.NewValidationf("Policy %s: %s", v.Policy, v.Message).
				WithDetail("severity", string(v.Severity))
		}
	}
	return nil
}

// Advisories returns the non-blocking violations.
func (r *Result) Advisories() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.Severity.Blocking() {
			out = append(out, v)
		}
	}
	return out
}

// Input is the document policies see as `input`.
type Input struct {
	// Action is the audit action of the mutation being admitted.
	Action property.Action `json:"action"`

	// PropertyID and Version identify the target aggregate.
	PropertyID string `json:"propertyId"`
	Version    string `json:"version"`

	// Actor is the identity performing the mutation.
	Actor property.Actor `json:"actor"`

	// Property is the composed target state after the mutation.
	Property property.Snapshot `json:"property"`
}

// document converts the input into the plain JSON value tree OPA evaluates.
func (in *Input) document() (map[string]interface{}, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode policy input: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy input: %w", err)
	}
	return doc, nil
}

// PolicyBundle represents a collection of related policies shipped as one JSON file.
type PolicyBundle struct {
	// Name is the unique name of the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Policies are the policies in this bundle.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
