package property

import (
	"testing"
)

func TestDraftFieldsResolve(t *testing.T) {
	details := &PropertyDetails{Address: "1 Main St", BuildingSizeSf: 1000}
	inputs := &UnderwritingInputs{EstStartDate: "2024-01-01", HoldPeriodYears: 5}

	t.Run("no fields", func(t *testing.T) {
		d, err := DraftFields{}.Resolve()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := d.(NoDraft); !ok {
			t.Errorf("expected NoDraft, got %T", d)
		}
	})

	t.Run("all fields", func(t *testing.T) {
		d, err := DraftFields{
			PropertyDetails:    details,
			UnderwritingInputs: inputs,
			Brokers:            []Broker{},
			Tenants:            []Tenant{},
		}.Resolve()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		full, ok := d.(FullDraft)
		if !ok {
			t.Fatalf("expected FullDraft, got %T", d)
		}
		if full.PropertyDetails.Address != "1 Main St" {
			t.Errorf("unexpected address %q", full.PropertyDetails.Address)
		}
	})

	t.Run("partial fields", func(t *testing.T) {
		_, err := DraftFields{PropertyDetails: details, Tenants: []Tenant{}}.Resolve()
		if !IsValidation(err) {
			t.Fatalf("expected VALIDATION, got %v", err)
		}
		if MessageOf(err) != MsgIncompleteDraft {
			t.Errorf("unexpected message %q", MessageOf(err))
		}
	})
}
