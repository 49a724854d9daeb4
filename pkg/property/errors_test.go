package property

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("saving tenant: %w", NewConflict(MsgRevisionMismatch, nil))

	if !IsConflict(wrapped) {
		t.Errorf("expected wrapped error to be CONFLICT")
	}
	if IsValidation(wrapped) || IsNotFound(wrapped) {
		t.Errorf("wrapped conflict matched another kind")
	}
	if MessageOf(wrapped) != MsgRevisionMismatch {
		t.Errorf("unexpected message %q", MessageOf(wrapped))
	}
	if !errors.Is(wrapped, NewConflict(MsgRevisionMismatch, nil)) {
		t.Errorf("errors.Is should match kind and message")
	}
	if errors.Is(wrapped, NewConflict(MsgHistoricalReadOnly, nil)) {
		t.Errorf("errors.Is should not match a different message")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Errorf("plain errors have no kind")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("unique constraint")
	err := NewConflict(MsgVersionExists, cause)

	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be reachable")
	}
	if got := err.Error(); got != "[CONFLICT] "+MsgVersionExists+": unique constraint" {
		t.Errorf("unexpected Error(): %q", got)
	}
}
