package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/rentroll/rentroll/pkg/property"
)

func chain(t *testing.T, n int) []property.AuditRecord {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var newestFirst []property.AuditRecord
	prev := ""
	for i := 0; i < n; i++ {
		rec := property.AuditRecord{
			ID:         int64(i + 1),
			PropertyID: "P1",
			Version:    "1.1",
			Revision:   int64(i + 1),
			Action:     property.ActionUpdateVersion,
			Changes: []property.FieldChange{
				{Field: "propertyDetails.buildingSizeSf", OldValue: float64(i), NewValue: float64(i + 1)},
			},
			ChangedFieldCount: 1,
			UpdatedBy:         "analyst-1",
			CreatedAt:         base.Add(time.Duration(i) * time.Minute),
		}
		if err := Seal(&rec, prev); err != nil {
			t.Fatalf("seal: %v", err)
		}
		prev = rec.Hash
		newestFirst = append([]property.AuditRecord{rec}, newestFirst...)
	}
	return newestFirst
}

func TestVerifyIntactChain(t *testing.T) {
	records := chain(t, 4)
	if err := Verify(records); err != nil {
		t.Fatalf("expected intact chain, got %v", err)
	}
	if records[len(records)-1].PrevHash != "" {
		t.Errorf("oldest record should have empty prev hash")
	}
	if len(records[0].Hash) != 64 {
		t.Errorf("expected 32-byte hex digest, got %q", records[0].Hash)
	}
}

func TestVerifyEmpty(t *testing.T) {
	if err := Verify(nil); err != nil {
		t.Errorf("empty chain should verify: %v", err)
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]property.AuditRecord)
		reason string
	}{
		{
			name:   "edited content",
			mutate: func(r []property.AuditRecord) { r[1].UpdatedBy = "mallory" },
			reason: "content hash mismatch",
		},
		{
			name:   "removed record",
			mutate: func(r []property.AuditRecord) { copy(r[1:], r[2:]) },
			reason: "previous hash mismatch",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := chain(t, 4)
			tt.mutate(records)
			if tt.name == "removed record" {
				records = records[:3]
			}
			err := Verify(records)
			var broken *BrokenLinkError
			if !errors.As(err, &broken) {
				t.Fatalf("expected BrokenLinkError, got %v", err)
			}
			if broken.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", broken.Reason, tt.reason)
			}
		})
	}
}

func TestHashIgnoresID(t *testing.T) {
	records := chain(t, 1)
	rec := records[0]
	before, _ := Hash(&rec)
	rec.ID = 999
	after, _ := Hash(&rec)
	if before != after {
		t.Errorf("hash should not depend on store-assigned id")
	}
}
