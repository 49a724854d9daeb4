// Package audit seals audit records into a per-instance hash chain and verifies it.
package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/rentroll/rentroll/pkg/property"
)

// sealedFields is the canonical, hash-covered view of a record.
// ID is excluded because the store assigns it after sealing.
type sealedFields struct {
	PropertyID        string                 `json:"propertyId"`
	Version           string                 `json:"version"`
	Revision          int64                  `json:"revision"`
	Action            property.Action        `json:"action"`
	Changes           []property.FieldChange `json:"changes"`
	ChangedFieldCount int                    `json:"changedFieldCount"`
	UpdatedBy         string                 `json:"updatedBy"`
	CreatedAt         string                 `json:"createdAt"`
	PrevHash          string                 `json:"prevHash"`
}

// Hash returns the hex BLAKE2b-256 digest of the record's canonical encoding.
func Hash(rec *property.AuditRecord) (string, error) {
	changes := rec.Changes
	if changes == nil {
		changes = []property.FieldChange{}
	}
	data, err := json.Marshal(sealedFields{
		PropertyID:        rec.PropertyID,
		Version:           rec.Version,
		Revision:          rec.Revision,
		Action:            rec.Action,
		Changes:           changes,
		ChangedFieldCount: rec.ChangedFieldCount,
		UpdatedBy:         rec.UpdatedBy,
		CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:          rec.PrevHash,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode audit record: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Seal links rec to prevHash and stamps its own hash.
func Seal(rec *property.AuditRecord, prevHash string) error {
	rec.PrevHash = prevHash
	h, err := Hash(rec)
	if err != nil {
		return err
	}
	rec.Hash = h
	return nil
}

// BrokenLinkError reports the first record whose chain link does not verify.
type BrokenLinkError struct {
	RecordID int64
	Revision int64
	Reason   string
}

func (e *BrokenLinkError) Error() string {
	return fmt.Sprintf("audit chain broken at record %d (revision %d): %s", e.RecordID, e.Revision, e.Reason)
}

// Verify checks a chain given newest-first, as the audit log lists it.
func Verify(records []property.AuditRecord) error {
	prev := ""
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		if rec.PrevHash != prev {
			return &BrokenLinkError{RecordID: rec.ID, Revision: rec.Revision, Reason: "previous hash mismatch"}
		}
		h, err := Hash(&rec)
		if err != nil {
			return err
		}
		if h != rec.Hash {
			return &BrokenLinkError{RecordID: rec.ID, Revision: rec.Revision, Reason: "content hash mismatch"}
		}
		prev = rec.Hash
	}
	return nil
}
