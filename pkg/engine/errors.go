package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/stores"
)

// Conflict reasons, used as metric labels and event details.
const (
	reasonRevisionMismatch = "revision_mismatch"
	reasonLostRace         = "lost_race"
	reasonHistorical       = "historical"
	reasonVersionExists    = "version_exists"
	reasonPropertyExists   = "property_exists"
	reasonDuplicate        = "duplicate"
)

func conflict(msg, reason string, err error) *property.Error {
	return property.NewConflict(msg, err).WithDetail("reason", reason)
}

// conflictReason extracts the reason label of a CONFLICT error.
func conflictReason(err error) string {
	var e *property.Error
	if errors.As(err, &e) {
		if r, ok := e.Details["reason"].(string); ok {
			return r
		}
	}
	return "other"
}

// translateStoreError maps store sentinels onto caller-facing kinds. Domain
// errors pass through unchanged.
func translateStoreError(err error) error {
	if err == nil || property.KindOf(err) != "" {
		return err
	}
	switch {
	case errors.Is(err, stores.ErrDuplicate):
		return conflict(property.MsgDuplicateRecord, reasonDuplicate, err)
	case errors.Is(err, stores.ErrNotFound):
		return property.NewNotFound(property.MsgVersionNotFound)
	}
	return err
}

// outcome labels a finished mutation for metrics.
func outcome(err error) string {
	if err == nil {
		return "committed"
	}
	if kind := property.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

func wrap(op string, err error) error {
	if err == nil || property.KindOf(err) != "" {
		return err
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
