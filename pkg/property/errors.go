package property

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation for the caller.
type Kind string

const (
	// KindNotFound covers unknown properties, versions and entity ids.
	KindNotFound Kind = "NOT_FOUND"

	// KindConflict covers stale revisions, writes to historical versions,
	// lost optimistic races and duplicate natural keys. Callers reload and retry.
	KindConflict Kind = "CONFLICT"

	// KindValidation covers business-rule and payload-integrity violations.
	KindValidation Kind = "VALIDATION"
)

// Messages surfaced verbatim to callers.
const (
	MsgVersionNotFound     = "Property version not found"
	MsgHistoricalReadOnly  = "Historical versions are read-only"
	MsgRevisionMismatch    = "Revision mismatch detected. Reload latest data."
	MsgAddressReadOnly     = "Property address is read-only"
	MsgDuplicateBrokerIDs  = "Broker IDs must be unique"
	MsgDuplicateTenantIDs  = "Tenant IDs must be unique"
	MsgVacantManaged       = "Vacant row is system-managed and cannot be modified directly"
	MsgSpaceExceeded       = "Total tenant square footage must be <= property space"
	MsgLeaseBeforeStart    = "Lease start cannot be before property start"
	MsgLeaseEndBeforeStart = "Lease end cannot be before lease start"
	MsgLeaseBeyondHold     = "Lease end cannot exceed start + hold period"
	MsgTenantNotFound      = "Tenant not found"
	MsgBrokerNotFound      = "Broker not found"
	MsgIncompleteDraft     = "Save As with form changes requires propertyDetails, underwritingInputs, brokers and tenants"
	MsgUnknownProperty     = "Cannot create next version for unknown property"
	MsgVersionExists       = "Version already exists. Reload versions and retry."
	MsgPropertyExists      = "Property already exists"
	MsgDuplicateRecord     = "Duplicate record. Reload latest data and retry."
	MsgTenantUpdateDeleted = "Cannot update a soft-deleted tenant"
	MsgTenantDeleteDeleted = "Cannot delete a soft-deleted tenant"
	MsgBrokerUpdateDeleted = "Cannot update a soft-deleted broker"
	MsgBrokerDeleteDeleted = "Cannot delete a soft-deleted broker"
)

// Error is a classified domain error.
type Error struct {
	// Kind is the outcome class reported to the caller.
	Kind Kind `json:"kind"`

	// Message is the human-readable message, reported verbatim.
	Message string `json:"message"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`

	// Details contains additional context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithDetail adds a detail field to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewNotFound creates a NOT_FOUND error.
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewConflict creates a CONFLICT error.
func NewConflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// NewValidation creates a VALIDATION error.
func NewValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewValidationf creates a VALIDATION error with a formatted message.
func NewValidationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the caller-facing message of a domain error, or err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsNotFound reports whether err is a NOT_FOUND domain error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is a CONFLICT domain error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsValidation reports whether err is a VALIDATION domain error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }
