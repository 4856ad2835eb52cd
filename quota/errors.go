/*
errors.go - Centralized error types for the quota engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The weighing and gateway packages wrap these with additional context.

ERROR CATEGORIES:
  1. Allocation errors - Bad authorization lists, project headroom violations
  2. Consumption errors - Overruns and rejected overrides
  3. Sync errors - Weighing/trip divergence
  4. Store errors - Persistence-level failures

USAGE:
  Callers branch with errors.Is / errors.As:

    var overrun *quota.OverrunError
    if errors.As(err, &overrun) {
        // offer the operator an override with overrun.Excess
    }
*/
package quota

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOverrun is returned when a net weight exceeds the remaining quota
	// for the targeted code. Wrapped by OverrunError which carries the excess.
	ErrOverrun = errors.New("consumption exceeds remaining quota")

	// ErrOverrunRejected is returned when the upstream service refuses a
	// confirmed override. Terminal for the attempt.
	ErrOverrunRejected = errors.New("quota overrun rejected upstream")

	// ErrAuthExpired is returned when the upstream session is no longer valid.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNegativeQuantity is returned when an authorization line carries a
	// negative quantity.
	ErrNegativeQuantity = errors.New("negative quantity")

	// ErrDuplicateCode is returned when an authorization list repeats a code.
	ErrDuplicateCode = errors.New("duplicate authorization code")

	// ErrAllocationNotFound is returned when a referenced allocation doesn't exist.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrRecordNotFound is returned when a referenced weighing doesn't exist.
	ErrRecordNotFound = errors.New("weighing record not found")

	// ErrTripNotFound is returned when no trip matches a weighing's keys.
	ErrTripNotFound = errors.New("trip record not found")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNoBeneficiary is returned when a record carries neither client nor
	// depot, or both.
	ErrNoBeneficiary = errors.New("record must reference exactly one of client or depot")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverrunError reports a consumption that would exceed the remaining quota.
// It is recoverable: the operator may confirm an override.
type OverrunError struct {
	Beneficiary BeneficiaryRef
	Code        string
	Remaining   Quantity
	Requested   Quantity
	Excess      Quantity
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("quota overrun for %s code %s: remaining %v, requested %v, excess %v",
		e.Beneficiary, e.Code, e.Remaining.Value, e.Requested.Value, e.Excess.Value)
}

func (e *OverrunError) Unwrap() error {
	return ErrOverrun
}

// ProjectOverrunError reports an authorization list whose total would exceed
// the project-level headroom.
type ProjectOverrunError struct {
	ProjectID ProjectID
	Headroom  Quantity
	Requested Quantity
}

func (e *ProjectOverrunError) Error() string {
	return fmt.Sprintf("project %d quota exceeded: headroom %v, requested %v",
		e.ProjectID, e.Headroom.Value, e.Requested.Value)
}

func (e *ProjectOverrunError) Unwrap() error {
	return ErrOverrun
}

// SyncDivergenceError reports a weighing whose trip mirror could not be
// found or updated. The weighing side is already written when this is
// raised, so callers must surface it rather than roll back.
type SyncDivergenceError struct {
	RecordID       RecordID
	TicketNo       string
	DeliveryNoteNo string
	Op             string
	Cause          error
}

func (e *SyncDivergenceError) Error() string {
	return fmt.Sprintf("trip sync %s diverged for weighing %d (ticket %s, note %s): %v",
		e.Op, e.RecordID, e.TicketNo, e.DeliveryNoteNo, e.Cause)
}

func (e *SyncDivergenceError) Unwrap() error {
	return e.Cause
}

// ValidationError reports invalid input on a weighing or allocation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid operator input
// rather than an engine or upstream failure.
func IsClientError(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrOverrun) ||
		errors.Is(err, ErrNegativeQuantity) ||
		errors.Is(err, ErrDuplicateCode) ||
		errors.Is(err, ErrNoBeneficiary) ||
		errors.As(err, &ve)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrTripNotFound) ||
		errors.Is(err, ErrProjectNotFound)
}
