/*
ledger.go - Allocation mutations with project-headroom guards

PURPOSE:
  All writes to authorization lists flow through the Ledger so the two
  invariants hold everywhere: no line is negative or duplicated, and a
  resize never grants more than the project has left. The headroom guard
  credits back the allocation's previous total, otherwise shrinking and
  regrowing an allocation would wrongly trip the limit.

GUARD SEMANTICS:
  The project headroom passed in is advisory (the upstream service owns
  the authoritative figure), so the guard is a fast local reject, not a
  guarantee of upstream acceptance.

SEE ALSO:
  - allocation.go: The data the ledger mutates
  - ../gateway/client.go: Pushes accepted changes upstream
*/
package quota

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ledger owns allocation writes.
type Ledger struct {
	store AllocationStore
	log   *zap.Logger
}

func NewLedger(store AllocationStore, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, log: log}
}

// ValidateAuthorizations checks an authorization list for negative
// quantities and duplicate codes.
func ValidateAuthorizations(auths []Authorization) error {
	seen := make(map[string]bool, len(auths))
	for _, a := range auths {
		code := a.Code
		if code == "" {
			return &ValidationError{Field: "code", Message: "authorization code is required"}
		}
		if a.Quantity.IsNegative() {
			return ErrNegativeQuantity
		}
		if seen[code] {
			return ErrDuplicateCode
		}
		seen[code] = true
	}
	return nil
}

// CreateAllocation grants a beneficiary a fresh authorization list. The
// project headroom guard applies with no prior total to credit back.
func (l *Ledger) CreateAllocation(ctx context.Context, project ProjectID, ben BeneficiaryRef, auths []Authorization, projectRemaining Quantity) (*Allocation, error) {
	if !ben.Valid() {
		return nil, ErrNoBeneficiary
	}
	if err := ValidateAuthorizations(auths); err != nil {
		return nil, err
	}

	total := sumAuthorizations(auths)
	if total.GreaterThan(projectRemaining) {
		return nil, &ProjectOverrunError{ProjectID: project, Headroom: projectRemaining, Requested: total}
	}

	now := time.Now()
	alloc := &Allocation{
		ProjectID:      project,
		Beneficiary:    ben,
		Authorizations: auths,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.SaveAllocation(ctx, alloc); err != nil {
		return nil, err
	}

	l.log.Info("allocation created",
		zap.Int64("project", int64(project)),
		zap.String("beneficiary", ben.String()),
		zap.Float64("total", total.Float64()))
	return alloc, nil
}

// ReplaceAuthorizations swaps an allocation's authorization list for a new
// one. The headroom guard allows newTotal up to projectRemaining plus the
// allocation's previous total, since the previous grant returns to the pool
// before the new one is taken.
func (l *Ledger) ReplaceAuthorizations(ctx context.Context, id AllocationID, auths []Authorization, projectRemaining Quantity) (*Allocation, error) {
	if err := ValidateAuthorizations(auths); err != nil {
		return nil, err
	}

	alloc, err := l.store.GetAllocation(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := alloc.TotalAuthorized()
	headroom := projectRemaining.Add(previous)
	total := sumAuthorizations(auths)
	if total.GreaterThan(headroom) {
		return nil, &ProjectOverrunError{ProjectID: alloc.ProjectID, Headroom: headroom, Requested: total}
	}

	alloc.Authorizations = auths
	alloc.LegacyQuantity = ZeroQuantity()
	alloc.UpdatedAt = time.Now()
	if err := l.store.SaveAllocation(ctx, alloc); err != nil {
		return nil, err
	}

	l.log.Info("authorizations replaced",
		zap.Int64("allocation", int64(id)),
		zap.Float64("previous_total", previous.Float64()),
		zap.Float64("new_total", total.Float64()))
	return alloc, nil
}

func sumAuthorizations(auths []Authorization) Quantity {
	total := ZeroQuantity()
	for _, a := range auths {
		total = total.Add(a.Quantity)
	}
	return total
}
