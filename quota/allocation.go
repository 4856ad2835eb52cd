/*
allocation.go - Beneficiary allocations and per-code lookups

PURPOSE:
  An allocation grants a beneficiary a list of per-code authorized
  quantities inside one project. Older data predates per-code lists and
  carries a single scalar instead; both shapes flow through here and are
  normalized so the rest of the engine only ever sees the list form.

SEE ALSO:
  - ledger.go: Mutates authorization lists with project-headroom guards
  - aggregator.go: Consumes AuthorizedFor to compute remaining quota
*/
package quota

import "time"

// Allocation grants a beneficiary per-code quantities inside a project.
type Allocation struct {
	ID          AllocationID
	ProjectID   ProjectID
	Beneficiary BeneficiaryRef

	// Authorizations is the normalized per-code list. Empty only for legacy
	// rows whose grant lives in LegacyQuantity.
	Authorizations []Authorization

	// LegacyQuantity holds the single scalar grant of rows created before
	// per-code authorizations existed. Zero when Authorizations is set.
	LegacyQuantity Quantity

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Normalized returns the authorization list, folding a legacy scalar into a
// single line under DefaultCode.
func (a Allocation) Normalized() []Authorization {
	if len(a.Authorizations) > 0 {
		return a.Authorizations
	}
	if !a.LegacyQuantity.IsZero() {
		return []Authorization{{Code: DefaultCode, Quantity: a.LegacyQuantity}}
	}
	return nil
}

// TotalAuthorized sums every authorization line.
func (a Allocation) TotalAuthorized() Quantity {
	total := ZeroQuantity()
	for _, auth := range a.Normalized() {
		total = total.Add(auth.Quantity)
	}
	return total
}

// AuthorizedFor returns the quantity granted under code. A code absent from
// the list grants zero. When the list accidentally repeats a code the first
// occurrence wins, matching read behavior everywhere else in the engine.
func (a Allocation) AuthorizedFor(code string) Quantity {
	if code == "" {
		code = DefaultCode
	}
	for _, auth := range a.Normalized() {
		if auth.Code == code {
			return auth.Quantity
		}
	}
	return ZeroQuantity()
}

// Codes returns the codes present in the allocation, in list order.
func (a Allocation) Codes() []string {
	auths := a.Normalized()
	codes := make([]string, 0, len(auths))
	for _, auth := range auths {
		codes = append(codes, auth.Code)
	}
	return codes
}
