/*
aggregator.go - Consumption totals and remaining-quota queries

PURPOSE:
  Derives every consumption figure the engine reports: total net weight
  consumed by a beneficiary under a code, and the remaining quota a new
  ticket validates against. All functions here are pure folds over the
  record set so the same inputs always produce the same figures.

KEY CONCEPTS:
  - Filter: Which records count (beneficiary, project, code, exclusion)
  - RemainingQuery: Remaining quota, optionally cumulative as of an instant

PAGINATION WARNING:
  Callers MUST pass the complete record set for the beneficiary. Summing a
  page of records silently understates consumption and overstates the
  remaining quota.
*/
package quota

import "time"

// =============================================================================
// FILTER - Which records participate in a sum
// =============================================================================

// Filter selects the weighing records that participate in a consumption sum.
type Filter struct {
	ProjectID   ProjectID
	Beneficiary BeneficiaryRef

	// Code restricts the sum to one authorization code. Empty means all
	// codes. Records without a code match DefaultCode.
	Code string

	// ExcludeID drops one record from the sum, used when revalidating an
	// edit so the record doesn't count against itself. Zero excludes nothing.
	ExcludeID RecordID

	// From/To restrict the sum to records falling in the work-day windows
	// of the given day range. Nil leaves that side open.
	From *time.Time
	To   *time.Time
}

func (f Filter) matches(r WeighingRecord, now time.Time) bool {
	if f.ProjectID != 0 && r.ProjectID != f.ProjectID {
		return false
	}
	if !f.Beneficiary.IsZero() && !r.Beneficiary.Equal(f.Beneficiary) {
		return false
	}
	if f.Code != "" && r.EffectiveCode() != f.Code {
		return false
	}
	if f.ExcludeID != 0 && r.ID == f.ExcludeID {
		return false
	}
	if f.From != nil || f.To != nil {
		if !InAnyWindow(r.RecordedAt, f.From, f.To, now) {
			return false
		}
	}
	return true
}

// TotalConsumed sums the net weights of every record matching the filter.
func TotalConsumed(records []WeighingRecord, f Filter) Quantity {
	return totalConsumedAt(records, f, time.Now())
}

func totalConsumedAt(records []WeighingRecord, f Filter, now time.Time) Quantity {
	total := ZeroQuantity()
	for _, r := range records {
		if f.matches(r, now) {
			total = total.Add(r.NetWeight())
		}
	}
	return total
}

// =============================================================================
// REMAINING - Authorized minus consumed
// =============================================================================

// RemainingQuery asks how much quota is left under one code.
type RemainingQuery struct {
	// Code selects the authorization line. Empty maps to DefaultCode.
	Code string

	// ExcludeID drops one record from the consumption side, used when an
	// edit revalidates against quota without counting its own prior weight.
	// The exclusion only applies when the edit keeps the same beneficiary;
	// callers enforce that by clearing ExcludeID on a beneficiary change.
	ExcludeID RecordID

	// AsOf, when set, makes the figure cumulative: only records at or
	// before the instant count. Boundary handling follows Inclusive.
	AsOf *time.Time

	// Inclusive controls the AsOf boundary. True counts records exactly at
	// AsOf; false counts strictly-earlier records and additionally drops
	// any record sharing CursorID, so a running balance printed next to a
	// record shows the state just before it.
	Inclusive bool

	// CursorID identifies the record the exclusive cumulative figure is
	// printed against. Ignored when Inclusive is true or AsOf is nil.
	CursorID RecordID
}

// Remaining computes the quota left for the allocation's beneficiary under
// the queried code. The record slice must be the complete set for the
// beneficiary's project; Remaining applies its own filtering.
func Remaining(alloc Allocation, records []WeighingRecord, q RemainingQuery) Quantity {
	code := q.Code
	if code == "" {
		code = DefaultCode
	}
	authorized := alloc.AuthorizedFor(code)

	consumed := ZeroQuantity()
	for _, r := range records {
		if r.ProjectID != alloc.ProjectID || !r.Beneficiary.Equal(alloc.Beneficiary) {
			continue
		}
		if r.EffectiveCode() != code {
			continue
		}
		if q.ExcludeID != 0 && r.ID == q.ExcludeID {
			continue
		}
		if q.AsOf != nil {
			if q.Inclusive {
				if r.RecordedAt.After(*q.AsOf) {
					continue
				}
			} else {
				if !r.RecordedAt.Before(*q.AsOf) {
					continue
				}
				if q.CursorID != 0 && r.ID == q.CursorID {
					continue
				}
			}
		}
		consumed = consumed.Add(r.NetWeight())
	}

	return authorized.Sub(consumed)
}
