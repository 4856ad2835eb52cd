/*
Package quota provides the core quota allocation and consumption engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  authorized tonnage against weighed consumption. A beneficiary (a client
  or a depot) holds an allocation of per-code authorized quantities inside
  a project, and every unloading ticket consumes net weight against one of
  those codes. The engine answers "how much is left" deterministically
  from the full record set.

KEY CONCEPTS IN THIS FILE (types.go):
  - Quantity: A weight in kilograms backed by decimal.Decimal
  - BeneficiaryRef: Exactly one of client or depot
  - Authorization: A (code, quantity) line inside an allocation
  - ProjectContext: The project a weighing session operates in

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so repeated net-weight sums never drift
  2. Type Safety: Strong typing for IDs prevents mixing client/depot/project IDs
  3. Determinism: All derived figures are pure functions of the record set

SEE ALSO:
  - allocation.go: Allocation and per-code lookups
  - aggregator.go: Consumption totals and remaining-quota queries
  - window.go: Work-day windowing for date filters
*/
package quota

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTITY - Weight in kilograms
// =============================================================================

// Quantity is a weight expressed in kilograms. Gross, tare and authorized
// figures all use the same unit, so unlike a multi-unit ledger there is no
// unit tag to carry around.
type Quantity struct {
	Value decimal.Decimal
}

func NewQuantity(value float64) Quantity {
	return Quantity{Value: decimal.NewFromFloat(value)}
}

func NewQuantityFromInt(value int) Quantity {
	return Quantity{Value: decimal.NewFromInt(int64(value))}
}

func ZeroQuantity() Quantity {
	return Quantity{Value: decimal.Zero}
}

func MustParseQuantity(s string) Quantity {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{Value: decimal.Zero}
	}
	return Quantity{Value: d}
}

func (q Quantity) Add(b Quantity) Quantity      { return Quantity{Value: q.Value.Add(b.Value)} }
func (q Quantity) Sub(b Quantity) Quantity      { return Quantity{Value: q.Value.Sub(b.Value)} }
func (q Quantity) Neg() Quantity                { return Quantity{Value: q.Value.Neg()} }
func (q Quantity) IsNegative() bool             { return q.Value.IsNegative() }
func (q Quantity) IsZero() bool                 { return q.Value.IsZero() }
func (q Quantity) IsPositive() bool             { return q.Value.IsPositive() }
func (q Quantity) GreaterThan(b Quantity) bool  { return q.Value.GreaterThan(b.Value) }
func (q Quantity) LessThan(b Quantity) bool     { return q.Value.LessThan(b.Value) }
func (q Quantity) Equal(b Quantity) bool        { return q.Value.Equal(b.Value) }
func (q Quantity) Float64() float64             { f, _ := q.Value.Float64(); return f }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProjectID int64
type ClientID int64
type DepotID int64
type AllocationID int64
type RecordID int64
type TripID int64

// DefaultCode is the authorization code assumed when a record or a legacy
// allocation carries none.
const DefaultCode = "1"

// =============================================================================
// BENEFICIARY - Exactly one of client or depot
// =============================================================================

// BeneficiaryRef identifies who a weighing counts against. Exactly one of
// the two IDs is set; the zero value is invalid.
type BeneficiaryRef struct {
	ClientID ClientID
	DepotID  DepotID
}

func ClientRef(id ClientID) BeneficiaryRef { return BeneficiaryRef{ClientID: id} }
func DepotRef(id DepotID) BeneficiaryRef   { return BeneficiaryRef{DepotID: id} }

func (b BeneficiaryRef) IsClient() bool { return b.ClientID != 0 }
func (b BeneficiaryRef) IsDepot() bool  { return b.DepotID != 0 }
func (b BeneficiaryRef) IsZero() bool   { return b.ClientID == 0 && b.DepotID == 0 }

// Valid reports whether exactly one side is set.
func (b BeneficiaryRef) Valid() bool {
	return (b.ClientID != 0) != (b.DepotID != 0)
}

func (b BeneficiaryRef) Equal(o BeneficiaryRef) bool {
	return b.ClientID == o.ClientID && b.DepotID == o.DepotID
}

func (b BeneficiaryRef) String() string {
	if b.IsClient() {
		return "client:" + strconv.FormatInt(int64(b.ClientID), 10)
	}
	if b.IsDepot() {
		return "depot:" + strconv.FormatInt(int64(b.DepotID), 10)
	}
	return "none"
}

// =============================================================================
// AUTHORIZATION - One (code, quantity) line of an allocation
// =============================================================================

type Authorization struct {
	Code     string
	Quantity Quantity
}

// =============================================================================
// PROJECT CONTEXT
// =============================================================================

// ProjectContext carries the project a session operates in together with its
// total quota. RemainingQuota is the project-level headroom last reported by
// the upstream service; it is advisory and may be stale.
type ProjectContext struct {
	ProjectID      ProjectID
	Name           string
	TotalQuota     Quantity
	RemainingQuota Quantity
	Active         bool
}
