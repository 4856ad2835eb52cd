/*
record.go - Weighing and trip record types

PURPOSE:
  A weighing records one unloading ticket at the bridge: gross weight in,
  empty truck weight out, net consumption derived. A trip is the logistics
  mirror of the same event keyed by ticket and delivery-note numbers. The
  two live in different upstream tables and are kept aligned by the
  weighing.Synchronizer.

KEY INVARIANT:
  Net weight is always gross minus tare, never stored. Storing it would let
  the two drift apart after an edit.

SEE ALSO:
  - aggregator.go: Sums net weights into consumption totals
  - weighing/sync.go: Propagates record changes to trips
*/
package quota

import "time"

// =============================================================================
// WEIGHING RECORD - One unloading ticket
// =============================================================================

type WeighingRecord struct {
	ID          RecordID
	ProjectID   ProjectID
	Beneficiary BeneficiaryRef
	Code        string

	// Scale readings in kilograms. Net weight is derived, never stored.
	GrossWeight Quantity
	TareWeight  Quantity

	TicketNo       string
	DeliveryNoteNo string
	LoadingRef     string
	Company        string

	RecordedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NetWeight is the consumption this record contributes.
func (r WeighingRecord) NetWeight() Quantity {
	return r.GrossWeight.Sub(r.TareWeight)
}

// EffectiveCode returns the record's authorization code, defaulting legacy
// rows that predate per-code allocations.
func (r WeighingRecord) EffectiveCode() string {
	if r.Code == "" {
		return DefaultCode
	}
	return r.Code
}

// =============================================================================
// TRIP RECORD - Logistics mirror of a weighing
// =============================================================================

// TripRecord mirrors a weighing in the trip table. ClientWeight and
// DepotWeight are mutually exclusive: whichever side the weighing's
// beneficiary is on carries the net weight, the other is zero.
type TripRecord struct {
	ID        TripID
	ProjectID ProjectID

	TicketNo       string
	DeliveryNoteNo string

	ClientID     ClientID
	DepotID      DepotID
	ClientWeight Quantity
	DepotWeight  Quantity

	Code    string
	Company string

	// Operator fields owned by the trip side. A sync must preserve these
	// when the weighing carries no values for them.
	DriverID string
	TruckID  string

	// RemainingSnapshot is the remaining quota at the moment the trip was
	// last synced. Informational only, never used in calculations.
	RemainingSnapshot Quantity

	Date time.Time
}

// =============================================================================
// NOTICE - Operator-facing event emitted by the engine
// =============================================================================

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeDanger  NoticeLevel = "danger"
)

// Notice records an event an operator should see: a deletion cascade, a
// divergence between weighings and trips, an overrun override.
type Notice struct {
	ID        int64
	Level     NoticeLevel
	Kind      string
	Entity    string
	EntityID  int64
	Message   string
	CreatedAt time.Time
}
